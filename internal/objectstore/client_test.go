package objectstore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c, err := New(context.Background(), Config{
		Region:          "us-east-1",
		Endpoint:        server.URL,
		AccessKeyID:     "test-access-key",
		SecretAccessKey: "test-secret-key",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func TestClient_List_FiltersExtensionsAndPages(t *testing.T) {
	pageOneServed := false

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		if !pageOneServed {
			pageOneServed = true
			fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?>
<ListBucketResult>
  <Contents><Key>chunks/1000.mp4</Key></Contents>
  <Contents><Key>chunks/manifest.json</Key></Contents>
  <IsTruncated>true</IsTruncated>
  <NextContinuationToken>token-1</NextContinuationToken>
</ListBucketResult>`)
			return
		}
		fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?>
<ListBucketResult>
  <Contents><Key>chunks/2000.MOV</Key></Contents>
  <IsTruncated>false</IsTruncated>
</ListBucketResult>`)
	})

	keys, err := c.List(context.Background(), "bucket", "chunks/")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}

	want := []string{"chunks/1000.mp4", "chunks/2000.MOV"}
	if len(keys) != len(want) {
		t.Fatalf("List() = %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("keys[%d] = %q, want %q", i, keys[i], want[i])
		}
	}
}

func TestClient_Download_StreamsToFile(t *testing.T) {
	content := "fake video bytes"
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, content)
	})

	dir := t.TempDir()
	dest := filepath.Join(dir, "nested", "chunk.mp4")

	if err := c.Download(context.Background(), "bucket", "chunks/1000.mp4", dest); err != nil {
		t.Fatalf("Download() error = %v", err)
	}

	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read downloaded file: %v", err)
	}
	if string(got) != content {
		t.Errorf("downloaded content = %q, want %q", got, content)
	}
}

func TestClient_Upload_PutsObject(t *testing.T) {
	var gotBody string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("expected PUT, got %s", r.Method)
		}
		if !strings.Contains(r.URL.Path, "merged_output.mp4") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.WriteHeader(http.StatusOK)
	})

	dir := t.TempDir()
	src := filepath.Join(dir, "merged_output.mp4")
	if err := os.WriteFile(src, []byte("merged content"), 0o600); err != nil {
		t.Fatalf("write source file: %v", err)
	}

	if err := c.Upload(context.Background(), "bucket", "out/merged_output.mp4", src, ""); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	if gotBody != "merged content" {
		t.Errorf("uploaded body = %q, want %q", gotBody, "merged content")
	}
}
