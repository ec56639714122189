package job

import (
	"testing"
)

func TestNew(t *testing.T) {
	j := New("bucket", "chunks/", "out/merged.mp4")

	if j.ID == "" {
		t.Error("expected job to have an ID")
	}
	if j.Status != StatusQueued {
		t.Errorf("expected status %s, got %s", StatusQueued, j.Status)
	}
	if j.Bucket != "bucket" || j.ChunkPrefix != "chunks/" || j.OutputKey != "out/merged.mp4" {
		t.Errorf("unexpected job fields: %+v", j)
	}
	if j.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}
	if j.UpdatedAt.IsZero() {
		t.Error("expected UpdatedAt to be set")
	}
}

func TestJob_ValidTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    Status
		to      Status
		wantErr bool
	}{
		{"queued to downloading", StatusQueued, StatusDownloading, false},
		{"queued to failed", StatusQueued, StatusFailed, false},
		{"downloading to analyzing", StatusDownloading, StatusAnalyzing, false},
		{"downloading to failed", StatusDownloading, StatusFailed, false},
		{"analyzing to merging", StatusAnalyzing, StatusMerging, false},
		{"merging to uploading", StatusMerging, StatusUploading, false},
		{"uploading to completed", StatusUploading, StatusCompleted, false},
		{"queued to merging", StatusQueued, StatusMerging, true},
		{"queued to completed", StatusQueued, StatusCompleted, true},
		{"completed to queued", StatusCompleted, StatusQueued, true},
		{"failed to downloading", StatusFailed, StatusDownloading, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := New("bucket", "chunks/", "out.mp4")
			j.Status = tt.from

			err := j.TransitionTo(tt.to)

			if tt.wantErr && err == nil {
				t.Errorf("expected error for transition %s -> %s", tt.from, tt.to)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error for transition %s -> %s: %v", tt.from, tt.to, err)
			}
		})
	}
}

func TestJob_Fail(t *testing.T) {
	j := New("bucket", "chunks/", "out.mp4")
	_ = j.TransitionTo(StatusDownloading)

	j.Fail("object store unreachable")

	if j.Status != StatusFailed {
		t.Errorf("expected status %s, got %s", StatusFailed, j.Status)
	}
	if j.Error != "object store unreachable" {
		t.Errorf("expected error message set, got %q", j.Error)
	}
	if j.CompletedAt.IsZero() {
		t.Error("expected CompletedAt to be set on failure")
	}
}

func TestJob_Fail_NoopFromTerminalState(t *testing.T) {
	j := New("bucket", "chunks/", "out.mp4")
	_ = j.TransitionTo(StatusDownloading)
	_ = j.TransitionTo(StatusAnalyzing)
	_ = j.TransitionTo(StatusMerging)
	_ = j.TransitionTo(StatusUploading)
	_ = j.TransitionTo(StatusCompleted)

	j.Fail("too late")

	if j.Status != StatusCompleted {
		t.Errorf("expected status to remain %s, got %s", StatusCompleted, j.Status)
	}
	if j.Error == "too late" {
		t.Error("expected error message not to overwrite a completed job")
	}
}

func TestJob_CannotTransitionFromTerminalState(t *testing.T) {
	terminalStates := []Status{StatusCompleted, StatusFailed}
	allStates := []Status{StatusQueued, StatusDownloading, StatusAnalyzing, StatusMerging, StatusUploading, StatusCompleted, StatusFailed}

	for _, terminal := range terminalStates {
		for _, target := range allStates {
			t.Run(string(terminal)+"_to_"+string(target), func(t *testing.T) {
				j := New("bucket", "chunks/", "out.mp4")
				j.Status = terminal

				err := j.TransitionTo(target)
				if err == nil {
					t.Errorf("expected error when transitioning from %s to %s", terminal, target)
				}
				if err != ErrInvalidTransition {
					t.Errorf("expected ErrInvalidTransition, got %v", err)
				}
			})
		}
	}
}

func TestJob_IsTerminal(t *testing.T) {
	tests := []struct {
		status   Status
		terminal bool
	}{
		{StatusQueued, false},
		{StatusDownloading, false},
		{StatusAnalyzing, false},
		{StatusMerging, false},
		{StatusUploading, false},
		{StatusCompleted, true},
		{StatusFailed, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			j := New("bucket", "chunks/", "out.mp4")
			j.Status = tt.status

			if got := j.IsTerminal(); got != tt.terminal {
				t.Errorf("IsTerminal() = %v, want %v", got, tt.terminal)
			}
		})
	}
}

func TestJob_UpdateProgress(t *testing.T) {
	j := New("bucket", "chunks/", "out.mp4")

	tests := []struct {
		input    int
		expected int
	}{
		{50, 50},
		{0, 0},
		{100, 100},
		{-10, 0},
		{150, 100},
	}

	for _, tt := range tests {
		j.UpdateProgress(tt.input, "step")
		if j.Progress != tt.expected {
			t.Errorf("UpdateProgress(%d): expected %d, got %d", tt.input, tt.expected, j.Progress)
		}
	}
}

func TestJob_UpdateProgress_SetsMessage(t *testing.T) {
	j := New("bucket", "chunks/", "out.mp4")
	j.UpdateProgress(40, "downloading chunks")

	if j.Message != "downloading chunks" {
		t.Errorf("expected message %q, got %q", "downloading chunks", j.Message)
	}
}

func TestJob_Clone(t *testing.T) {
	j := New("bucket", "chunks/", "out.mp4")
	j.Status = StatusMerging
	j.Progress = 50

	clone := j.Clone()

	if clone.ID != j.ID {
		t.Errorf("expected ID %s, got %s", j.ID, clone.ID)
	}
	if clone.Status != j.Status {
		t.Errorf("expected Status %s, got %s", j.Status, clone.Status)
	}
	if clone.Progress != j.Progress {
		t.Errorf("expected Progress %d, got %d", j.Progress, clone.Progress)
	}

	clone.Status = StatusCompleted
	if j.Status == StatusCompleted {
		t.Error("modifying clone should not affect original")
	}
}

func TestJob_GetStatus_ThreadSafe(t *testing.T) {
	j := New("bucket", "chunks/", "out.mp4")

	done := make(chan bool)
	go func() {
		for i := 0; i < 100; i++ {
			_ = j.GetStatus()
		}
		done <- true
	}()

	go func() {
		for i := 0; i < 100; i++ {
			j.UpdateProgress(i%100, "working")
		}
		done <- true
	}()

	<-done
	<-done
}
