// Package timeline builds the ordered merge plan — real chunks interleaved
// with synthesized gap filler — from a set of chunks ordered by capture
// instant.
package timeline

// Kind identifies whether a Segment covers a real chunk or synthesized gap
// filler.
type Kind string

const (
	// KindChunk marks a segment backed by a real recorded chunk.
	KindChunk Kind = "chunk"
	// KindGap marks a segment synthesized to cover a recording gap.
	KindGap Kind = "gap"
)

// DefaultGapThresholdSeconds is the engineering default below which skew
// between consecutive chunks is tolerated as recorder jitter rather than a
// true recording gap.
const DefaultGapThresholdSeconds = 0.5

// DefaultBudgetSeconds is the default maximum timeline length, 60 minutes.
const DefaultBudgetSeconds = 60 * 60

// Chunk is the minimal input the builder needs about one recorded chunk:
// its capture instant and its probed duration.
type Chunk struct {
	// CaptureInstantMS is the chunk's capture instant in epoch milliseconds.
	CaptureInstantMS int64
	// DurationSeconds is the chunk's probed duration.
	DurationSeconds float64
	// Key identifies the originating chunk for Segment.SourceKey.
	Key string
}

// Segment is one element of the merge plan, either a real chunk or
// synthesized gap filler.
type Segment struct {
	// Kind is chunk or gap.
	Kind Kind
	// StartSecond is the offset from the timeline origin.
	StartSecond float64
	// DurationSeconds is the segment's length.
	DurationSeconds float64
	// SourceKey names the originating chunk key for KindChunk segments;
	// empty for KindGap.
	SourceKey string
	// ChunkIndex is the index into the input chunk slice for KindChunk
	// segments; -1 for KindGap.
	ChunkIndex int
}

// Options configures Build.
type Options struct {
	// GapThresholdSeconds is the minimum skew between the end of one chunk
	// and the start of the next to be treated as a true gap. Zero selects
	// DefaultGapThresholdSeconds.
	GapThresholdSeconds float64
	// BudgetSeconds is the maximum timeline length. Zero selects
	// DefaultBudgetSeconds.
	BudgetSeconds float64
}

func (o Options) normalized() Options {
	if o.GapThresholdSeconds <= 0 {
		o.GapThresholdSeconds = DefaultGapThresholdSeconds
	}
	if o.BudgetSeconds <= 0 {
		o.BudgetSeconds = DefaultBudgetSeconds
	}
	return o
}

// Build emits the ordered list of segments for chunks already ordered by
// capture instant (ties broken by input order, per the object-store listing
// order). See spec §4.4 for the algorithm this implements.
func Build(chunks []Chunk, opts Options) []Segment {
	if len(chunks) == 0 {
		return nil
	}
	opts = opts.normalized()
	budget := opts.BudgetSeconds
	origin := chunks[0].CaptureInstantMS

	segments := make([]Segment, 0, len(chunks)*2)

	for i, c := range chunks {
		startSecond := float64(c.CaptureInstantMS-origin) / 1000.0
		if startSecond >= budget {
			break
		}

		if i > 0 {
			prev := chunks[i-1]
			prevEndMS := prev.CaptureInstantMS + int64(prev.DurationSeconds*1000)
			gapSeconds := float64(c.CaptureInstantMS-prevEndMS) / 1000.0
			if gapSeconds > opts.GapThresholdSeconds {
				gapStart := float64(prevEndMS-origin) / 1000.0
				gapDuration := gapSeconds
				if remaining := budget - gapStart; gapDuration > remaining {
					gapDuration = remaining
				}
				if gapDuration > 0 {
					segments = append(segments, Segment{
						Kind:            KindGap,
						StartSecond:     gapStart,
						DurationSeconds: gapDuration,
						ChunkIndex:      -1,
					})
				}
			}
		}

		effectiveDuration := c.DurationSeconds
		if remaining := budget - startSecond; effectiveDuration > remaining {
			effectiveDuration = remaining
		}

		segments = append(segments, Segment{
			Kind:            KindChunk,
			StartSecond:     startSecond,
			DurationSeconds: effectiveDuration,
			SourceKey:       c.Key,
			ChunkIndex:      i,
		})
	}

	return segments
}
