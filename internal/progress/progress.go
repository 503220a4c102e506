package progress

import "time"

// Stage identifies which pipeline stage is active.
type Stage string

const (
	StageIngest     Stage = "ingest"
	StageSynthesize Stage = "synthesize"
	StagePitch      Stage = "pitch"
	StageWrite      Stage = "write"
	StageComplete   Stage = "complete"
)

// Event carries progress information from the pipeline to the renderer.
type Event struct {
	Stage        Stage
	Message      string
	Percent      float64 // 0.0–1.0
	VariantNum   int
	VariantTotal int
	Elapsed      time.Duration
	Error        error
	// Warning is a non-fatal problem, such as a pitch shift that fell back
	// to the original audio.
	Warning string
	// OutputFile is set on StageComplete with the final file path.
	OutputFile string
	// Duration is the audio duration string (e.g. "0:07"), set on StageComplete.
	Duration string
	// SizeBytes is the output file size, set on StageComplete.
	SizeBytes int64
}

// Callback is the function signature for progress event handlers.
type Callback func(Event)

// NopCallback is a no-op progress callback for tests and silent mode.
func NopCallback(Event) {}

// Forward returns a Callback that stamps variant numbering onto events
// before passing them to cb. Batch runs use it to label per-variant events.
func Forward(cb Callback, num, total int) Callback {
	if cb == nil {
		return NopCallback
	}
	return func(e Event) {
		e.VariantNum = num
		e.VariantTotal = total
		cb(e)
	}
}

// NewEvent creates an Event with common fields populated.
func NewEvent(stage Stage, msg string, pct float64, start time.Time) Event {
	return Event{
		Stage:   stage,
		Message: msg,
		Percent: pct,
		Elapsed: time.Since(start),
	}
}
