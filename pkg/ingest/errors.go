package ingest

// PipelineError is a simple typed error for pipeline lifecycle failures.
type PipelineError struct{ msg string }

func (e *PipelineError) Error() string { return e.msg }

var (
	// ErrPoolClosed is returned when a job is submitted after Close.
	ErrPoolClosed = &PipelineError{"worker pool closed"}
	// ErrBatchWriterClosed is returned when a write is submitted after Close.
	ErrBatchWriterClosed = &PipelineError{"batch writer closed"}
)
