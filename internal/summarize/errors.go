package summarize

import "errors"

// ErrorKind tags the pipeline-fatal failure modes.
type ErrorKind string

const (
	// ErrNoChunkableContent: non-empty input produced zero chunks
	// (or the input was empty to begin with).
	ErrNoChunkableContent ErrorKind = "no_chunkable_content"
	// ErrAllChunksFailed: every chunk exhausted its retries.
	ErrAllChunksFailed ErrorKind = "all_chunks_failed"
	// ErrCancelled: cancellation was requested at a batch boundary.
	ErrCancelled ErrorKind = "cancelled"
)

// PipelineError is the only error type Summarize returns for pipeline-fatal
// conditions. Transient errors are retried internally and chunk-level errors
// are isolated; what surfaces carries enough context for a caller to present
// a meaningful message.
type PipelineError struct {
	Kind         ErrorKind
	Message      string
	TotalChunks  int
	FailedChunks int
}

func (e *PipelineError) Error() string {
	return e.Message
}

// IsKind reports whether err is a PipelineError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var pe *PipelineError
	return errors.As(err, &pe) && pe.Kind == kind
}
