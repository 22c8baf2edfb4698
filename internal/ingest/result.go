package ingest

// Degradation names a way the async pipeline fell short of a full ingest
// without treating the whole run as an error (spec §9's "graceful
// degradation of ingestion" redesign flag: a typed result instead of
// swallowed exceptions).
type Degradation string

const (
	// DegradationNone means the pipeline completed every step.
	DegradationNone Degradation = ""
	// DegradationFetchFailed means C1 could not retrieve the page; the
	// insight keeps only user-supplied fields.
	DegradationFetchFailed Degradation = "fetch_failed"
	// DegradationNotHTML means the fetched resource wasn't textual content.
	DegradationNotHTML Degradation = "not_html"
	// DegradationSummaryFailed means C3/C4 could not produce a summary; the
	// insight is still chunked and embedded from the preprocessed text.
	DegradationSummaryFailed Degradation = "summary_failed"
	// DegradationEmbeddingPartial means one or more chunk batches never
	// received an embedding after the single in-pipeline retry; those
	// chunks are invisible to retrieval until the embedding retry sweep
	// picks them up.
	DegradationEmbeddingPartial Degradation = "embedding_partial"
)

// Result carries a pipeline stage's value alongside an optional
// non-fatal Degradation. Orchestrator.runPipeline does not construct or
// inspect Result values; it logs each degradation and continues with the
// remaining stages.
type Result[T any] struct {
	Value       T
	Degradation Degradation
	Err         error
}

func Ok[T any](v T) Result[T] {
	return Result[T]{Value: v}
}

func Degraded[T any](v T, d Degradation) Result[T] {
	return Result[T]{Value: v, Degradation: d}
}

func Failed[T any](err error) Result[T] {
	return Result[T]{Err: err}
}

func (r Result[T]) OK() bool {
	return r.Err == nil
}
