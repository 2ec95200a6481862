package model

// FailureKind classifies why a job could not be scored, so the mainframe
// and operators can tell a transient network hiccup apart from a
// genuinely malformed distribution. Grounded on the upstream Rust
// client's DragonflyError enum (original_source/src/error.rs), collapsed
// to the categories this worker actually distinguishes rather than a
// literal per-crate-error port.
type FailureKind string

const (
	// FailureFetch covers network/HTTP errors retrieving a distribution.
	FailureFetch FailureKind = "fetch_error"
	// FailureUnsupportedDistribution covers a distribution whose URL
	// doesn't map to a known archive format (DragonflyError::UnsupportedDistributionType).
	FailureUnsupportedDistribution FailureKind = "unsupported_distribution"
	// FailureTooLarge covers an archive entry exceeding the configured size
	// cap (DragonflyError::DownloadTooLarge). An oversize distribution is
	// truncated by the fetcher, not reported with this kind.
	FailureTooLarge FailureKind = "too_large"
	// FailureArchive covers a malformed tar/zip container.
	FailureArchive FailureKind = "archive_error"
	// FailureScan covers a YARA scan error (timeout, compile issue surfaced
	// at scan time).
	FailureScan FailureKind = "scan_error"
)

// Failure pairs a FailureKind with the human-readable reason sent back to
// the mainframe via SubmitFailure.
type Failure struct {
	Kind   FailureKind
	Reason string
}

func (f Failure) Error() string {
	return f.Reason
}
