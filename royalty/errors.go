package royalty

import "errors"

var (
	// ErrUnknownDistributor means the job was queued with a distributor tag no
	// strategy is registered for. Configuration error; the whole job fails.
	ErrUnknownDistributor = errors.New("unknown distributor")

	// ErrLabelNotFound is the by-name resolution miss. Not a failure: the row
	// is routed to the unlinked bucket instead.
	ErrLabelNotFound = errors.New("label not found")

	// ErrNoValidContract routes a resolved row to the failed-record archive.
	// The wording is what operators see on the archived record.
	ErrNoValidContract = errors.New("no valid contract with PPD found for client")

	ErrDuplicateImport = errors.New("import already queued, active or completed for this period")

	ErrBaseReportExists    = errors.New("base report already exists for this period")
	ErrUnlinkedOutstanding = errors.New("unlinked records outstanding for this period")
	ErrNoRecords           = errors.New("no royalty records found for this period")
	ErrUserReportsExist    = errors.New("user reports already exist for this base report")
	ErrAlreadyPaid         = errors.New("base report is already paid")
)
