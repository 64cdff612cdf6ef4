package royalty

import (
	"context"
	"encoding/json"
	"errors"

	"bitbucket.org/mmdatafocus/royalty_backend/models"
	"github.com/sirupsen/logrus"
)

// RecordSink persists a resolved royalty record (a *models.KontorRecord or
// *models.BelieveRecord built by the strategy).
type RecordSink interface {
	SaveRecord(ctx context.Context, record interface{}) error
}

// BucketStore is where rejected rows land. Every rejected row must land in
// exactly one of the two archives; silent swallowing is not acceptable.
type BucketStore interface {
	RecordUnlinked(ctx context.Context, d models.Distributor, reportingMonth string, labelName string, payload []byte) error
	RecordFailed(ctx context.Context, d models.Distributor, reportingMonth string, labelName string, payload []byte, reason string) error
	// PurgePeriod drops everything both archives hold for the period. Part
	// of import rollback: a retried import replays the whole file, so any
	// surviving buffered row would be buffered twice and relinked twice.
	PurgePeriod(ctx context.Context, d models.Distributor, reportingMonth string) error
}

type RowOutcome int

const (
	RowSaved RowOutcome = iota
	RowUnlinked
	RowFailed
)

// Pipeline runs map -> resolve -> calculate -> persist for single rows. The
// import job runner and the relink job both drive it.
type Pipeline struct {
	strategy DistributorStrategy
	resolver *Resolver
	records  RecordSink
	buckets  BucketStore
	logger   *logrus.Logger
}

func NewPipeline(strategy DistributorStrategy, resolver *Resolver, records RecordSink, buckets BucketStore, logger *logrus.Logger) *Pipeline {
	return &Pipeline{
		strategy: strategy,
		resolver: resolver,
		records:  records,
		buckets:  buckets,
		logger:   logger,
	}
}

func (p *Pipeline) Strategy() DistributorStrategy { return p.strategy }

func (p *Pipeline) Buckets() BucketStore { return p.buckets }

// ProcessRow handles one raw row on the default import path. Domain-level
// rejections are archived and reported through the outcome; only
// infrastructure errors (store failures) are returned, and those abort the
// job so the retry can resume.
func (p *Pipeline) ProcessRow(ctx context.Context, reportingMonth string, importBatchId int, rowIndex int, raw RawRecord) (RowOutcome, error) {
	payload := mustMarshalRaw(raw)

	mapped, err := p.strategy.MapRow(raw)
	if err != nil {
		if ferr := p.buckets.RecordFailed(ctx, p.strategy.Distributor(), reportingMonth, "", payload, err.Error()); ferr != nil {
			return RowFailed, ferr
		}
		return RowFailed, nil
	}

	res, err := p.resolver.ResolveByName(ctx, mapped.LabelName(), p.strategy.CaseSensitiveLabelMatch())
	if err != nil {
		switch {
		case errors.Is(err, ErrLabelNotFound):
			if uerr := p.buckets.RecordUnlinked(ctx, p.strategy.Distributor(), reportingMonth, mapped.LabelName(), payload); uerr != nil {
				return RowUnlinked, uerr
			}
			return RowUnlinked, nil
		case errors.Is(err, ErrNoValidContract):
			if ferr := p.buckets.RecordFailed(ctx, p.strategy.Distributor(), reportingMonth, mapped.LabelName(), payload, err.Error()); ferr != nil {
				return RowFailed, ferr
			}
			return RowFailed, nil
		default:
			return RowFailed, err
		}
	}

	return p.persistResolved(ctx, reportingMonth, importBatchId, rowIndex, mapped, res)
}

// ProcessLinkedRow is the relink path: the label is known by id, so an
// unresolved label can no longer occur and remaining rejections go straight
// to the failed archive.
func (p *Pipeline) ProcessLinkedRow(ctx context.Context, labelID int, reportingMonth string, importBatchId int, rowIndex int, raw RawRecord) (RowOutcome, error) {
	payload := mustMarshalRaw(raw)

	mapped, err := p.strategy.MapRow(raw)
	if err != nil {
		if ferr := p.buckets.RecordFailed(ctx, p.strategy.Distributor(), reportingMonth, "", payload, err.Error()); ferr != nil {
			return RowFailed, ferr
		}
		return RowFailed, nil
	}

	res, err := p.resolver.ResolveByLabelID(ctx, labelID)
	if err != nil {
		if errors.Is(err, ErrNoValidContract) {
			if ferr := p.buckets.RecordFailed(ctx, p.strategy.Distributor(), reportingMonth, mapped.LabelName(), payload, err.Error()); ferr != nil {
				return RowFailed, ferr
			}
			return RowFailed, nil
		}
		// Operator supplied a specific label id; a missing label aborts the
		// whole relink.
		return RowFailed, err
	}

	return p.persistResolved(ctx, reportingMonth, importBatchId, rowIndex, mapped, res)
}

func (p *Pipeline) persistResolved(ctx context.Context, reportingMonth string, importBatchId int, rowIndex int, mapped MappedRow, res *Resolution) (RowOutcome, error) {
	rate := *res.Contract.PPD
	core := models.RoyaltyRecordCore{
		Distributor:    p.strategy.Distributor(),
		ReportingMonth: reportingMonth,
		LabelName:      res.Label.Name,
		LabelId:        res.Label.ID,
		ImportBatchId:  importBatchId,
		RowIndex:       rowIndex,
		ClientRate:     rate,
		ClientRevenue:  ComputeClientShare(mapped.Gross(), rate),
	}

	if err := p.records.SaveRecord(ctx, mapped.Record(core)); err != nil {
		// A (batch, row) collision means an earlier attempt committed this
		// row and crashed before writing its checkpoint. Already counted.
		if models.IsDuplicateKeyErr(err) {
			return RowSaved, nil
		}
		return RowFailed, err
	}
	return RowSaved, nil
}

func mustMarshalRaw(raw RawRecord) []byte {
	// A map[string]string cannot fail to marshal.
	payload, _ := json.Marshal(raw)
	return payload
}
