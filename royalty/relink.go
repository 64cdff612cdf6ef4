package royalty

import (
	"context"
	"encoding/json"
	"fmt"

	"bitbucket.org/mmdatafocus/royalty_backend/config"
	"bitbucket.org/mmdatafocus/royalty_backend/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// RelinkResult is what the operator gets back after replaying a bucket.
type RelinkResult struct {
	Relinked int `json:"relinked"`
	Failed   int `json:"failed"`
}

// Relink replays every buffered row of an unlinked bucket, in original order,
// through the full pipeline with the operator-supplied label. Rows that still
// fail (for example still no valid contract) are archived as failed records,
// never re-buffered: the label is known now, so "unlinked" no longer applies.
// The bucket is deleted either way.
func Relink(ctx context.Context, db *gorm.DB, logger *logrus.Logger, bucketId int, labelId int) (*RelinkResult, error) {
	bucket, err := models.GetUnlinkedBucketById(db, bucketId)
	if err != nil {
		return nil, fmt.Errorf("unlinked bucket %d: %w", bucketId, err)
	}

	// Relinked records belong to the period's import batch.
	var openBatch models.ImportBatch
	err = db.Where("active_key = ?", models.BatchActiveKey(bucket.Distributor, bucket.ReportingMonth)).
		Take(&openBatch).Error
	if err != nil {
		return nil, fmt.Errorf("no import batch for %s %s: %w", bucket.Distributor, bucket.ReportingMonth, err)
	}

	rows, err := models.GetUnlinkedRows(db, bucketId)
	if err != nil {
		return nil, err
	}

	result := &RelinkResult{}
	err = db.Transaction(func(tx *gorm.DB) error {
		pipeline, err := NewPipelineFor(tx, logger, bucket.Distributor)
		if err != nil {
			return err
		}
		result, err = replayBucketRows(ctx, pipeline, labelId, bucket.ReportingMonth, openBatch.ID, rows)
		if err != nil {
			return err
		}
		return models.DeleteUnlinkedBucket(tx, bucketId)
	})
	if err != nil {
		return nil, err
	}

	if result.Failed > 0 {
		logFailures(logger, bucketId, labelId, result, len(rows))
	}
	return result, nil
}

// replayBucketRows runs every buffered row through the linked pipeline in
// original order. Replayed rows are indexed by the negated buffered-row id:
// stable across retries, and outside the CSV-ordinal namespace the import
// used under the same batch, so the (batch, row) unique index holds.
func replayBucketRows(ctx context.Context, pipeline *Pipeline, labelId int, reportingMonth string, batchId int, rows []models.UnlinkedRow) (*RelinkResult, error) {
	result := &RelinkResult{}
	for _, row := range rows {
		var raw RawRecord
		if err := json.Unmarshal(row.Payload, &raw); err != nil {
			return nil, fmt.Errorf("unlinked row %d: corrupt payload: %w", row.ID, err)
		}

		outcome, err := pipeline.ProcessLinkedRow(ctx, labelId, reportingMonth, batchId, -row.ID, raw)
		if err != nil {
			return nil, err
		}
		if outcome == RowSaved {
			result.Relinked++
		} else {
			result.Failed++
		}
	}
	return result, nil
}

func logFailures(logger *logrus.Logger, bucketId int, labelId int, result *RelinkResult, total int) {
	config.LogError(logger, "relink.go", "Relink", "rows failed during replay",
		map[string]interface{}{"bucketId": bucketId, "labelId": labelId, "failed": result.Failed},
		fmt.Errorf("%d of %d rows failed after relink", result.Failed, total))
}
