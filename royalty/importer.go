package royalty

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/royalty_backend/models"
	"bitbucket.org/mmdatafocus/royalty_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// BlobStore is the opaque archive for original statements and rendered
// exports. Failures propagate as job failures subject to retry.
type BlobStore interface {
	Upload(ctx context.Context, objectKey string, localPath string) (*utils.StoredFile, error)
}

type gcsBlobStore struct{}

func NewGCSBlobStore() BlobStore {
	return gcsBlobStore{}
}

func (gcsBlobStore) Upload(ctx context.Context, objectKey string, localPath string) (*utils.StoredFile, error) {
	return utils.UploadLocalFileToGCS(ctx, objectKey, localPath)
}

// cancelCheckInterval is how many rows are processed between reloads of the
// batch status. Cancellation lands between rows, never mid-row.
const cancelCheckInterval = 50

// errUnreadableFile marks read failures that corrupt the whole import;
// callers roll the batch back instead of retrying.
var errUnreadableFile = errors.New("unreadable import file")

// errImportCancelled stops the row loop after an operator cancellation.
var errImportCancelled = errors.New("import cancelled")

// Importer drives one import batch through the row pipeline with
// crash-resumable progress tracking. Rows are processed strictly
// sequentially; counters and progress depend on in-order mutation.
type Importer struct {
	db       *gorm.DB
	progress ProgressStore
	blobs    BlobStore
	logger   *logrus.Logger
}

func NewImporter(db *gorm.DB, progress ProgressStore, blobs BlobStore, logger *logrus.Logger) *Importer {
	return &Importer{db: db, progress: progress, blobs: blobs, logger: logger}
}

// Run executes the import job identified by jobId over the uploaded file at
// csvPath. Redeliveries of finished jobs are no-ops.
func (imp *Importer) Run(ctx context.Context, jobId string, csvPath string) error {
	batch, err := models.GetImportBatchByJobId(imp.db, jobId)
	if err != nil {
		return fmt.Errorf("import batch for job %s: %w", jobId, err)
	}

	switch batch.Status {
	case models.ImportBatchStatusCompleted:
		return nil
	case models.ImportBatchStatusFailed:
		// Cancelled before or during a previous attempt; FAILED is terminal.
		return nil
	}

	pipeline, err := NewPipelineFor(imp.db, imp.logger, batch.Distributor)
	if err != nil {
		return err
	}

	if err := imp.db.Model(batch).Update("status", models.ImportBatchStatusActive).Error; err != nil {
		return err
	}

	f, err := os.Open(csvPath)
	if err != nil {
		// Unreadable file: a failed import must leave no partial artifact.
		if derr := imp.rollbackBatch(pipeline, batch); derr != nil {
			return derr
		}
		return fmt.Errorf("read import file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.Comma = ';'

	cancelled := func() (bool, error) {
		current, err := models.GetImportBatchById(imp.db, batch.ID)
		if err != nil {
			return false, err
		}
		return current.Status == models.ImportBatchStatusFailed, nil
	}

	err = imp.runRows(ctx, pipeline, batch, jobId, reader, cancelled)
	switch {
	case err == nil:
		return imp.complete(ctx, batch, jobId, csvPath)
	case errors.Is(err, errImportCancelled):
		imp.logger.WithField("jobId", jobId).Info("import cancelled by operator")
		// The batch row stays FAILED as an audit trail; everything the
		// attempts created is removed so the period can be re-imported.
		return imp.purgeArtifacts(ctx, pipeline, batch)
	case errors.Is(err, errUnreadableFile):
		if derr := imp.rollbackBatch(pipeline, batch); derr != nil {
			return derr
		}
		return err
	default:
		// Infrastructure failure; artifacts stay so the retry can resume.
		return err
	}
}

// runRows streams the file through the pipeline, honoring the saved
// checkpoint and writing a new one after every committed row. The first
// reader.Read consumes the header line.
func (imp *Importer) runRows(ctx context.Context, pipeline *Pipeline, batch *models.ImportBatch, jobId string, reader *csv.Reader, cancelled func() (bool, error)) error {
	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("%w: read header: %v", errUnreadableFile, err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	resumeFrom := -1
	if saved, found, err := imp.progress.Get(jobId); err != nil {
		return err
	} else if found {
		resumeFrom = saved
		imp.logger.WithFields(logrus.Fields{
			"jobId":    jobId,
			"rowIndex": saved,
		}).Info("resuming import after last committed row")
	}

	rowIndex := -1
	for {
		fields, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				// Malformed single row: archive it and keep going.
				rowIndex++
				if rowIndex <= resumeFrom {
					continue
				}
				payload := []byte(fmt.Sprintf(`{"parse_error":%q}`, err.Error()))
				if ferr := pipeline.Buckets().RecordFailed(ctx, batch.Distributor, batch.ReportingMonth, "", payload, err.Error()); ferr != nil {
					return ferr
				}
				if perr := imp.progress.Set(jobId, rowIndex); perr != nil {
					return perr
				}
				continue
			}
			return fmt.Errorf("%w: row %d: %v", errUnreadableFile, rowIndex+1, err)
		}

		rowIndex++
		if rowIndex <= resumeFrom {
			// Already committed before the crash. The (batch, row) unique
			// index backstops the window between a row's commit and its
			// checkpoint write: a replayed insert is rejected and treated
			// as saved.
			continue
		}

		if rowIndex%cancelCheckInterval == 0 {
			stop, err := cancelled()
			if err != nil {
				return err
			}
			if stop {
				return errImportCancelled
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		raw := make(RawRecord, len(header))
		for i, col := range header {
			if i < len(fields) {
				raw[col] = fields[i]
			}
		}

		if _, err := pipeline.ProcessRow(ctx, batch.ReportingMonth, batch.ID, rowIndex, raw); err != nil {
			return err
		}
		if err := imp.progress.Set(jobId, rowIndex); err != nil {
			return err
		}
	}
	return nil
}

func (imp *Importer) complete(ctx context.Context, batch *models.ImportBatch, jobId string, csvPath string) error {
	objectKey := fmt.Sprintf("royalty-imports/%s/%s/%s.csv",
		batch.Distributor, batch.ReportingMonth, utils.GenerateUniqueFilename())
	stored, err := imp.blobs.Upload(ctx, objectKey, csvPath)
	if err != nil {
		return fmt.Errorf("archive import file: %w", err)
	}

	now := time.Now()
	err = imp.db.Transaction(func(tx *gorm.DB) error {
		doc := models.Document{
			ObjectKey:     stored.ObjectKey,
			DocumentUrl:   stored.URL,
			FileName:      batch.SourceFileName,
			SizeBytes:     stored.Size,
			ReferenceType: models.DocumentReferenceImportBatch,
			ReferenceID:   batch.ID,
		}
		if err := tx.Create(&doc).Error; err != nil {
			return err
		}
		return tx.Model(batch).Updates(map[string]interface{}{
			"archived_object_key": stored.ObjectKey,
			"status":              models.ImportBatchStatusCompleted,
			"completed_at":        &now,
		}).Error
	})
	if err != nil {
		return err
	}

	return imp.progress.Clear(jobId)
}

// purgeArtifacts removes everything the batch's attempts created: royalty
// rows, buffered unlinked rows, archived failures, and the progress
// checkpoint. Without the bucket purge a retried import would buffer the
// same physical statement rows a second time and a later relink would
// double-count them.
func (imp *Importer) purgeArtifacts(ctx context.Context, pipeline *Pipeline, batch *models.ImportBatch) error {
	table, _, err := models.RoyaltyTableFor(batch.Distributor)
	if err != nil {
		return err
	}
	if err := imp.db.Exec(fmt.Sprintf("DELETE FROM %s WHERE import_batch_id = ?", table), batch.ID).Error; err != nil {
		return err
	}
	if err := pipeline.Buckets().PurgePeriod(ctx, batch.Distributor, batch.ReportingMonth); err != nil {
		return err
	}
	return imp.progress.Clear(batch.JobId)
}

// rollbackBatch removes the batch and everything created under it so a failed
// import leaves no partial "imported report" behind.
func (imp *Importer) rollbackBatch(pipeline *Pipeline, batch *models.ImportBatch) error {
	if err := imp.purgeArtifacts(context.Background(), pipeline, batch); err != nil {
		return err
	}
	return imp.db.Delete(&models.ImportBatch{}, batch.ID).Error
}

// Abort is the terminal-failure path for an import whose retries are
// exhausted: the batch is marked FAILED (freeing the period's ActiveKey) and
// every partial artifact is purged so the period can be imported again.
func (imp *Importer) Abort(ctx context.Context, jobId string, reason string) error {
	batch, err := models.GetImportBatchByJobId(imp.db, jobId)
	if err != nil {
		return err
	}
	if batch.Status == models.ImportBatchStatusCompleted {
		return nil
	}
	pipeline, err := NewPipelineFor(imp.db, imp.logger, batch.Distributor)
	if err != nil {
		return err
	}
	if batch.Status != models.ImportBatchStatusFailed {
		if err := batch.MarkFailed(imp.db, reason); err != nil {
			return err
		}
	}
	return imp.purgeArtifacts(ctx, pipeline, batch)
}

// CancelImport moves a queued or active import to the FAILED terminal state.
// An active job notices between rows, stops, and purges its partial
// artifacts; it is never interrupted mid-row. A job no worker is currently
// running is purged here directly.
func CancelImport(db *gorm.DB, jobId string) error {
	batch, err := models.GetImportBatchByJobId(db, jobId)
	if err != nil {
		return err
	}
	switch batch.Status {
	case models.ImportBatchStatusCompleted, models.ImportBatchStatusFailed:
		return fmt.Errorf("import job %s is already %s", jobId, batch.Status)
	}
	return batch.MarkFailed(db, "cancelled by operator")
}
