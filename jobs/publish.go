package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"bitbucket.org/mmdatafocus/royalty_backend/config"
	"bitbucket.org/mmdatafocus/royalty_backend/models"
	"bitbucket.org/mmdatafocus/royalty_backend/royalty"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func publish(ctx context.Context, kind JobKind, payload interface{}) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	env := Envelope{
		JobId: uuid.NewString(),
		Kind:  kind,
		Data:  data,
	}
	if _, err := config.PublishRoyaltyJob(ctx, env); err != nil {
		return "", err
	}
	return env.JobId, nil
}

// QueueImport creates the PENDING import batch and enqueues the import job.
//
// The duplicate check here (open batch or existing rows for the period) is
// advisory; the unique index on ImportBatch.ActiveKey closes the race two
// concurrent submissions could otherwise slip through.
func QueueImport(ctx context.Context, db *gorm.DB, d models.Distributor, reportingMonth string, filePath string, fileName string) (string, error) {
	if _, err := royalty.StrategyFor(d); err != nil {
		return "", err
	}

	open, err := models.HasOpenImportBatch(db, d, reportingMonth)
	if err != nil {
		return "", err
	}
	if open {
		return "", royalty.ErrDuplicateImport
	}
	existing, err := models.CountRecordsForPeriod(db, d, reportingMonth)
	if err != nil {
		return "", err
	}
	if existing > 0 {
		return "", fmt.Errorf("%w: %d records already imported", royalty.ErrDuplicateImport, existing)
	}

	jobId := uuid.NewString()
	batch := models.NewImportBatch(jobId, d, reportingMonth, fileName)
	if err := db.Create(batch).Error; err != nil {
		if models.IsDuplicateKeyErr(err) {
			return "", royalty.ErrDuplicateImport
		}
		return "", err
	}

	data, err := json.Marshal(ImportReportCSVPayload{
		Distributor:    d,
		ReportingMonth: reportingMonth,
		FilePath:       filePath,
		FileName:       fileName,
	})
	if err != nil {
		return "", err
	}
	env := Envelope{JobId: jobId, Kind: JobImportReportCSV, Data: data}
	if _, err := config.PublishRoyaltyJob(ctx, env); err != nil {
		// Publish failed: free the period again instead of leaving a batch
		// that no job will ever pick up.
		_ = db.Delete(&models.ImportBatch{}, batch.ID).Error
		return "", err
	}
	return jobId, nil
}

func QueueRelink(ctx context.Context, bucketId int, labelId int) (string, error) {
	return publish(ctx, JobLinkUnlinkedReport, LinkUnlinkedReportPayload{BucketId: bucketId, LabelId: labelId})
}

func QueueGenerateBaseReport(ctx context.Context, d models.Distributor, reportingMonth string) (string, error) {
	return publish(ctx, JobGenerateBaseReport, GenerateBaseReportPayload{Distributor: d, ReportingMonth: reportingMonth})
}

func QueueGenerateUserReports(ctx context.Context, baseReportId int) (string, error) {
	return publish(ctx, JobGenerateUserReports, GenerateUserReportsPayload{BaseReportId: baseReportId})
}

func QueueBaseReportCsv(ctx context.Context, baseReportId int) (string, error) {
	return publish(ctx, JobBaseReportGenerateCsv, ReportExportPayload{BaseReportId: baseReportId})
}

func QueueBaseReportXlsx(ctx context.Context, baseReportId int) (string, error) {
	return publish(ctx, JobBaseReportGenerateXlsx, ReportExportPayload{BaseReportId: baseReportId})
}

func QueueUserReportCsv(ctx context.Context, baseReportId int, userReportId int) (string, error) {
	return publish(ctx, JobUserReportGenerateCsv, ReportExportPayload{BaseReportId: baseReportId, UserReportId: &userReportId})
}

func QueueCreatePayments(ctx context.Context, payload PaymentsPayload) (string, error) {
	return publish(ctx, JobCreatePayments, payload)
}

// QueueCancelImport flips the batch to FAILED immediately so a submitted but
// not yet started import never runs, then broadcasts the cancel for any
// worker already mid-file.
func QueueCancelImport(ctx context.Context, db *gorm.DB, targetJobId string) (string, error) {
	if err := royalty.CancelImport(db, targetJobId); err != nil {
		return "", err
	}
	return publish(ctx, JobCancelImport, CancelImportPayload{TargetJobId: targetJobId})
}

func QueueDeletePayments(ctx context.Context, baseReportId int) (string, error) {
	return publish(ctx, JobDeletePayments, PaymentsPayload{BaseReportId: baseReportId})
}
