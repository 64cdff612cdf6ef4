package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/royalty_backend/config"
	"bitbucket.org/mmdatafocus/royalty_backend/models"
	"bitbucket.org/mmdatafocus/royalty_backend/royalty"
	"cloud.google.com/go/pubsub"
	"github.com/bsm/redislock"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	maxJobAttempts        = 5
	jobAttemptsKeyPrefix  = "JobAttempts:"
	importLockTTL         = 30 * time.Minute
	defaultSubscriptionID = "royalty-jobs-worker"
)

// Worker pulls royalty jobs and executes them. One worker goroutine handles
// one job at a time; jobs for disjoint report periods may run concurrently,
// while the per-period import lock keeps duplicate imports out.
type Worker struct {
	db       *gorm.DB
	logger   *logrus.Logger
	importer *royalty.Importer
	blobs    royalty.BlobStore
}

func NewWorker(db *gorm.DB, logger *logrus.Logger) *Worker {
	blobs := royalty.NewGCSBlobStore()
	return &Worker{
		db:       db,
		logger:   logger,
		importer: royalty.NewImporter(db, royalty.NewRedisProgressStore(), blobs, logger),
		blobs:    blobs,
	}
}

// Run blocks pulling messages until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	client, err := config.GetClient(ctx)
	if err != nil {
		return err
	}

	topicName := strings.TrimSpace(os.Getenv("ROYALTY_JOBS_TOPIC"))
	if topicName == "" {
		return errors.New("ROYALTY_JOBS_TOPIC is required")
	}
	topic, err := config.CreateTopicIfNotExists(client, topicName)
	if err != nil {
		return err
	}

	subName := strings.TrimSpace(os.Getenv("ROYALTY_JOBS_SUBSCRIPTION"))
	if subName == "" {
		subName = defaultSubscriptionID
	}
	sub, err := config.CreateSubscriptionIfNotExists(client, subName, topic)
	if err != nil {
		return err
	}

	w.logger.WithFields(logrus.Fields{
		"topic":        topicName,
		"subscription": subName,
	}).Info("royalty job worker started")

	return sub.Receive(ctx, w.handleMessage)
}

func (w *Worker) handleMessage(ctx context.Context, msg *pubsub.Message) {
	var env Envelope
	if err := json.Unmarshal(msg.Data, &env); err != nil || env.JobId == "" {
		// Poison message; redelivery cannot fix it.
		config.LogError(w.logger, "worker.go", "handleMessage", "decode envelope", string(msg.Data), fmt.Errorf("undecodable job envelope: %v", err))
		msg.Ack()
		return
	}

	attempts := w.bumpAttempts(env.JobId)

	err := w.Dispatch(ctx, env)
	if err == nil {
		_ = config.RemoveRedisKey(jobAttemptsKeyPrefix + env.JobId)
		msg.Ack()
		return
	}

	config.LogError(w.logger, "worker.go", "handleMessage", string(env.Kind),
		map[string]interface{}{"jobId": env.JobId, "attempt": attempts}, err)

	if isPermanentJobError(err) {
		// Precondition violations do not heal on retry.
		msg.Ack()
		return
	}

	if attempts >= maxJobAttempts {
		w.markJobFailed(ctx, env, err)
		msg.Ack()
		return
	}

	// Crude exponential backoff before redelivery, in the same capped
	// 1<<n shape the connection retries use.
	sleep := time.Second * time.Duration(1<<minInt(attempts, 5))
	if sleep > 30*time.Second {
		sleep = 30 * time.Second
	}
	time.Sleep(sleep)
	msg.Nack()
}

// Dispatch routes one job envelope to its pipeline operation.
func (w *Worker) Dispatch(ctx context.Context, env Envelope) error {
	switch env.Kind {
	case JobImportReportCSV:
		var payload ImportReportCSVPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			return err
		}
		return w.runImport(ctx, env.JobId, payload)

	case JobLinkUnlinkedReport:
		var payload LinkUnlinkedReportPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			return err
		}
		_, err := royalty.Relink(ctx, w.db, w.logger, payload.BucketId, payload.LabelId)
		return err

	case JobGenerateBaseReport:
		var payload GenerateBaseReportPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			return err
		}
		_, err := royalty.GenerateBaseReport(ctx, w.db, payload.Distributor, payload.ReportingMonth)
		return err

	case JobGenerateUserReports:
		var payload GenerateUserReportsPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			return err
		}
		_, err := royalty.GenerateUserReports(ctx, w.db, w.logger, payload.BaseReportId)
		return err

	case JobBaseReportGenerateCsv:
		var payload ReportExportPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			return err
		}
		_, err := royalty.ExportBaseReportCSV(ctx, w.db, w.blobs, payload.BaseReportId)
		return err

	case JobBaseReportGenerateXlsx:
		var payload ReportExportPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			return err
		}
		_, err := royalty.ExportBaseReportXLSX(ctx, w.db, w.blobs, payload.BaseReportId)
		return err

	case JobUserReportGenerateCsv:
		var payload ReportExportPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			return err
		}
		if payload.UserReportId == nil {
			return errors.New("user_report_id is required")
		}
		_, err := royalty.ExportUserReportCSV(ctx, w.db, w.blobs, *payload.UserReportId)
		return err

	case JobCreatePayments:
		var payload PaymentsPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			return err
		}
		return royalty.CreatePayments(ctx, w.db, payload.BaseReportId, payload.PaidOn)

	case JobCancelImport:
		var payload CancelImportPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			return err
		}
		// The publish side already flipped the batch to FAILED; Abort purges
		// whatever partial artifacts earlier attempts left so the period can
		// be re-imported. No-op when the import had already completed.
		if err := w.importer.Abort(ctx, payload.TargetJobId, "cancelled by operator"); err != nil && !models.IsNotFound(err) {
			return err
		}
		return nil

	case JobDeletePayments:
		var payload PaymentsPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			return err
		}
		return royalty.DeletePayments(ctx, w.db, payload.BaseReportId)

	default:
		return fmt.Errorf("unknown job kind %q", env.Kind)
	}
}

func (w *Worker) runImport(ctx context.Context, jobId string, payload ImportReportCSVPayload) error {
	locker := config.GetRedisLock()
	if locker != nil {
		key := fmt.Sprintf("royalty:import:%s:%s", payload.Distributor, payload.ReportingMonth)
		lock, err := locker.Obtain(ctx, key, importLockTTL, nil)
		if err != nil {
			if errors.Is(err, redislock.ErrNotObtained) {
				return fmt.Errorf("import for %s %s already running", payload.Distributor, payload.ReportingMonth)
			}
			return err
		}
		defer lock.Release(context.Background())
	}

	return w.importer.Run(ctx, jobId, payload.FilePath)
}

func (w *Worker) bumpAttempts(jobId string) int {
	key := jobAttemptsKeyPrefix + jobId
	attempts, _, err := config.GetRedisInt(key)
	if err != nil {
		attempts = 0
	}
	attempts++
	_ = config.SetRedisInt(key, attempts, 24*time.Hour)
	return attempts
}

// markJobFailed records the terminal failure on the job's artifact where one
// exists (only imports create one up front). For imports the batch is marked
// FAILED and its partial artifacts purged, so the period is free to be
// imported again instead of staying stuck half-imported.
func (w *Worker) markJobFailed(ctx context.Context, env Envelope, cause error) {
	if _, err := models.GetImportBatchByJobId(w.db, env.JobId); err != nil {
		return
	}
	if err := w.importer.Abort(ctx, env.JobId, cause.Error()); err != nil {
		config.LogError(w.logger, "worker.go", "markJobFailed", "abort import batch", env.JobId, err)
	}
}

// isPermanentJobError reports rejections that retrying cannot change.
func isPermanentJobError(err error) bool {
	for _, sentinel := range []error{
		royalty.ErrUnknownDistributor,
		royalty.ErrDuplicateImport,
		royalty.ErrBaseReportExists,
		royalty.ErrUnlinkedOutstanding,
		royalty.ErrNoRecords,
		royalty.ErrUserReportsExist,
		royalty.ErrAlreadyPaid,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
