package royalty

import (
	"context"

	"bitbucket.org/mmdatafocus/royalty_backend/models"
	"gorm.io/gorm"
)

type gormBuckets struct {
	db *gorm.DB
}

func NewGormBucketStore(db *gorm.DB) BucketStore {
	return gormBuckets{db: db}
}

// RecordUnlinked finds or creates the bucket for (labelName, month,
// distributor), appends the raw payload and increments the count. Count and
// stored rows move together inside one transaction.
func (s gormBuckets) RecordUnlinked(ctx context.Context, d models.Distributor, reportingMonth string, labelName string, payload []byte) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var bucket models.UnlinkedBucket
		err := tx.Where("distributor = ? AND reporting_month = ? AND label_name = ?", d, reportingMonth, labelName).
			Take(&bucket).Error
		if err != nil {
			if !models.IsNotFound(err) {
				return err
			}
			bucket = models.UnlinkedBucket{
				Distributor:    d,
				ReportingMonth: reportingMonth,
				LabelName:      labelName,
				Count:          0,
			}
			if err := tx.Create(&bucket).Error; err != nil {
				return err
			}
		}

		row := models.UnlinkedRow{
			UnlinkedBucketId: bucket.ID,
			Payload:          payload,
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		return tx.Model(&models.UnlinkedBucket{}).
			Where("id = ?", bucket.ID).
			Update("count", gorm.Expr("count + 1")).Error
	})
}

func (s gormBuckets) PurgePeriod(ctx context.Context, d models.Distributor, reportingMonth string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := models.DeleteUnlinkedForPeriod(tx, d, reportingMonth); err != nil {
			return err
		}
		return models.DeleteFailedForPeriod(tx, d, reportingMonth)
	})
}

// RecordFailed always appends; failed records are never deduplicated.
func (s gormBuckets) RecordFailed(ctx context.Context, d models.Distributor, reportingMonth string, labelName string, payload []byte, reason string) error {
	record := models.FailedRecord{
		Distributor:    d,
		ReportingMonth: reportingMonth,
		LabelName:      labelName,
		Payload:        payload,
		Reason:         reason,
	}
	return s.db.WithContext(ctx).Create(&record).Error
}
