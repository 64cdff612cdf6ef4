package models

import (
	"time"

	"gorm.io/gorm"
)

// UnlinkedBucket groups raw rows of one period whose label name could not be
// matched. Count must always equal the number of stored UnlinkedRows.
type UnlinkedBucket struct {
	ID             int         `gorm:"primary_key" json:"id"`
	Distributor    Distributor `gorm:"type:enum('Kontor','Believe');not null;index:idx_unlinked_key,priority:1" json:"distributor"`
	ReportingMonth string      `gorm:"size:6;not null;index:idx_unlinked_key,priority:2" json:"reporting_month"`
	LabelName      string      `gorm:"size:255;not null;index:idx_unlinked_key,priority:3" json:"label_name"`
	Count          int         `gorm:"not null;default:0" json:"count"`
	CreatedAt      time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

// UnlinkedRow buffers one raw CSV row (as parsed key/value JSON) so it can be
// replayed once an operator supplies the label.
type UnlinkedRow struct {
	ID               int       `gorm:"primary_key" json:"id"`
	UnlinkedBucketId int       `gorm:"index;not null" json:"unlinked_bucket_id"`
	Payload          []byte    `gorm:"type:blob;not null" json:"payload"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func GetUnlinkedBucketById(tx *gorm.DB, id int) (*UnlinkedBucket, error) {
	var bucket UnlinkedBucket
	if err := tx.Where("id = ?", id).Take(&bucket).Error; err != nil {
		return nil, err
	}
	return &bucket, nil
}

func GetUnlinkedRows(tx *gorm.DB, bucketId int) ([]UnlinkedRow, error) {
	var rows []UnlinkedRow
	// Original statement order matters for replay.
	err := tx.Where("unlinked_bucket_id = ?", bucketId).Order("id").Find(&rows).Error
	return rows, err
}

func CountUnlinkedBuckets(tx *gorm.DB, d Distributor, reportingMonth string) (int64, error) {
	var count int64
	err := tx.Model(&UnlinkedBucket{}).
		Where("distributor = ? AND reporting_month = ?", d, reportingMonth).
		Count(&count).Error
	return count, err
}

// DeleteUnlinkedBucket removes the bucket and its buffered rows.
func DeleteUnlinkedBucket(tx *gorm.DB, bucketId int) error {
	if err := tx.Where("unlinked_bucket_id = ?", bucketId).Delete(&UnlinkedRow{}).Error; err != nil {
		return err
	}
	return tx.Where("id = ?", bucketId).Delete(&UnlinkedBucket{}).Error
}

// DeleteUnlinkedForPeriod removes every bucket of the period with its rows.
// Rolling back an import must take the buffered rows with it, or a retry
// re-buffers the same physical statement rows a second time.
func DeleteUnlinkedForPeriod(tx *gorm.DB, d Distributor, reportingMonth string) error {
	err := tx.Exec(`
DELETE unlinked_rows FROM unlinked_rows
    JOIN unlinked_buckets ON unlinked_buckets.id = unlinked_rows.unlinked_bucket_id
WHERE unlinked_buckets.distributor = ? AND unlinked_buckets.reporting_month = ?`,
		d, reportingMonth).Error
	if err != nil {
		return err
	}
	return tx.Where("distributor = ? AND reporting_month = ?", d, reportingMonth).
		Delete(&UnlinkedBucket{}).Error
}
