package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// ImportBatch is one import attempt for (distributor, reporting month).
//
// ActiveKey holds "<distributor>:<month>" while the batch is in a non-failed
// state and NULL once it fails. The unique index on it is the real guard
// against two concurrent imports for the same period; the queue scan in the
// jobs package is only advisory.
type ImportBatch struct {
	ID             int               `gorm:"primary_key" json:"id"`
	JobId          string            `gorm:"size:64;index" json:"job_id"`
	Distributor    Distributor       `gorm:"type:enum('Kontor','Believe');not null;index:idx_batch_period,priority:1" json:"distributor"`
	ReportingMonth string            `gorm:"size:6;not null;index:idx_batch_period,priority:2" json:"reporting_month"`
	Status         ImportBatchStatus `gorm:"type:enum('PENDING','ACTIVE','COMPLETED','FAILED');not null;default:'PENDING';index" json:"status"`
	ActiveKey      *string           `gorm:"size:64;uniqueIndex" json:"active_key"`
	SourceFileName string            `gorm:"size:512" json:"source_file_name"`
	// Set after the original CSV is archived to the blob store.
	ArchivedObjectKey *string    `gorm:"size:512" json:"archived_object_key"`
	FailureReason     *string    `gorm:"type:text" json:"failure_reason"`
	CompletedAt       *time.Time `json:"completed_at"`
	CreatedAt         time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func BatchActiveKey(distributor Distributor, reportingMonth string) string {
	return fmt.Sprintf("%s:%s", distributor, reportingMonth)
}

func NewImportBatch(jobId string, distributor Distributor, reportingMonth string, sourceFileName string) *ImportBatch {
	key := BatchActiveKey(distributor, reportingMonth)
	return &ImportBatch{
		JobId:          jobId,
		Distributor:    distributor,
		ReportingMonth: reportingMonth,
		Status:         ImportBatchStatusPending,
		ActiveKey:      &key,
		SourceFileName: sourceFileName,
	}
}

func GetImportBatchById(tx *gorm.DB, id int) (*ImportBatch, error) {
	var batch ImportBatch
	if err := tx.Where("id = ?", id).Take(&batch).Error; err != nil {
		return nil, err
	}
	return &batch, nil
}

func GetImportBatchByJobId(tx *gorm.DB, jobId string) (*ImportBatch, error) {
	var batch ImportBatch
	if err := tx.Where("job_id = ?", jobId).Take(&batch).Error; err != nil {
		return nil, err
	}
	return &batch, nil
}

// HasOpenImportBatch reports whether a non-failed batch already exists for the
// period.
func HasOpenImportBatch(tx *gorm.DB, distributor Distributor, reportingMonth string) (bool, error) {
	var count int64
	err := tx.Model(&ImportBatch{}).
		Where("active_key = ?", BatchActiveKey(distributor, reportingMonth)).
		Count(&count).Error
	return count > 0, err
}

// MarkFailed moves the batch to the FAILED terminal state and frees its
// ActiveKey so the period can be imported again.
func (b *ImportBatch) MarkFailed(tx *gorm.DB, reason string) error {
	return tx.Model(b).Updates(map[string]interface{}{
		"status":         ImportBatchStatusFailed,
		"active_key":     nil,
		"failure_reason": &reason,
	}).Error
}
