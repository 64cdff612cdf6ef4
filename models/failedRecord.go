package models

import (
	"time"

	"gorm.io/gorm"
)

// FailedRecord archives a raw row that resolved (or was explicitly linked) to
// a label but failed further processing. Terminal; never reprocessed
// automatically.
type FailedRecord struct {
	ID             int         `gorm:"primary_key" json:"id"`
	Distributor    Distributor `gorm:"type:enum('Kontor','Believe');not null;index:idx_failed_period,priority:1" json:"distributor"`
	ReportingMonth string      `gorm:"size:6;not null;index:idx_failed_period,priority:2" json:"reporting_month"`
	LabelName      string      `gorm:"size:255" json:"label_name"`
	Payload        []byte      `gorm:"type:blob;not null" json:"payload"`
	Reason         string      `gorm:"type:text;not null" json:"reason"`
	CreatedAt      time.Time   `gorm:"autoCreateTime" json:"created_at"`
}

// DeleteFailedForPeriod removes the period's archived failures, part of a
// full import rollback. Outside a rollback the archive is append-only.
func DeleteFailedForPeriod(tx *gorm.DB, d Distributor, reportingMonth string) error {
	return tx.Where("distributor = ? AND reporting_month = ?", d, reportingMonth).
		Delete(&FailedRecord{}).Error
}
