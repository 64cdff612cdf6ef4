package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// BaseReport aggregates one distributor's royalty rows for one reporting
// month, before the per-client split. Unique per (distributor, month).
type BaseReport struct {
	ID             int         `gorm:"primary_key" json:"id"`
	Distributor    Distributor `gorm:"type:enum('Kontor','Believe');not null;uniqueIndex:uniq_base_period,priority:1" json:"distributor"`
	ReportingMonth string      `gorm:"size:6;not null;uniqueIndex:uniq_base_period,priority:2" json:"reporting_month"`
	Currency       string      `gorm:"size:3;not null" json:"currency"`
	// TotalRoyalties is gross; TotalEarnings the company margin (gross minus
	// the summed client share).
	TotalRoyalties    decimal.Decimal `gorm:"type:decimal(24,10);not null" json:"total_royalties"`
	TotalEarnings     decimal.Decimal `gorm:"type:decimal(24,10);not null" json:"total_earnings"`
	DebitState        DebitState      `gorm:"type:enum('UNPAID','OPEN','PAID');not null;default:'UNPAID'" json:"debit_state"`
	PaidOn            *time.Time      `json:"paid_on"`
	ArchivedObjectKey *string         `gorm:"size:512" json:"archived_object_key"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func GetBaseReportById(tx *gorm.DB, id int) (*BaseReport, error) {
	var report BaseReport
	if err := tx.Where("id = ?", id).Take(&report).Error; err != nil {
		return nil, err
	}
	return &report, nil
}

func GetBaseReportForPeriod(tx *gorm.DB, d Distributor, reportingMonth string) (*BaseReport, error) {
	var report BaseReport
	err := tx.Where("distributor = ? AND reporting_month = ?", d, reportingMonth).
		Take(&report).Error
	if err != nil {
		return nil, err
	}
	return &report, nil
}

func CountUserReportsForBase(tx *gorm.DB, baseReportId int) (int64, error) {
	var count int64
	err := tx.Model(&UserReport{}).Where("base_report_id = ?", baseReportId).Count(&count).Error
	return count, err
}
