package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// UserReport is one client's share of a BaseReport.
type UserReport struct {
	ID           int `gorm:"primary_key" json:"id"`
	BaseReportId int `gorm:"index;not null;uniqueIndex:uniq_user_report,priority:1" json:"base_report_id"`
	ClientId     int `gorm:"index;not null;uniqueIndex:uniq_user_report,priority:2" json:"client_id"`
	// TotalRoyalties here is the client's share, not gross.
	TotalRoyalties    decimal.Decimal `gorm:"type:decimal(24,10);not null" json:"total_royalties"`
	Currency          string          `gorm:"size:3;not null" json:"currency"`
	DebitState        DebitState      `gorm:"type:enum('UNPAID','OPEN','PAID');not null;default:'UNPAID'" json:"debit_state"`
	PaidOn            *time.Time      `json:"paid_on"`
	ArchivedObjectKey *string         `gorm:"size:512" json:"archived_object_key"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func GetUserReportById(tx *gorm.DB, id int) (*UserReport, error) {
	var report UserReport
	if err := tx.Where("id = ?", id).Take(&report).Error; err != nil {
		return nil, err
	}
	return &report, nil
}

func GetUserReportsForBase(tx *gorm.DB, baseReportId int) ([]UserReport, error) {
	var reports []UserReport
	err := tx.Where("base_report_id = ?", baseReportId).Order("client_id").Find(&reports).Error
	return reports, err
}
