package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RoyaltyRecordCore carries the fields shared by every distributor's royalty
// rows: resolution results, computed share, and the report linkage stamped by
// the aggregation jobs. Rows are immutable once created except for the two
// report foreign keys.
type RoyaltyRecordCore struct {
	ID             int         `gorm:"primary_key" json:"id"`
	Distributor    Distributor `gorm:"type:enum('Kontor','Believe');not null;index:idx_period,priority:1" json:"distributor"`
	ReportingMonth string      `gorm:"size:6;not null;index:idx_period,priority:2" json:"reporting_month"`
	LabelName      string      `gorm:"size:255;not null" json:"label_name"`
	LabelId        int         `gorm:"index;not null" json:"label_id"`
	// (ImportBatchId, RowIndex) is unique so a crash-resume replaying the
	// last committed row inserts nothing twice; saves tolerate the 1062.
	ImportBatchId int `gorm:"not null;uniqueIndex:uniq_batch_row,priority:1" json:"import_batch_id"`
	RowIndex      int `gorm:"not null;uniqueIndex:uniq_batch_row,priority:2" json:"row_index"`
	BaseReportId   *int        `gorm:"index" json:"base_report_id"`
	UserReportId   *int        `gorm:"index" json:"user_report_id"`
	// ClientRate is the contract PPD applied; ClientRevenue the computed share.
	ClientRate    decimal.Decimal `gorm:"type:decimal(24,10);not null" json:"client_rate"`
	ClientRevenue decimal.Decimal `gorm:"type:decimal(24,10);not null" json:"client_revenue"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// KontorRecord is one resolved line of a Kontor New Media statement.
type KontorRecord struct {
	RoyaltyRecordCore
	Isrc          string          `gorm:"size:32;index" json:"isrc"`
	Ean           string          `gorm:"size:32" json:"ean"`
	ArticleNumber string          `gorm:"size:64" json:"article_number"`
	Artist        string          `gorm:"size:255" json:"artist"`
	Title         string          `gorm:"size:255" json:"title"`
	Shop          string          `gorm:"size:128" json:"shop"`
	SalesMonth    string          `gorm:"size:6" json:"sales_month"`
	Quantity      int             `gorm:"not null;default:0" json:"quantity"`
	Royalties     decimal.Decimal `gorm:"type:decimal(24,10);not null" json:"royalties"`
}

func (KontorRecord) TableName() string { return "kontor_records" }

// BelieveRecord is one resolved line of a Believe Digital statement.
type BelieveRecord struct {
	RoyaltyRecordCore
	Isrc         string          `gorm:"size:32;index" json:"isrc"`
	Upc          string          `gorm:"size:32" json:"upc"`
	Artist       string          `gorm:"size:255" json:"artist"`
	ReleaseTitle string          `gorm:"size:255" json:"release_title"`
	TrackTitle   string          `gorm:"size:255" json:"track_title"`
	Platform     string          `gorm:"size:128" json:"platform"`
	CountryCode  string          `gorm:"size:8" json:"country_code"`
	SalesMonth   string          `gorm:"size:6" json:"sales_month"`
	Quantity     int             `gorm:"not null;default:0" json:"quantity"`
	NetRevenue   decimal.Decimal `gorm:"type:decimal(24,10);not null" json:"net_revenue"`
}

func (BelieveRecord) TableName() string { return "believe_records" }

// royaltyTables maps each distributor to its table and gross-revenue column.
// Keyed lookups keep the aggregation SQL free of distributor branching.
var royaltyTables = map[Distributor]struct {
	table      string
	revenueCol string
}{
	DistributorKontor:  {table: "kontor_records", revenueCol: "royalties"},
	DistributorBelieve: {table: "believe_records", revenueCol: "net_revenue"},
}

func RoyaltyTableFor(d Distributor) (table string, revenueCol string, err error) {
	t, ok := royaltyTables[d]
	if !ok {
		return "", "", fmt.Errorf("no royalty table for distributor %q", d)
	}
	return t.table, t.revenueCol, nil
}

func CountRecordsForPeriod(tx *gorm.DB, d Distributor, reportingMonth string) (int64, error) {
	table, _, err := RoyaltyTableFor(d)
	if err != nil {
		return 0, err
	}
	var count int64
	err = tx.Table(table).
		Where("distributor = ? AND reporting_month = ?", d, reportingMonth).
		Count(&count).Error
	return count, err
}

func CountRecordsForBatch(tx *gorm.DB, d Distributor, importBatchId int) (int64, error) {
	table, _, err := RoyaltyTableFor(d)
	if err != nil {
		return 0, err
	}
	var count int64
	err = tx.Table(table).Where("import_batch_id = ?", importBatchId).Count(&count).Error
	return count, err
}

// PeriodTotals sums gross revenue and client share for a period. MySQL DECIMAL
// SUM keeps fixed-point exactness; the values are never routed through floats.
type PeriodTotals struct {
	Gross       decimal.Decimal `json:"gross"`
	ClientShare decimal.Decimal `json:"client_share"`
	RecordCount int64           `json:"record_count"`
}

func SumPeriodTotals(tx *gorm.DB, d Distributor, reportingMonth string) (*PeriodTotals, error) {
	table, revenueCol, err := RoyaltyTableFor(d)
	if err != nil {
		return nil, err
	}
	var totals PeriodTotals
	sql := fmt.Sprintf(`
SELECT
    COALESCE(SUM(%s), 0) AS gross,
    COALESCE(SUM(client_revenue), 0) AS client_share,
    COUNT(*) AS record_count
FROM %s
WHERE distributor = ? AND reporting_month = ?`, revenueCol, table)
	if err := tx.Raw(sql, d, reportingMonth).Scan(&totals).Error; err != nil {
		return nil, err
	}
	return &totals, nil
}

// StampBaseReport sets base_report_id on every row of the period. Must run
// inside the same transaction that creates the base report.
func StampBaseReport(tx *gorm.DB, d Distributor, reportingMonth string, baseReportId int) error {
	table, _, err := RoyaltyTableFor(d)
	if err != nil {
		return err
	}
	return tx.Table(table).
		Where("distributor = ? AND reporting_month = ?", d, reportingMonth).
		Update("base_report_id", baseReportId).Error
}

// ClientShare is one client's summed revenue under a base report.
type ClientShare struct {
	ClientId int             `json:"client_id"`
	Total    decimal.Decimal `json:"total"`
}

// sumClientSharesSQL partitions a base report's rows by client. The inner
// join on clients plus the is_active filter deliberately leaves rows of
// missing or inactive clients out of every partition: those rows stay
// unstamped so FindCoverageGaps can surface them instead of a user report
// silently paying them out.
func sumClientSharesSQL(table string) string {
	return fmt.Sprintf(`
SELECT
    labels.client_id AS client_id,
    COALESCE(SUM(r.client_revenue), 0) AS total
FROM %s AS r
    JOIN labels ON labels.id = r.label_id
    JOIN clients ON clients.id = labels.client_id
WHERE r.base_report_id = ? AND clients.is_active = 1
GROUP BY labels.client_id
ORDER BY labels.client_id`, table)
}

func SumClientShares(tx *gorm.DB, d Distributor, baseReportId int) ([]ClientShare, error) {
	table, _, err := RoyaltyTableFor(d)
	if err != nil {
		return nil, err
	}
	var shares []ClientShare
	if err := tx.Raw(sumClientSharesSQL(table), baseReportId).Scan(&shares).Error; err != nil {
		return nil, err
	}
	return shares, nil
}

// StampUserReport sets user_report_id on a client's rows under a base report.
func StampUserReport(tx *gorm.DB, d Distributor, baseReportId int, clientId int, userReportId int) error {
	table, _, err := RoyaltyTableFor(d)
	if err != nil {
		return err
	}
	sql := fmt.Sprintf(`
UPDATE %s AS r
    JOIN labels ON labels.id = r.label_id
SET r.user_report_id = ?
WHERE r.base_report_id = ? AND labels.client_id = ?`, table)
	return tx.Exec(sql, userReportId, baseReportId, clientId).Error
}

// CoverageGap is a royalty row left without a user report after generation,
// with the diagnosed reason. A monitoring signal, not a rollback trigger.
type CoverageGap struct {
	RecordId  int    `json:"record_id"`
	LabelId   int    `json:"label_id"`
	LabelName string `json:"label_name"`
	Reason    string `json:"reason"`
}

func FindCoverageGaps(tx *gorm.DB, d Distributor, baseReportId int) ([]CoverageGap, error) {
	table, _, err := RoyaltyTableFor(d)
	if err != nil {
		return nil, err
	}
	var gaps []CoverageGap
	sql := fmt.Sprintf(`
SELECT
    r.id AS record_id,
    r.label_id AS label_id,
    r.label_name AS label_name,
    CASE
        WHEN labels.id IS NULL THEN 'missing label'
        WHEN clients.id IS NULL THEN 'missing client'
        WHEN clients.is_active = 0 THEN 'inactive client'
        ELSE 'unknown'
    END AS reason
FROM %s AS r
    LEFT JOIN labels ON labels.id = r.label_id
    LEFT JOIN clients ON clients.id = labels.client_id
WHERE r.base_report_id = ? AND r.user_report_id IS NULL
ORDER BY r.id`, table)
	if err := tx.Raw(sql, baseReportId).Scan(&gaps).Error; err != nil {
		return nil, err
	}
	return gaps, nil
}

func CountUncoveredRecords(tx *gorm.DB, d Distributor, baseReportId int) (int64, error) {
	table, _, err := RoyaltyTableFor(d)
	if err != nil {
		return 0, err
	}
	var count int64
	err = tx.Table(table).
		Where("base_report_id = ? AND user_report_id IS NULL", baseReportId).
		Count(&count).Error
	return count, err
}
