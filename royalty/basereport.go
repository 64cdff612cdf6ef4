package royalty

import (
	"context"
	"fmt"

	"bitbucket.org/mmdatafocus/royalty_backend/config"
	"bitbucket.org/mmdatafocus/royalty_backend/models"
	"bitbucket.org/mmdatafocus/royalty_backend/utils"
	"gorm.io/gorm"
)

// GenerateBaseReport aggregates all of a period's royalty rows into one
// reconciled report. Preconditions are checked in order; each rejection is a
// distinct error so callers can surface the exact blocked state:
//  1. no base report exists yet for the period
//  2. no unlinked buckets are outstanding (labels must be fully resolved)
//  3. at least one royalty record exists
func GenerateBaseReport(ctx context.Context, db *gorm.DB, d models.Distributor, reportingMonth string) (*models.BaseReport, error) {
	strategy, err := StrategyFor(d)
	if err != nil {
		return nil, err
	}

	if _, err := models.GetBaseReportForPeriod(db, d, reportingMonth); err == nil {
		return nil, ErrBaseReportExists
	} else if !models.IsNotFound(err) {
		return nil, err
	}

	unlinked, err := models.CountUnlinkedBuckets(db, d, reportingMonth)
	if err != nil {
		return nil, err
	}
	if unlinked > 0 {
		return nil, fmt.Errorf("%w: %d buckets", ErrUnlinkedOutstanding, unlinked)
	}

	totals, err := models.SumPeriodTotals(db, d, reportingMonth)
	if err != nil {
		return nil, err
	}
	if totals.RecordCount == 0 {
		return nil, ErrNoRecords
	}

	report := &models.BaseReport{
		Distributor:    d,
		ReportingMonth: reportingMonth,
		Currency:       strategy.Currency(),
		TotalRoyalties: totals.Gross,
		TotalEarnings:  totals.Gross.Sub(totals.ClientShare),
		DebitState:     models.DebitStateUnpaid,
	}

	// Creating the report and stamping every row must be atomic: a crash
	// mid-aggregation must not leave some rows stamped and others not.
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(report).Error; err != nil {
			return err
		}
		return models.StampBaseReport(tx, d, reportingMonth, report.ID)
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// RecalculateBaseReportTotals re-derives the totals from the current rows
// without touching any associations. Used after corrective edits.
func RecalculateBaseReportTotals(ctx context.Context, db *gorm.DB, baseReportId int) (*models.BaseReport, error) {
	report, err := models.GetBaseReportById(db, baseReportId)
	if err != nil {
		return nil, err
	}

	totals, err := models.SumPeriodTotals(db, report.Distributor, report.ReportingMonth)
	if err != nil {
		return nil, err
	}

	err = db.WithContext(ctx).Model(report).Updates(map[string]interface{}{
		"total_royalties": totals.Gross,
		"total_earnings":  totals.Gross.Sub(totals.ClientShare),
	}).Error
	if err != nil {
		return nil, err
	}
	return report, nil
}

// DeleteBaseReport removes a base report and unstamps its rows. Blocked while
// any user report still references it.
func DeleteBaseReport(ctx context.Context, db *gorm.DB, baseReportId int) error {
	report, err := models.GetBaseReportById(db, baseReportId)
	if err != nil {
		return err
	}

	userReports, err := models.CountUserReportsForBase(db, baseReportId)
	if err != nil {
		return err
	}
	if userReports > 0 {
		return fmt.Errorf("%w: %d user reports reference base report %d", ErrUserReportsExist, userReports, baseReportId)
	}

	table, _, err := models.RoyaltyTableFor(report.Distributor)
	if err != nil {
		return err
	}
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(fmt.Sprintf("UPDATE %s SET base_report_id = NULL WHERE base_report_id = ?", table), baseReportId).Error; err != nil {
			return err
		}
		if err := tx.Where("reference_type = ? AND reference_id = ?", models.DocumentReferenceBaseReport, baseReportId).
			Delete(&models.Document{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.BaseReport{}, baseReportId).Error
	})
	if err != nil {
		return err
	}

	// Best effort; the delete is idempotent and an orphaned export object is
	// harmless.
	if report.ArchivedObjectKey != nil && *report.ArchivedObjectKey != "" {
		if derr := utils.DeleteFileFromGCS(ctx, *report.ArchivedObjectKey); derr != nil {
			config.LogError(config.GetLogger(), "basereport.go", "DeleteBaseReport", "delete archived export", *report.ArchivedObjectKey, derr)
		}
	}
	return nil
}
