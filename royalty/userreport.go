package royalty

import (
	"context"

	"bitbucket.org/mmdatafocus/royalty_backend/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// CoverageReport is the post-generation verification result: every royalty
// row under the base report should now reference exactly one user report.
// Gaps are a monitoring signal for operators, not a transactional invariant;
// already-created reports are never rolled back over them.
type CoverageReport struct {
	BaseReportId   int                  `json:"base_report_id"`
	UserReports    int                  `json:"user_reports"`
	TotalRecords   int64                `json:"total_records"`
	CoveredRecords int64                `json:"covered_records"`
	Gaps           []models.CoverageGap `json:"gaps"`
}

func (c *CoverageReport) Complete() bool {
	return c.CoveredRecords == c.TotalRecords
}

// GenerateUserReports partitions a base report's rows by resolved client,
// creating one user report per client and stamping each contributing row.
func GenerateUserReports(ctx context.Context, db *gorm.DB, logger *logrus.Logger, baseReportId int) (*CoverageReport, error) {
	base, err := models.GetBaseReportById(db, baseReportId)
	if err != nil {
		return nil, err
	}

	existing, err := models.CountUserReportsForBase(db, baseReportId)
	if err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, ErrUserReportsExist
	}

	shares, err := models.SumClientShares(db, base.Distributor, baseReportId)
	if err != nil {
		return nil, err
	}

	// All clients commit together: a crash mid-partition must not leave some
	// clients with reports and others without.
	created := 0
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, share := range shares {
			report := models.UserReport{
				BaseReportId:   baseReportId,
				ClientId:       share.ClientId,
				TotalRoyalties: share.Total,
				Currency:       base.Currency,
				DebitState:     models.DebitStateUnpaid,
			}
			if err := tx.Create(&report).Error; err != nil {
				return err
			}
			if err := models.StampUserReport(tx, base.Distributor, baseReportId, share.ClientId, report.ID); err != nil {
				return err
			}
			created++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return VerifyUserReportCoverage(ctx, db, logger, base, created)
}

// VerifyUserReportCoverage diagnoses rows left without a user report.
func VerifyUserReportCoverage(ctx context.Context, db *gorm.DB, logger *logrus.Logger, base *models.BaseReport, userReports int) (*CoverageReport, error) {
	totals, err := models.SumPeriodTotals(db, base.Distributor, base.ReportingMonth)
	if err != nil {
		return nil, err
	}
	uncovered, err := models.CountUncoveredRecords(db, base.Distributor, base.ID)
	if err != nil {
		return nil, err
	}

	coverage := &CoverageReport{
		BaseReportId:   base.ID,
		UserReports:    userReports,
		TotalRecords:   totals.RecordCount,
		CoveredRecords: totals.RecordCount - uncovered,
	}

	if uncovered > 0 {
		gaps, err := models.FindCoverageGaps(db, base.Distributor, base.ID)
		if err != nil {
			return nil, err
		}
		coverage.Gaps = gaps
		for _, gap := range gaps {
			logger.WithFields(logrus.Fields{
				"baseReportId": base.ID,
				"recordId":     gap.RecordId,
				"labelName":    gap.LabelName,
				"reason":       gap.Reason,
			}).Warn("royalty record not covered by any user report")
		}
	}
	return coverage, nil
}
