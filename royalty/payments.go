package royalty

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/royalty_backend/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// balanceDelta is the relative balance update. Applying the delta inside SQL
// lets concurrent payment runs on a shared client serialize at the database
// instead of overwriting each other's reads.
func balanceDelta(amount decimal.Decimal) clause.Expr {
	return gorm.Expr("amount + ?", amount)
}

// CreatePayments transitions a base report and its user reports from UNPAID
// to PAID, appending one balance-adjusting transaction per user report. The
// whole transition is atomic.
//
// A non-nil backdate marks manual/migrated entries: only the debit states
// flip, no transaction or balance is written.
func CreatePayments(ctx context.Context, db *gorm.DB, baseReportId int, backdate *time.Time) error {
	base, err := models.GetBaseReportById(db, baseReportId)
	if err != nil {
		return err
	}
	if base.DebitState == models.DebitStatePaid {
		return ErrAlreadyPaid
	}

	paidOn := time.Now()
	if backdate != nil {
		paidOn = *backdate
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		userReports, err := models.GetUserReportsForBase(tx, baseReportId)
		if err != nil {
			return err
		}

		for _, ur := range userReports {
			if backdate == nil {
				balance, err := models.FindOrCreateBalance(tx, ur.ClientId, ur.Currency)
				if err != nil {
					return err
				}
				txn := models.RoyaltyTransaction{
					ClientId:     ur.ClientId,
					Currency:     ur.Currency,
					UserReportId: ur.ID,
					BaseReportId: baseReportId,
					Amount:       ur.TotalRoyalties,
					Description:  fmt.Sprintf("royalties %s %s", base.Distributor, base.ReportingMonth),
				}
				if err := tx.Create(&txn).Error; err != nil {
					return err
				}
				err = tx.Model(&models.Balance{}).
					Where("id = ?", balance.ID).
					Update("amount", balanceDelta(ur.TotalRoyalties)).Error
				if err != nil {
					return err
				}
			}

			err = tx.Model(&models.UserReport{}).Where("id = ?", ur.ID).Updates(map[string]interface{}{
				"debit_state": models.DebitStatePaid,
				"paid_on":     &paidOn,
			}).Error
			if err != nil {
				return err
			}
		}

		return tx.Model(&models.BaseReport{}).Where("id = ?", baseReportId).Updates(map[string]interface{}{
			"debit_state": models.DebitStatePaid,
			"paid_on":     &paidOn,
		}).Error
	})
}

// DeletePayments reverses a payment run: every transaction created for the
// base report is subtracted from its balance and deleted, and the reports
// revert to UNPAID. Balances return exactly to their pre-payment values.
func DeletePayments(ctx context.Context, db *gorm.DB, baseReportId int) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txns, err := models.GetTransactionsForBaseReport(tx, baseReportId)
		if err != nil {
			return err
		}

		for _, txn := range txns {
			balance, err := models.FindOrCreateBalance(tx, txn.ClientId, txn.Currency)
			if err != nil {
				return err
			}
			err = tx.Model(&models.Balance{}).
				Where("id = ?", balance.ID).
				Update("amount", balanceDelta(txn.Amount.Neg())).Error
			if err != nil {
				return err
			}
			if err := tx.Delete(&models.RoyaltyTransaction{}, txn.ID).Error; err != nil {
				return err
			}
		}

		err = tx.Model(&models.UserReport{}).Where("base_report_id = ?", baseReportId).Updates(map[string]interface{}{
			"debit_state": models.DebitStateUnpaid,
			"paid_on":     nil,
		}).Error
		if err != nil {
			return err
		}
		return tx.Model(&models.BaseReport{}).Where("id = ?", baseReportId).Updates(map[string]interface{}{
			"debit_state": models.DebitStateUnpaid,
			"paid_on":     nil,
		}).Error
	})
}
