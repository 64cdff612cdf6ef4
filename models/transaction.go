package models

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RoyaltyTransaction is one ledger entry adjusting a client balance, created
// only by the payment ledger when a report transitions debit state.
type RoyaltyTransaction struct {
	ID           int             `gorm:"primary_key" json:"id"`
	ClientId     int             `gorm:"index;not null;index:idx_txn_client_currency,priority:1" json:"client_id"`
	Currency     string          `gorm:"size:3;not null;index:idx_txn_client_currency,priority:2" json:"currency"`
	UserReportId int             `gorm:"index;not null" json:"user_report_id"`
	BaseReportId int             `gorm:"index;not null" json:"base_report_id"`
	Amount       decimal.Decimal `gorm:"type:decimal(24,10);not null" json:"amount"`
	Description  string          `gorm:"size:255" json:"description"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// Ledger guardrail: transactions are never edited in place. Payment reversal
// deletes them while subtracting from the balance; anything else is a bug.
func (t *RoyaltyTransaction) BeforeUpdate(tx *gorm.DB) error {
	return errors.New("immutable ledger: royalty_transactions cannot be updated")
}

// Balance is the running per-client/per-currency total, mutated only by the
// payment ledger.
type Balance struct {
	ID        int             `gorm:"primary_key" json:"id"`
	ClientId  int             `gorm:"not null;uniqueIndex:uniq_balance,priority:1" json:"client_id"`
	Currency  string          `gorm:"size:3;not null;uniqueIndex:uniq_balance,priority:2" json:"currency"`
	Amount    decimal.Decimal `gorm:"type:decimal(24,10);not null" json:"amount"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// FindOrCreateBalance returns the client's balance row for a currency,
// creating a zero balance when none exists yet.
func FindOrCreateBalance(tx *gorm.DB, clientId int, currency string) (*Balance, error) {
	var balance Balance
	err := tx.Where("client_id = ? AND currency = ?", clientId, currency).Take(&balance).Error
	if err == nil {
		return &balance, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	balance = Balance{
		ClientId: clientId,
		Currency: currency,
		Amount:   decimal.Zero,
	}
	if err := tx.Create(&balance).Error; err != nil {
		return nil, err
	}
	return &balance, nil
}

func GetTransactionsForBaseReport(tx *gorm.DB, baseReportId int) ([]RoyaltyTransaction, error) {
	var txns []RoyaltyTransaction
	err := tx.Where("base_report_id = ?", baseReportId).Order("id").Find(&txns).Error
	return txns, err
}
