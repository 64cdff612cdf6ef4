package models

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Label -> Client -> Contract is maintained by the client administration
// system; the royalty pipeline only ever reads it.

type Label struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Name      string    `gorm:"size:255;not null;index" json:"name"`
	ClientId  int       `gorm:"index;not null" json:"client_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type Client struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Email     string    `gorm:"size:255" json:"email"`
	IsActive  bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type Contract struct {
	ID       int          `gorm:"primary_key" json:"id"`
	ClientId int          `gorm:"index;not null" json:"client_id"`
	Type     ContractType `gorm:"type:enum('DigitalDistribution','PhysicalDistribution','Publishing','Production');not null" json:"type"`
	// PPD is the percentage of gross royalties paid to the client. NULL means
	// the contract is not usable for revenue calculation; zero is a valid rate.
	PPD       *decimal.Decimal `gorm:"type:decimal(24,10)" json:"ppd"`
	CreatedAt time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

func GetLabelById(tx *gorm.DB, id int) (*Label, error) {
	var label Label
	if err := tx.Where("id = ?", id).Take(&label).Error; err != nil {
		return nil, err
	}
	return &label, nil
}

// GetLabelByName matches a label by exact name. Kontor statements carry label
// names exactly as registered, so the match is binary; Believe normalizes
// casing in its exports, so the match is case-insensitive there.
func GetLabelByName(tx *gorm.DB, name string, caseSensitive bool) (*Label, error) {
	var label Label
	q := tx
	if caseSensitive {
		q = q.Where("BINARY name = ?", name)
	} else {
		q = q.Where("LOWER(name) = LOWER(?)", name)
	}
	if err := q.Take(&label).Error; err != nil {
		return nil, err
	}
	return &label, nil
}

func GetClientById(tx *gorm.DB, id int) (*Client, error) {
	var client Client
	if err := tx.Where("id = ?", id).Take(&client).Error; err != nil {
		return nil, err
	}
	return &client, nil
}

// GetDistributionContract returns the client's contract restricted to the two
// distribution contract types. gorm.ErrRecordNotFound when none exists; the
// caller decides whether a NULL PPD disqualifies it.
func GetDistributionContract(tx *gorm.DB, clientId int) (*Contract, error) {
	var contract Contract
	err := tx.Where("client_id = ? AND type IN ?", clientId, DistributionContractTypes).
		Order("id").
		Take(&contract).Error
	if err != nil {
		return nil, err
	}
	return &contract, nil
}

func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
