package models

import (
	"database/sql/driver"
	"errors"
	"fmt"
)

// Distributor identifies which statement schema a CSV file follows.
type Distributor string

const (
	DistributorKontor  Distributor = "Kontor"
	DistributorBelieve Distributor = "Believe"
)

func (d Distributor) Valid() bool {
	switch d {
	case DistributorKontor, DistributorBelieve:
		return true
	}
	return false
}

func (d *Distributor) Scan(value interface{}) error {
	s, err := scanEnumString(value)
	if err != nil {
		return err
	}
	v := Distributor(s)
	if !v.Valid() {
		return fmt.Errorf("invalid distributor %q", s)
	}
	*d = v
	return nil
}

func (d Distributor) Value() (driver.Value, error) {
	return string(d), nil
}

type ImportBatchStatus string

const (
	ImportBatchStatusPending   ImportBatchStatus = "PENDING"
	ImportBatchStatusActive    ImportBatchStatus = "ACTIVE"
	ImportBatchStatusCompleted ImportBatchStatus = "COMPLETED"
	ImportBatchStatusFailed    ImportBatchStatus = "FAILED"
)

type DebitState string

const (
	DebitStateUnpaid DebitState = "UNPAID"
	DebitStateOpen   DebitState = "OPEN"
	DebitStatePaid   DebitState = "PAID"
)

type ContractType string

const (
	// Only the two distribution contract types carry a PPD and participate in
	// royalty revenue calculation.
	ContractTypeDigitalDistribution  ContractType = "DigitalDistribution"
	ContractTypePhysicalDistribution ContractType = "PhysicalDistribution"
	ContractTypePublishing           ContractType = "Publishing"
	ContractTypeProduction           ContractType = "Production"
)

// DistributionContractTypes are the contract types eligible for revenue
// calculation.
var DistributionContractTypes = []ContractType{
	ContractTypeDigitalDistribution,
	ContractTypePhysicalDistribution,
}

func scanEnumString(value interface{}) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	default:
		return "", errors.New("enum value must be string")
	}
}
