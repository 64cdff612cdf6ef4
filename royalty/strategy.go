package royalty

import (
	"fmt"

	"bitbucket.org/mmdatafocus/royalty_backend/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RawRecord is one parsed CSV row keyed by column label. It only exists while
// a job processes that row; rejected rows are archived as JSON.
type RawRecord map[string]string

// MappedRow is the typed result of running the decimal value mapper over a
// raw row.
type MappedRow interface {
	LabelName() string
	// Gross returns the distributor's revenue field for this row.
	Gross() decimal.Decimal
	// Record materializes the persistable model with the shared core applied.
	Record(core models.RoyaltyRecordCore) interface{}
}

// ExportScope selects the export schema. The full base-report export carries
// the internal contract rate; per-client exports leave it out, a client only
// sees the revenue credited to them.
type ExportScope string

const (
	ExportScopeBase   ExportScope = "base"
	ExportScopeClient ExportScope = "client"
)

// DistributorStrategy bundles everything that differs per distributor: field
// mapping, label match rules, currency, record loading and export rendering.
// Selected once per job; call sites never branch on the distributor enum.
type DistributorStrategy interface {
	Distributor() models.Distributor
	// Currency is a fixed label per distributor; no FX conversion happens here.
	Currency() string
	// CaseSensitiveLabelMatch preserves the real difference in how each
	// distributor formats label names in exports.
	CaseSensitiveLabelMatch() bool
	MapRow(raw RawRecord) (MappedRow, error)
	// Records loads a report's rows from this distributor's table in
	// insertion order. A nil userReportId selects the whole base report.
	Records(tx *gorm.DB, baseReportId int, userReportId *int) ([]interface{}, error)
	ExportHeader(scope ExportScope) []string
	ExportRow(scope ExportScope, record interface{}) ([]string, error)
}

// reportRowsQuery is the shared Records filter; only the target table differs
// per distributor.
func reportRowsQuery(tx *gorm.DB, baseReportId int, userReportId *int) *gorm.DB {
	tx = tx.Where("base_report_id = ?", baseReportId)
	if userReportId != nil {
		tx = tx.Where("user_report_id = ?", *userReportId)
	}
	return tx.Order("id")
}

var strategies = map[models.Distributor]DistributorStrategy{
	models.DistributorKontor:  kontorStrategy{},
	models.DistributorBelieve: believeStrategy{},
}

// StrategyFor returns the strategy for a distributor. An unknown tag is a
// fatal configuration error, never a per-row failure.
func StrategyFor(d models.Distributor) (DistributorStrategy, error) {
	s, ok := strategies[d]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDistributor, d)
	}
	return s, nil
}
