package royalty

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"bitbucket.org/mmdatafocus/royalty_backend/models"
)

func sampleKontorRecords() []interface{} {
	core := models.RoyaltyRecordCore{
		Distributor:    models.DistributorKontor,
		ReportingMonth: "202301",
		LabelName:      "Nightshade Records",
		LabelId:        1,
		ImportBatchId:  3,
		ClientRate:     decimal.NewFromInt(75),
	}
	first := core
	first.RowIndex = 1
	first.ClientRevenue = decimal.RequireFromString("925.875")
	second := core
	second.RowIndex = 2
	second.ClientRevenue = decimal.RequireFromString("0.0487333333")
	return []interface{}{
		&models.KontorRecord{
			RoyaltyRecordCore: first,
			Isrc:              "DEAB12345678",
			Artist:            "The Owls",
			Title:             "First Light",
			Shop:              "iTunes",
			SalesMonth:        "202301",
			Quantity:          1024,
			Royalties:         decimal.RequireFromString("1234.5"),
		},
		&models.KontorRecord{
			RoyaltyRecordCore: second,
			Isrc:              "DEAB12345679",
			Artist:            "The Owls",
			Title:             "Dusk",
			Shop:              "Spotify",
			SalesMonth:        "202301",
			Quantity:          17,
			Royalties:         decimal.RequireFromString("0.0731"),
		},
	}
}

func TestRenderCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.csv")
	if err := renderCSV(kontorStrategy{}, ExportScopeBase, sampleKontorRecords(), path); err != nil {
		t.Fatalf("renderCSV: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = ';'
	rows, err := r.ReadAll()
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want header + 2", len(rows))
	}
	if rows[0][0] != "Label" || rows[0][len(rows[0])-1] != "Client Revenue" {
		t.Errorf("header = %v", rows[0])
	}
	if rows[1][9] != "1234.5" || rows[1][11] != "925.875" {
		t.Errorf("first row = %v", rows[1])
	}
	if rows[2][11] != "0.0487333333" {
		t.Errorf("second row = %v", rows[2])
	}
}

func TestClientScopeOmitsContractRate(t *testing.T) {
	for _, strategy := range []DistributorStrategy{kontorStrategy{}, believeStrategy{}} {
		base := strategy.ExportHeader(ExportScopeBase)
		client := strategy.ExportHeader(ExportScopeClient)
		if len(client) != len(base)-1 {
			t.Errorf("%s: client header has %d columns, base has %d", strategy.Distributor(), len(client), len(base))
		}
		for _, col := range client {
			if col == "Client Rate" {
				t.Errorf("%s: client export exposes the contract rate", strategy.Distributor())
			}
		}
		if client[len(client)-1] != "Client Revenue" {
			t.Errorf("%s: client header = %v", strategy.Distributor(), client)
		}
	}
}

func TestExportRowMatchesHeaderWidth(t *testing.T) {
	record := sampleKontorRecords()[0]
	for _, scope := range []ExportScope{ExportScopeBase, ExportScopeClient} {
		row, err := kontorStrategy{}.ExportRow(scope, record)
		if err != nil {
			t.Fatalf("ExportRow(%s): %v", scope, err)
		}
		if want := len(kontorStrategy{}.ExportHeader(scope)); len(row) != want {
			t.Errorf("scope %s: row has %d cells, header has %d", scope, len(row), want)
		}
		if row[len(row)-1] != "925.875" {
			t.Errorf("scope %s: last cell = %q, want client revenue", scope, row[len(row)-1])
		}
	}
}

func TestRenderCSV_RejectsWrongRecordType(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.csv")
	err := renderCSV(kontorStrategy{}, ExportScopeBase, []interface{}{&models.BelieveRecord{}}, path)
	if err == nil {
		t.Fatal("expected type mismatch error")
	}
}

func TestRenderXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.xlsx")
	if err := renderXLSX(kontorStrategy{}, ExportScopeBase, sampleKontorRecords(), path); err != nil {
		t.Fatalf("renderXLSX: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Size() == 0 {
		t.Error("workbook file is empty")
	}
}
