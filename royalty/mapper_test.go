package royalty

import (
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"bitbucket.org/mmdatafocus/royalty_backend/models"
)

// NOTE: These tests are intentionally DB-free. Mapping, month normalization,
// and revenue arithmetic are pure; label resolution against MySQL is covered
// separately through the DirectoryStore fakes.

func kontorRaw() RawRecord {
	return RawRecord{
		"Label":          "Nightshade Records",
		"Artist":         "The Owls",
		"Title":          "First Light",
		"ISRC":           "DEAB12345678",
		"EAN":            "4012345678901",
		"Article Number": "KON-001",
		"Shop":           "iTunes",
		"Sales Month":    "202301",
		"Quantity":       "1,024",
		"Royalties":      "1,234.50",
	}
}

func TestKontorMapRow_StripsThousandsSeparators(t *testing.T) {
	mapped, err := kontorStrategy{}.MapRow(kontorRaw())
	if err != nil {
		t.Fatalf("MapRow: %v", err)
	}
	if got, want := mapped.Gross().String(), "1234.5"; got != want {
		t.Errorf("gross = %s, want %s", got, want)
	}
	row := mapped.(kontorRow)
	if row.quantity != 1024 {
		t.Errorf("quantity = %d, want 1024", row.quantity)
	}
}

func TestKontorMapRow_EmptyNumericsDefaultToZero(t *testing.T) {
	raw := kontorRaw()
	raw["Quantity"] = ""
	raw["Royalties"] = "  "

	mapped, err := kontorStrategy{}.MapRow(raw)
	if err != nil {
		t.Fatalf("MapRow: %v", err)
	}
	if !mapped.Gross().IsZero() {
		t.Errorf("gross = %s, want 0", mapped.Gross())
	}
	if row := mapped.(kontorRow); row.quantity != 0 {
		t.Errorf("quantity = %d, want 0", row.quantity)
	}
}

func TestKontorMapRow_BadNumericNamesField(t *testing.T) {
	raw := kontorRaw()
	raw["Royalties"] = "12,34x"

	_, err := kontorStrategy{}.MapRow(raw)
	if err == nil {
		t.Fatal("expected error for unparseable royalties")
	}
	if !strings.Contains(err.Error(), `"Royalties"`) {
		t.Errorf("error %q does not name the offending field", err)
	}
}

func TestKontorMapRow_DecodesHTMLEntities(t *testing.T) {
	raw := kontorRaw()
	raw["Artist"] = "M&uuml;nchen &amp; Friends "

	mapped, err := kontorStrategy{}.MapRow(raw)
	if err != nil {
		t.Fatalf("MapRow: %v", err)
	}
	if row := mapped.(kontorRow); row.artist != "München & Friends" {
		t.Errorf("artist = %q", row.artist)
	}
}

func TestNormalizeMonth(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"202301", "202301", true},
		{"2023-01", "202301", true},
		{"01/2023", "202301", true},
		{"2023-01-15", "202301", true},
		{"", "", true},
		{"Jan 2023", "", false},
		{"202313", "", false},
	}
	for _, c := range cases {
		got, err := normalizeMonth("Sales Month", c.in)
		if c.ok && err != nil {
			t.Errorf("normalizeMonth(%q): unexpected error %v", c.in, err)
			continue
		}
		if !c.ok {
			if err == nil {
				t.Errorf("normalizeMonth(%q): expected error, got %q", c.in, got)
			}
			continue
		}
		if got != c.want {
			t.Errorf("normalizeMonth(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func believeRaw() RawRecord {
	return RawRecord{
		"label_name":    "nightshade records",
		"artist_name":   "The Owls",
		"release_title": "First Light",
		"track_title":   "Dawn",
		"isrc":          "DEAB12345678",
		"upc":           "190295000000",
		"platform":      "Spotify",
		"country_code":  "DE",
		"sales_month":   "2023-01",
		"quantity":      "17",
		"net_revenue":   "0.0731",
	}
}

func TestBelieveMapRow_NoThousandsStripping(t *testing.T) {
	raw := believeRaw()
	raw["net_revenue"] = "1,5"

	_, err := believeStrategy{}.MapRow(raw)
	if err == nil {
		t.Fatal("expected comma-decimal value to be rejected for Believe")
	}
}

func TestBelieveMapRow(t *testing.T) {
	mapped, err := believeStrategy{}.MapRow(believeRaw())
	if err != nil {
		t.Fatalf("MapRow: %v", err)
	}
	if got, want := mapped.Gross().String(), "0.0731"; got != want {
		t.Errorf("gross = %s, want %s", got, want)
	}
	row := mapped.(believeRow)
	if row.salesMonth != "202301" {
		t.Errorf("salesMonth = %q, want 202301", row.salesMonth)
	}
	if row.countryCode != "DE" {
		t.Errorf("countryCode = %q", row.countryCode)
	}
}

func TestMappedRowRecord_CarriesCore(t *testing.T) {
	mapped, err := kontorStrategy{}.MapRow(kontorRaw())
	if err != nil {
		t.Fatalf("MapRow: %v", err)
	}
	core := models.RoyaltyRecordCore{
		Distributor:    models.DistributorKontor,
		ReportingMonth: "202301",
		LabelName:      "Nightshade Records",
		LabelId:        7,
		ImportBatchId:  3,
		RowIndex:       42,
		ClientRate:     decimal.NewFromInt(75),
		ClientRevenue:  decimal.RequireFromString("925.875"),
	}
	rec, ok := mapped.Record(core).(*models.KontorRecord)
	if !ok {
		t.Fatalf("Record() returned %T", mapped.Record(core))
	}
	if rec.LabelId != 7 || rec.RowIndex != 42 {
		t.Errorf("core not carried: labelId=%d rowIndex=%d", rec.LabelId, rec.RowIndex)
	}
	if rec.Royalties.String() != "1234.5" {
		t.Errorf("royalties = %s", rec.Royalties)
	}
}

func TestStrategyFor_UnknownDistributor(t *testing.T) {
	if _, err := StrategyFor(models.Distributor("Tunecore")); !errors.Is(err, ErrUnknownDistributor) {
		t.Errorf("err = %v, want ErrUnknownDistributor", err)
	}
}
