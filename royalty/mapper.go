package royalty

import (
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/royalty_backend/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Column dictionaries are fixed per distributor family; headers are matched
// exactly after trimming.
const (
	kontorColLabel     = "Label"
	kontorColArtist    = "Artist"
	kontorColTitle     = "Title"
	kontorColIsrc      = "ISRC"
	kontorColEan       = "EAN"
	kontorColArticleNo = "Article Number"
	kontorColShop      = "Shop"
	kontorColSales     = "Sales Month"
	kontorColQuantity  = "Quantity"
	kontorColRoyalties = "Royalties"

	believeColLabel    = "label_name"
	believeColArtist   = "artist_name"
	believeColRelease  = "release_title"
	believeColTrack    = "track_title"
	believeColIsrc     = "isrc"
	believeColUpc      = "upc"
	believeColPlatform = "platform"
	believeColCountry  = "country_code"
	believeColSales    = "sales_month"
	believeColQuantity = "quantity"
	believeColRevenue  = "net_revenue"
)

// parseDecimal converts a raw numeric field into a fixed-point decimal.
// Empty and missing fields default to zero. Kontor statements use thousands
// separators; they are stripped before parsing. Any residue that still fails
// to parse rejects the row, naming the offending field.
func parseDecimal(field string, value string, stripThousands bool) (decimal.Decimal, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return decimal.Zero, nil
	}
	if stripThousands {
		v = strings.ReplaceAll(v, ",", "")
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("field %q: invalid numeric value %q", field, value)
	}
	return d, nil
}

func parseInt(field string, value string, stripThousands bool) (int, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return 0, nil
	}
	if stripThousands {
		v = strings.ReplaceAll(v, ",", "")
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("field %q: invalid integer value %q", field, value)
	}
	return n, nil
}

var salesMonthLayouts = []string{"200601", "2006-01", "01/2006", "2006-01-02"}

// normalizeMonth converts the distributor's sales-month field to YYYYMM.
func normalizeMonth(field string, value string) (string, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return "", nil
	}
	for _, layout := range salesMonthLayouts {
		if len(v) != len(layout) {
			continue
		}
		if t, err := time.Parse(layout, v); err == nil {
			return t.Format("200601"), nil
		}
	}
	return "", fmt.Errorf("field %q: invalid sales month %q", field, value)
}

// decodeText trims and decodes HTML entities; distributor exports routinely
// encode umlauts and ampersands in artist and title fields.
func decodeText(value string) string {
	return strings.TrimSpace(html.UnescapeString(value))
}

type kontorRow struct {
	labelName     string
	artist        string
	title         string
	isrc          string
	ean           string
	articleNumber string
	shop          string
	salesMonth    string
	quantity      int
	royalties     decimal.Decimal
}

func (r kontorRow) LabelName() string      { return r.labelName }
func (r kontorRow) Gross() decimal.Decimal { return r.royalties }

func (r kontorRow) Record(core models.RoyaltyRecordCore) interface{} {
	return &models.KontorRecord{
		RoyaltyRecordCore: core,
		Isrc:              r.isrc,
		Ean:               r.ean,
		ArticleNumber:     r.articleNumber,
		Artist:            r.artist,
		Title:             r.title,
		Shop:              r.shop,
		SalesMonth:        r.salesMonth,
		Quantity:          r.quantity,
		Royalties:         r.royalties,
	}
}

type kontorStrategy struct{}

func (kontorStrategy) Distributor() models.Distributor { return models.DistributorKontor }
func (kontorStrategy) Currency() string                { return "EUR" }
func (kontorStrategy) CaseSensitiveLabelMatch() bool   { return true }

func (kontorStrategy) MapRow(raw RawRecord) (MappedRow, error) {
	quantity, err := parseInt(kontorColQuantity, raw[kontorColQuantity], true)
	if err != nil {
		return nil, err
	}
	royalties, err := parseDecimal(kontorColRoyalties, raw[kontorColRoyalties], true)
	if err != nil {
		return nil, err
	}
	salesMonth, err := normalizeMonth(kontorColSales, raw[kontorColSales])
	if err != nil {
		return nil, err
	}
	return kontorRow{
		labelName:     decodeText(raw[kontorColLabel]),
		artist:        decodeText(raw[kontorColArtist]),
		title:         decodeText(raw[kontorColTitle]),
		isrc:          strings.TrimSpace(raw[kontorColIsrc]),
		ean:           strings.TrimSpace(raw[kontorColEan]),
		articleNumber: strings.TrimSpace(raw[kontorColArticleNo]),
		shop:          decodeText(raw[kontorColShop]),
		salesMonth:    salesMonth,
		quantity:      quantity,
		royalties:     royalties,
	}, nil
}

func (kontorStrategy) Records(tx *gorm.DB, baseReportId int, userReportId *int) ([]interface{}, error) {
	var rows []*models.KontorRecord
	if err := reportRowsQuery(tx, baseReportId, userReportId).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]interface{}, len(rows))
	for i, r := range rows {
		out[i] = r
	}
	return out, nil
}

func (kontorStrategy) ExportHeader(scope ExportScope) []string {
	if scope == ExportScopeClient {
		return []string{"Label", "Artist", "Title", "ISRC", "EAN", "Article Number", "Shop", "Sales Month", "Quantity", "Royalties", "Client Revenue"}
	}
	return []string{"Label", "Artist", "Title", "ISRC", "EAN", "Article Number", "Shop", "Sales Month", "Quantity", "Royalties", "Client Rate", "Client Revenue"}
}

func (kontorStrategy) ExportRow(scope ExportScope, record interface{}) ([]string, error) {
	rec, ok := record.(*models.KontorRecord)
	if !ok {
		return nil, fmt.Errorf("expected *models.KontorRecord, got %T", record)
	}
	row := []string{
		rec.LabelName,
		rec.Artist,
		rec.Title,
		rec.Isrc,
		rec.Ean,
		rec.ArticleNumber,
		rec.Shop,
		rec.SalesMonth,
		strconv.Itoa(rec.Quantity),
		rec.Royalties.String(),
	}
	if scope != ExportScopeClient {
		row = append(row, rec.ClientRate.String())
	}
	return append(row, rec.ClientRevenue.String()), nil
}

type believeRow struct {
	labelName    string
	artist       string
	releaseTitle string
	trackTitle   string
	isrc         string
	upc          string
	platform     string
	countryCode  string
	salesMonth   string
	quantity     int
	netRevenue   decimal.Decimal
}

func (r believeRow) LabelName() string      { return r.labelName }
func (r believeRow) Gross() decimal.Decimal { return r.netRevenue }

func (r believeRow) Record(core models.RoyaltyRecordCore) interface{} {
	return &models.BelieveRecord{
		RoyaltyRecordCore: core,
		Isrc:              r.isrc,
		Upc:               r.upc,
		Artist:            r.artist,
		ReleaseTitle:      r.releaseTitle,
		TrackTitle:        r.trackTitle,
		Platform:          r.platform,
		CountryCode:       r.countryCode,
		SalesMonth:        r.salesMonth,
		Quantity:          r.quantity,
		NetRevenue:        r.netRevenue,
	}
}

type believeStrategy struct{}

func (believeStrategy) Distributor() models.Distributor { return models.DistributorBelieve }
func (believeStrategy) Currency() string                { return "EUR" }
func (believeStrategy) CaseSensitiveLabelMatch() bool   { return false }

func (believeStrategy) MapRow(raw RawRecord) (MappedRow, error) {
	quantity, err := parseInt(believeColQuantity, raw[believeColQuantity], false)
	if err != nil {
		return nil, err
	}
	netRevenue, err := parseDecimal(believeColRevenue, raw[believeColRevenue], false)
	if err != nil {
		return nil, err
	}
	salesMonth, err := normalizeMonth(believeColSales, raw[believeColSales])
	if err != nil {
		return nil, err
	}
	return believeRow{
		labelName:    decodeText(raw[believeColLabel]),
		artist:       decodeText(raw[believeColArtist]),
		releaseTitle: decodeText(raw[believeColRelease]),
		trackTitle:   decodeText(raw[believeColTrack]),
		isrc:         strings.TrimSpace(raw[believeColIsrc]),
		upc:          strings.TrimSpace(raw[believeColUpc]),
		platform:     decodeText(raw[believeColPlatform]),
		countryCode:  strings.TrimSpace(raw[believeColCountry]),
		salesMonth:   salesMonth,
		quantity:     quantity,
		netRevenue:   netRevenue,
	}, nil
}

func (believeStrategy) Records(tx *gorm.DB, baseReportId int, userReportId *int) ([]interface{}, error) {
	var rows []*models.BelieveRecord
	if err := reportRowsQuery(tx, baseReportId, userReportId).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]interface{}, len(rows))
	for i, r := range rows {
		out[i] = r
	}
	return out, nil
}

func (believeStrategy) ExportHeader(scope ExportScope) []string {
	if scope == ExportScopeClient {
		return []string{"Label", "Artist", "Release", "Track", "ISRC", "UPC", "Platform", "Country", "Sales Month", "Quantity", "Net Revenue", "Client Revenue"}
	}
	return []string{"Label", "Artist", "Release", "Track", "ISRC", "UPC", "Platform", "Country", "Sales Month", "Quantity", "Net Revenue", "Client Rate", "Client Revenue"}
}

func (believeStrategy) ExportRow(scope ExportScope, record interface{}) ([]string, error) {
	rec, ok := record.(*models.BelieveRecord)
	if !ok {
		return nil, fmt.Errorf("expected *models.BelieveRecord, got %T", record)
	}
	row := []string{
		rec.LabelName,
		rec.Artist,
		rec.ReleaseTitle,
		rec.TrackTitle,
		rec.Isrc,
		rec.Upc,
		rec.Platform,
		rec.CountryCode,
		rec.SalesMonth,
		strconv.Itoa(rec.Quantity),
		rec.NetRevenue.String(),
	}
	if scope != ExportScopeClient {
		row = append(row, rec.ClientRate.String())
	}
	return append(row, rec.ClientRevenue.String()), nil
}
