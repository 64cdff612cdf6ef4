package royalty

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"bitbucket.org/mmdatafocus/royalty_backend/models"
)

// fakeDirectory is an in-memory DirectoryStore mirroring the MySQL matching
// rules (BINARY vs LOWER comparison).
type fakeDirectory struct {
	labels    []*models.Label
	clients   map[int]*models.Client
	contracts map[int]*models.Contract
}

func (d *fakeDirectory) LabelByID(_ context.Context, id int) (*models.Label, error) {
	for _, l := range d.labels {
		if l.ID == id {
			return l, nil
		}
	}
	return nil, errors.New("record not found")
}

func (d *fakeDirectory) LabelByName(_ context.Context, name string, caseSensitive bool) (*models.Label, error) {
	for _, l := range d.labels {
		if caseSensitive && l.Name == name {
			return l, nil
		}
		if !caseSensitive && strings.EqualFold(l.Name, name) {
			return l, nil
		}
	}
	return nil, nil
}

func (d *fakeDirectory) ClientByID(_ context.Context, id int) (*models.Client, error) {
	c, ok := d.clients[id]
	if !ok {
		return nil, errors.New("record not found")
	}
	return c, nil
}

func (d *fakeDirectory) DistributionContract(_ context.Context, clientID int) (*models.Contract, error) {
	return d.contracts[clientID], nil
}

func ppd(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func testDirectory() *fakeDirectory {
	return &fakeDirectory{
		labels: []*models.Label{
			{ID: 1, Name: "Nightshade Records", ClientId: 10},
			{ID: 2, Name: "blue harbor", ClientId: 20},
		},
		clients: map[int]*models.Client{
			10: {ID: 10, Name: "Nightshade GmbH", IsActive: true},
			20: {ID: 20, Name: "Blue Harbor Ltd", IsActive: true},
		},
		contracts: map[int]*models.Contract{
			10: {ID: 100, ClientId: 10, Type: models.ContractTypeDigitalDistribution, PPD: ppd("75")},
		},
	}
}

func TestResolveByName_CaseSensitive(t *testing.T) {
	r := NewResolver(testDirectory())

	if _, err := r.ResolveByName(context.Background(), "nightshade records", true); !errors.Is(err, ErrLabelNotFound) {
		t.Errorf("case-sensitive mismatch: err = %v, want ErrLabelNotFound", err)
	}

	res, err := r.ResolveByName(context.Background(), "Nightshade Records", true)
	if err != nil {
		t.Fatalf("exact match: %v", err)
	}
	if res.Client.ID != 10 || !res.Contract.PPD.Equal(decimal.NewFromInt(75)) {
		t.Errorf("resolution = client %d ppd %s", res.Client.ID, res.Contract.PPD)
	}
}

func TestResolveByName_CaseInsensitive(t *testing.T) {
	dir := testDirectory()
	dir.contracts[20] = &models.Contract{ID: 200, ClientId: 20, Type: models.ContractTypePhysicalDistribution, PPD: ppd("60")}
	r := NewResolver(dir)

	res, err := r.ResolveByName(context.Background(), "BLUE HARBOR", false)
	if err != nil {
		t.Fatalf("case-insensitive match: %v", err)
	}
	if res.Label.ID != 2 {
		t.Errorf("label = %d, want 2", res.Label.ID)
	}
}

func TestResolve_MissingContract(t *testing.T) {
	r := NewResolver(testDirectory())

	_, err := r.ResolveByName(context.Background(), "blue harbor", false)
	if !errors.Is(err, ErrNoValidContract) {
		t.Errorf("err = %v, want ErrNoValidContract", err)
	}
}

func TestResolve_NilPPDInvalid_ZeroPPDValid(t *testing.T) {
	dir := testDirectory()
	dir.contracts[10] = &models.Contract{ID: 100, ClientId: 10, Type: models.ContractTypeDigitalDistribution, PPD: nil}
	r := NewResolver(dir)

	if _, err := r.ResolveByName(context.Background(), "Nightshade Records", true); !errors.Is(err, ErrNoValidContract) {
		t.Errorf("nil PPD: err = %v, want ErrNoValidContract", err)
	}

	dir.contracts[10].PPD = ppd("0")
	res, err := r.ResolveByName(context.Background(), "Nightshade Records", true)
	if err != nil {
		t.Fatalf("zero PPD should resolve: %v", err)
	}
	if !res.Contract.PPD.IsZero() {
		t.Errorf("ppd = %s, want 0", res.Contract.PPD)
	}
}

func TestResolveByLabelID_MissingLabelIsHardError(t *testing.T) {
	r := NewResolver(testDirectory())

	_, err := r.ResolveByLabelID(context.Background(), 999)
	if err == nil || errors.Is(err, ErrLabelNotFound) {
		t.Errorf("err = %v, want a hard error distinct from ErrLabelNotFound", err)
	}
}
