package jobs

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"bitbucket.org/mmdatafocus/royalty_backend/models"
	"bitbucket.org/mmdatafocus/royalty_backend/royalty"
)

func TestIsPermanentJobError(t *testing.T) {
	permanent := []error{
		royalty.ErrDuplicateImport,
		royalty.ErrBaseReportExists,
		royalty.ErrUnlinkedOutstanding,
		royalty.ErrNoRecords,
		royalty.ErrUserReportsExist,
		royalty.ErrAlreadyPaid,
		fmt.Errorf("queue import: %w", royalty.ErrDuplicateImport),
	}
	for _, err := range permanent {
		if !isPermanentJobError(err) {
			t.Errorf("expected %v to be permanent", err)
		}
	}

	transient := []error{
		errors.New("dial tcp: connection refused"),
		errors.New("Error 1213: Deadlock found"),
	}
	for _, err := range transient {
		if isPermanentJobError(err) {
			t.Errorf("expected %v to be retryable", err)
		}
	}
}

func TestEnvelopeRoundTrip(t *testing.T) {
	payload, err := json.Marshal(ImportReportCSVPayload{
		Distributor:    models.DistributorKontor,
		ReportingMonth: "202301",
		FilePath:       "/uploads/kontor_jan.csv",
		FileName:       "kontor_jan.csv",
	})
	if err != nil {
		t.Fatal(err)
	}
	env := Envelope{JobId: "job-1", Kind: JobImportReportCSV, Data: payload}

	wire, err := json.Marshal(env)
	if err != nil {
		t.Fatal(err)
	}

	var decoded Envelope
	if err := json.Unmarshal(wire, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.JobId != "job-1" || decoded.Kind != JobImportReportCSV {
		t.Errorf("decoded = %+v", decoded)
	}

	var got ImportReportCSVPayload
	if err := json.Unmarshal(decoded.Data, &got); err != nil {
		t.Fatal(err)
	}
	if got.Distributor != models.DistributorKontor || got.ReportingMonth != "202301" {
		t.Errorf("payload = %+v", got)
	}
}

func TestEnvBoolDefault(t *testing.T) {
	cases := []struct {
		val  string
		def  bool
		want bool
	}{
		{"", true, true},
		{"", false, false},
		{"true", false, true},
		{"1", false, true},
		{"off", true, false},
		{"FALSE", true, false},
		{"maybe", true, true},
	}
	for _, c := range cases {
		t.Setenv("ROYALTY_TEST_FLAG", c.val)
		if got := envBoolDefault("ROYALTY_TEST_FLAG", c.def); got != c.want {
			t.Errorf("envBoolDefault(%q, %v) = %v, want %v", c.val, c.def, got, c.want)
		}
	}
}
