package royalty

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/sirupsen/logrus"

	"bitbucket.org/mmdatafocus/royalty_backend/models"
)

type memProgress struct {
	mu   sync.Mutex
	rows map[string]int
}

func newMemProgress() *memProgress {
	return &memProgress{rows: map[string]int{}}
}

func (p *memProgress) Get(jobId string) (int, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.rows[jobId]
	return v, ok, nil
}

func (p *memProgress) Set(jobId string, rowIndex int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rows[jobId] = rowIndex
	return nil
}

func (p *memProgress) Clear(jobId string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.rows, jobId)
	return nil
}

// crashProgress fails the checkpoint write for one row. The row's record is
// already committed by then, which is exactly the window a process crash
// between commit and checkpoint leaves behind.
type crashProgress struct {
	*memProgress
	failAt int
}

var errCheckpointCrash = errors.New("simulated crash before checkpoint write")

func (p *crashProgress) Set(jobId string, rowIndex int) error {
	if rowIndex == p.failAt {
		return errCheckpointCrash
	}
	return p.memProgress.Set(jobId, rowIndex)
}

// uniqueSink enforces the (import_batch_id, row_index) unique index the way
// MySQL does: a second insert for the same key fails with error 1062.
type uniqueSink struct {
	saved map[string]interface{}
}

func newUniqueSink() *uniqueSink {
	return &uniqueSink{saved: map[string]interface{}{}}
}

func (s *uniqueSink) SaveRecord(_ context.Context, record interface{}) error {
	rec, ok := record.(*models.KontorRecord)
	if !ok {
		return fmt.Errorf("unexpected record type %T", record)
	}
	key := fmt.Sprintf("%d|%d", rec.ImportBatchId, rec.RowIndex)
	if _, exists := s.saved[key]; exists {
		return &mysqlDriver.MySQLError{Number: 1062, Message: "Duplicate entry"}
	}
	s.saved[key] = record
	return nil
}

const kontorHeader = "Label;Artist;Title;ISRC;EAN;Article Number;Shop;Sales Month;Quantity;Royalties"

func kontorCSVRow(label string, royalties string) string {
	return strings.Join([]string{label, "The Owls", "First Light", "DEAB12345678", "", "", "iTunes", "202301", "10", royalties}, ";")
}

func kontorCSVReader(rows ...string) *csv.Reader {
	r := csv.NewReader(strings.NewReader(kontorHeader + "\n" + strings.Join(rows, "\n") + "\n"))
	r.Comma = ';'
	return r
}

func testBatch() *models.ImportBatch {
	return &models.ImportBatch{
		ID:             3,
		JobId:          "job-1",
		Distributor:    models.DistributorKontor,
		ReportingMonth: "202301",
		Status:         models.ImportBatchStatusActive,
	}
}

func neverCancelled() (bool, error) { return false, nil }

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func importPipeline(sink RecordSink, buckets BucketStore) *Pipeline {
	return NewPipeline(kontorStrategy{}, NewResolver(testDirectory()), sink, buckets, testLogger())
}

func TestRunRows_ResumeAfterCheckpointCrashCommitsEachRowOnce(t *testing.T) {
	sink := newUniqueSink()
	buckets := newMemBuckets()
	pipeline := importPipeline(sink, buckets)
	batch := testBatch()

	rows := []string{
		kontorCSVRow("Nightshade Records", "100.0"),
		kontorCSVRow("Nightshade Records", "200.0"),
		kontorCSVRow("Nightshade Records", "300.0"),
		kontorCSVRow("Nightshade Records", "400.0"),
	}

	// First attempt dies after row 2's record is committed but before its
	// checkpoint lands, so the saved checkpoint still points at row 1.
	progress := &crashProgress{memProgress: newMemProgress(), failAt: 2}
	imp := NewImporter(nil, progress, nil, testLogger())
	err := imp.runRows(context.Background(), pipeline, batch, batch.JobId, kontorCSVReader(rows...), neverCancelled)
	if !errors.Is(err, errCheckpointCrash) {
		t.Fatalf("first attempt: err = %v, want simulated crash", err)
	}
	if saved, found, _ := progress.Get(batch.JobId); !found || saved != 1 {
		t.Fatalf("checkpoint = %d (found=%v), want 1", saved, found)
	}
	if len(sink.saved) != 3 {
		t.Fatalf("first attempt committed %d rows, want 3", len(sink.saved))
	}

	// Redelivery resumes from the checkpoint and replays row 2. The unique
	// index rejects the duplicate insert and the run finishes clean.
	imp = NewImporter(nil, progress.memProgress, nil, testLogger())
	if err := imp.runRows(context.Background(), pipeline, batch, batch.JobId, kontorCSVReader(rows...), neverCancelled); err != nil {
		t.Fatalf("second attempt: %v", err)
	}
	if len(sink.saved) != 4 {
		t.Fatalf("committed rows = %d, want each of the 4 exactly once", len(sink.saved))
	}
	for i := 0; i < 4; i++ {
		if _, ok := sink.saved[fmt.Sprintf("3|%d", i)]; !ok {
			t.Errorf("row %d missing from the record table", i)
		}
	}
}

func TestRunRows_MalformedRowArchivedAndImportContinues(t *testing.T) {
	sink := newUniqueSink()
	buckets := newMemBuckets()
	pipeline := importPipeline(sink, buckets)
	batch := testBatch()

	rows := []string{
		kontorCSVRow("Nightshade Records", "100.0"),
		"only;three;fields",
		kontorCSVRow("Nightshade Records", "300.0"),
	}

	imp := NewImporter(nil, newMemProgress(), nil, testLogger())
	if err := imp.runRows(context.Background(), pipeline, batch, batch.JobId, kontorCSVReader(rows...), neverCancelled); err != nil {
		t.Fatalf("runRows: %v", err)
	}

	if len(buckets.failed) != 1 {
		t.Fatalf("failed archive = %v, want the malformed row only", buckets.failed)
	}
	if len(sink.saved) != 2 {
		t.Fatalf("committed rows = %d, want the 2 well-formed ones", len(sink.saved))
	}
}

func TestRunRows_CancellationStopsBetweenRows(t *testing.T) {
	sink := newUniqueSink()
	pipeline := importPipeline(sink, newMemBuckets())
	batch := testBatch()

	cancelled := func() (bool, error) { return true, nil }
	imp := NewImporter(nil, newMemProgress(), nil, testLogger())
	err := imp.runRows(context.Background(), pipeline, batch, batch.JobId,
		kontorCSVReader(kontorCSVRow("Nightshade Records", "100.0")), cancelled)
	if !errors.Is(err, errImportCancelled) {
		t.Fatalf("err = %v, want cancellation", err)
	}
	if len(sink.saved) != 0 {
		t.Errorf("cancelled run committed %d rows", len(sink.saved))
	}
}

func TestRunRows_RetryAfterPurgeBuffersEachRowOnce(t *testing.T) {
	sink := newUniqueSink()
	buckets := newMemBuckets()
	pipeline := importPipeline(sink, buckets)
	batch := testBatch()

	rows := []string{
		kontorCSVRow("No Such Label", "100.0"),
		kontorCSVRow("No Such Label", "200.0"),
	}

	progress := newMemProgress()
	imp := NewImporter(nil, progress, nil, testLogger())
	if err := imp.runRows(context.Background(), pipeline, batch, batch.JobId, kontorCSVReader(rows...), neverCancelled); err != nil {
		t.Fatalf("first attempt: %v", err)
	}

	// Terminal failure between the attempts: the rollback drops the
	// period's buckets and the checkpoint before the period is re-queued.
	if err := buckets.PurgePeriod(context.Background(), batch.Distributor, batch.ReportingMonth); err != nil {
		t.Fatal(err)
	}
	if err := progress.Clear(batch.JobId); err != nil {
		t.Fatal(err)
	}

	if err := imp.runRows(context.Background(), pipeline, batch, batch.JobId, kontorCSVReader(rows...), neverCancelled); err != nil {
		t.Fatalf("second attempt: %v", err)
	}

	if len(buckets.unlinked) != 1 {
		t.Fatalf("unlinked buckets = %d, want 1", len(buckets.unlinked))
	}
	for _, bucket := range buckets.unlinked {
		if bucket.count != 2 || len(bucket.rows) != 2 {
			t.Errorf("bucket count=%d rows=%d, want one entry per physical row", bucket.count, len(bucket.rows))
		}
	}
}
