package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/charmap"
)

func runImport(t *testing.T, store *memStore, key, csv string, opts ImportOptions) (*ImportReport, error) {
	t.Helper()
	p := NewPipeline(store, NewAllocator(store))
	return p.Run(context.Background(), mustKind(t, key), strings.NewReader(csv), opts)
}

func outcomeAt(t *testing.T, r *ImportReport, row int) ImportOutcome {
	t.Helper()
	for _, o := range r.Outcomes {
		if o.Row == row {
			return o
		}
	}
	t.Fatalf("no outcome for row %d", row)
	return ImportOutcome{}
}

func assertCounts(t *testing.T, r *ImportReport, total, inserted, skipped, errored int) {
	t.Helper()
	if r.TotalRows != total || r.Inserted != inserted || r.Skipped != skipped || r.Errored != errored {
		t.Errorf("counts = total %d, inserted %d, skipped %d, errored %d; want %d/%d/%d/%d",
			r.TotalRows, r.Inserted, r.Skipped, r.Errored, total, inserted, skipped, errored)
	}
	if got := r.Inserted + r.Skipped + r.Errored; got != r.TotalRows {
		t.Errorf("outcome counts sum to %d, TotalRows %d", got, r.TotalRows)
	}
}

func TestPipeline_AllRowsInserted(t *testing.T) {
	store := newMemStore()
	csv := "plate,type,serial,cost\n" +
		",laptop,sn-1,1200\n" +
		",monitor,sn-2,300\n" +
		",dock,sn-3,90\n"

	report, err := runImport(t, store, "assets", csv, ImportOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	assertCounts(t, report, 3, 3, 0, 0)
	if !report.Success() {
		t.Error("Success() = false, want true")
	}
	if report.RunID == "" {
		t.Error("RunID not set")
	}

	want := []string{"AS-000", "AS-001", "AS-002"}
	for i, o := range report.Outcomes {
		if o.Code != want[i] {
			t.Errorf("row %d code = %q, want %q", o.Row, o.Code, want[i])
		}
		if o.NaturalKey != strings.ToUpper(fmt.Sprintf("sn-%d", i+1)) {
			t.Errorf("row %d natural key = %q", o.Row, o.NaturalKey)
		}
	}
	if store.count(testAssets) != 3 {
		t.Errorf("store has %d assets, want 3", store.count(testAssets))
	}
}

func TestPipeline_ExistingNaturalKeySkipped(t *testing.T) {
	store := newMemStore()
	store.seed(testAssets, map[string]any{"plate": "AS-000", "serial": "SN-2"})

	csv := "plate,type,serial\n,laptop,sn-1\n,monitor,sn-2\n,dock,sn-3\n"
	report, err := runImport(t, store, "assets", csv, ImportOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	assertCounts(t, report, 3, 2, 1, 0)
	if !report.Success() {
		t.Error("Success() = false, want true")
	}

	o := outcomeAt(t, report, 2)
	if o.Status != StatusSkipped || o.Reason != ReasonDuplicate {
		t.Errorf("row 2 = %s %q, want skipped %q", o.Status, o.Reason, ReasonDuplicate)
	}
	if o.NaturalKey != "SN-2" {
		t.Errorf("row 2 natural key = %q", o.NaturalKey)
	}
}

func TestPipeline_MissingRequiredValue(t *testing.T) {
	store := newMemStore()
	csv := "plate,type,serial\n,laptop,sn-1\n,,sn-2\n,dock,sn-3\n"

	report, err := runImport(t, store, "assets", csv, ImportOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	assertCounts(t, report, 3, 2, 0, 1)
	o := outcomeAt(t, report, 2)
	if o.Status != StatusErrored || !strings.Contains(o.Reason, "obligatorio") {
		t.Errorf("row 2 = %s %q, want errored mentioning obligatorio", o.Status, o.Reason)
	}
	if o.Reason != "type es obligatorio" {
		t.Errorf("row 2 reason = %q", o.Reason)
	}
	for _, row := range []int{1, 3} {
		if got := outcomeAt(t, report, row).Status; got != StatusInserted {
			t.Errorf("row %d = %s, want inserted", row, got)
		}
	}
}

func TestPipeline_MissingRequiredColumn(t *testing.T) {
	store := newMemStore()
	csv := "plate,serial\n,sn-1\n,sn-2\n"

	report, err := runImport(t, store, "assets", csv, ImportOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	assertCounts(t, report, 2, 0, 0, 2)
	if report.Success() {
		t.Error("Success() = true, want false")
	}
	resp := report.Response()
	if resp.Errors != resp.TotalRows || resp.Inserted != 0 || resp.Success {
		t.Errorf("response = %+v", resp)
	}
}

func TestPipeline_SuppliedCodes(t *testing.T) {
	store := newMemStore()
	csv := "plate,type,serial\n" +
		"AS-0ZZ,laptop,sn-1\n" +
		"as-001,laptop,sn-2\n" +
		",laptop,sn-3\n"

	report, err := runImport(t, store, "assets", csv, ImportOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	assertCounts(t, report, 3, 2, 0, 1)
	if got := outcomeAt(t, report, 1).Code; got != "AS-0ZZ" {
		t.Errorf("row 1 code = %q, want caller-supplied AS-0ZZ", got)
	}

	o := outcomeAt(t, report, 2)
	if o.Status != StatusErrored || !strings.Contains(o.Reason, "invalid format") {
		t.Errorf("row 2 = %s %q, want invalid format", o.Status, o.Reason)
	}

	// Allocation continues after the highest stored code.
	if got := outcomeAt(t, report, 3).Code; got != "AS-100" {
		t.Errorf("row 3 code = %q, want AS-100", got)
	}
}

func TestPipeline_InBatchDuplicates(t *testing.T) {
	csv := "plate,type,serial\n,laptop,sn-1\n,laptop,SN-1\n"

	t.Run("store lookup", func(t *testing.T) {
		report, err := runImport(t, newMemStore(), "assets", csv, ImportOptions{})
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		assertCounts(t, report, 2, 1, 1, 0)
		if o := outcomeAt(t, report, 2); o.Reason != ReasonDuplicate {
			t.Errorf("row 2 reason = %q, want %q", o.Reason, ReasonDuplicate)
		}
	})

	t.Run("dedupe batch", func(t *testing.T) {
		report, err := runImport(t, newMemStore(), "assets", csv, ImportOptions{DedupeBatch: true})
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		assertCounts(t, report, 2, 1, 1, 0)
		if o := outcomeAt(t, report, 2); !strings.Contains(o.Reason, "first seen at row 1") {
			t.Errorf("row 2 reason = %q", o.Reason)
		}
	})
}

func TestPipeline_InBatchDedupeIgnoresFailedRows(t *testing.T) {
	store := newMemStore()
	store.seed(testAssets, map[string]any{"plate": "AS-005", "serial": "OLD"})

	// Row 1 collides on its supplied plate, so SN-1 never reaches the store
	// and row 2 must still be inserted.
	csv := "plate,type,serial\nAS-005,laptop,sn-1\n,laptop,sn-1\n,laptop,SN-1\n"
	report, err := runImport(t, store, "assets", csv, ImportOptions{DedupeBatch: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	assertCounts(t, report, 3, 1, 1, 1)
	if o := outcomeAt(t, report, 1); o.Status != StatusErrored || o.Reason != "duplicate: plate" {
		t.Errorf("row 1 = %s %q, want errored duplicate: plate", o.Status, o.Reason)
	}
	if o := outcomeAt(t, report, 2); o.Status != StatusInserted {
		t.Errorf("row 2 = %s %q, want inserted", o.Status, o.Reason)
	}
	if o := outcomeAt(t, report, 3); !strings.Contains(o.Reason, "first seen at row 2") {
		t.Errorf("row 3 reason = %q, want in-batch duplicate of row 2", o.Reason)
	}
	if _, err := store.FindByNaturalKey(context.Background(), testAssets, "SN-1"); err != nil {
		t.Errorf("SN-1 not stored: %v", err)
	}
}

func TestPipeline_StreamErrorStopsRun(t *testing.T) {
	errBoom := errors.New("connection reset")
	store := newMemStore()
	r := io.MultiReader(
		strings.NewReader("plate,type,serial\n,laptop,sn-1\n,monitor,sn-2\n"),
		iotest.ErrReader(errBoom),
	)

	p := NewPipeline(store, NewAllocator(store))
	report, err := p.Run(context.Background(), mustKind(t, "assets"), r, ImportOptions{})
	if !errors.Is(err, errBoom) {
		t.Fatalf("err = %v, want wrapping the stream error", err)
	}
	if !errors.Is(err, ErrMalformedInput) {
		t.Errorf("err = %v, want ErrMalformedInput", err)
	}
	if report == nil || !report.Truncated {
		t.Fatalf("report = %+v, want truncated partial report", report)
	}
	assertCounts(t, report, 2, 2, 0, 0)
	if store.count(testAssets) != 2 {
		t.Errorf("stored = %d, want 2", store.count(testAssets))
	}
}

func TestPipeline_UniqueConflictIsPerRow(t *testing.T) {
	store := newMemStore()
	store.seed(testVendors, map[string]any{"code": "VN01", "tax_id": "OLD"})

	csv := "code,name,tax_id\nVN01,Acme,A1\n,Globex,G2\n"
	report, err := runImport(t, store, "vendors", csv, ImportOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	assertCounts(t, report, 2, 1, 0, 1)
	if o := outcomeAt(t, report, 1); o.Status != StatusErrored || o.Reason != "duplicate: code" {
		t.Errorf("row 1 = %s %q, want errored duplicate: code", o.Status, o.Reason)
	}
	if got := outcomeAt(t, report, 2).Code; got != "VN02" {
		t.Errorf("row 2 code = %q, want VN02", got)
	}
}

func TestPipeline_LenientValues(t *testing.T) {
	store := newMemStore()
	csv := "plate,type,serial,cost,bought\n" +
		",laptop,sn-1,\"$1,234.50\",2024-03-15\n" +
		",laptop,sn-2,n/a,someday\n" +
		",laptop,sn-3,(45.00),03/15/2024\n"

	report, err := runImport(t, store, "assets", csv, ImportOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	assertCounts(t, report, 3, 3, 0, 0)

	costs := []string{"1234.5", "0", "-45"}
	for i, want := range costs {
		rec := outcomeAt(t, report, i+1).Record
		got, ok := rec.Values["cost"].(decimal.Decimal)
		if !ok || !got.Equal(decimal.RequireFromString(want)) {
			t.Errorf("row %d cost = %v, want %s", i+1, rec.Values["cost"], want)
		}
	}

	if v := outcomeAt(t, report, 2).Record.Values["bought"]; v != nil {
		t.Errorf("unparseable date stored as %v, want nil", v)
	}
}

func TestPipeline_BlankRowsSkipped(t *testing.T) {
	store := newMemStore()
	csv := "plate,type,serial\n,laptop,sn-1\n,,\n\n,dock,sn-3\n"

	report, err := runImport(t, store, "assets", csv, ImportOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	assertCounts(t, report, 2, 2, 0, 0)
	// encoding/csv drops the empty line; the ",," row still consumes row 2.
	if got := report.Outcomes[1].Row; got != 3 {
		t.Errorf("second outcome row = %d, want 3", got)
	}
}

func TestPipeline_Delimiter(t *testing.T) {
	store := newMemStore()
	csv := "code;name;tax_id\n;Acme;A1\n;Globex;G2\n"

	report, err := runImport(t, store, "vendors", csv, ImportOptions{Reader: ReaderOptions{Delimiter: ';'}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	assertCounts(t, report, 2, 2, 0, 0)
	if got := store.codes(testVendors); len(got) != 2 || got[0] != "VN01" || got[1] != "VN02" {
		t.Errorf("codes = %v, want [VN01 VN02]", got)
	}
}

func TestPipeline_Windows1252(t *testing.T) {
	store := newMemStore()
	encoded, err := charmap.Windows1252.NewEncoder().String("code,name,tax_id\n,Café Müller,C1\n")
	if err != nil {
		t.Fatalf("encode fixture: %v", err)
	}

	p := NewPipeline(store, NewAllocator(store))
	report, err := p.Run(context.Background(), mustKind(t, "vendors"), bytes.NewReader([]byte(encoded)),
		ImportOptions{Reader: ReaderOptions{Encoding: EncodingWindows1252}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := outcomeAt(t, report, 1).Record.String("name"); got != "Café Müller" {
		t.Errorf("name = %q, want Café Müller", got)
	}
}

func TestPipeline_NoNaturalKey(t *testing.T) {
	store := newMemStore()
	csv := "number,title\n,first\n,first\n"

	report, err := runImport(t, store, "notes", csv, ImportOptions{DedupeBatch: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	assertCounts(t, report, 2, 2, 0, 0)

	resp := report.Response()
	if len(resp.Details.InsertedRecords) != 2 || resp.Details.InsertedRecords[0] != "N-0001" {
		t.Errorf("insertedRecords = %v, want codes", resp.Details.InsertedRecords)
	}
}

func TestPipeline_OverflowIsPerRow(t *testing.T) {
	store := newMemStore()
	store.seed(testVendors, map[string]any{"code": "VN98", "tax_id": "OLD"})

	csv := "code,name,tax_id\n,A,T1\n,B,T2\n"
	report, err := runImport(t, store, "vendors", csv, ImportOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	assertCounts(t, report, 2, 1, 0, 1)
	if o := outcomeAt(t, report, 2); !strings.Contains(o.Reason, ErrSequenceOverflow.Error()) {
		t.Errorf("row 2 reason = %q, want overflow", o.Reason)
	}
}

func TestPipeline_InsertFailureIsPerRow(t *testing.T) {
	store := newMemStore()
	store.insertErr = func(rec Record) error {
		if rec.String("serial") == "SN-2" {
			return errors.New("value too long for column")
		}
		return nil
	}

	csv := "plate,type,serial\n,laptop,sn-1\n,laptop,sn-2\n,laptop,sn-3\n"
	report, err := runImport(t, store, "assets", csv, ImportOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	assertCounts(t, report, 3, 2, 0, 1)
	if o := outcomeAt(t, report, 2); !strings.HasPrefix(o.Reason, "insert failed:") {
		t.Errorf("row 2 reason = %q", o.Reason)
	}
}

func TestPipeline_StoreUnavailableStopsRun(t *testing.T) {
	store := newMemStore()
	store.insertErr = func(rec Record) error {
		if rec.String("serial") == "SN-2" {
			return fmt.Errorf("insert: %w", ErrStoreUnavailable)
		}
		return nil
	}

	csv := "plate,type,serial\n,laptop,sn-1\n,laptop,sn-2\n,laptop,sn-3\n"
	report, err := runImport(t, store, "assets", csv, ImportOptions{})
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("error = %v, want ErrStoreUnavailable", err)
	}
	if report == nil || !report.Truncated {
		t.Fatalf("report = %+v, want truncated report", report)
	}
	assertCounts(t, report, 1, 1, 0, 0)
	if report.StopReason == "" {
		t.Error("StopReason not set")
	}
}

func TestPipeline_Cancellation(t *testing.T) {
	store := newMemStore()
	ctx, cancel := context.WithCancel(context.Background())

	var rows []string
	for i := 0; i < 10; i++ {
		rows = append(rows, fmt.Sprintf(",laptop,sn-%d", i))
	}
	csv := "plate,type,serial\n" + strings.Join(rows, "\n") + "\n"

	opts := ImportOptions{
		ProgressInterval: 3,
		OnProgress: func(p ImportProgress) {
			if p.Phase == PhaseInserting && p.Inserted >= 3 {
				cancel()
			}
		},
	}

	p := NewPipeline(store, NewAllocator(store))
	report, err := p.Run(ctx, mustKind(t, "assets"), strings.NewReader(csv), opts)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if !report.Truncated {
		t.Error("report not truncated")
	}
	if report.Inserted != 3 || store.count(testAssets) != 3 {
		t.Errorf("inserted = %d (store %d), want 3", report.Inserted, store.count(testAssets))
	}
}

func TestPipeline_StructuralFailure(t *testing.T) {
	tests := []struct {
		name string
		csv  string
		opts ImportOptions
		want error
	}{
		{"empty stream", "", ImportOptions{}, ErrMalformedInput},
		{"duplicate header", "serial,serial\nA,B\n", ImportOptions{}, ErrMalformedInput},
		{"bad encoding", "plate\n", ImportOptions{Reader: ReaderOptions{Encoding: "ebcdic"}}, ErrInvalidOptions},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := runImport(t, newMemStore(), "assets", tt.csv, tt.opts)
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
			if report != nil {
				t.Errorf("report = %+v, want nil", report)
			}
		})
	}
}

func TestPipeline_ProgressCallback(t *testing.T) {
	store := newMemStore()
	csv := "plate,type,serial\n,a,1\n,b,2\n,c,3\n,d,4\n"

	var phases []ImportPhase
	opts := ImportOptions{
		ProgressInterval: 2,
		OnProgress: func(p ImportProgress) {
			phases = append(phases, p.Phase)
		},
	}

	if _, err := runImport(t, store, "assets", csv, opts); err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []ImportPhase{PhaseParsing, PhaseValidating, PhaseInserting, PhaseInserting, PhaseCompleted}
	if fmt.Sprint(phases) != fmt.Sprint(want) {
		t.Errorf("phases = %v, want %v", phases, want)
	}
}

func TestImportReport_Success(t *testing.T) {
	tests := []struct {
		name   string
		report ImportReport
		want   bool
	}{
		{"empty batch", ImportReport{}, true},
		{"all inserted", ImportReport{TotalRows: 2, Inserted: 2}, true},
		{"partial", ImportReport{TotalRows: 3, Inserted: 1, Errored: 2}, true},
		{"all skipped", ImportReport{TotalRows: 2, Skipped: 2}, false},
		{"all errored", ImportReport{TotalRows: 2, Errored: 2}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.report.Success(); got != tt.want {
				t.Errorf("Success() = %v, want %v", got, tt.want)
			}
		})
	}
}
