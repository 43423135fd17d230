package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/JonMunkholm/inventory/internal/core"
	"github.com/JonMunkholm/inventory/internal/core/kinds"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "inventory.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestOpen_EmptyPath(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Error("expected error for empty path")
	}
}

func TestUniqueField(t *testing.T) {
	tests := []struct {
		msg  string
		want string
	}{
		{"constraint failed: UNIQUE constraint failed: companies.tax_id (2067)", "tax_id"},
		{"UNIQUE constraint failed: equipment.plate_number", "plate_number"},
		{"UNIQUE constraint failed: t.a, t.b", "a"},
		{"NOT NULL constraint failed: users.email", ""},
	}

	for _, tt := range tests {
		if got := uniqueField(tt.msg); got != tt.want {
			t.Errorf("uniqueField(%q) = %q, want %q", tt.msg, got, tt.want)
		}
	}
}

func TestStore_InsertAndFind(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	rec, err := store.Insert(ctx, kinds.Companies, core.Record{Values: map[string]any{
		"code": "CO001", "name": "Acme", "tax_id": "A1",
	}})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if rec.ID == 0 || rec.Kind != kinds.Companies {
		t.Errorf("inserted record = %+v", rec)
	}

	_, err = store.Insert(ctx, kinds.Companies, core.Record{Values: map[string]any{
		"code": "CO002", "name": "Other", "tax_id": "A1",
	}})
	ce, ok := core.AsConflict(err)
	if !ok || ce.Field != "tax_id" {
		t.Fatalf("duplicate tax_id error = %v, want conflict on tax_id", err)
	}

	_, err = store.Insert(ctx, kinds.Companies, core.Record{Values: map[string]any{
		"code": "CO001", "name": "Third", "tax_id": "B2",
	}})
	if ce, ok := core.AsConflict(err); !ok || ce.Field != "code" {
		t.Fatalf("duplicate code error = %v, want conflict on code", err)
	}

	found, err := store.FindByNaturalKey(ctx, kinds.Companies, "A1")
	if err != nil {
		t.Fatalf("FindByNaturalKey: %v", err)
	}
	if found.ID != rec.ID || found.String("name") != "Acme" {
		t.Errorf("found = %+v", found)
	}

	if _, err := store.FindByNaturalKey(ctx, kinds.Companies, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("missing key error = %v, want ErrNotFound", err)
	}
	if _, err := store.FindByNaturalKey(ctx, kinds.Tickets, "anything"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("kind without natural key error = %v, want ErrNotFound", err)
	}
}

func TestStore_FindByPrefixIsCaseSensitive(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for i, code := range []string{"USR-0001", "usr-0002", "USRX0003"} {
		_, err := store.Insert(ctx, kinds.Users, core.Record{Values: map[string]any{
			"code": code, "email": fmt.Sprintf("u%d@example.com", i), "full_name": "U",
		}})
		if err != nil {
			t.Fatalf("Insert %s: %v", code, err)
		}
	}

	codes, err := store.FindByPrefix(ctx, kinds.Users, "USR-")
	if err != nil {
		t.Fatalf("FindByPrefix: %v", err)
	}
	if len(codes) != 1 || codes[0] != "USR-0001" {
		t.Errorf("FindByPrefix = %v, want [USR-0001]", codes)
	}
}

func TestStore_ClosedIsUnavailable(t *testing.T) {
	store := openTestStore(t)
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	_, err := store.FindByPrefix(context.Background(), kinds.Equipment, "IT-")
	if !errors.Is(err, core.ErrStoreUnavailable) {
		t.Errorf("error = %v, want ErrStoreUnavailable", err)
	}
}

func TestService_ImportEquipment(t *testing.T) {
	svc := core.NewService(openTestStore(t), core.ServiceConfig{})
	ctx := context.Background()

	csv := strings.Join([]string{
		"plate_number,type,brand,serial_number,cost,purchase_date",
		",laptop,Dell,sn-001,\"$1,200.50\",2024-03-15",
		",monitor,LG,SN 002,300,15/03/2024",
		",laptop,Dell,SN-001,999,",
		",,HP,SN-004,10,",
	}, "\n")

	report, err := svc.Import(ctx, "equipment", strings.NewReader(csv), svc.DefaultImportOptions())
	if err != nil {
		t.Fatalf("Import: %v", err)
	}

	if report.TotalRows != 4 || report.Inserted != 2 || report.Skipped != 1 || report.Errored != 1 {
		t.Fatalf("report = %d total, %d inserted, %d skipped, %d errored",
			report.TotalRows, report.Inserted, report.Skipped, report.Errored)
	}

	var codes []string
	for _, o := range report.Outcomes {
		if o.Status == core.StatusInserted {
			codes = append(codes, o.Code)
		}
	}
	if strings.Join(codes, ",") != "IT-000000,IT-000001" {
		t.Errorf("allocated codes = %v", codes)
	}

	next, err := svc.NextCode(ctx, kinds.FamilyPlate)
	if err != nil || next != "IT-000002" {
		t.Errorf("NextCode = %q, %v; want IT-000002", next, err)
	}
}

func TestService_CreateAllocatesAndRejectsDuplicates(t *testing.T) {
	svc := core.NewService(openTestStore(t), core.ServiceConfig{})
	ctx := context.Background()

	rec, err := svc.Create(ctx, "users", map[string]string{
		"email": " Ana@Example.COM ", "full_name": "Ana",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if got := rec.String("code"); got != "USR-0001" {
		t.Errorf("code = %q, want USR-0001", got)
	}

	_, err = svc.Create(ctx, "users", map[string]string{
		"email": "ana@example.com", "full_name": "Ana again",
	})
	if !errors.Is(err, core.ErrDuplicate) {
		t.Errorf("duplicate email error = %v, want ErrDuplicate", err)
	}

	_, err = svc.Create(ctx, "users", map[string]string{"full_name": "No email"})
	var verrs core.ValidationErrors
	if !errors.As(err, &verrs) {
		t.Errorf("missing email error = %v, want ValidationErrors", err)
	}
}

func TestService_ConcurrentCreatesGetDistinctCodes(t *testing.T) {
	const n = 5
	svc := core.NewService(openTestStore(t), core.ServiceConfig{MaxAttempts: n + 1})
	ctx := context.Background()

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		codes = make(map[string]bool)
		errs  []error
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec, err := svc.Create(ctx, "tickets", map[string]string{
				"title": fmt.Sprintf("ticket %d", i), "reported_by": "ops",
			})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			codes[rec.String("number")] = true
		}(i)
	}
	wg.Wait()

	if len(errs) > 0 {
		t.Fatalf("create errors: %v", errs)
	}
	for i := 1; i <= n; i++ {
		code := fmt.Sprintf("TK-%06d", i)
		if !codes[code] {
			t.Errorf("missing %s in %v", code, codes)
		}
	}
}
