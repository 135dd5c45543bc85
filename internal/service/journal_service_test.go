package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"ticket-scanner/internal/domain/scan"
	"ticket-scanner/internal/repository"
	"ticket-scanner/internal/utils"
)

type fakeStore struct {
	created    []scan.Record
	createErr  error
	lastFilter repository.ScanFilter
	records    []repository.ScanRecord
	deletedBy  time.Time
	deleteN    int64
}

func (f *fakeStore) CreateScanRecord(ctx context.Context, rec *scan.Record) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, *rec)
	return nil
}

func (f *fakeStore) FindScanRecords(ctx context.Context, filter repository.ScanFilter) ([]repository.ScanRecord, error) {
	f.lastFilter = filter
	return f.records, nil
}

func (f *fakeStore) FindScanRecord(ctx context.Context, id uuid.UUID) (*repository.ScanRecord, error) {
	for i := range f.records {
		if f.records[i].ID == id {
			return &f.records[i], nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeStore) DeleteScanRecordsBefore(ctx context.Context, before time.Time) (int64, error) {
	f.deletedBy = before
	return f.deleteN, nil
}

func ptr[T any](v T) *T { return &v }

func TestRecordValidation(t *testing.T) {
	store := &fakeStore{}
	svc := NewJournalService(store, zerolog.Nop())
	ctx := context.Background()

	if err := svc.Record(ctx, scan.Record{ScannerID: "s"}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("missing fingerprint error = %v", err)
	}
	if err := svc.Record(ctx, scan.Record{Fingerprint: "fp"}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("missing scanner id error = %v", err)
	}

	if err := svc.Record(ctx, scan.Record{ScannerID: "s", Fingerprint: "fp"}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if len(store.created) != 1 || store.created[0].ScannedAt.IsZero() {
		t.Errorf("created = %+v", store.created)
	}

	store.createErr = errors.New("db down")
	if err := svc.Record(ctx, scan.Record{ScannerID: "s", Fingerprint: "fp"}); err == nil {
		t.Error("Record() swallowed store error")
	}
}

func TestFindScansFilter(t *testing.T) {
	store := &fakeStore{}
	svc := NewJournalService(store, zerolog.Nop())

	_, err := svc.FindScans(context.Background(), ScanQuery{
		Payload: ptr("TOK123"),
		Valid:   ptr(true),
		From:    ptr("2026-03-01T00:00:00Z"),
		To:      ptr("2026-03-02T00:00:00Z"),
		Limit:   500,
		Offset:  -4,
	})
	if err != nil {
		t.Fatalf("FindScans() error = %v", err)
	}

	f := store.lastFilter
	if f.Fingerprint == nil || *f.Fingerprint != utils.Fingerprint("TOK123") {
		t.Errorf("fingerprint filter = %v", f.Fingerprint)
	}
	if f.Valid == nil || !*f.Valid {
		t.Errorf("valid filter = %v", f.Valid)
	}
	if f.Limit != 100 || f.Offset != 0 {
		t.Errorf("paging = %d/%d, want 100/0", f.Limit, f.Offset)
	}
	if f.From == nil || f.From.Day() != 1 || f.To == nil || f.To.Day() != 2 {
		t.Errorf("range = %v..%v", f.From, f.To)
	}
}

func TestFindScansDefaultsAndErrors(t *testing.T) {
	store := &fakeStore{}
	svc := NewJournalService(store, zerolog.Nop())
	ctx := context.Background()

	if _, err := svc.FindScans(ctx, ScanQuery{}); err != nil {
		t.Fatal(err)
	}
	if store.lastFilter.Limit != 50 || store.lastFilter.Fingerprint != nil {
		t.Errorf("default filter = %+v", store.lastFilter)
	}

	tests := []struct {
		name string
		q    ScanQuery
	}{
		{"bad from", ScanQuery{From: ptr("yesterday")}},
		{"bad to", ScanQuery{To: ptr("2026-13-01")}},
		{"inverted range", ScanQuery{From: ptr("2026-03-02T00:00:00Z"), To: ptr("2026-03-01T00:00:00Z")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.FindScans(ctx, tt.q); !errors.Is(err, ErrInvalidInput) {
				t.Errorf("error = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestFindScansMapsRecords(t *testing.T) {
	id := uuid.New()
	store := &fakeStore{records: []repository.ScanRecord{{
		ID:          id,
		ScannerID:   "s1",
		Fingerprint: "fp",
		MaskedToken: "TOK1**3456",
		Valid:       true,
		Outcome:     "valid",
		TicketID:    ptr(int64(42)),
		Response:    datatypes.JSON(`{"valid":true}`),
	}}}
	svc := NewJournalService(store, zerolog.Nop())

	scans, err := svc.FindScans(context.Background(), ScanQuery{})
	if err != nil {
		t.Fatal(err)
	}
	if len(scans) != 1 {
		t.Fatalf("scans = %d", len(scans))
	}
	s := scans[0]
	if s.ID != id.String() || *s.TicketID != 42 || string(s.Response) != `{"valid":true}` {
		t.Errorf("scan = %+v", s)
	}
}

func TestGetScan(t *testing.T) {
	id := uuid.New()
	store := &fakeStore{records: []repository.ScanRecord{{ID: id, ScannerID: "s1", Fingerprint: "fp", Outcome: "invalid"}}}
	svc := NewJournalService(store, zerolog.Nop())
	ctx := context.Background()

	got, err := svc.GetScan(ctx, id.String())
	if err != nil {
		t.Fatalf("GetScan() error = %v", err)
	}
	if got.ID != id.String() || got.Outcome != "invalid" {
		t.Errorf("GetScan() = %+v", got)
	}

	tests := []struct {
		name string
		id   string
		want error
	}{
		{"malformed id", "not-a-uuid", ErrInvalidInput},
		{"unknown id", uuid.NewString(), ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.GetScan(ctx, tt.id); !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestCleanupOldScans(t *testing.T) {
	now := time.Date(2026, 3, 31, 12, 0, 0, 0, time.UTC)
	store := &fakeStore{deleteN: 7}
	svc := NewJournalService(store, zerolog.Nop())
	svc.now = func() time.Time { return now }

	n, err := svc.CleanupOldScans(context.Background(), 30)
	if err != nil || n != 7 {
		t.Fatalf("CleanupOldScans() = %d, %v", n, err)
	}
	if want := now.AddDate(0, 0, -30); !store.deletedBy.Equal(want) {
		t.Errorf("cutoff = %v, want %v", store.deletedBy, want)
	}

	if _, err := svc.CleanupOldScans(context.Background(), 0); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("zero days error = %v", err)
	}
}
