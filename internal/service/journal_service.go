package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"ticket-scanner/internal/domain/scan"
	"ticket-scanner/internal/repository"
	"ticket-scanner/internal/utils"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
)

type ScanStore interface {
	CreateScanRecord(ctx context.Context, rec *scan.Record) error
	FindScanRecords(ctx context.Context, f repository.ScanFilter) ([]repository.ScanRecord, error)
	FindScanRecord(ctx context.Context, id uuid.UUID) (*repository.ScanRecord, error)
	DeleteScanRecordsBefore(ctx context.Context, before time.Time) (int64, error)
}

// JournalService keeps an audit trail of verification outcomes.
type JournalService struct {
	repo ScanStore
	log  zerolog.Logger
	now  func() time.Time
}

func NewJournalService(repo ScanStore, log zerolog.Logger) *JournalService {
	return &JournalService{
		repo: repo,
		log:  log.With().Str("component", "journal").Logger(),
		now:  time.Now,
	}
}

func (s *JournalService) Record(ctx context.Context, rec scan.Record) error {
	if rec.Fingerprint == "" {
		return fmt.Errorf("%w: fingerprint is required", ErrInvalidInput)
	}
	if rec.ScannerID == "" {
		return fmt.Errorf("%w: scanner_id is required", ErrInvalidInput)
	}
	if rec.ScannedAt.IsZero() {
		rec.ScannedAt = s.now()
	}

	if err := s.repo.CreateScanRecord(ctx, &rec); err != nil {
		s.log.Error().
			Err(err).
			Str("fingerprint", rec.Fingerprint).
			Str("scanner_id", rec.ScannerID).
			Msg("failed to create scan record")
		return fmt.Errorf("failed to create scan record: %w", err)
	}

	ev := s.log.Info().
		Str("record_id", rec.ID).
		Str("fingerprint", rec.Fingerprint).
		Str("outcome", string(rec.Outcome)).
		Time("scanned_at", rec.ScannedAt)
	if rec.TicketID != nil {
		ev = ev.Int64("ticket_id", *rec.TicketID)
	}
	ev.Msg("saved scan record")
	return nil
}

// ScanQuery mirrors the query string of the journal listing endpoint.
type ScanQuery struct {
	Payload *string
	Valid   *bool
	From    *string
	To      *string
	Limit   int
	Offset  int
}

func (s *JournalService) FindScans(ctx context.Context, q ScanQuery) ([]ScanInfo, error) {
	f := repository.ScanFilter{Valid: q.Valid}

	if q.Payload != nil && *q.Payload != "" {
		fp := utils.Fingerprint(*q.Payload)
		f.Fingerprint = &fp
	}

	if q.From != nil && *q.From != "" {
		t, err := time.Parse(time.RFC3339, *q.From)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid from time format", ErrInvalidInput)
		}
		f.From = &t
	}
	if q.To != nil && *q.To != "" {
		t, err := time.Parse(time.RFC3339, *q.To)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid to time format", ErrInvalidInput)
		}
		f.To = &t
	}
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return nil, fmt.Errorf("%w: to is before from", ErrInvalidInput)
	}

	f.Limit = q.Limit
	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Limit > 100 {
		f.Limit = 100
	}
	f.Offset = q.Offset
	if f.Offset < 0 {
		f.Offset = 0
	}

	records, err := s.repo.FindScanRecords(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("failed to find scans: %w", err)
	}

	result := make([]ScanInfo, 0, len(records))
	for _, r := range records {
		result = append(result, toScanInfo(r))
	}

	return result, nil
}

func (s *JournalService) GetScan(ctx context.Context, id string) (*ScanInfo, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid scan id", ErrInvalidInput)
	}

	rec, err := s.repo.FindScanRecord(ctx, parsed)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: scan %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get scan: %w", err)
	}

	info := toScanInfo(*rec)
	return &info, nil
}

func toScanInfo(r repository.ScanRecord) ScanInfo {
	info := ScanInfo{
		ID:           r.ID.String(),
		ScannerID:    r.ScannerID,
		DeviceID:     r.DeviceID,
		Fingerprint:  r.Fingerprint,
		MaskedToken:  r.MaskedToken,
		Valid:        r.Valid,
		Outcome:      r.Outcome,
		TicketID:     r.TicketID,
		SeatLabel:    r.SeatLabel,
		ErrorMessage: r.ErrorMessage,
		ScannedAt:    r.ScannedAt,
	}
	if len(r.Response) > 0 {
		info.Response = json.RawMessage(r.Response)
	}
	return info
}

// CleanupOldScans deletes records older than the given number of days.
func (s *JournalService) CleanupOldScans(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		return 0, fmt.Errorf("%w: retention days must be positive", ErrInvalidInput)
	}
	before := s.now().AddDate(0, 0, -days)
	deleted, err := s.repo.DeleteScanRecordsBefore(ctx, before)
	if err != nil {
		s.log.Error().Err(err).Int("days", days).Msg("failed to cleanup old scans")
		return 0, err
	}
	if deleted > 0 {
		s.log.Info().Int64("deleted_count", deleted).Int("days", days).Msg("cleaned up old scans")
	}
	return deleted, nil
}

// RunRetention runs CleanupOldScans every interval until ctx is done.
func (s *JournalService) RunRetention(ctx context.Context, interval time.Duration, days int) {
	if interval <= 0 || days <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.CleanupOldScans(ctx, days)
		}
	}
}

type ScanInfo struct {
	ID           string          `json:"id"`
	ScannerID    string          `json:"scanner_id"`
	DeviceID     *string         `json:"device_id,omitempty"`
	Fingerprint  string          `json:"fingerprint"`
	MaskedToken  string          `json:"masked_token"`
	Valid        bool            `json:"valid"`
	Outcome      string          `json:"outcome"`
	TicketID     *int64          `json:"ticket_id,omitempty"`
	SeatLabel    *string         `json:"seat_label,omitempty"`
	ErrorMessage *string         `json:"error_message,omitempty"`
	Response     json.RawMessage `json:"response,omitempty"`
	ScannedAt    time.Time       `json:"scanned_at"`
}
