package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"ticket-scanner/internal/domain/scan"
)

const maxPageSize = 100

type ScanRepository struct {
	db *gorm.DB
}

func NewScanRepository(db *gorm.DB) *ScanRepository {
	return &ScanRepository{db: db}
}

type ScanRecord struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	ScannerID    string    `gorm:"not null"`
	DeviceID     *string
	Fingerprint  string `gorm:"not null;index"`
	MaskedToken  string `gorm:"not null"`
	Valid        bool   `gorm:"not null"`
	Outcome      string `gorm:"not null"`
	TicketID     *int64
	SeatLabel    *string
	ErrorMessage *string
	Response     datatypes.JSON `gorm:"type:jsonb"`
	ScannedAt    time.Time      `gorm:"not null;index"`
	CreatedAt    time.Time
}

func (ScanRecord) TableName() string {
	return "scan_records"
}

// ScanFilter narrows FindScanRecords. Nil fields are ignored.
type ScanFilter struct {
	Fingerprint *string
	Valid       *bool
	From        *time.Time
	To          *time.Time
	Limit       int
	Offset      int
}

func (r *ScanRepository) CreateScanRecord(ctx context.Context, rec *scan.Record) error {
	id, err := uuid.Parse(rec.ID)
	if err != nil {
		id = uuid.New()
	}

	dbRec := ScanRecord{
		ID:          id,
		ScannerID:   rec.ScannerID,
		Fingerprint: rec.Fingerprint,
		MaskedToken: rec.MaskedToken,
		Valid:       rec.Valid,
		Outcome:     string(rec.Outcome),
		TicketID:    rec.TicketID,
		ScannedAt:   rec.ScannedAt,
		CreatedAt:   time.Now(),
	}

	if rec.DeviceID != "" {
		dbRec.DeviceID = &rec.DeviceID
	}
	if rec.SeatLabel != "" {
		dbRec.SeatLabel = &rec.SeatLabel
	}
	if rec.ErrorMessage != "" {
		dbRec.ErrorMessage = &rec.ErrorMessage
	}
	if len(rec.Response) > 0 {
		raw, err := json.Marshal(rec.Response)
		if err != nil {
			return err
		}
		dbRec.Response = datatypes.JSON(raw)
	}

	if err := r.db.WithContext(ctx).Create(&dbRec).Error; err != nil {
		return err
	}

	rec.ID = dbRec.ID.String()
	return nil
}

func (r *ScanRepository) FindScanRecords(ctx context.Context, f ScanFilter) ([]ScanRecord, error) {
	query := r.db.WithContext(ctx).Model(&ScanRecord{})

	if f.Fingerprint != nil {
		query = query.Where("fingerprint = ?", *f.Fingerprint)
	}
	if f.Valid != nil {
		query = query.Where("valid = ?", *f.Valid)
	}
	if f.From != nil {
		query = query.Where("scanned_at >= ?", *f.From)
	}
	if f.To != nil {
		query = query.Where("scanned_at <= ?", *f.To)
	}

	query = query.Order("scanned_at DESC")

	if f.Limit > 0 {
		limit := f.Limit
		if limit > maxPageSize {
			limit = maxPageSize
		}
		query = query.Limit(limit)
	}
	if f.Offset > 0 {
		query = query.Offset(f.Offset)
	}

	var records []ScanRecord
	err := query.Find(&records).Error
	return records, err
}

// FindScanRecord returns gorm.ErrRecordNotFound when no row has id.
func (r *ScanRepository) FindScanRecord(ctx context.Context, id uuid.UUID) (*ScanRecord, error) {
	var rec ScanRecord
	if err := r.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *ScanRepository) DeleteScanRecordsBefore(ctx context.Context, before time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("scanned_at < ?", before).
		Delete(&ScanRecord{})
	return res.RowsAffected, res.Error
}
