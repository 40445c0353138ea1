package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/recon/backend/internal/domain/recon"
	"github.com/shopspring/decimal"
)

// RunModel is the persistence model for a reconciliation run.
type RunModel struct {
	RunID            int64           `gorm:"primaryKey;autoIncrement"`
	ExecutedAt       time.Time       `gorm:"not null;index"`
	Status           recon.RunStatus `gorm:"type:varchar(20);not null;index"`
	EntryCount       int             `gorm:"not null;default:0"`
	DiscrepancyCount int             `gorm:"not null;default:0"`
	CreatedAt        time.Time       `gorm:"not null"`
	UpdatedAt        time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (RunModel) TableName() string {
	return "recon_runs"
}

// ToDomain converts the persistence model to a domain RunRecord.
func (m *RunModel) ToDomain() *recon.RunRecord {
	return &recon.RunRecord{
		RunID:            m.RunID,
		ExecutedAt:       m.ExecutedAt,
		Status:           m.Status,
		EntryCount:       m.EntryCount,
		DiscrepancyCount: m.DiscrepancyCount,
	}
}

// LedgerEntryModel is the persistence model for a canonical entry produced in
// a run.
type LedgerEntryModel struct {
	ID          uuid.UUID         `gorm:"type:uuid;primary_key"`
	RunID       int64             `gorm:"not null;index"`
	Source      recon.Source      `gorm:"type:varchar(10);not null"`
	VendorID    string            `gorm:"type:varchar(64);not null;index"`
	VendorName  string            `gorm:"type:varchar(200);not null"`
	DocumentRef string            `gorm:"type:varchar(100)"`
	EntryDate   time.Time         `gorm:"not null"`
	Amount      decimal.Decimal   `gorm:"type:decimal(18,2);not null"`
	Status      recon.EntryStatus `gorm:"type:varchar(10);not null"`
	ExtractedAt time.Time         `gorm:"not null"`
	InputIndex  int               `gorm:"not null"`
	CreatedAt   time.Time         `gorm:"not null"`
}

// TableName returns the table name for GORM
func (LedgerEntryModel) TableName() string {
	return "recon_entries"
}

// ToDomain converts the persistence model to a domain LedgerEntry.
func (m *LedgerEntryModel) ToDomain() *recon.LedgerEntry {
	return &recon.LedgerEntry{
		ID:          m.ID,
		Source:      m.Source,
		VendorID:    m.VendorID,
		VendorName:  m.VendorName,
		DocumentRef: m.DocumentRef,
		EntryDate:   m.EntryDate,
		Amount:      m.Amount,
		Status:      m.Status,
		ExtractedAt: m.ExtractedAt,
		InputIndex:  m.InputIndex,
	}
}

// LedgerEntryModelFromDomain creates a persistence model from a domain entry.
func LedgerEntryModelFromDomain(runID int64, e *recon.LedgerEntry) *LedgerEntryModel {
	return &LedgerEntryModel{
		ID:          e.ID,
		RunID:       runID,
		Source:      e.Source,
		VendorID:    e.VendorID,
		VendorName:  e.VendorName,
		DocumentRef: e.DocumentRef,
		EntryDate:   e.EntryDate,
		Amount:      e.Amount,
		Status:      e.Status,
		ExtractedAt: e.ExtractedAt,
		InputIndex:  e.InputIndex,
	}
}

// MatchedPairModel is the persistence model for one pairing decision. Exactly
// one of the entry references is null for an orphan.
type MatchedPairModel struct {
	ID              uuid.UUID  `gorm:"type:uuid;primary_key"`
	RunID           int64      `gorm:"not null;index"`
	PayablesEntryID *uuid.UUID `gorm:"type:uuid;index"`
	LedgerEntryID   *uuid.UUID `gorm:"type:uuid;index"`
	CreatedAt       time.Time  `gorm:"not null"`
}

// TableName returns the table name for GORM
func (MatchedPairModel) TableName() string {
	return "recon_matched_pairs"
}

// MatchedPairModelFromDomain creates a persistence model from a domain pair.
func MatchedPairModelFromDomain(runID int64, p recon.MatchedPair) *MatchedPairModel {
	m := &MatchedPairModel{
		ID:    p.ID,
		RunID: runID,
	}
	if p.Payables != nil {
		id := p.Payables.ID
		m.PayablesEntryID = &id
	}
	if p.Ledger != nil {
		id := p.Ledger.ID
		m.LedgerEntryID = &id
	}
	return m
}

// ToDomain converts the persistence model to a domain MatchedPair. Entries are
// resolved through the supplied lookup of the run's canonical entries.
func (m *MatchedPairModel) ToDomain(entries map[uuid.UUID]*recon.LedgerEntry) recon.MatchedPair {
	pair := recon.MatchedPair{ID: m.ID}
	if m.PayablesEntryID != nil {
		pair.Payables = entries[*m.PayablesEntryID]
	}
	if m.LedgerEntryID != nil {
		pair.Ledger = entries[*m.LedgerEntryID]
	}
	return pair
}

// DiscrepancyModel is the persistence model for one prioritized discrepancy.
type DiscrepancyModel struct {
	ID           uuid.UUID             `gorm:"type:uuid;primary_key"`
	RunID        int64                 `gorm:"not null;index"`
	PairID       uuid.UUID             `gorm:"type:uuid;not null"`
	Kind         recon.DiscrepancyKind `gorm:"type:varchar(20);not null;index"`
	Delta        decimal.Decimal       `gorm:"type:decimal(18,2);not null"`
	AgeDays      int                   `gorm:"not null"`
	PriorityRank int                   `gorm:"not null;index"`
	IsNew        bool                  `gorm:"not null;default:false"`
	CreatedAt    time.Time             `gorm:"not null"`
}

// TableName returns the table name for GORM
func (DiscrepancyModel) TableName() string {
	return "recon_discrepancies"
}

// DiscrepancyModelFromDomain creates a persistence model from a domain
// discrepancy.
func DiscrepancyModelFromDomain(runID int64, d recon.Discrepancy) *DiscrepancyModel {
	return &DiscrepancyModel{
		ID:           d.ID,
		RunID:        runID,
		PairID:       d.Pair.ID,
		Kind:         d.Kind,
		Delta:        d.Delta,
		AgeDays:      d.AgeDays,
		PriorityRank: d.PriorityRank,
		IsNew:        d.IsNew,
	}
}

// ToDomain converts the persistence model to a domain Discrepancy. The pair is
// resolved through the supplied lookup of the run's pairs.
func (m *DiscrepancyModel) ToDomain(pairs map[uuid.UUID]recon.MatchedPair) recon.Discrepancy {
	return recon.Discrepancy{
		ID:           m.ID,
		Kind:         m.Kind,
		Pair:         pairs[m.PairID],
		Delta:        m.Delta,
		AgeDays:      m.AgeDays,
		PriorityRank: m.PriorityRank,
		IsNew:        m.IsNew,
	}
}
