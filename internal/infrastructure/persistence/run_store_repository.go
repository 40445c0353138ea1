package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/recon/backend/internal/domain/recon"
	"github.com/recon/backend/internal/domain/shared"
	"github.com/recon/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormRunStore implements recon.RunStore using GORM
type GormRunStore struct {
	db *gorm.DB
}

// compile-time interface check
var _ recon.RunStore = (*GormRunStore)(nil)

// NewGormRunStore creates a new GormRunStore
func NewGormRunStore(db *gorm.DB) *GormRunStore {
	return &GormRunStore{db: db}
}

// BeginRun registers a new in-progress run. Fails when another run is already
// in progress so concurrent executions cannot interleave their output.
func (s *GormRunStore) BeginRun(ctx context.Context) (int64, error) {
	var runID int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.RunModel{}).
			Where("status = ?", recon.RunStatusInProgress).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return shared.ErrRunAlreadyInProgress
		}

		run := models.RunModel{
			ExecutedAt: time.Now().UTC(),
			Status:     recon.RunStatusInProgress,
		}
		if err := tx.Create(&run).Error; err != nil {
			return err
		}
		runID = run.RunID
		return nil
	})
	if err != nil {
		return 0, err
	}
	return runID, nil
}

// CommitRun atomically persists the run's full output and marks it committed.
// A failed commit rolls everything back and leaves the run in progress.
func (s *GormRunStore) CommitRun(ctx context.Context, runID int64, entries []recon.LedgerEntry, pairs []recon.MatchedPair, discrepancies []recon.Discrepancy) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var run models.RunModel
		if err := tx.First(&run, "run_id = ?", runID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return shared.ErrNotFound
			}
			return err
		}
		if run.Status != recon.RunStatusInProgress {
			return fmt.Errorf("run %d is %s, not in progress", runID, run.Status)
		}

		entryModels := make([]models.LedgerEntryModel, len(entries))
		for i := range entries {
			entryModels[i] = *models.LedgerEntryModelFromDomain(runID, &entries[i])
		}
		if len(entryModels) > 0 {
			if err := tx.CreateInBatches(entryModels, 500).Error; err != nil {
				return err
			}
		}

		pairModels := make([]models.MatchedPairModel, len(pairs))
		for i, p := range pairs {
			pairModels[i] = *models.MatchedPairModelFromDomain(runID, p)
		}
		if len(pairModels) > 0 {
			if err := tx.CreateInBatches(pairModels, 500).Error; err != nil {
				return err
			}
		}

		discModels := make([]models.DiscrepancyModel, len(discrepancies))
		for i, d := range discrepancies {
			discModels[i] = *models.DiscrepancyModelFromDomain(runID, d)
		}
		if len(discModels) > 0 {
			if err := tx.CreateInBatches(discModels, 500).Error; err != nil {
				return err
			}
		}

		return tx.Model(&run).Updates(map[string]any{
			"status":            recon.RunStatusCommitted,
			"entry_count":       len(entries),
			"discrepancy_count": len(discrepancies),
		}).Error
	})
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return err
		}
		return fmt.Errorf("%w: %v", shared.ErrCommitFailure, err)
	}
	return nil
}

// AbandonRun marks an in-progress run as abandoned. Committed runs are left
// untouched.
func (s *GormRunStore) AbandonRun(ctx context.Context, runID int64) error {
	result := s.db.WithContext(ctx).Model(&models.RunModel{}).
		Where("run_id = ? AND status = ?", runID, recon.RunStatusInProgress).
		Update("status", recon.RunStatusAbandoned)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := s.db.WithContext(ctx).Model(&models.RunModel{}).
			Where("run_id = ?", runID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return shared.ErrNotFound
		}
	}
	return nil
}

// GetRun returns a run's metadata.
func (s *GormRunStore) GetRun(ctx context.Context, runID int64) (*recon.RunRecord, error) {
	var model models.RunModel
	if err := s.db.WithContext(ctx).First(&model, "run_id = ?", runID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// GetPriorRun returns the most recently committed run, or nil when none
// exists yet.
func (s *GormRunStore) GetPriorRun(ctx context.Context) (*recon.RunRecord, error) {
	var model models.RunModel
	err := s.db.WithContext(ctx).
		Where("status = ?", recon.RunStatusCommitted).
		Order("run_id DESC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// ListRuns returns committed runs, newest first.
func (s *GormRunStore) ListRuns(ctx context.Context, limit int) ([]recon.RunRecord, error) {
	query := s.db.WithContext(ctx).Model(&models.RunModel{}).
		Where("status = ?", recon.RunStatusCommitted).
		Order("run_id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var runModels []models.RunModel
	if err := query.Find(&runModels).Error; err != nil {
		return nil, err
	}
	runs := make([]recon.RunRecord, len(runModels))
	for i, m := range runModels {
		runs[i] = *m.ToDomain()
	}
	return runs, nil
}

// ListDiscrepancies returns a committed run's discrepancies ordered by
// priority rank ascending, with their pairs and canonical entries rehydrated.
func (s *GormRunStore) ListDiscrepancies(ctx context.Context, runID int64) ([]recon.Discrepancy, error) {
	run, err := s.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !run.IsCommitted() {
		return nil, fmt.Errorf("run %d is %s: %w", runID, run.Status, shared.ErrNotFound)
	}

	entries, err := s.loadEntries(ctx, runID)
	if err != nil {
		return nil, err
	}
	pairs, err := s.loadPairs(ctx, runID, entries)
	if err != nil {
		return nil, err
	}

	var discModels []models.DiscrepancyModel
	if err := s.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("priority_rank ASC").
		Find(&discModels).Error; err != nil {
		return nil, err
	}

	discrepancies := make([]recon.Discrepancy, len(discModels))
	for i, m := range discModels {
		discrepancies[i] = m.ToDomain(pairs)
	}
	return discrepancies, nil
}

func (s *GormRunStore) loadEntries(ctx context.Context, runID int64) (map[uuid.UUID]*recon.LedgerEntry, error) {
	var entryModels []models.LedgerEntryModel
	if err := s.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Find(&entryModels).Error; err != nil {
		return nil, err
	}
	entries := make(map[uuid.UUID]*recon.LedgerEntry, len(entryModels))
	for i := range entryModels {
		entries[entryModels[i].ID] = entryModels[i].ToDomain()
	}
	return entries, nil
}

func (s *GormRunStore) loadPairs(ctx context.Context, runID int64, entries map[uuid.UUID]*recon.LedgerEntry) (map[uuid.UUID]recon.MatchedPair, error) {
	var pairModels []models.MatchedPairModel
	if err := s.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Find(&pairModels).Error; err != nil {
		return nil, err
	}
	pairs := make(map[uuid.UUID]recon.MatchedPair, len(pairModels))
	for _, m := range pairModels {
		pairs[m.ID] = m.ToDomain(entries)
	}
	return pairs, nil
}
