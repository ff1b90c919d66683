// Package repository is the gorm implementation of the event ledger.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ZhulikovN/platform-payment-sync/internal/clock"
	"github.com/ZhulikovN/platform-payment-sync/internal/eventlog/domain"
)

type RepositoryParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
}

type Repository struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
}

func New(p RepositoryParam) domain.Repository {
	return &Repository{
		db:    p.DB,
		log:   p.Log.Named("eventlog.repository"),
		genID: p.GenID,
		clock: p.Clock,
	}
}

func (r *Repository) InsertPending(ctx context.Context, record *domain.EventRecord) (bool, error) {
	if record.ID == 0 {
		record.ID = r.genID.Generate()
	}
	record.Status = domain.StatusPending
	record.CreatedAt = r.clock.Now().UTC()

	err := r.db.WithContext(ctx).Create(record).Error
	if err == nil {
		return true, nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return false, nil
	}
	return false, err
}

func (r *Repository) Get(ctx context.Context, paymentID string) (*domain.EventRecord, error) {
	var record domain.EventRecord
	err := r.db.WithContext(ctx).
		Where("payment_id = ?", paymentID).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *Repository) MarkProcessing(ctx context.Context, paymentID string) error {
	return r.updateByPaymentID(ctx, paymentID, map[string]any{
		"status": domain.StatusProcessing,
	})
}

func (r *Repository) MarkResult(ctx context.Context, paymentID string, result domain.Result) error {
	now := r.clock.Now().UTC()
	return r.updateByPaymentID(ctx, paymentID, map[string]any{
		"status":       result.Status,
		"contact_id":   result.ContactID,
		"lead_id":      result.LeadID,
		"pipeline_id":  result.PipelineID,
		"stage_id":     result.StageID,
		"lead_created": result.LeadCreated,
		"last_error":   result.Error,
		"processed_at": &now,
	})
}

func (r *Repository) BumpRetry(ctx context.Context, paymentID string) error {
	return r.updateByPaymentID(ctx, paymentID, map[string]any{
		"retry_count": gorm.Expr("retry_count + 1"),
	})
}

func (r *Repository) IsProcessed(ctx context.Context, paymentID string) (bool, error) {
	record, err := r.Get(ctx, paymentID)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return record.Status.Terminal(), nil
}

func (r *Repository) ListFailed(ctx context.Context, limit int) ([]domain.EventRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	var records []domain.EventRecord
	err := r.db.WithContext(ctx).
		Where("status = ?", domain.StatusFailed).
		Order("created_at ASC").
		Limit(limit).
		Find(&records).Error
	return records, err
}

func (r *Repository) Stats(ctx context.Context) (domain.Stats, error) {
	type row struct {
		Status domain.Status
		Count  int64
	}
	var rows []row
	err := r.db.WithContext(ctx).
		Model(&domain.EventRecord{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return domain.Stats{}, err
	}

	stats := domain.Stats{ByStatus: make(map[domain.Status]int64, len(rows))}
	for _, r := range rows {
		stats.ByStatus[r.Status] = r.Count
		stats.Total += r.Count
	}

	type successRow struct {
		LeadsCreated int64
		Amount       int64
	}
	var success successRow
	err = r.db.WithContext(ctx).
		Model(&domain.EventRecord{}).
		Select("COALESCE(SUM(CASE WHEN lead_created THEN 1 ELSE 0 END), 0) AS leads_created, COALESCE(SUM(amount), 0) AS amount").
		Where("status = ?", domain.StatusSuccess).
		Scan(&success).Error
	if err != nil {
		return domain.Stats{}, err
	}
	stats.LeadsCreated = success.LeadsCreated
	stats.SuccessAmount = success.Amount

	return stats, nil
}

func (r *Repository) Cleanup(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("created_at < ?", before.UTC()).
		Where("status IN ?", []domain.Status{domain.StatusSuccess, domain.StatusSkipped, domain.StatusDuplicate}).
		Delete(&domain.EventRecord{})
	if result.Error != nil {
		return 0, result.Error
	}
	r.log.Info("ledger cleanup",
		zap.Int64("removed", result.RowsAffected),
		zap.Time("before", before),
	)
	return result.RowsAffected, nil
}

func (r *Repository) updateByPaymentID(ctx context.Context, paymentID string, patch map[string]any) error {
	result := r.db.WithContext(ctx).
		Model(&domain.EventRecord{}).
		Where("payment_id = ?", paymentID).
		Updates(patch)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
