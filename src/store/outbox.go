package store

import (
	"context"
	"fmt"

	"github.com/stake-plus/netstate-gov/src/shared/gov"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OutboxRepository persists on-chain attempts keyed by transaction hash until
// their off-chain mirror is written.
type OutboxRepository interface {
	// Enqueue stores e unless an entry with the same hash exists. It reports
	// whether a new row was written.
	Enqueue(ctx context.Context, e *gov.MirrorEntry) (bool, error)
	Get(ctx context.Context, txHash string) (*gov.MirrorEntry, error)
	// ListPending returns non-terminal entries, least recently checked first.
	ListPending(ctx context.Context, limit int) ([]gov.MirrorEntry, error)
	// Touch marks an entry as checked without changing its state.
	Touch(ctx context.Context, txHash string) error
	Transition(ctx context.Context, txHash string, state gov.AttemptState) error
	RecordFailure(ctx context.Context, txHash string, cause error) error
	CountByState(ctx context.Context) (map[gov.AttemptState]int64, error)
}

type outboxRepository struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func NewOutboxRepository(db *gorm.DB, log *zap.SugaredLogger) OutboxRepository {
	return &outboxRepository{db: db, log: log}
}

func (r *outboxRepository) Enqueue(ctx context.Context, e *gov.MirrorEntry) (bool, error) {
	if e.TxHash == "" {
		return false, fmt.Errorf("%w: outbox entry without tx hash", gov.ErrValidation)
	}
	if e.State == "" || e.State == gov.AttemptIdle {
		e.State = gov.AttemptSubmitted
	}
	e.VoterAddress = gov.NormalizeAddress(e.VoterAddress)

	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(e)
	if res.Error != nil {
		return false, storageErr("enqueue outbox entry", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *outboxRepository) Get(ctx context.Context, txHash string) (*gov.MirrorEntry, error) {
	var e gov.MirrorEntry
	if err := r.db.WithContext(ctx).Where("tx_hash = ?", txHash).First(&e).Error; err != nil {
		return nil, lookupErr("outbox entry", txHash, err)
	}
	return &e, nil
}

func (r *outboxRepository) ListPending(ctx context.Context, limit int) ([]gov.MirrorEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	var rows []gov.MirrorEntry
	err := r.db.WithContext(ctx).
		Where("state IN ?", []gov.AttemptState{gov.AttemptSubmitted, gov.AttemptConfirmed}).
		Order("updated_at").
		Order("tx_hash").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, storageErr("list outbox", err)
	}
	return rows, nil
}

func (r *outboxRepository) Touch(ctx context.Context, txHash string) error {
	err := r.db.WithContext(ctx).
		Model(&gov.MirrorEntry{}).
		Where("tx_hash = ?", txHash).
		Update("updated_at", r.db.NowFunc()).Error
	if err != nil {
		return storageErr("touch outbox entry", err)
	}
	return nil
}

func (r *outboxRepository) Transition(ctx context.Context, txHash string, state gov.AttemptState) error {
	updates := map[string]interface{}{"state": state, "updated_at": r.db.NowFunc()}
	if state == gov.AttemptMirrored {
		updates["last_error"] = ""
	}

	res := r.db.WithContext(ctx).Model(&gov.MirrorEntry{}).Where("tx_hash = ?", txHash).Updates(updates)
	if res.Error != nil {
		return storageErr("transition outbox entry", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: outbox entry %s", gov.ErrNotFound, txHash)
	}
	return nil
}

func (r *outboxRepository) RecordFailure(ctx context.Context, txHash string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}

	err := r.db.WithContext(ctx).
		Model(&gov.MirrorEntry{}).
		Where("tx_hash = ?", txHash).
		Updates(map[string]interface{}{
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": msg,
			"updated_at": r.db.NowFunc(),
		}).Error
	if err != nil {
		return storageErr("record outbox failure", err)
	}
	return nil
}

func (r *outboxRepository) CountByState(ctx context.Context) (map[gov.AttemptState]int64, error) {
	var rows []struct {
		State gov.AttemptState
		N     int64
	}
	err := r.db.WithContext(ctx).
		Model(&gov.MirrorEntry{}).
		Select("state, COUNT(*) AS n").
		Group("state").
		Scan(&rows).Error
	if err != nil {
		return nil, storageErr("count outbox", err)
	}

	out := make(map[gov.AttemptState]int64, len(rows))
	for _, row := range rows {
		out[row.State] = row.N
	}
	return out, nil
}
