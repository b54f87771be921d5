package store

import (
	"context"

	"github.com/stake-plus/netstate-gov/src/events"
	"github.com/stake-plus/netstate-gov/src/shared/gov"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ActivityRepository interface {
	ListByUser(ctx context.Context, user string, page Page) ([]gov.Activity, error)
	Record(ctx context.Context, a *gov.Activity) error
	TotalPoints(ctx context.Context, user string) (int64, error)
}

type activityRepository struct {
	repository
}

func NewActivityRepository(db *gorm.DB, pub events.Publisher, log *zap.SugaredLogger) ActivityRepository {
	return &activityRepository{repository: repository{db: db, pub: pub, log: log}}
}

func (r *activityRepository) ListByUser(ctx context.Context, user string, page Page) ([]gov.Activity, error) {
	rows := make([]gov.Activity, 0)
	q := r.db.WithContext(ctx).
		Where("user_address = ?", gov.NormalizeAddress(user)).
		Order("created_at DESC")
	if err := page.apply(q).Find(&rows).Error; err != nil {
		return nil, storageErr("list activities", err)
	}
	return rows, nil
}

// Record stores a verified participation record.
func (r *activityRepository) Record(ctx context.Context, a *gov.Activity) error {
	if a.ID == "" {
		a.ID = newID()
	}
	a.UserAddress = gov.NormalizeAddress(a.UserAddress)
	a.Verified = true

	if err := r.db.WithContext(ctx).Create(a).Error; err != nil {
		return storageErr("record activity", err)
	}
	r.publish(ctx, events.TableActivities, events.Insert, a.ID, a)
	return nil
}

func (r *activityRepository) TotalPoints(ctx context.Context, user string) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&gov.Activity{}).
		Where("user_address = ?", gov.NormalizeAddress(user)).
		Select("COALESCE(SUM(points), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, storageErr("sum activity points", err)
	}
	return total, nil
}
