package store

import (
	"context"
	"fmt"
	"time"

	"github.com/stake-plus/netstate-gov/src/events"
	"github.com/stake-plus/netstate-gov/src/shared/gov"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type NetworkStateRepository interface {
	List(ctx context.Context) ([]gov.NetworkState, error)
	Create(ctx context.Context, s *gov.NetworkState) error
	// Partner records a partnership on both states in one transaction.
	Partner(ctx context.Context, from, to string) ([]gov.NetworkState, error)
}

type networkStateRepository struct {
	repository
}

func NewNetworkStateRepository(db *gorm.DB, pub events.Publisher, log *zap.SugaredLogger) NetworkStateRepository {
	return &networkStateRepository{repository: repository{db: db, pub: pub, log: log}}
}

func (r *networkStateRepository) List(ctx context.Context) ([]gov.NetworkState, error) {
	states := make([]gov.NetworkState, 0)
	if err := r.db.WithContext(ctx).Order("population DESC, name").Find(&states).Error; err != nil {
		return nil, storageErr("list network states", err)
	}
	return states, nil
}

func (r *networkStateRepository) Create(ctx context.Context, s *gov.NetworkState) error {
	if s.ID == "" {
		s.ID = newID()
	}
	if s.Partnerships == nil {
		s.Partnerships = gov.StringSlice{}
	}
	if err := r.db.WithContext(ctx).Create(s).Error; err != nil {
		return storageErr("create network state", err)
	}
	r.publish(ctx, events.TableNetworkStates, events.Insert, s.ID, s)
	return nil
}

func (r *networkStateRepository) Partner(ctx context.Context, from, to string) ([]gov.NetworkState, error) {
	if from == to {
		return nil, fmt.Errorf("%w: a network state cannot partner with itself", gov.ErrValidation)
	}

	var changed []gov.NetworkState
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var a, b gov.NetworkState
		if err := tx.Where("name = ?", from).First(&a).Error; err != nil {
			return lookupErr("network state", from, err)
		}
		if err := tx.Where("name = ?", to).First(&b).Error; err != nil {
			return lookupErr("network state", to, err)
		}

		now := time.Now().UTC()
		for _, pair := range [][2]*gov.NetworkState{{&a, &b}, {&b, &a}} {
			s, other := pair[0], pair[1]
			if s.HasPartner(other.Name) {
				continue
			}
			s.Partnerships = append(s.Partnerships, other.Name)
			err := tx.Model(&gov.NetworkState{}).
				Where("id = ?", s.ID).
				Updates(map[string]interface{}{"partnerships": s.Partnerships, "updated_at": now}).Error
			if err != nil {
				return storageErr("update partnerships", err)
			}
			s.UpdatedAt = now
			changed = append(changed, *s)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i := range changed {
		r.publish(ctx, events.TableNetworkStates, events.Update, changed[i].ID, changed[i])
	}
	return changed, nil
}
