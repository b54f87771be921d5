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

const (
	defaultCivicScore = 100
	defaultReputation = 50
)

type CitizenRepository interface {
	GetByWallet(ctx context.Context, wallet string) (*gov.Citizen, error)
	Create(ctx context.Context, c *gov.Citizen) error
	AddCivicPoints(ctx context.Context, wallet string, points int64) (*gov.Citizen, error)
	Count(ctx context.Context) (int64, error)
}

type citizenRepository struct {
	repository
}

func NewCitizenRepository(db *gorm.DB, pub events.Publisher, log *zap.SugaredLogger) CitizenRepository {
	return &citizenRepository{repository: repository{db: db, pub: pub, log: log}}
}

func (r *citizenRepository) GetByWallet(ctx context.Context, wallet string) (*gov.Citizen, error) {
	wallet = gov.NormalizeAddress(wallet)

	var c gov.Citizen
	if err := r.db.WithContext(ctx).Where("wallet_address = ?", wallet).First(&c).Error; err != nil {
		return nil, lookupErr("citizen", wallet, err)
	}
	return &c, nil
}

// Create issues a Civic ID. A wallet that already holds one is a validation error.
func (r *citizenRepository) Create(ctx context.Context, c *gov.Citizen) error {
	c.WalletAddress = gov.NormalizeAddress(c.WalletAddress)
	if c.ID == "" {
		c.ID = newID()
	}
	if c.CivicScore == 0 {
		c.CivicScore = defaultCivicScore
	}
	if c.Reputation == 0 {
		c.Reputation = defaultReputation
	}
	if c.Role == "" {
		c.Role = "Citizen"
	}
	if c.Residency == "" {
		c.Residency = "Digital"
	}

	var n int64
	if err := r.db.WithContext(ctx).Model(&gov.Citizen{}).Where("wallet_address = ?", c.WalletAddress).Count(&n).Error; err != nil {
		return storageErr("check citizen", err)
	}
	if n > 0 {
		return fmt.Errorf("%w: civic id already issued for %s", gov.ErrValidation, c.WalletAddress)
	}

	if err := r.db.WithContext(ctx).Create(c).Error; err != nil {
		return storageErr("create citizen", err)
	}
	r.publish(ctx, events.TableCitizens, events.Insert, c.ID, c)
	return nil
}

func (r *citizenRepository) AddCivicPoints(ctx context.Context, wallet string, points int64) (*gov.Citizen, error) {
	wallet = gov.NormalizeAddress(wallet)

	res := r.db.WithContext(ctx).
		Model(&gov.Citizen{}).
		Where("wallet_address = ?", wallet).
		Updates(map[string]interface{}{
			"civic_score": gorm.Expr("civic_score + ?", points),
			"updated_at":  time.Now().UTC(),
		})
	if res.Error != nil {
		return nil, storageErr("add civic points", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: citizen %s", gov.ErrNotFound, wallet)
	}

	c, err := r.GetByWallet(ctx, wallet)
	if err != nil {
		return nil, err
	}
	r.publish(ctx, events.TableCitizens, events.Update, c.ID, c)
	return c, nil
}

func (r *citizenRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&gov.Citizen{}).Count(&n).Error; err != nil {
		return 0, storageErr("count citizens", err)
	}
	return n, nil
}
