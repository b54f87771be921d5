package store

import (
	"context"

	"github.com/stake-plus/netstate-gov/src/events"
	"github.com/stake-plus/netstate-gov/src/shared/gov"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type AnalysisRepository interface {
	List(ctx context.Context, proposalID string, page Page) ([]gov.AIAnalysis, error)
	Save(ctx context.Context, a *gov.AIAnalysis) error
}

type analysisRepository struct {
	repository
}

func NewAnalysisRepository(db *gorm.DB, pub events.Publisher, log *zap.SugaredLogger) AnalysisRepository {
	return &analysisRepository{repository: repository{db: db, pub: pub, log: log}}
}

func (r *analysisRepository) List(ctx context.Context, proposalID string, page Page) ([]gov.AIAnalysis, error) {
	q := r.db.WithContext(ctx).Order("created_at DESC")
	if proposalID != "" {
		q = q.Where("proposal_id = ?", proposalID)
	}

	rows := make([]gov.AIAnalysis, 0)
	if err := page.apply(q).Find(&rows).Error; err != nil {
		return nil, storageErr("list analyses", err)
	}
	return rows, nil
}

func (r *analysisRepository) Save(ctx context.Context, a *gov.AIAnalysis) error {
	if a.ID == "" {
		a.ID = newID()
	}
	if a.Reasoning == nil {
		a.Reasoning = gov.StringSlice{}
	}
	if err := r.db.WithContext(ctx).Create(a).Error; err != nil {
		return storageErr("save analysis", err)
	}
	r.publish(ctx, events.TableAIAnalyses, events.Insert, a.ID, a)
	return nil
}
