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

type ProposalFilter struct {
	Status *gov.ProposalStatus
	Page
}

type ProposalRepository interface {
	Create(ctx context.Context, p *gov.Proposal) error
	Get(ctx context.Context, id string) (*gov.Proposal, error)
	GetByChainID(ctx context.Context, chainID uint64) (*gov.Proposal, error)
	List(ctx context.Context, f ProposalFilter) ([]gov.Proposal, error)
	ListIDs(ctx context.Context, status *gov.ProposalStatus) ([]string, error)
	ListEnded(ctx context.Context, now time.Time) ([]gov.Proposal, error)
	// UpdateTally writes t only if the stored tally version still equals
	// expectedVersion. It reports whether the row was written.
	UpdateTally(ctx context.Context, id string, expectedVersion uint64, t gov.Tally) (bool, error)
	SetStatus(ctx context.Context, id string, status gov.ProposalStatus) error
	CountByStatus(ctx context.Context, status gov.ProposalStatus) (int64, error)
}

type proposalRepository struct {
	repository
}

func NewProposalRepository(db *gorm.DB, pub events.Publisher, log *zap.SugaredLogger) ProposalRepository {
	return &proposalRepository{repository: repository{db: db, pub: pub, log: log}}
}

func (r *proposalRepository) Create(ctx context.Context, p *gov.Proposal) error {
	if p.ID == "" {
		p.ID = newID()
	}
	p.ProposerAddress = gov.NormalizeAddress(p.ProposerAddress)
	p.StartTime, p.EndTime = p.StartTime.UTC(), p.EndTime.UTC()
	p.VotesFor, p.VotesAgainst, p.TotalParticipants, p.TallyVersion = 0, 0, 0, 0

	if err := r.db.WithContext(ctx).Create(p).Error; err != nil {
		return storageErr("create proposal", err)
	}
	r.publish(ctx, events.TableProposals, events.Insert, p.ID, p)
	return nil
}

func (r *proposalRepository) Get(ctx context.Context, id string) (*gov.Proposal, error) {
	var p gov.Proposal
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, lookupErr("proposal", id, err)
	}
	return &p, nil
}

func (r *proposalRepository) GetByChainID(ctx context.Context, chainID uint64) (*gov.Proposal, error) {
	var p gov.Proposal
	err := r.db.WithContext(ctx).Where("blockchain_proposal_id = ?", chainID).First(&p).Error
	if err != nil {
		return nil, lookupErr("proposal with chain id", fmt.Sprint(chainID), err)
	}
	return &p, nil
}

func (r *proposalRepository) List(ctx context.Context, f ProposalFilter) ([]gov.Proposal, error) {
	q := r.db.WithContext(ctx).Model(&gov.Proposal{})
	if f.Status != nil {
		q = q.Where("status = ?", *f.Status)
	}

	proposals := make([]gov.Proposal, 0)
	if err := f.Page.apply(q.Order("created_at DESC")).Find(&proposals).Error; err != nil {
		return nil, storageErr("list proposals", err)
	}
	return proposals, nil
}

func (r *proposalRepository) ListIDs(ctx context.Context, status *gov.ProposalStatus) ([]string, error) {
	q := r.db.WithContext(ctx).Model(&gov.Proposal{})
	if status != nil {
		q = q.Where("status = ?", *status)
	}

	var ids []string
	if err := q.Order("created_at").Pluck("id", &ids).Error; err != nil {
		return nil, storageErr("list proposal ids", err)
	}
	return ids, nil
}

func (r *proposalRepository) ListEnded(ctx context.Context, now time.Time) ([]gov.Proposal, error) {
	var rows []gov.Proposal
	err := r.db.WithContext(ctx).
		Where("status = ? AND end_time <= ?", gov.StatusActive, now.UTC()).
		Order("end_time").
		Find(&rows).Error
	if err != nil {
		return nil, storageErr("list ended proposals", err)
	}

	ended := rows[:0]
	for _, p := range rows {
		if !p.EndTime.IsZero() {
			ended = append(ended, p)
		}
	}
	return ended, nil
}

func (r *proposalRepository) UpdateTally(ctx context.Context, id string, expectedVersion uint64, t gov.Tally) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&gov.Proposal{}).
		Where("id = ? AND tally_version = ?", id, expectedVersion).
		Updates(map[string]interface{}{
			"votes_for":          t.VotesFor,
			"votes_against":      t.VotesAgainst,
			"total_participants": t.TotalParticipants,
			"tally_version":      expectedVersion + 1,
			"updated_at":         time.Now().UTC(),
		})
	if res.Error != nil {
		return false, storageErr("update tally", res.Error)
	}
	if res.RowsAffected == 0 {
		return false, nil
	}

	r.publish(ctx, events.TableProposals, events.Update, id, map[string]interface{}{
		"id":                 id,
		"votes_for":          t.VotesFor,
		"votes_against":      t.VotesAgainst,
		"total_participants": t.TotalParticipants,
	})
	return true, nil
}

func (r *proposalRepository) SetStatus(ctx context.Context, id string, status gov.ProposalStatus) error {
	res := r.db.WithContext(ctx).
		Model(&gov.Proposal{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"status": status, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return storageErr("set proposal status", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: proposal %s", gov.ErrNotFound, id)
	}

	r.publish(ctx, events.TableProposals, events.Update, id, map[string]interface{}{"id": id, "status": status})
	return nil
}

func (r *proposalRepository) CountByStatus(ctx context.Context, status gov.ProposalStatus) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&gov.Proposal{}).Where("status = ?", status).Count(&n).Error; err != nil {
		return 0, storageErr("count proposals", err)
	}
	return n, nil
}
