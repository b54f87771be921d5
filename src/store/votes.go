package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stake-plus/netstate-gov/src/events"
	"github.com/stake-plus/netstate-gov/src/shared/gov"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type VoteRepository interface {
	Find(ctx context.Context, proposalID, voter string) (*gov.Vote, error)
	// Upsert writes v under its (proposal, voter) identity and reports whether an
	// existing row was updated in place.
	Upsert(ctx context.Context, v *gov.Vote) (bool, error)
	Delete(ctx context.Context, proposalID, voter string) (*gov.Vote, error)
	ListByProposal(ctx context.Context, proposalID string) ([]gov.Vote, error)
	Count(ctx context.Context) (int64, error)
	CountVotersSince(ctx context.Context, since time.Time) (int64, error)
}

type voteRepository struct {
	repository
}

func NewVoteRepository(db *gorm.DB, pub events.Publisher, log *zap.SugaredLogger) VoteRepository {
	return &voteRepository{repository: repository{db: db, pub: pub, log: log}}
}

func (r *voteRepository) Find(ctx context.Context, proposalID, voter string) (*gov.Vote, error) {
	voter = gov.NormalizeAddress(voter)

	var v gov.Vote
	err := r.db.WithContext(ctx).
		Where("proposal_id = ? AND voter_address = ?", proposalID, voter).
		First(&v).Error
	if err != nil {
		return nil, lookupErr("vote", proposalID+"/"+voter, err)
	}
	return &v, nil
}

func (r *voteRepository) Upsert(ctx context.Context, v *gov.Vote) (bool, error) {
	v.VoterAddress = gov.NormalizeAddress(v.VoterAddress)
	if v.Weight == 0 {
		v.Weight = 1
	}
	now := time.Now().UTC()

	existing, err := r.Find(ctx, v.ProposalID, v.VoterAddress)
	switch {
	case err == nil:
		res := r.db.WithContext(ctx).
			Model(&gov.Vote{}).
			Where("proposal_id = ? AND voter_address = ?", v.ProposalID, v.VoterAddress).
			Updates(map[string]interface{}{
				"support":    v.Support,
				"weight":     v.Weight,
				"tx_hash":    v.TxHash,
				"updated_at": now,
			})
		if res.Error != nil {
			return false, storageErr("update vote", res.Error)
		}
		v.ID, v.CreatedAt, v.UpdatedAt = existing.ID, existing.CreatedAt, now
		r.publish(ctx, events.TableVotes, events.Update, v.ID, v)
		return true, nil

	case errors.Is(err, gov.ErrNotFound):
		if v.ID == "" {
			v.ID = newID()
		}
		v.CreatedAt, v.UpdatedAt = now, now
		// A concurrent first vote by the same voter lands on the unique index and
		// turns into an update.
		err := r.db.WithContext(ctx).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "proposal_id"}, {Name: "voter_address"}},
				DoUpdates: clause.AssignmentColumns([]string{"support", "weight", "tx_hash", "updated_at"}),
			}).
			Create(v).Error
		if err != nil {
			return false, storageErr("insert vote", err)
		}
		r.publish(ctx, events.TableVotes, events.Insert, v.ID, v)
		return false, nil

	default:
		return false, err
	}
}

func (r *voteRepository) Delete(ctx context.Context, proposalID, voter string) (*gov.Vote, error) {
	v, err := r.Find(ctx, proposalID, voter)
	if err != nil {
		return nil, err
	}

	res := r.db.WithContext(ctx).Where("id = ?", v.ID).Delete(&gov.Vote{})
	if res.Error != nil {
		return nil, storageErr("delete vote", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: vote %s/%s", gov.ErrNotFound, proposalID, v.VoterAddress)
	}

	r.publish(ctx, events.TableVotes, events.Delete, v.ID, v)
	return v, nil
}

func (r *voteRepository) ListByProposal(ctx context.Context, proposalID string) ([]gov.Vote, error) {
	votes := make([]gov.Vote, 0)
	err := r.db.WithContext(ctx).
		Where("proposal_id = ?", proposalID).
		Order("created_at").
		Find(&votes).Error
	if err != nil {
		return nil, storageErr("list votes", err)
	}
	return votes, nil
}

func (r *voteRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&gov.Vote{}).Count(&n).Error; err != nil {
		return 0, storageErr("count votes", err)
	}
	return n, nil
}

func (r *voteRepository) CountVotersSince(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&gov.Vote{}).
		Where("updated_at >= ?", since.UTC()).
		Distinct("voter_address").
		Count(&n).Error
	if err != nil {
		return 0, storageErr("count recent voters", err)
	}
	return n, nil
}
