// Package tally keeps the stored proposal aggregates equal to a recomputation
// over the current vote rows.
package tally

import (
	"context"
	"fmt"

	"github.com/stake-plus/netstate-gov/src/shared/gov"
	"github.com/stake-plus/netstate-gov/src/store"
	"go.uber.org/zap"
)

const defaultMaxRetries = 5

type Recomputer struct {
	proposals  store.ProposalRepository
	votes      store.VoteRepository
	maxRetries int
	log        *zap.SugaredLogger
}

func NewRecomputer(proposals store.ProposalRepository, votes store.VoteRepository, maxRetries int, log *zap.SugaredLogger) *Recomputer {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	return &Recomputer{proposals: proposals, votes: votes, maxRetries: maxRetries, log: log}
}

// Recompute reads the vote set, aggregates it and writes the counters guarded by
// the proposal's tally version. A concurrent writer bumps the version, so the
// whole read-aggregate-write is repeated against the newer vote set.
func (r *Recomputer) Recompute(ctx context.Context, proposalID string) (gov.Tally, error) {
	for attempt := 1; attempt <= r.maxRetries; attempt++ {
		// The version must be read before the votes; reading it after could pair
		// an old vote set with a newer version.
		p, err := r.proposals.Get(ctx, proposalID)
		if err != nil {
			return gov.Tally{}, err
		}

		votes, err := r.votes.ListByProposal(ctx, proposalID)
		if err != nil {
			return gov.Tally{}, err
		}

		t, err := gov.ComputeTally(votes)
		if err != nil {
			return gov.Tally{}, err
		}
		written, err := r.proposals.UpdateTally(ctx, proposalID, p.TallyVersion, t)
		if err != nil {
			return gov.Tally{}, err
		}
		if written {
			return t, nil
		}

		r.log.Debugw("tally version conflict", "proposal", proposalID, "attempt", attempt)
		if err := ctx.Err(); err != nil {
			return gov.Tally{}, err
		}
	}

	return gov.Tally{}, fmt.Errorf("%w: tally for %s kept conflicting after %d attempts", gov.ErrStorage, proposalID, r.maxRetries)
}

// ReconcileAll recomputes every proposal and returns how many failed. Used by the
// periodic job to heal tallies left stale by a failed recompute.
func (r *Recomputer) ReconcileAll(ctx context.Context) (int, error) {
	ids, err := r.proposals.ListIDs(ctx, nil)
	if err != nil {
		return 0, err
	}

	failed := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			return failed, ctx.Err()
		}
		if _, err := r.Recompute(ctx, id); err != nil {
			failed++
			r.log.Errorw("failed to reconcile tally", "proposal", id, "error", err)
		}
	}
	r.log.Infow("tallies reconciled", "proposals", len(ids), "failed", failed)
	return failed, nil
}
