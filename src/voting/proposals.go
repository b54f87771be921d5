package voting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stake-plus/netstate-gov/src/ledger"
	"github.com/stake-plus/netstate-gov/src/shared/gov"
)

const (
	defaultDurationDays = 7
	maxDurationDays     = 365
	defaultCategory     = "Governance"
)

type CreateRequest struct {
	Title        string         `json:"title"`
	Description  string         `json:"description"`
	Category     string         `json:"category"`
	VotingType   gov.VotingType `json:"voting_type"`
	DurationDays int            `json:"duration_days"`
	Proposer     string         `json:"-"`
	// Anchor submits the proposal on-chain first and writes it off-chain once
	// the creation transaction is confirmed.
	Anchor bool `json:"anchor"`
}

func (r *CreateRequest) normalize() error {
	r.Title = strings.TrimSpace(r.Title)
	r.Description = strings.TrimSpace(r.Description)
	r.Category = strings.TrimSpace(r.Category)
	r.Proposer = gov.NormalizeAddress(r.Proposer)

	switch {
	case r.Title == "":
		return fmt.Errorf("%w: title is required", gov.ErrValidation)
	case r.Description == "":
		return fmt.Errorf("%w: description is required", gov.ErrValidation)
	case r.Proposer == "":
		return fmt.Errorf("%w: proposer address is required", gov.ErrValidation)
	case !r.VotingType.Valid():
		return fmt.Errorf("%w: unknown voting type %d", gov.ErrValidation, r.VotingType)
	case r.DurationDays < 0 || r.DurationDays > maxDurationDays:
		return fmt.Errorf("%w: duration must be between 1 and %d days", gov.ErrValidation, maxDurationDays)
	}

	if r.DurationDays == 0 {
		r.DurationDays = defaultDurationDays
	}
	if r.Category == "" {
		r.Category = defaultCategory
	}
	return nil
}

type CreateResult struct {
	Proposal *gov.Proposal    `json:"proposal,omitempty"`
	TxHash   string           `json:"tx_hash,omitempty"`
	State    gov.AttemptState `json:"state,omitempty"`
}

// proposalPayload is the outbox copy of a proposal waiting for its anchoring
// transaction.
type proposalPayload struct {
	ID        string               `json:"id"`
	Draft     ledger.ProposalDraft `json:"draft"`
	StartTime time.Time            `json:"start_time"`
	EndTime   time.Time            `json:"end_time"`
}

// CreateProposal writes the proposal off-chain, or with Anchor set submits it
// on-chain first and writes it only after confirmation. When the off-chain
// write fails after confirmation the draft stays in the outbox and an
// ErrStorage error is returned; the proposal is absent from listings until the
// worker writes it.
func (s *Service) CreateProposal(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	if err := req.normalize(); err != nil {
		return nil, err
	}

	now := s.now()
	payload := proposalPayload{
		ID: uuid.NewString(),
		Draft: ledger.ProposalDraft{
			Title:           req.Title,
			Description:     req.Description,
			Category:        req.Category,
			VotingType:      req.VotingType,
			DurationSeconds: uint64(req.DurationDays) * 24 * 3600,
			Proposer:        req.Proposer,
		},
		StartTime: now,
		EndTime:   now.Add(time.Duration(req.DurationDays) * 24 * time.Hour),
	}

	if !req.Anchor {
		p := payload.proposal(nil)
		if err := s.store.Proposals.Create(ctx, p); err != nil {
			return nil, err
		}
		return &CreateResult{Proposal: p}, nil
	}

	if s.chain == nil {
		return nil, fmt.Errorf("%w: no ledger configured to anchor proposals", gov.ErrValidation)
	}

	hash, err := s.chain.CreateProposal(ctx, payload.Draft)
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode proposal payload: %w", err)
	}
	e := gov.MirrorEntry{
		TxHash:       hash,
		Kind:         gov.MirrorProposal,
		State:        gov.AttemptSubmitted,
		ProposalID:   payload.ID,
		VoterAddress: req.Proposer,
		Payload:      string(raw),
	}
	if _, err := s.store.Outbox.Enqueue(ctx, &e); err != nil {
		s.log.Errorw("failed to enqueue proposal transaction", "tx", hash, "error", err)
		return s.createUntracked(ctx, e)
	}

	state, err := s.await(ctx, e)
	res := &CreateResult{TxHash: hash, State: state}
	if err != nil {
		return res, err
	}

	switch state {
	case gov.AttemptMirrored:
		p, err := s.store.Proposals.Get(ctx, payload.ID)
		if err != nil {
			return res, err
		}
		res.Proposal = p
		return res, nil
	case gov.AttemptConfirmed:
		return res, fmt.Errorf("%w: proposal anchored in %s but not stored yet, queued for retry", gov.ErrStorage, hash)
	}
	return res, nil
}

// createUntracked finishes an anchored creation whose outbox entry could not be
// written, so there is nothing for the worker to retry.
func (s *Service) createUntracked(ctx context.Context, e gov.MirrorEntry) (*CreateResult, error) {
	res := &CreateResult{TxHash: e.TxHash, State: gov.AttemptSubmitted}

	r, err := s.chain.WaitForReceipt(ctx, e.TxHash)
	if err != nil {
		return res, fmt.Errorf("%w: proposal transaction %s not tracked: %w", gov.ErrStorage, e.TxHash, err)
	}
	if !r.Confirmed() {
		res.State = gov.AttemptFailed
		return res, fmt.Errorf("%w: %s reverted", gov.ErrTransactionFailed, e.TxHash)
	}

	res.State = gov.AttemptConfirmed
	if err := s.mirrorProposal(ctx, e, r); err != nil {
		s.log.Errorw("anchored proposal has no off-chain record", "tx", e.TxHash, "error", err)
		return res, err
	}

	res.State = gov.AttemptMirrored
	p, err := s.store.Proposals.Get(ctx, e.ProposalID)
	if err != nil {
		return res, err
	}
	res.Proposal = p
	return res, nil
}

// mirrorProposal writes the off-chain record of a confirmed creation. The
// on-chain identifier comes from the ProposalCreated event; receipts without it
// fall back to the proposal count, which is only safe without concurrent
// creators.
func (s *Service) mirrorProposal(ctx context.Context, e gov.MirrorEntry, r *ledger.Receipt) error {
	var payload proposalPayload
	if err := json.Unmarshal([]byte(e.Payload), &payload); err != nil {
		return fmt.Errorf("decode proposal payload %s: %w", e.TxHash, err)
	}

	if _, err := s.store.Proposals.Get(ctx, payload.ID); err == nil {
		return nil
	} else if !errors.Is(err, gov.ErrNotFound) {
		return err
	}

	chainID, ok := s.chain.ProposalIDFromReceipt(r)
	if !ok {
		count, err := s.chain.ProposalCount(ctx)
		if err != nil {
			return fmt.Errorf("%w: read proposal count: %w", gov.ErrTransactionFailed, err)
		}
		if count == 0 {
			return fmt.Errorf("%w: proposal count is zero after confirmed creation %s", gov.ErrTransactionFailed, e.TxHash)
		}
		chainID = count - 1
		s.log.Warnw("creation receipt has no ProposalCreated event, inferring id from count",
			"tx", e.TxHash, "chain_id", chainID)
	}

	if existing, err := s.store.Proposals.GetByChainID(ctx, chainID); err == nil {
		return fmt.Errorf("%w: chain id %d already belongs to proposal %s", gov.ErrStorage, chainID, existing.ID)
	} else if !errors.Is(err, gov.ErrNotFound) {
		return err
	}

	return s.store.Proposals.Create(ctx, payload.proposal(&chainID))
}

func (p proposalPayload) proposal(chainID *uint64) *gov.Proposal {
	return &gov.Proposal{
		ID:                   p.ID,
		BlockchainProposalID: chainID,
		Title:                p.Draft.Title,
		Description:          p.Draft.Description,
		ProposerAddress:      p.Draft.Proposer,
		Category:             p.Draft.Category,
		VotingType:           p.Draft.VotingType,
		Status:               gov.StatusActive,
		StartTime:            p.StartTime,
		EndTime:              p.EndTime,
	}
}

// FinalizeEnded closes every Active proposal whose voting window has passed.
// The tally is recomputed first so the outcome never rests on stale counters.
func (s *Service) FinalizeEnded(ctx context.Context) (int, error) {
	ended, err := s.store.Proposals.ListEnded(ctx, s.now())
	if err != nil {
		return 0, err
	}

	closed := 0
	for _, p := range ended {
		t, err := s.tally.Recompute(ctx, p.ID)
		if err != nil {
			s.log.Errorw("failed to recompute tally before finalizing", "proposal", p.ID, "error", err)
			continue
		}

		status := gov.Outcome(t)
		if err := s.store.Proposals.SetStatus(ctx, p.ID, status); err != nil {
			s.log.Errorw("failed to finalize proposal", "proposal", p.ID, "error", err)
			continue
		}
		closed++
		s.log.Infow("proposal finalized", "proposal", p.ID, "status", status.String(),
			"votes_for", t.VotesFor, "votes_against", t.VotesAgainst)
	}
	return closed, nil
}
