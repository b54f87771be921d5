// Package voting implements casting, removing and checking votes and creating
// proposals across the off-chain store and the on-chain ledger.
package voting

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stake-plus/netstate-gov/src/ledger"
	"github.com/stake-plus/netstate-gov/src/outbox"
	"github.com/stake-plus/netstate-gov/src/shared/gov"
	"github.com/stake-plus/netstate-gov/src/store"
	"github.com/stake-plus/netstate-gov/src/tally"
	"go.uber.org/zap"
)

// Eligibility sources.
const (
	SourceChain = "chain"
	SourceStore = "store"
)

type Service struct {
	store  *store.Store
	tally  *tally.Recomputer
	chain  ledger.Ledger
	outbox *outbox.Worker
	log    *zap.SugaredLogger
	now    func() time.Time
}

// NewService wires the service and registers its mirror handlers on w. chain may
// be nil, in which case only off-chain operations are available.
func NewService(s *store.Store, t *tally.Recomputer, chain ledger.Ledger, w *outbox.Worker, log *zap.SugaredLogger) *Service {
	svc := &Service{
		store:  s,
		tally:  t,
		chain:  chain,
		outbox: w,
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
	}
	w.Handle(gov.MirrorVote, svc.mirrorVote)
	w.Handle(gov.MirrorProposal, svc.mirrorProposal)
	return svc
}

type CastRequest struct {
	ProposalID string `json:"proposal_id"`
	Voter      string `json:"voter"`
	Support    bool   `json:"support"`
	Weight     uint64 `json:"weight"`
}

func (r *CastRequest) normalize() error {
	r.Voter = gov.NormalizeAddress(r.Voter)
	r.ProposalID = strings.TrimSpace(r.ProposalID)
	if r.ProposalID == "" {
		return fmt.Errorf("%w: proposal id is required", gov.ErrValidation)
	}
	if r.Voter == "" {
		return fmt.Errorf("%w: voter address is required", gov.ErrValidation)
	}
	if r.Weight == 0 {
		r.Weight = 1
	}
	if r.Weight > gov.MaxVoteWeight {
		return fmt.Errorf("%w: weight exceeds %d", gov.ErrValidation, gov.MaxVoteWeight)
	}
	return nil
}

type CastResult struct {
	Vote    *gov.Vote        `json:"vote,omitempty"`
	Updated bool             `json:"updated"`
	Tally   *gov.Tally       `json:"tally,omitempty"`
	TxHash  string           `json:"tx_hash,omitempty"`
	State   gov.AttemptState `json:"state,omitempty"`
	// Call is set when the vote still has to be signed by the voter's wallet.
	Call *ledger.Call `json:"call,omitempty"`
}

// CastOffChain records a vote on a proposal that is not anchored on-chain and
// recomputes its tally. When the recompute fails the vote stays durable and the
// error is returned; the reconcile job heals the tally.
func (s *Service) CastOffChain(ctx context.Context, req CastRequest) (*CastResult, error) {
	if err := req.normalize(); err != nil {
		return nil, err
	}

	p, err := s.store.Proposals.Get(ctx, req.ProposalID)
	if err != nil {
		return nil, err
	}
	if p.Anchored() {
		return nil, fmt.Errorf("%w: proposal %s is anchored on-chain, vote through the ledger", gov.ErrValidation, p.ID)
	}
	if !p.Open(s.now()) {
		return nil, fmt.Errorf("%w: voting on proposal %s is closed", gov.ErrValidation, p.ID)
	}

	v := &gov.Vote{ProposalID: p.ID, VoterAddress: req.Voter, Support: req.Support, Weight: req.Weight}
	updated, err := s.store.Votes.Upsert(ctx, v)
	if err != nil {
		return nil, err
	}

	res := &CastResult{Vote: v, Updated: updated}
	t, err := s.tally.Recompute(ctx, p.ID)
	if err != nil {
		s.log.Errorw("failed to recompute tally after vote", "proposal", p.ID, "voter", req.Voter, "error", err)
		return res, fmt.Errorf("vote recorded, tally not updated: %w", err)
	}
	res.Tally = &t
	return res, nil
}

// PrepareOnChainVote guards an anchored vote and returns the call the voter's
// wallet signs and sends. Nothing is submitted here: the contract attributes a
// vote to its sender, so the wallet submits and reports the hash through
// TrackOnChainVote. A voter the ledger already counts is refused.
func (s *Service) PrepareOnChainVote(ctx context.Context, req CastRequest) (*CastResult, error) {
	if err := req.normalize(); err != nil {
		return nil, err
	}

	p, err := s.anchoredOpen(ctx, req.ProposalID)
	if err != nil {
		return nil, err
	}

	voted, err := s.chainHasVoted(ctx, *p.BlockchainProposalID, req.Voter)
	if err != nil {
		return nil, err
	}
	if voted {
		return nil, fmt.Errorf("%w: %s on proposal %s", gov.ErrAlreadyVoted, req.Voter, p.ID)
	}

	call, err := s.chain.VoteCall(*p.BlockchainProposalID, req.Support, req.Weight)
	if err != nil {
		return nil, err
	}
	return &CastResult{State: gov.AttemptIdle, Call: &call}, nil
}

// TrackOnChainVote registers a vote transaction the voter's wallet submitted and
// drives it through the confirm and mirror path. The transaction must be a vote
// on this proposal sent to the Governance contract by the voter; support and
// weight are taken from the transaction, never from the request.
func (s *Service) TrackOnChainVote(ctx context.Context, txHash string, req CastRequest) (*CastResult, error) {
	if err := req.normalize(); err != nil {
		return nil, err
	}
	txHash, err := ledger.ParseTxHash(txHash)
	if err != nil {
		return nil, err
	}

	p, err := s.anchored(ctx, req.ProposalID)
	if err != nil {
		return nil, err
	}

	vt, err := s.chain.VoteFromTx(ctx, txHash)
	if err != nil {
		if errors.Is(err, gov.ErrValidation) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", gov.ErrTransactionFailed, err)
	}
	switch {
	case vt.From != req.Voter:
		return nil, fmt.Errorf("%w: transaction %s was sent by %s, not %s", gov.ErrValidation, txHash, vt.From, req.Voter)
	case vt.ProposalID != *p.BlockchainProposalID:
		return nil, fmt.Errorf("%w: transaction %s votes on chain proposal %d, not %d", gov.ErrValidation, txHash, vt.ProposalID, *p.BlockchainProposalID)
	case vt.Weight == 0 || vt.Weight > gov.MaxVoteWeight:
		return nil, fmt.Errorf("%w: transaction %s carries weight %d", gov.ErrValidation, txHash, vt.Weight)
	}

	e := gov.MirrorEntry{
		TxHash:       txHash,
		Kind:         gov.MirrorVote,
		State:        gov.AttemptSubmitted,
		ProposalID:   p.ID,
		VoterAddress: vt.From,
		Support:      vt.Support,
		Weight:       vt.Weight,
	}
	created, err := s.store.Outbox.Enqueue(ctx, &e)
	if err != nil {
		return nil, err
	}
	if !created {
		existing, err := s.store.Outbox.Get(ctx, txHash)
		if err != nil {
			return nil, err
		}
		if existing.Kind != gov.MirrorVote || existing.VoterAddress != vt.From {
			return nil, fmt.Errorf("%w: transaction %s is tracked for another attempt", gov.ErrValidation, txHash)
		}
		if existing.State.Terminal() {
			return s.voteResult(ctx, *existing, existing.State)
		}
		e = *existing
	}

	return s.awaitVote(ctx, e)
}

func (s *Service) awaitVote(ctx context.Context, e gov.MirrorEntry) (*CastResult, error) {
	state, err := s.await(ctx, e)
	if err != nil {
		return &CastResult{TxHash: e.TxHash, State: state}, err
	}
	return s.voteResult(ctx, e, state)
}

// await waits for the receipt and settles the entry. A wait that ends without a
// receipt leaves the entry Submitted, and a failed mirror leaves it Confirmed;
// the outbox worker finishes both. Only a revert is an error.
func (s *Service) await(ctx context.Context, e gov.MirrorEntry) (gov.AttemptState, error) {
	r, err := s.chain.WaitForReceipt(ctx, e.TxHash)
	if err != nil {
		s.log.Warnw("receipt wait ended, leaving transaction to the outbox", "tx", e.TxHash, "error", err)
		return gov.AttemptSubmitted, nil
	}

	// Settling must not be cut short by the caller going away after the
	// receipt arrived.
	state, err := s.outbox.Settle(context.WithoutCancel(ctx), e, r)
	if errors.Is(err, gov.ErrTransactionFailed) {
		return state, err
	}
	if err != nil {
		s.log.Warnw("mirror deferred to outbox", "tx", e.TxHash, "state", state, "error", err)
	}
	return state, nil
}

func (s *Service) voteResult(ctx context.Context, e gov.MirrorEntry, state gov.AttemptState) (*CastResult, error) {
	res := &CastResult{TxHash: e.TxHash, State: state}
	if state != gov.AttemptMirrored {
		return res, nil
	}

	if v, err := s.store.Votes.Find(ctx, e.ProposalID, e.VoterAddress); err == nil {
		res.Vote = v
	}
	if p, err := s.store.Proposals.Get(ctx, e.ProposalID); err == nil {
		t := gov.TallyOf(p)
		res.Tally = &t
	}
	return res, nil
}

// mirrorVote writes the confirmed vote into the off-chain ledger and recomputes.
// Running it twice leaves the same state.
func (s *Service) mirrorVote(ctx context.Context, e gov.MirrorEntry, _ *ledger.Receipt) error {
	hash := e.TxHash
	v := &gov.Vote{
		ProposalID:   e.ProposalID,
		VoterAddress: e.VoterAddress,
		Support:      e.Support,
		Weight:       e.Weight,
		TxHash:       &hash,
	}
	if _, err := s.store.Votes.Upsert(ctx, v); err != nil {
		return err
	}
	_, err := s.tally.Recompute(ctx, e.ProposalID)
	return err
}

// RemoveVote deletes an off-chain vote and recomputes. Confirmed on-chain votes
// are immutable and cannot be removed.
func (s *Service) RemoveVote(ctx context.Context, proposalID, voter string) (*gov.Tally, error) {
	voter = gov.NormalizeAddress(voter)
	if voter == "" {
		return nil, fmt.Errorf("%w: voter address is required", gov.ErrValidation)
	}

	p, err := s.store.Proposals.Get(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if p.Anchored() {
		return nil, fmt.Errorf("%w: votes on anchored proposal %s are immutable", gov.ErrValidation, p.ID)
	}

	v, err := s.store.Votes.Find(ctx, p.ID, voter)
	if err != nil {
		return nil, err
	}
	if v.TxHash != nil {
		return nil, fmt.Errorf("%w: vote was confirmed on-chain in %s", gov.ErrValidation, *v.TxHash)
	}

	if _, err := s.store.Votes.Delete(ctx, p.ID, voter); err != nil {
		return nil, err
	}

	t, err := s.tally.Recompute(ctx, p.ID)
	if err != nil {
		s.log.Errorw("failed to recompute tally after vote removal", "proposal", p.ID, "voter", voter, "error", err)
		return nil, fmt.Errorf("vote removed, tally not updated: %w", err)
	}
	return &t, nil
}

type Eligibility struct {
	Voted   bool   `json:"voted"`
	Support *bool  `json:"support,omitempty"`
	Source  string `json:"source"`
}

// HasVoted answers with one rule: an anchored proposal asks the ledger, the
// off-chain row only supplies the cached support; otherwise the off-chain row
// decides.
func (s *Service) HasVoted(ctx context.Context, proposalID, voter string) (*Eligibility, error) {
	voter = gov.NormalizeAddress(voter)

	p, err := s.store.Proposals.Get(ctx, proposalID)
	if err != nil {
		return nil, err
	}

	row, err := s.store.Votes.Find(ctx, p.ID, voter)
	if err != nil && !errors.Is(err, gov.ErrNotFound) {
		return nil, err
	}

	if !p.Anchored() {
		out := &Eligibility{Voted: row != nil, Source: SourceStore}
		if row != nil {
			out.Support = &row.Support
		}
		return out, nil
	}

	if s.chain == nil {
		return nil, fmt.Errorf("%w: proposal %s is anchored but no ledger is configured", gov.ErrTransactionFailed, p.ID)
	}
	voted, err := s.chainHasVoted(ctx, *p.BlockchainProposalID, voter)
	if err != nil {
		return nil, err
	}

	out := &Eligibility{Voted: voted, Source: SourceChain}
	if voted && row != nil {
		out.Support = &row.Support
	}
	return out, nil
}

func (s *Service) chainHasVoted(ctx context.Context, chainID uint64, voter string) (bool, error) {
	voted, err := s.chain.HasVoted(ctx, chainID, voter)
	if err == nil || errors.Is(err, gov.ErrValidation) {
		return voted, err
	}
	return false, fmt.Errorf("%w: has-voted check: %w", gov.ErrTransactionFailed, err)
}

func (s *Service) anchored(ctx context.Context, proposalID string) (*gov.Proposal, error) {
	if s.chain == nil {
		return nil, fmt.Errorf("%w: no ledger configured", gov.ErrValidation)
	}
	p, err := s.store.Proposals.Get(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if !p.Anchored() {
		return nil, fmt.Errorf("%w: proposal %s is not anchored on-chain, vote off-chain", gov.ErrValidation, p.ID)
	}
	return p, nil
}

func (s *Service) anchoredOpen(ctx context.Context, proposalID string) (*gov.Proposal, error) {
	p, err := s.anchored(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if !p.Open(s.now()) {
		return nil, fmt.Errorf("%w: voting on proposal %s is closed", gov.ErrValidation, p.ID)
	}
	return p, nil
}
