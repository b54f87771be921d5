package store

import (
	"context"
	"testing"
	"time"

	"github.com/stake-plus/netstate-gov/src/data/datatest"
	"github.com/stake-plus/netstate-gov/src/events"
	"github.com/stake-plus/netstate-gov/src/shared/gov"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recorder struct {
	changes []events.Change
}

func (r *recorder) Publish(_ context.Context, c events.Change) error {
	r.changes = append(r.changes, c)
	return nil
}

func newTestStore(t *testing.T) (*Store, *recorder) {
	rec := &recorder{}
	return New(datatest.Open(t), rec, zap.NewNop().Sugar()), rec
}

func seedProposal(t *testing.T, s *Store) *gov.Proposal {
	t.Helper()
	now := time.Now().UTC()
	p := &gov.Proposal{
		Title:           "Fund the commons",
		Description:     "Allocate treasury to public goods",
		ProposerAddress: "0xABCDEF",
		StartTime:       now,
		EndTime:         now.Add(7 * 24 * time.Hour),
	}
	require.NoError(t, s.Proposals.Create(context.Background(), p))
	return p
}

func TestProposals_CreateGetList(t *testing.T) {
	ctx := context.Background()
	s, rec := newTestStore(t)

	p := seedProposal(t, s)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "0xabcdef", p.ProposerAddress)

	got, err := s.Proposals.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Fund the commons", got.Title)
	assert.Equal(t, "Governance", got.Category)
	assert.False(t, got.Anchored())

	_, err = s.Proposals.Get(ctx, "missing")
	assert.ErrorIs(t, err, gov.ErrNotFound)

	list, err := s.Proposals.List(ctx, ProposalFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.Len(t, rec.changes, 1)
	assert.Equal(t, events.TableProposals, rec.changes[0].Table)
	assert.Equal(t, events.Insert, rec.changes[0].Type)
}

func TestProposals_GetByChainID(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	chainID := uint64(7)
	p := &gov.Proposal{Title: "t", Description: "d", ProposerAddress: "0x1", BlockchainProposalID: &chainID}
	require.NoError(t, s.Proposals.Create(ctx, p))

	got, err := s.Proposals.GetByChainID(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
	assert.True(t, got.Anchored())

	_, err = s.Proposals.GetByChainID(ctx, 8)
	assert.ErrorIs(t, err, gov.ErrNotFound)
}

func TestProposals_UpdateTallyVersionGuard(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	p := seedProposal(t, s)

	ok, err := s.Proposals.UpdateTally(ctx, p.ID, 0, gov.Tally{VotesFor: 2, TotalParticipants: 1})
	require.NoError(t, err)
	assert.True(t, ok)

	// stale version loses
	ok, err = s.Proposals.UpdateTally(ctx, p.ID, 0, gov.Tally{VotesFor: 9})
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := s.Proposals.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), got.VotesFor)
	assert.Equal(t, uint64(1), got.TallyVersion)
}

func TestProposals_ListEndedAndStatus(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	past := time.Now().UTC().Add(-time.Hour)
	ended := &gov.Proposal{Title: "old", Description: "d", ProposerAddress: "0x1", StartTime: past.Add(-time.Hour), EndTime: past}
	require.NoError(t, s.Proposals.Create(ctx, ended))
	seedProposal(t, s)

	rows, err := s.Proposals.ListEnded(ctx, time.Now())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, ended.ID, rows[0].ID)

	require.NoError(t, s.Proposals.SetStatus(ctx, ended.ID, gov.StatusPassed))
	n, err := s.Proposals.CountByStatus(ctx, gov.StatusActive)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	assert.ErrorIs(t, s.Proposals.SetStatus(ctx, "missing", gov.StatusPassed), gov.ErrNotFound)

	active := gov.StatusActive
	ids, err := s.Proposals.ListIDs(ctx, &active)
	require.NoError(t, err)
	assert.Len(t, ids, 1)
}

func TestVotes_UpsertByIdentity(t *testing.T) {
	ctx := context.Background()
	s, rec := newTestStore(t)
	p := seedProposal(t, s)

	updated, err := s.Votes.Upsert(ctx, &gov.Vote{ProposalID: p.ID, VoterAddress: "0xAA", Support: true})
	require.NoError(t, err)
	assert.False(t, updated)

	updated, err = s.Votes.Upsert(ctx, &gov.Vote{ProposalID: p.ID, VoterAddress: "0xaa", Support: false, Weight: 2})
	require.NoError(t, err)
	assert.True(t, updated)

	votes, err := s.Votes.ListByProposal(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, votes, 1)
	assert.False(t, votes[0].Support)
	assert.Equal(t, uint64(2), votes[0].Weight)

	last := rec.changes[len(rec.changes)-1]
	assert.Equal(t, events.TableVotes, last.Table)
	assert.Equal(t, events.Update, last.Type)
}

func TestVotes_DeleteAndCounts(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	p := seedProposal(t, s)

	_, err := s.Votes.Upsert(ctx, &gov.Vote{ProposalID: p.ID, VoterAddress: "0x1", Support: true})
	require.NoError(t, err)
	_, err = s.Votes.Upsert(ctx, &gov.Vote{ProposalID: p.ID, VoterAddress: "0x2", Support: true})
	require.NoError(t, err)

	n, err := s.Votes.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	voters, err := s.Votes.CountVotersSince(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), voters)

	removed, err := s.Votes.Delete(ctx, p.ID, "0x1")
	require.NoError(t, err)
	assert.Equal(t, "0x1", removed.VoterAddress)

	_, err = s.Votes.Delete(ctx, p.ID, "0x1")
	assert.ErrorIs(t, err, gov.ErrNotFound)
}

func TestCitizens(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	c := &gov.Citizen{WalletAddress: "0xBEEF", IsVerified: true}
	require.NoError(t, s.Citizens.Create(ctx, c))
	assert.Equal(t, int64(100), c.CivicScore)
	assert.Equal(t, int64(50), c.Reputation)

	err := s.Citizens.Create(ctx, &gov.Citizen{WalletAddress: "0xbeef"})
	assert.ErrorIs(t, err, gov.ErrValidation)

	got, err := s.Citizens.AddCivicPoints(ctx, "0xbeef", 25)
	require.NoError(t, err)
	assert.Equal(t, int64(125), got.CivicScore)

	_, err = s.Citizens.AddCivicPoints(ctx, "0xnobody", 1)
	assert.ErrorIs(t, err, gov.ErrNotFound)

	_, err = s.Citizens.GetByWallet(ctx, "0xnobody")
	assert.ErrorIs(t, err, gov.ErrNotFound)
}

func TestForum_CreateLike(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	post := &gov.ForumPost{Title: "Hello", Content: "First", AuthorAddress: "0x1", Tags: gov.StringSlice{"intro"}}
	require.NoError(t, s.Forum.Create(ctx, post))

	liked, err := s.Forum.Like(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), liked.Likes)
	assert.Equal(t, gov.StringSlice{"intro"}, liked.Tags)

	_, err = s.Forum.Like(ctx, "missing")
	assert.ErrorIs(t, err, gov.ErrNotFound)

	posts, err := s.Forum.List(ctx, Page{})
	require.NoError(t, err)
	assert.Len(t, posts, 1)
}

func TestActivities_TotalPoints(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	total, err := s.Activities.TotalPoints(ctx, "0x1")
	require.NoError(t, err)
	assert.Zero(t, total)

	require.NoError(t, s.Activities.Record(ctx, &gov.Activity{UserAddress: "0x1", ActivityType: "vote", Description: "voted", Points: 10}))
	require.NoError(t, s.Activities.Record(ctx, &gov.Activity{UserAddress: "0x1", ActivityType: "post", Description: "posted", Points: 5}))

	total, err = s.Activities.TotalPoints(ctx, "0x1")
	require.NoError(t, err)
	assert.Equal(t, int64(15), total)

	rows, err := s.Activities.ListByUser(ctx, "0x1", Page{})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.True(t, rows[0].Verified)
}

func TestNetworkStates_Partner(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	require.NoError(t, s.NetworkStates.Create(ctx, &gov.NetworkState{Name: "Praxis", Population: 10}))
	require.NoError(t, s.NetworkStates.Create(ctx, &gov.NetworkState{Name: "Zuzalu", Population: 5}))

	changed, err := s.NetworkStates.Partner(ctx, "Praxis", "Zuzalu")
	require.NoError(t, err)
	assert.Len(t, changed, 2)

	// repeated partnership adds no duplicates
	changed, err = s.NetworkStates.Partner(ctx, "Praxis", "Zuzalu")
	require.NoError(t, err)
	assert.Empty(t, changed)

	states, err := s.NetworkStates.List(ctx)
	require.NoError(t, err)
	require.Len(t, states, 2)
	assert.Equal(t, gov.StringSlice{"Zuzalu"}, states[0].Partnerships)
	assert.Equal(t, gov.StringSlice{"Praxis"}, states[1].Partnerships)

	_, err = s.NetworkStates.Partner(ctx, "Praxis", "Atlantis")
	assert.ErrorIs(t, err, gov.ErrNotFound)
	_, err = s.NetworkStates.Partner(ctx, "Praxis", "Praxis")
	assert.ErrorIs(t, err, gov.ErrValidation)
}

func TestAnalyses(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	require.NoError(t, s.Analyses.Save(ctx, &gov.AIAnalysis{ProposalID: "p1", Recommendation: "Approve", Reasoning: gov.StringSlice{"cheap"}}))
	require.NoError(t, s.Analyses.Save(ctx, &gov.AIAnalysis{ProposalID: "p2", Recommendation: "Reject"}))

	all, err := s.Analyses.List(ctx, "", Page{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	one, err := s.Analyses.List(ctx, "p1", Page{})
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, gov.StringSlice{"cheap"}, one[0].Reasoning)
}

func TestOutbox_Lifecycle(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	e := &gov.MirrorEntry{TxHash: "0xhash", Kind: gov.MirrorVote, ProposalID: "p1", VoterAddress: "0xAA", Support: true, Weight: 1}
	created, err := s.Outbox.Enqueue(ctx, e)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, gov.AttemptSubmitted, e.State)

	created, err = s.Outbox.Enqueue(ctx, &gov.MirrorEntry{TxHash: "0xhash", Kind: gov.MirrorVote})
	require.NoError(t, err)
	assert.False(t, created)

	require.NoError(t, s.Outbox.Transition(ctx, "0xhash", gov.AttemptConfirmed))
	require.NoError(t, s.Outbox.RecordFailure(ctx, "0xhash", assert.AnError))

	got, err := s.Outbox.Get(ctx, "0xhash")
	require.NoError(t, err)
	assert.Equal(t, gov.AttemptConfirmed, got.State)
	assert.Equal(t, 1, got.Attempts)
	assert.Equal(t, assert.AnError.Error(), got.LastError)
	assert.Equal(t, "0xaa", got.VoterAddress)

	pending, err := s.Outbox.ListPending(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	require.NoError(t, s.Outbox.Transition(ctx, "0xhash", gov.AttemptMirrored))
	pending, err = s.Outbox.ListPending(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, pending)

	counts, err := s.Outbox.CountByState(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[gov.AttemptMirrored])

	assert.ErrorIs(t, s.Outbox.Transition(ctx, "0xnope", gov.AttemptFailed), gov.ErrNotFound)
}

func TestOutbox_TouchRotatesPending(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	for _, h := range []string{"0xa", "0xb", "0xc"} {
		_, err := s.Outbox.Enqueue(ctx, &gov.MirrorEntry{TxHash: h, Kind: gov.MirrorVote})
		require.NoError(t, err)
	}

	hashes := func() []string {
		pending, err := s.Outbox.ListPending(ctx, 2)
		require.NoError(t, err)
		out := make([]string, 0, len(pending))
		for _, e := range pending {
			out = append(out, e.TxHash)
		}
		return out
	}
	assert.Equal(t, []string{"0xa", "0xb"}, hashes())

	require.NoError(t, s.Outbox.Touch(ctx, "0xa"))
	require.NoError(t, s.Outbox.Touch(ctx, "0xb"))
	assert.Equal(t, []string{"0xc", "0xa"}, hashes())
}
