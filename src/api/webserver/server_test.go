package webserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"github.com/stake-plus/netstate-gov/src/ai/core"
	"github.com/stake-plus/netstate-gov/src/analysis"
	"github.com/stake-plus/netstate-gov/src/config"
	"github.com/stake-plus/netstate-gov/src/data"
	"github.com/stake-plus/netstate-gov/src/data/datatest"
	"github.com/stake-plus/netstate-gov/src/events"
	"github.com/stake-plus/netstate-gov/src/ledger"
	mock_ledger "github.com/stake-plus/netstate-gov/src/ledger/mocks"
	"github.com/stake-plus/netstate-gov/src/metrics"
	"github.com/stake-plus/netstate-gov/src/outbox"
	"github.com/stake-plus/netstate-gov/src/shared/gov"
	"github.com/stake-plus/netstate-gov/src/store"
	"github.com/stake-plus/netstate-gov/src/tally"
	"github.com/stake-plus/netstate-gov/src/voting"
)

const (
	testSecret = "test-secret"
	voterAddr  = "0x00000000000000000000000000000000000000aa"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type server struct {
	engine *gin.Engine
	store  *store.Store
	bus    *events.LocalBus
	chain  *mock_ledger.MockLedger
	live   *metrics.Live
}

// newServer builds the router over sqlite; passing an AI client enables the
// analysis route.
func newServer(t *testing.T, ai ...core.Client) *server {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	log := zap.NewNop().Sugar()
	bus := events.NewLocalBus()
	s := store.New(datatest.Open(t), bus, log)
	chain := mock_ledger.NewMockLedger(gomock.NewController(t))
	w := outbox.NewWorker(s.Outbox, chain, log)
	rc := tally.NewRecomputer(s.Proposals, s.Votes, 3, log)
	svc := voting.NewService(s, rc, chain, w, log)

	reg := prometheus.NewRegistry()
	live, err := metrics.NewLive(s, reg, log)
	require.NoError(t, err)

	cfg := config.Config{
		App: config.App{Environment: "dev", JWTSecret: testSecret},
		HTTP: config.HTTP{
			CORSOrigins: []string{"http://localhost:3000"},
			RateLimit:   1000,
			RateWindow:  time.Minute,
		},
	}
	d := Deps{
		Store:    s,
		Voting:   svc,
		Nonces:   data.NewMemoryNonces(),
		Bus:      bus,
		Live:     live,
		Gatherer: reg,
		Log:      log,
	}
	if len(ai) > 0 {
		d.Analyzer = analysis.New(ai[0], s, log)
	}
	engine := New(ctx, cfg, d)
	return &server{engine: engine, store: s, bus: bus, chain: chain, live: live}
}

func (s *server) do(t *testing.T, method, path string, body any, addr string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if addr != "" {
		tok, err := issueJWT(addr, []byte(testSecret))
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func (s *server) proposal(t *testing.T, chainID *uint64) *gov.Proposal {
	t.Helper()
	now := time.Now().UTC()
	p := &gov.Proposal{
		Title:                "Open a new hub",
		Description:          "Lease a building for the commons",
		ProposerAddress:      voterAddr,
		BlockchainProposalID: chainID,
		StartTime:            now,
		EndTime:              now.Add(24 * time.Hour),
	}
	require.NoError(t, s.store.Proposals.Create(context.Background(), p))
	return p
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestSecuredRoutes_RequireToken(t *testing.T) {
	s := newServer(t)

	w := s.do(t, http.MethodPost, "/v1/forum", gin.H{"title": "t", "content": "c"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/v1/citizens/me", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	w = httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestProposals_CreateListETag(t *testing.T) {
	s := newServer(t)

	w := s.do(t, http.MethodPost, "/v1/proposals", gin.H{
		"title":       "<b>Fund</b> the library",
		"description": "Buy books<script>alert(1)</script>",
	}, voterAddr)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	res := decode[voting.CreateResult](t, w)
	require.NotNil(t, res.Proposal)
	assert.Equal(t, "Fund the library", res.Proposal.Title)
	assert.Equal(t, "Buy books", res.Proposal.Description)
	assert.Equal(t, voterAddr, res.Proposal.ProposerAddress)
	assert.Equal(t, "Governance", res.Proposal.Category)

	w = s.do(t, http.MethodGet, "/v1/proposals", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	etag := w.Header().Get("ETag")
	require.NotEmpty(t, etag)
	assert.Len(t, decode[[]gov.Proposal](t, w), 1)

	w = s.do(t, http.MethodGet, "/v1/proposals", nil, "", "If-None-Match", etag)
	assert.Equal(t, http.StatusNotModified, w.Code)

	w = s.do(t, http.MethodGet, "/v1/proposals?status=9", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/v1/proposals/"+res.Proposal.ID, nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/v1/proposals/missing", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), `"err"`)
}

func TestProposals_CreateValidation(t *testing.T) {
	s := newServer(t)

	w := s.do(t, http.MethodPost, "/v1/proposals", gin.H{"title": "only a title"}, voterAddr)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/v1/proposals", gin.H{
		"title": "t", "description": "d", "voting_type": 7,
	}, voterAddr)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVotes_OffChainLifecycle(t *testing.T) {
	s := newServer(t)
	p := s.proposal(t, nil)
	base := "/v1/proposals/" + p.ID

	w := s.do(t, http.MethodPost, base+"/votes", gin.H{"support": true, "weight": 3}, voterAddr)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decode[voting.CastResult](t, w)
	require.NotNil(t, res.Tally)
	assert.Equal(t, gov.Tally{VotesFor: 3, TotalParticipants: 1}, *res.Tally)
	assert.False(t, res.Updated)

	w = s.do(t, http.MethodPost, base+"/votes", gin.H{"support": false}, voterAddr)
	require.Equal(t, http.StatusOK, w.Code)
	res = decode[voting.CastResult](t, w)
	assert.True(t, res.Updated)
	assert.Equal(t, gov.Tally{VotesAgainst: 1, TotalParticipants: 1}, *res.Tally)

	w = s.do(t, http.MethodGet, base+"/voted", nil, voterAddr)
	require.Equal(t, http.StatusOK, w.Code)
	e := decode[voting.Eligibility](t, w)
	assert.True(t, e.Voted)
	assert.Equal(t, voting.SourceStore, e.Source)

	w = s.do(t, http.MethodGet, base+"/votes", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]gov.Vote](t, w), 1)

	w = s.do(t, http.MethodDelete, base+"/votes", nil, voterAddr)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodDelete, base+"/votes", nil, voterAddr)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestVotes_MissingSupport(t *testing.T) {
	s := newServer(t)
	p := s.proposal(t, nil)

	w := s.do(t, http.MethodPost, "/v1/proposals/"+p.ID+"/votes", gin.H{"weight": 1}, voterAddr)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVotes_AnchoredAlreadyVoted(t *testing.T) {
	s := newServer(t)
	chainID := uint64(7)
	p := s.proposal(t, &chainID)

	s.chain.EXPECT().HasVoted(gomock.Any(), chainID, voterAddr).Return(true, nil)

	w := s.do(t, http.MethodPost, "/v1/proposals/"+p.ID+"/votes", gin.H{"support": true}, voterAddr)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestVotes_AnchoredReturnsWalletCall(t *testing.T) {
	s := newServer(t)
	chainID := uint64(7)
	p := s.proposal(t, &chainID)

	call := ledger.Call{To: "0x00000000000000000000000000000000000000cc", Data: "0xc9d27afe", ChainID: 1}
	s.chain.EXPECT().HasVoted(gomock.Any(), chainID, voterAddr).Return(false, nil)
	s.chain.EXPECT().VoteCall(chainID, true, uint64(2)).Return(call, nil)

	w := s.do(t, http.MethodPost, "/v1/proposals/"+p.ID+"/votes", gin.H{"support": true, "weight": 2}, voterAddr)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decode[voting.CastResult](t, w)
	assert.Equal(t, gov.AttemptIdle, res.State)
	require.NotNil(t, res.Call)
	assert.Equal(t, call, *res.Call)

	// nothing is recorded until the wallet reports its transaction
	votes, err := s.store.Votes.ListByProposal(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Empty(t, votes)
}

func TestVotes_ReceiptMirrorsDecodedVote(t *testing.T) {
	s := newServer(t)
	chainID := uint64(7)
	p := s.proposal(t, &chainID)
	hash := "0x" + strings.Repeat("ab", 32)

	w := s.do(t, http.MethodPost, "/v1/proposals/"+p.ID+"/votes/receipts", gin.H{"tx_hash": "0xnope"}, voterAddr)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	s.chain.EXPECT().VoteFromTx(gomock.Any(), hash).
		Return(&ledger.VoteTx{From: voterAddr, ProposalID: chainID, Support: false, Weight: 3}, nil)
	s.chain.EXPECT().WaitForReceipt(gomock.Any(), hash).
		Return(&ledger.Receipt{TxHash: hash, Status: ledger.ReceiptConfirmed}, nil)

	// client-side support and weight are ignored
	w = s.do(t, http.MethodPost, "/v1/proposals/"+p.ID+"/votes/receipts",
		gin.H{"tx_hash": hash, "support": true, "weight": 1000000}, voterAddr)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decode[voting.CastResult](t, w)
	assert.Equal(t, gov.AttemptMirrored, res.State)
	require.NotNil(t, res.Tally)
	assert.Equal(t, gov.Tally{VotesAgainst: 3, TotalParticipants: 1}, *res.Tally)
}

func TestVotes_ReceiptFromAnotherSender(t *testing.T) {
	s := newServer(t)
	chainID := uint64(7)
	p := s.proposal(t, &chainID)
	hash := "0x" + strings.Repeat("cd", 32)

	s.chain.EXPECT().VoteFromTx(gomock.Any(), hash).
		Return(&ledger.VoteTx{From: "0x00000000000000000000000000000000000000bb", ProposalID: chainID, Support: true, Weight: 1}, nil)

	w := s.do(t, http.MethodPost, "/v1/proposals/"+p.ID+"/votes/receipts", gin.H{"tx_hash": hash}, voterAddr)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVotes_WeightAboveLimit(t *testing.T) {
	s := newServer(t)
	p := s.proposal(t, nil)

	w := s.do(t, http.MethodPost, "/v1/proposals/"+p.ID+"/votes", gin.H{"support": true, "weight": gov.MaxVoteWeight + 1}, voterAddr)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

type cannedAI struct {
	reply string
	err   error
}

func (c cannedAI) Respond(context.Context, string, core.Options) (string, error) {
	return c.reply, c.err
}

func TestAnalysis_RouteOnlyWhenConfigured(t *testing.T) {
	s := newServer(t)
	p := s.proposal(t, nil)
	w := s.do(t, http.MethodPost, "/v1/proposals/"+p.ID+"/analysis", nil, voterAddr)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAnalysis_StoresProviderAssessment(t *testing.T) {
	s := newServer(t, cannedAI{reply: `{"economic_impact": 60, "citizen_sentiment": 70,
		"implementation_risk": 20, "recommendation": "approve", "confidence": 90, "reasoning": ["cheap"]}`})
	p := s.proposal(t, nil)

	w := s.do(t, http.MethodPost, "/v1/proposals/"+p.ID+"/analysis", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodPost, "/v1/proposals/"+p.ID+"/analysis", nil, voterAddr)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	a := decode[gov.AIAnalysis](t, w)
	assert.Equal(t, p.ID, a.ProposalID)
	assert.Equal(t, "approve", a.Recommendation)

	w = s.do(t, http.MethodPost, "/v1/proposals/missing/analysis", nil, voterAddr)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAnalysis_ProviderFailureIsBadGateway(t *testing.T) {
	s := newServer(t, cannedAI{err: errors.New("connection reset")})
	p := s.proposal(t, nil)

	w := s.do(t, http.MethodPost, "/v1/proposals/"+p.ID+"/analysis", nil, voterAddr)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestCommunity_CitizenForumAndActivities(t *testing.T) {
	s := newServer(t)

	w := s.do(t, http.MethodGet, "/v1/citizens/me", nil, voterAddr)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPost, "/v1/citizens/me", gin.H{"name": "Ada"}, voterAddr)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	c := decode[gov.Citizen](t, w)
	assert.Equal(t, int64(100), c.CivicScore)
	assert.True(t, c.IsVerified)

	w = s.do(t, http.MethodPost, "/v1/citizens/me", gin.H{"name": "Ada"}, voterAddr)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/v1/citizens/me/points", gin.H{"points": 25}, voterAddr)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(125), decode[gov.Citizen](t, w).CivicScore)

	w = s.do(t, http.MethodPost, "/v1/citizens/me/points", gin.H{"points": 5000}, voterAddr)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/v1/forum", gin.H{
		"title": "Hello", "content": "<p>first post</p><img src=x>", "tags": []string{"intro"},
	}, voterAddr)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	post := decode[gov.ForumPost](t, w)
	assert.Equal(t, "<p>first post</p>", post.Content)

	w = s.do(t, http.MethodPost, "/v1/forum/"+post.ID+"/like", nil, voterAddr)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1), decode[gov.ForumPost](t, w).Likes)

	w = s.do(t, http.MethodGet, "/v1/forum?limit=10", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]gov.ForumPost](t, w), 1)

	w = s.do(t, http.MethodGet, "/v1/forum?limit=-1", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/v1/activities", gin.H{
		"activity_type": "vote", "description": "Voted on hub", "points": 10,
	}, voterAddr)
	require.Equal(t, http.StatusCreated, w.Code)

	w = s.do(t, http.MethodGet, "/v1/activities", nil, voterAddr)
	require.Equal(t, http.StatusOK, w.Code)
	var acts struct {
		Activities  []gov.Activity `json:"activities"`
		TotalPoints int64          `json:"total_points"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &acts))
	assert.Len(t, acts.Activities, 1)
	assert.Equal(t, int64(10), acts.TotalPoints)
}

func TestCommunity_PartnershipsAndAnalyses(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()
	require.NoError(t, s.store.NetworkStates.Create(ctx, &gov.NetworkState{Name: "Praxis", Population: 10}))
	require.NoError(t, s.store.NetworkStates.Create(ctx, &gov.NetworkState{Name: "Zuzalu", Population: 5}))

	w := s.do(t, http.MethodPost, "/v1/network-states/partnerships", gin.H{"from": "Praxis", "to": "Zuzalu"}, voterAddr)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, "/v1/network-states/partnerships", gin.H{"from": "Praxis", "to": "Nowhere"}, voterAddr)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodGet, "/v1/network-states", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	states := decode[[]gov.NetworkState](t, w)
	require.Len(t, states, 2)
	assert.Equal(t, gov.StringSlice{"Zuzalu"}, states[0].Partnerships)

	p := s.proposal(t, nil)
	w = s.do(t, http.MethodPost, "/v1/analyses", gin.H{
		"proposal_id": p.ID, "recommendation": "Support", "confidence": 80, "reasoning": []string{"cheap"},
	}, voterAddr)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, "/v1/analyses", gin.H{"proposal_id": "missing", "recommendation": "Support"}, voterAddr)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/v1/analyses?proposal_id="+p.ID, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]gov.AIAnalysis](t, w), 1)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newServer(t)
	s.proposal(t, nil)
	require.NoError(t, s.live.Refresh(context.Background()))

	w := s.do(t, http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/v1/metrics", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1), decode[metrics.Snapshot](t, w).ActiveProposals)

	w = s.do(t, http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "netstate_")
}

func TestStatusFor(t *testing.T) {
	cases := map[error]int{
		gov.ErrValidation:        http.StatusBadRequest,
		gov.ErrNotFound:          http.StatusNotFound,
		gov.ErrAlreadyVoted:      http.StatusConflict,
		gov.ErrTransactionFailed: http.StatusBadGateway,
		gov.ErrStorage:           http.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, statusFor(err), err.Error())
	}
	assert.Equal(t, http.StatusAccepted, attemptStatus(gov.AttemptSubmitted))
	assert.Equal(t, http.StatusAccepted, attemptStatus(gov.AttemptConfirmed))
	assert.Equal(t, http.StatusOK, attemptStatus(gov.AttemptMirrored))
}
