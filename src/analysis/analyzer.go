// Package analysis asks an AI provider to assess a proposal and stores the
// result next to hand-written analyses.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/stake-plus/netstate-gov/src/ai/core"
	"github.com/stake-plus/netstate-gov/src/shared/gov"
	"github.com/stake-plus/netstate-gov/src/store"
)

const (
	maxReasons   = 5
	maxReasonLen = 500
)

const systemPrompt = `You assess governance proposals of a network state.
Reply with a single JSON object and nothing else:
{"economic_impact": 0-100, "citizen_sentiment": 0-100, "implementation_risk": 0-100,
 "recommendation": "approve" | "reject" | "modify", "confidence": 0-100,
 "reasoning": ["short reason", ...]}`

var recommendations = map[string]bool{"approve": true, "reject": true, "modify": true}

type Analyzer struct {
	client    core.Client
	proposals store.ProposalRepository
	analyses  store.AnalysisRepository
	strict    *bluemonday.Policy
	log       *zap.SugaredLogger
}

func New(client core.Client, s *store.Store, log *zap.SugaredLogger) *Analyzer {
	return &Analyzer{
		client:    client,
		proposals: s.Proposals,
		analyses:  s.Analyses,
		strict:    bluemonday.StrictPolicy(),
		log:       log,
	}
}

// Analyze runs one assessment of the proposal and stores it.
func (a *Analyzer) Analyze(ctx context.Context, proposalID string) (*gov.AIAnalysis, error) {
	p, err := a.proposals.Get(ctx, proposalID)
	if err != nil {
		return nil, err
	}

	reply, err := a.client.Respond(ctx, prompt(p), core.Options{SystemPrompt: systemPrompt})
	if err != nil {
		return nil, fmt.Errorf("%w: analysis provider: %w", gov.ErrUpstream, err)
	}

	out, err := a.parse(reply)
	if err != nil {
		a.log.Warnw("unusable analysis reply", "proposal", p.ID, "error", err)
		return nil, fmt.Errorf("%w: analysis reply: %w", gov.ErrUpstream, err)
	}
	out.ProposalID = p.ID

	if err := a.analyses.Save(ctx, out); err != nil {
		return nil, err
	}
	a.log.Infow("proposal analyzed", "proposal", p.ID, "recommendation", out.Recommendation, "confidence", out.Confidence)
	return out, nil
}

func prompt(p *gov.Proposal) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", p.Title)
	fmt.Fprintf(&b, "Category: %s\n", p.Category)
	fmt.Fprintf(&b, "Voting type: %s\n", p.VotingType)
	fmt.Fprintf(&b, "Votes so far: %d for, %d against, %d participants\n\n", p.VotesFor, p.VotesAgainst, p.TotalParticipants)
	b.WriteString(p.Description)
	return b.String()
}

type reply struct {
	EconomicImpact     float64  `json:"economic_impact"`
	CitizenSentiment   float64  `json:"citizen_sentiment"`
	ImplementationRisk float64  `json:"implementation_risk"`
	Recommendation     string   `json:"recommendation"`
	Confidence         float64  `json:"confidence"`
	Reasoning          []string `json:"reasoning"`
}

// parse reads the first JSON object in text. Models often wrap it in prose or
// a code fence.
func (a *Analyzer) parse(text string) (*gov.AIAnalysis, error) {
	start, end := strings.Index(text, "{"), strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in reply")
	}

	var r reply
	if err := json.Unmarshal([]byte(text[start:end+1]), &r); err != nil {
		return nil, err
	}

	rec := strings.ToLower(strings.TrimSpace(r.Recommendation))
	if !recommendations[rec] {
		return nil, fmt.Errorf("unknown recommendation %q", r.Recommendation)
	}

	reasons := make(gov.StringSlice, 0, maxReasons)
	for _, s := range r.Reasoning {
		s = strings.TrimSpace(a.strict.Sanitize(s))
		if s == "" {
			continue
		}
		if runes := []rune(s); len(runes) > maxReasonLen {
			s = string(runes[:maxReasonLen])
		}
		reasons = append(reasons, s)
		if len(reasons) == maxReasons {
			break
		}
	}

	return &gov.AIAnalysis{
		EconomicImpact:     score(r.EconomicImpact),
		CitizenSentiment:   score(r.CitizenSentiment),
		ImplementationRisk: score(r.ImplementationRisk),
		Recommendation:     rec,
		Confidence:         score(r.Confidence),
		Reasoning:          reasons,
	}, nil
}

func score(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}
