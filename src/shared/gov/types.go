package gov

import (
	"strings"
	"time"
)

// VotingType is the on-chain voting_type code. Only display differs between types.
type VotingType uint8

const (
	VotingSimpleMajority VotingType = 0
	VotingQuadratic      VotingType = 1
	VotingConviction     VotingType = 2
	VotingFutarchy       VotingType = 3
)

func (t VotingType) Valid() bool { return t <= VotingFutarchy }

func (t VotingType) String() string {
	switch t {
	case VotingSimpleMajority:
		return "Simple"
	case VotingQuadratic:
		return "Quadratic"
	case VotingConviction:
		return "Conviction"
	case VotingFutarchy:
		return "Futarchy"
	}
	return "Unknown"
}

// ProposalStatus is the integer-coded lifecycle state of a proposal.
type ProposalStatus uint8

const (
	StatusActive   ProposalStatus = 0
	StatusPassed   ProposalStatus = 1
	StatusRejected ProposalStatus = 2
)

func (s ProposalStatus) String() string {
	switch s {
	case StatusActive:
		return "Active"
	case StatusPassed:
		return "Passed"
	case StatusRejected:
		return "Rejected"
	}
	return "Unknown"
}

// Proposal represents an off-chain proposal record. The tally columns are derived
// from the votes table and only written by the tally recomputer.
type Proposal struct {
	ID                   string         `gorm:"primaryKey;size:36" json:"id"`
	BlockchainProposalID *uint64        `gorm:"index" json:"blockchain_proposal_id"`
	Title                string         `gorm:"size:255;not null" json:"title"`
	Description          string         `gorm:"type:text;not null" json:"description"`
	ProposerAddress      string         `gorm:"size:128;index;not null" json:"proposer_address"`
	Category             string         `gorm:"size:64;not null;default:Governance" json:"category"`
	VotingType           VotingType     `gorm:"not null;default:0" json:"voting_type"`
	Status               ProposalStatus `gorm:"index;not null;default:0" json:"status"`
	VotesFor             uint64         `gorm:"not null;default:0" json:"votes_for"`
	VotesAgainst         uint64         `gorm:"not null;default:0" json:"votes_against"`
	TotalParticipants    uint64         `gorm:"not null;default:0" json:"total_participants"`
	TallyVersion         uint64         `gorm:"not null;default:0" json:"-"`
	StartTime            time.Time      `json:"start_time"`
	EndTime              time.Time      `gorm:"index" json:"end_time"`
	CreatedAt            time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at"`
}

// Anchored reports whether the proposal carries an on-chain identifier.
func (p *Proposal) Anchored() bool { return p.BlockchainProposalID != nil }

// Open reports whether the proposal still accepts votes at t.
func (p *Proposal) Open(t time.Time) bool {
	return p.Status == StatusActive && (p.EndTime.IsZero() || t.Before(p.EndTime))
}

// Vote is one row per (proposal, voter). TxHash is set when the row mirrors a
// confirmed on-chain vote.
type Vote struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	ProposalID   string    `gorm:"size:36;not null;uniqueIndex:idx_vote_identity" json:"proposal_id"`
	VoterAddress string    `gorm:"size:128;not null;uniqueIndex:idx_vote_identity" json:"voter_address"`
	Support      bool      `gorm:"not null" json:"support"`
	Weight       uint64    `gorm:"not null;default:1" json:"weight"`
	TxHash       *string   `gorm:"size:66" json:"tx_hash,omitempty"`
	CreatedAt    time.Time `gorm:"index" json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Citizen represents a Civic ID holder.
type Citizen struct {
	ID            string    `gorm:"primaryKey;size:36" json:"id"`
	WalletAddress string    `gorm:"size:128;uniqueIndex;not null" json:"wallet_address"`
	Name          *string   `gorm:"size:128" json:"name"`
	CivicScore    int64     `gorm:"not null;default:100" json:"civic_score"`
	Reputation    int64     `gorm:"not null;default:50" json:"reputation"`
	Role          string    `gorm:"size:64;not null;default:Citizen" json:"role"`
	Residency     string    `gorm:"size:64;not null;default:Digital" json:"residency"`
	IsVerified    bool      `gorm:"not null;default:false" json:"is_verified"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ForumPost represents a Citizen Forum thread.
type ForumPost struct {
	ID            string      `gorm:"primaryKey;size:36" json:"id"`
	Title         string      `gorm:"size:255;not null" json:"title"`
	Content       string      `gorm:"type:text;not null" json:"content"`
	AuthorAddress string      `gorm:"size:128;index;not null" json:"author_address"`
	Category      string      `gorm:"size:64;not null;default:General" json:"category"`
	Tags          StringSlice `gorm:"type:text" json:"tags"`
	Likes         int64       `gorm:"not null;default:0" json:"likes"`
	Replies       int64       `gorm:"not null;default:0" json:"replies"`
	Views         int64       `gorm:"not null;default:0" json:"views"`
	NetworkState  string      `gorm:"size:128" json:"network_state"`
	IsTrending    bool        `gorm:"not null;default:false" json:"is_trending"`
	CreatedAt     time.Time   `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// Activity is a participation record worth civic points.
type Activity struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	UserAddress  string    `gorm:"size:128;index;not null" json:"user_address"`
	ActivityType string    `gorm:"size:64;not null" json:"activity_type"`
	Description  string    `gorm:"type:text;not null" json:"description"`
	Points       int64     `gorm:"not null;default:0" json:"points"`
	Verified     bool      `gorm:"not null;default:false" json:"verified"`
	CreatedAt    time.Time `gorm:"index" json:"created_at"`
}

// AIAnalysis stores an AI Governor assessment of a proposal.
type AIAnalysis struct {
	ID                 string      `gorm:"primaryKey;size:36" json:"id"`
	ProposalID         string      `gorm:"size:36;index;not null" json:"proposal_id"`
	EconomicImpact     float64     `json:"economic_impact"`
	CitizenSentiment   float64     `json:"citizen_sentiment"`
	ImplementationRisk float64     `json:"implementation_risk"`
	Recommendation     string      `gorm:"size:64;not null" json:"recommendation"`
	Confidence         float64     `json:"confidence"`
	Reasoning          StringSlice `gorm:"type:text" json:"reasoning"`
	CreatedAt          time.Time   `gorm:"index" json:"created_at"`
}

func (AIAnalysis) TableName() string { return "ai_analyses" }

// Setting represents a configuration setting stored in the database
type Setting struct {
	ID     uint8  `gorm:"primaryKey"`
	Name   string `gorm:"size:32;not null"`
	Value  string `gorm:"type:text;not null"`
	Active uint8  `gorm:"not null"`
}

// NormalizeAddress trims a wallet address and lower-cases hex (EVM) addresses so
// checksummed and plain forms map to the same vote identity. SS58 addresses are
// case-sensitive and kept as is.
func NormalizeAddress(addr string) string {
	addr = strings.TrimSpace(addr)
	if strings.HasPrefix(addr, "0x") || strings.HasPrefix(addr, "0X") {
		return strings.ToLower(addr)
	}
	return addr
}
