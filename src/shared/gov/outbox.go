package gov

import "time"

// MirrorKind names what a confirmed transaction must be mirrored into.
type MirrorKind string

const (
	MirrorVote     MirrorKind = "vote"
	MirrorProposal MirrorKind = "proposal"
)

// AttemptState tracks an on-chain attempt from submission to its off-chain mirror.
type AttemptState string

const (
	AttemptIdle      AttemptState = "idle"
	AttemptSubmitted AttemptState = "submitted"
	AttemptConfirmed AttemptState = "confirmed"
	AttemptMirrored  AttemptState = "mirrored"
	AttemptFailed    AttemptState = "failed"
)

// Terminal reports whether no further transition is possible.
func (s AttemptState) Terminal() bool {
	return s == AttemptMirrored || s == AttemptFailed
}

// MirrorEntry is one outbox row keyed by transaction hash.
type MirrorEntry struct {
	TxHash       string       `gorm:"primaryKey;size:66" json:"tx_hash"`
	Kind         MirrorKind   `gorm:"size:16;not null;index" json:"kind"`
	State        AttemptState `gorm:"size:16;not null;index" json:"state"`
	ProposalID   string       `gorm:"size:36" json:"proposal_id,omitempty"`
	VoterAddress string       `gorm:"size:128" json:"voter_address,omitempty"`
	Support      bool         `json:"support"`
	Weight       uint64       `json:"weight"`
	Payload      string       `gorm:"type:text" json:"payload,omitempty"`
	Attempts     int          `gorm:"not null;default:0" json:"attempts"`
	LastError    string       `gorm:"type:text" json:"last_error,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

func (MirrorEntry) TableName() string { return "mirror_outbox" }
