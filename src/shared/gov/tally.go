package gov

import (
	"fmt"
	"math/bits"
)

// MaxVoteWeight is the largest weight a single vote may carry.
const MaxVoteWeight uint64 = 1_000_000_000_000

// Tally holds the derived aggregate counters of a proposal.
type Tally struct {
	VotesFor          uint64 `json:"votes_for"`
	VotesAgainst      uint64 `json:"votes_against"`
	TotalParticipants uint64 `json:"total_participants"`
}

// ComputeTally sums weights per side and counts distinct voters. A side whose
// sum does not fit in a uint64 is an error rather than a wrapped counter.
func ComputeTally(votes []Vote) (Tally, error) {
	var t Tally
	seen := make(map[string]struct{}, len(votes))
	for _, v := range votes {
		side := &t.VotesAgainst
		if v.Support {
			side = &t.VotesFor
		}
		sum, carry := bits.Add64(*side, v.Weight, 0)
		if carry != 0 {
			return Tally{}, fmt.Errorf("%w: vote weights of %s overflow the tally", ErrValidation, v.ProposalID)
		}
		*side = sum
		if _, ok := seen[v.VoterAddress]; !ok {
			seen[v.VoterAddress] = struct{}{}
			t.TotalParticipants++
		}
	}
	return t, nil
}

// TallyOf returns the counters currently stored on p.
func TallyOf(p *Proposal) Tally {
	return Tally{
		VotesFor:          p.VotesFor,
		VotesAgainst:      p.VotesAgainst,
		TotalParticipants: p.TotalParticipants,
	}
}

// Outcome decides the final status of a closed proposal. Ties reject.
func Outcome(t Tally) ProposalStatus {
	if t.VotesFor > t.VotesAgainst {
		return StatusPassed
	}
	return StatusRejected
}
