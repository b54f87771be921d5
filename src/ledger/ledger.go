// Package ledger talks to the on-chain Governance contract over JSON-RPC.
package ledger

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stake-plus/netstate-gov/src/shared/gov"
)

//go:generate mockgen -destination=mocks/ledger.go -package=mock_ledger . Ledger

// ErrPending is returned by CheckReceipt while the transaction is not mined.
var ErrPending = errors.New("transaction pending")

type ReceiptStatus uint8

const (
	ReceiptConfirmed ReceiptStatus = iota + 1
	ReceiptReverted
)

func (s ReceiptStatus) String() string {
	switch s {
	case ReceiptConfirmed:
		return "confirmed"
	case ReceiptReverted:
		return "reverted"
	}
	return "unknown"
}

type Receipt struct {
	TxHash      string
	Status      ReceiptStatus
	BlockNumber uint64
	Logs        []*types.Log
}

func (r *Receipt) Confirmed() bool { return r != nil && r.Status == ReceiptConfirmed }

// ProposalDraft carries the createProposal arguments.
type ProposalDraft struct {
	Title           string         `json:"title"`
	Description     string         `json:"description"`
	Category        string         `json:"category"`
	VotingType      gov.VotingType `json:"voting_type"`
	DurationSeconds uint64         `json:"duration_seconds"`
	Proposer        string         `json:"proposer"`
}

// Call is an unsigned contract call for a wallet to sign and send.
type Call struct {
	To      string `json:"to"`
	Data    string `json:"data"`
	ChainID int64  `json:"chain_id"`
}

// VoteTx is a vote transaction as the chain recorded it.
type VoteTx struct {
	From       string
	ProposalID uint64
	Support    bool
	Weight     uint64
	Pending    bool
}

// Ledger is the wallet/chain collaborator. Gas, nonces and reorgs stay with the
// node; submissions return as soon as the node accepts the transaction.
type Ledger interface {
	Submit(ctx context.Context, method string, args ...interface{}) (string, error)
	Read(ctx context.Context, method string, args ...interface{}) ([]interface{}, error)
	WaitForReceipt(ctx context.Context, txHash string) (*Receipt, error)
	CheckReceipt(ctx context.Context, txHash string) (*Receipt, error)

	CreateProposal(ctx context.Context, d ProposalDraft) (string, error)
	// VoteCall builds the vote call a citizen's wallet submits. Votes are never
	// signed by the service key, the contract counts msg.sender.
	VoteCall(proposalID uint64, support bool, weight uint64) (Call, error)
	// VoteFromTx fetches txHash and decodes it as a vote sent to the
	// Governance contract. Anything else is ErrValidation.
	VoteFromTx(ctx context.Context, txHash string) (*VoteTx, error)
	HasVoted(ctx context.Context, proposalID uint64, voter string) (bool, error)
	ProposalCount(ctx context.Context) (uint64, error)
	ProposalIDFromReceipt(r *Receipt) (uint64, bool)
}
