package ledger

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stake-plus/netstate-gov/src/shared/gov"
)

// governanceABI is the subset of the Governance contract the service talks to.
const governanceABI = `[
  {"type":"function","name":"createProposal","stateMutability":"nonpayable",
   "inputs":[{"name":"title","type":"string"},{"name":"description","type":"string"},
             {"name":"votingType","type":"uint8"},{"name":"durationSeconds","type":"uint256"},
             {"name":"category","type":"string"}],
   "outputs":[{"name":"proposalId","type":"uint256"}]},
  {"type":"function","name":"vote","stateMutability":"nonpayable",
   "inputs":[{"name":"proposalId","type":"uint256"},{"name":"support","type":"bool"},
             {"name":"weight","type":"uint256"}],
   "outputs":[]},
  {"type":"function","name":"hasVoted","stateMutability":"view",
   "inputs":[{"name":"proposalId","type":"uint256"},{"name":"voter","type":"address"}],
   "outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"getProposalCount","stateMutability":"view",
   "inputs":[],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"event","name":"ProposalCreated","anonymous":false,
   "inputs":[{"name":"proposalId","type":"uint256","indexed":true},
             {"name":"proposer","type":"address","indexed":true},
             {"name":"title","type":"string","indexed":false}]}
]`

const (
	methodCreateProposal   = "createProposal"
	methodVote             = "vote"
	methodHasVoted         = "hasVoted"
	methodGetProposalCount = "getProposalCount"
	eventProposalCreated   = "ProposalCreated"
)

var parsedABI = mustParseABI()

func mustParseABI() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(governanceABI))
	if err != nil {
		panic(err)
	}
	return parsed
}

// ProposalIDFromLogs extracts the identifier emitted by ProposalCreated from the
// logs of a creation receipt. Logs from other contracts are ignored.
func ProposalIDFromLogs(contract common.Address, logs []*types.Log) (uint64, bool) {
	topic := parsedABI.Events[eventProposalCreated].ID
	for _, l := range logs {
		if l == nil || l.Removed || l.Address != contract {
			continue
		}
		if len(l.Topics) < 2 || l.Topics[0] != topic {
			continue
		}
		id := new(big.Int).SetBytes(l.Topics[1].Bytes())
		if !id.IsUint64() {
			continue
		}
		return id.Uint64(), true
	}
	return 0, false
}

// ParseTxHash accepts a 0x-prefixed 32-byte hex hash and returns it lower-cased.
func ParseTxHash(s string) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != 2+2*common.HashLength || !strings.HasPrefix(s, "0x") {
		return "", fmt.Errorf("%w: malformed transaction hash", gov.ErrValidation)
	}
	if _, err := hexutil.Decode(s); err != nil {
		return "", fmt.Errorf("%w: malformed transaction hash", gov.ErrValidation)
	}
	return s, nil
}

// packVote encodes the calldata of vote(proposalId, support, weight).
func packVote(proposalID uint64, support bool, weight uint64) ([]byte, error) {
	return parsedABI.Pack(methodVote, new(big.Int).SetUint64(proposalID), support, new(big.Int).SetUint64(weight))
}

// unpackVote decodes vote calldata. Any other method is rejected.
func unpackVote(data []byte) (proposalID uint64, support bool, weight uint64, err error) {
	if len(data) < 4 {
		return 0, false, 0, fmt.Errorf("calldata too short")
	}
	m, err := parsedABI.MethodById(data[:4])
	if err != nil {
		return 0, false, 0, err
	}
	if m.Name != methodVote {
		return 0, false, 0, fmt.Errorf("transaction calls %s, not %s", m.Name, methodVote)
	}

	args, err := m.Inputs.Unpack(data[4:])
	if err != nil {
		return 0, false, 0, err
	}
	id, ok1 := args[0].(*big.Int)
	support, ok2 := args[1].(bool)
	w, ok3 := args[2].(*big.Int)
	if !ok1 || !ok2 || !ok3 {
		return 0, false, 0, fmt.Errorf("unexpected %s arguments", methodVote)
	}
	if !id.IsUint64() || !w.IsUint64() {
		return 0, false, 0, fmt.Errorf("%s arguments out of range", methodVote)
	}
	return id.Uint64(), support, w.Uint64(), nil
}
