package ledger

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stake-plus/netstate-gov/src/config"
	"github.com/stake-plus/netstate-gov/src/shared/gov"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var contractAddr = common.HexToAddress("0x00000000000000000000000000000000000000aa")

type fakeBackend struct {
	bind.ContractBackend

	mu       sync.Mutex
	polls    int
	readyAt  int
	receipt  *types.Receipt
	tx       *types.Transaction
	failWith error
}

func (f *fakeBackend) TransactionByHash(_ context.Context, _ common.Hash) (*types.Transaction, bool, error) {
	if f.tx == nil {
		return nil, false, ethereum.NotFound
	}
	return f.tx, false, nil
}

func (f *fakeBackend) TransactionReceipt(_ context.Context, _ common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls++
	if f.failWith != nil {
		return nil, f.failWith
	}
	if f.polls < f.readyAt {
		return nil, ethereum.NotFound
	}
	return f.receipt, nil
}

func newTestClient(b *fakeBackend) *Client {
	return newClient(b, contractAddr, config.Chain{ChainID: 1, ReceiptPollInterval: time.Millisecond}, nil, zap.NewNop().Sugar())
}

func proposalCreatedLog(addr common.Address, id uint64) *types.Log {
	return &types.Log{
		Address: addr,
		Topics: []common.Hash{
			parsedABI.Events[eventProposalCreated].ID,
			common.BigToHash(new(big.Int).SetUint64(id)),
			common.BytesToHash(common.HexToAddress("0x01").Bytes()),
		},
	}
}

func TestProposalIDFromLogs(t *testing.T) {
	other := common.HexToAddress("0x00000000000000000000000000000000000000bb")

	id, ok := ProposalIDFromLogs(contractAddr, []*types.Log{
		proposalCreatedLog(other, 99),
		{Address: contractAddr, Topics: []common.Hash{common.HexToHash("0x1234")}},
		proposalCreatedLog(contractAddr, 42),
	})
	assert.True(t, ok)
	assert.Equal(t, uint64(42), id)

	_, ok = ProposalIDFromLogs(contractAddr, nil)
	assert.False(t, ok)

	removed := proposalCreatedLog(contractAddr, 7)
	removed.Removed = true
	_, ok = ProposalIDFromLogs(contractAddr, []*types.Log{removed})
	assert.False(t, ok)
}

func TestClient_ProposalIDFromReceipt(t *testing.T) {
	c := newTestClient(&fakeBackend{})

	id, ok := c.ProposalIDFromReceipt(&Receipt{Logs: []*types.Log{proposalCreatedLog(contractAddr, 3)}})
	assert.True(t, ok)
	assert.Equal(t, uint64(3), id)

	_, ok = c.ProposalIDFromReceipt(nil)
	assert.False(t, ok)
}

func TestClient_WaitForReceipt(t *testing.T) {
	b := &fakeBackend{readyAt: 3, receipt: &types.Receipt{Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(12)}}
	c := newTestClient(b)

	r, err := c.WaitForReceipt(context.Background(), "0xabc")
	require.NoError(t, err)
	assert.True(t, r.Confirmed())
	assert.Equal(t, uint64(12), r.BlockNumber)
	assert.Equal(t, "0xabc", r.TxHash)
	assert.Equal(t, 3, b.polls)
}

func TestClient_WaitForReceiptReverted(t *testing.T) {
	c := newTestClient(&fakeBackend{receipt: &types.Receipt{Status: types.ReceiptStatusFailed}})

	r, err := c.WaitForReceipt(context.Background(), "0xabc")
	require.NoError(t, err)
	assert.False(t, r.Confirmed())
	assert.Equal(t, ReceiptReverted, r.Status)
}

func TestClient_WaitForReceiptCancelled(t *testing.T) {
	c := newTestClient(&fakeBackend{readyAt: 1 << 30})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.WaitForReceipt(ctx, "0xabc")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_CheckReceipt(t *testing.T) {
	c := newTestClient(&fakeBackend{readyAt: 2, receipt: &types.Receipt{Status: types.ReceiptStatusSuccessful}})

	_, err := c.CheckReceipt(context.Background(), "0xabc")
	assert.ErrorIs(t, err, ErrPending)

	r, err := c.CheckReceipt(context.Background(), "0xabc")
	require.NoError(t, err)
	assert.True(t, r.Confirmed())

	broken := newTestClient(&fakeBackend{failWith: errors.New("connection refused")})
	_, err = broken.CheckReceipt(context.Background(), "0xabc")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrPending)
}

func TestClient_ReadOnlySubmit(t *testing.T) {
	c := newTestClient(&fakeBackend{})
	assert.True(t, c.ReadOnly())

	_, err := c.CreateProposal(context.Background(), ProposalDraft{Title: "t", Description: "d", DurationSeconds: 60})
	assert.ErrorIs(t, err, gov.ErrTransactionFailed)
}

func TestClient_HasVotedRejectsNonEVMAddress(t *testing.T) {
	c := newTestClient(&fakeBackend{})
	_, err := c.HasVoted(context.Background(), 1, "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY")
	assert.ErrorIs(t, err, gov.ErrValidation)
}

func TestRetryableRead(t *testing.T) {
	assert.True(t, retryableRead(errors.New("429 Too Many Requests")))
	assert.True(t, retryableRead(errors.New("connection reset by peer")))
	assert.False(t, retryableRead(errors.New("execution reverted")))
	assert.False(t, retryableRead(context.Canceled))
}

func TestDialRequiresEndpoint(t *testing.T) {
	_, err := Dial(context.Background(), config.Chain{}, zap.NewNop().Sugar())
	assert.Error(t, err)

	_, err = Dial(context.Background(), config.Chain{RPCURL: "http://localhost:8545", GovernanceAddress: "nope"}, zap.NewNop().Sugar())
	assert.Error(t, err)
}

func signedTx(t *testing.T, to *common.Address, data []byte) (*types.Transaction, string) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	tx, err := types.SignTx(types.NewTx(&types.LegacyTx{
		Nonce:    1,
		To:       to,
		Gas:      100000,
		GasPrice: big.NewInt(1),
		Data:     data,
	}), types.LatestSignerForChainID(big.NewInt(1)), key)
	require.NoError(t, err)
	return tx, hexutil.Encode(crypto.PubkeyToAddress(key.PublicKey).Bytes())
}

func TestClient_VoteCallRoundTrip(t *testing.T) {
	c := newTestClient(&fakeBackend{})

	call, err := c.VoteCall(5, true, 3)
	require.NoError(t, err)
	assert.Equal(t, "0x00000000000000000000000000000000000000aa", call.To)
	assert.Equal(t, int64(1), call.ChainID)

	data, err := hexutil.Decode(call.Data)
	require.NoError(t, err)
	tx, from := signedTx(t, &contractAddr, data)

	c = newTestClient(&fakeBackend{tx: tx})
	got, err := c.VoteFromTx(context.Background(), tx.Hash().Hex())
	require.NoError(t, err)
	assert.Equal(t, &VoteTx{From: from, ProposalID: 5, Support: true, Weight: 3}, got)
}

func TestClient_VoteFromTxRejectsOtherTransactions(t *testing.T) {
	ctx := context.Background()
	vote, err := packVote(5, true, 3)
	require.NoError(t, err)
	count, err := parsedABI.Pack(methodGetProposalCount)
	require.NoError(t, err)
	other := common.HexToAddress("0x00000000000000000000000000000000000000bb")

	toOther, _ := signedTx(t, &other, vote)
	transfer, _ := signedTx(t, &contractAddr, nil)
	wrongMethod, _ := signedTx(t, &contractAddr, count)
	deploy, _ := signedTx(t, nil, vote)

	for name, tx := range map[string]*types.Transaction{
		"other contract":  toOther,
		"plain transfer":  transfer,
		"other method":    wrongMethod,
		"contract deploy": deploy,
	} {
		c := newTestClient(&fakeBackend{tx: tx})
		_, err := c.VoteFromTx(ctx, tx.Hash().Hex())
		assert.ErrorIs(t, err, gov.ErrValidation, name)
	}

	_, err = newTestClient(&fakeBackend{}).VoteFromTx(ctx, "0x"+strings.Repeat("ab", 32))
	assert.ErrorIs(t, err, gov.ErrValidation)
}

func TestParseTxHash(t *testing.T) {
	h, err := ParseTxHash(" 0x" + strings.Repeat("AB", 32))
	require.NoError(t, err)
	assert.Equal(t, "0x"+strings.Repeat("ab", 32), h)

	for _, bad := range []string{"", "0x1234", strings.Repeat("ab", 33), "0x" + strings.Repeat("zz", 32)} {
		_, err := ParseTxHash(bad)
		assert.ErrorIs(t, err, gov.ErrValidation, bad)
	}
}
