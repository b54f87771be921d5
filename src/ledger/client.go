package ledger

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stake-plus/netstate-gov/src/config"
	"github.com/stake-plus/netstate-gov/src/logging"
	"github.com/stake-plus/netstate-gov/src/shared/gov"
	"github.com/stake-plus/netstate-gov/src/webclient"
	"go.uber.org/zap"
)

const (
	readAttempts   = 4
	readRetryDelay = 500 * time.Millisecond
)

// chainBackend is the part of ethclient.Client the ledger needs.
type chainBackend interface {
	bind.ContractBackend
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error)
}

type Client struct {
	backend      chainBackend
	contract     *bind.BoundContract
	address      common.Address
	chainID      *big.Int
	key          *ecdsa.PrivateKey
	pollInterval time.Duration
	log          *zap.SugaredLogger
}

// Dial connects to the RPC endpoint in cfg. Without a signer key the client is
// read-only.
func Dial(ctx context.Context, cfg config.Chain, log *zap.SugaredLogger) (*Client, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("ledger: RPC_URL and GOVERNANCE_ADDRESS are required")
	}
	if !common.IsHexAddress(cfg.GovernanceAddress) {
		return nil, fmt.Errorf("ledger: invalid governance address %q", cfg.GovernanceAddress)
	}

	rc, err := rpc.DialOptions(ctx, cfg.RPCURL, rpc.WithHTTPClient(webclient.NewDefault(cfg.RPCTimeout)))
	if err != nil {
		return nil, fmt.Errorf("ledger: dial %s: %w", cfg.RPCURL, err)
	}

	var key *ecdsa.PrivateKey
	if cfg.SignerKey != "" {
		key, err = crypto.HexToECDSA(strings.TrimPrefix(cfg.SignerKey, "0x"))
		if err != nil {
			rc.Close()
			return nil, fmt.Errorf("ledger: parse signer key: %w", err)
		}
	}

	return newClient(ethclient.NewClient(rc), common.HexToAddress(cfg.GovernanceAddress), cfg, key, log), nil
}

func newClient(backend chainBackend, address common.Address, cfg config.Chain, key *ecdsa.PrivateKey, log *zap.SugaredLogger) *Client {
	poll := cfg.ReceiptPollInterval
	if poll <= 0 {
		poll = 2 * time.Second
	}
	return &Client{
		backend:      backend,
		contract:     bind.NewBoundContract(address, parsedABI, backend, backend, backend),
		address:      address,
		chainID:      big.NewInt(cfg.ChainID),
		key:          key,
		pollInterval: poll,
		log:          log,
	}
}

// Address is the Governance contract address.
func (c *Client) Address() common.Address { return c.address }

// ReadOnly reports whether the client has no signer.
func (c *Client) ReadOnly() bool { return c.key == nil }

func (c *Client) Submit(ctx context.Context, method string, args ...interface{}) (string, error) {
	if c.key == nil {
		return "", fmt.Errorf("%w: ledger is read-only, no signer key configured", gov.ErrTransactionFailed)
	}

	opts, err := bind.NewKeyedTransactorWithChainID(c.key, c.chainID)
	if err != nil {
		return "", fmt.Errorf("%w: transactor: %w", gov.ErrTransactionFailed, err)
	}
	opts.Context = ctx

	tx, err := c.contract.Transact(opts, method, args...)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", gov.ErrTransactionFailed, method, err)
	}

	hash := tx.Hash().Hex()
	c.log.Infow("transaction submitted", "method", method, "tx", hash)
	return hash, nil
}

func (c *Client) Read(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	var out []interface{}
	err := webclient.DoWithRetry(ctx, readAttempts, readRetryDelay, retryableRead, func() error {
		out = nil
		return c.contract.Call(&bind.CallOpts{Context: ctx}, &out, method, args...)
	})
	if err != nil {
		return nil, fmt.Errorf("ledger read %s: %w", method, err)
	}
	return out, nil
}

func retryableRead(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if logging.IsRateLimit(err) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return !strings.Contains(msg, "revert") && !strings.Contains(msg, "abi:")
}

// CheckReceipt returns ErrPending until the transaction is mined.
func (c *Client) CheckReceipt(ctx context.Context, txHash string) (*Receipt, error) {
	r, err := c.backend.TransactionReceipt(ctx, common.HexToHash(txHash))
	if errors.Is(err, ethereum.NotFound) {
		return nil, ErrPending
	}
	if err != nil {
		return nil, fmt.Errorf("ledger receipt %s: %w", txHash, err)
	}
	return toReceipt(txHash, r), nil
}

// WaitForReceipt polls until the transaction is mined or ctx is done. No
// deadline is imposed beyond ctx.
func (c *Client) WaitForReceipt(ctx context.Context, txHash string) (*Receipt, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		r, err := c.CheckReceipt(ctx, txHash)
		switch {
		case err == nil:
			return r, nil
		case errors.Is(err, ErrPending):
		case logging.IsRateLimit(err):
			c.log.Warnw("receipt poll throttled", "tx", txHash, "error", err)
		default:
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func toReceipt(txHash string, r *types.Receipt) *Receipt {
	out := &Receipt{TxHash: txHash, Status: ReceiptReverted, Logs: r.Logs}
	if r.Status == types.ReceiptStatusSuccessful {
		out.Status = ReceiptConfirmed
	}
	if r.BlockNumber != nil {
		out.BlockNumber = r.BlockNumber.Uint64()
	}
	return out
}

func (c *Client) CreateProposal(ctx context.Context, d ProposalDraft) (string, error) {
	return c.Submit(ctx, methodCreateProposal,
		d.Title, d.Description, uint8(d.VotingType), new(big.Int).SetUint64(d.DurationSeconds), d.Category)
}

func (c *Client) VoteCall(proposalID uint64, support bool, weight uint64) (Call, error) {
	data, err := packVote(proposalID, support, weight)
	if err != nil {
		return Call{}, fmt.Errorf("%w: pack vote: %w", gov.ErrValidation, err)
	}
	return Call{To: strings.ToLower(c.address.Hex()), Data: hexutil.Encode(data), ChainID: c.chainID.Int64()}, nil
}

func (c *Client) VoteFromTx(ctx context.Context, txHash string) (*VoteTx, error) {
	hash, err := ParseTxHash(txHash)
	if err != nil {
		return nil, err
	}

	tx, pending, err := c.backend.TransactionByHash(ctx, common.HexToHash(hash))
	if errors.Is(err, ethereum.NotFound) {
		return nil, fmt.Errorf("%w: transaction %s is unknown to the node", gov.ErrValidation, hash)
	}
	if err != nil {
		return nil, fmt.Errorf("ledger transaction %s: %w", hash, err)
	}

	if to := tx.To(); to == nil || *to != c.address {
		return nil, fmt.Errorf("%w: transaction %s is not sent to the governance contract", gov.ErrValidation, hash)
	}
	from, err := types.Sender(types.LatestSignerForChainID(c.chainID), tx)
	if err != nil {
		return nil, fmt.Errorf("%w: transaction %s sender: %w", gov.ErrValidation, hash, err)
	}
	id, support, weight, err := unpackVote(tx.Data())
	if err != nil {
		return nil, fmt.Errorf("%w: transaction %s: %w", gov.ErrValidation, hash, err)
	}

	return &VoteTx{
		From:       strings.ToLower(from.Hex()),
		ProposalID: id,
		Support:    support,
		Weight:     weight,
		Pending:    pending,
	}, nil
}

func (c *Client) HasVoted(ctx context.Context, proposalID uint64, voter string) (bool, error) {
	if !common.IsHexAddress(voter) {
		return false, fmt.Errorf("%w: %q is not an EVM address", gov.ErrValidation, voter)
	}

	out, err := c.Read(ctx, methodHasVoted, new(big.Int).SetUint64(proposalID), common.HexToAddress(voter))
	if err != nil {
		return false, err
	}
	if len(out) != 1 {
		return false, fmt.Errorf("ledger read %s: unexpected %d outputs", methodHasVoted, len(out))
	}
	voted, ok := out[0].(bool)
	if !ok {
		return false, fmt.Errorf("ledger read %s: unexpected output %T", methodHasVoted, out[0])
	}
	return voted, nil
}

func (c *Client) ProposalCount(ctx context.Context) (uint64, error) {
	out, err := c.Read(ctx, methodGetProposalCount)
	if err != nil {
		return 0, err
	}
	if len(out) != 1 {
		return 0, fmt.Errorf("ledger read %s: unexpected %d outputs", methodGetProposalCount, len(out))
	}
	n, ok := out[0].(*big.Int)
	if !ok || !n.IsUint64() {
		return 0, fmt.Errorf("ledger read %s: unexpected output %v", methodGetProposalCount, out[0])
	}
	return n.Uint64(), nil
}

func (c *Client) ProposalIDFromReceipt(r *Receipt) (uint64, bool) {
	if r == nil {
		return 0, false
	}
	return ProposalIDFromLogs(c.address, r.Logs)
}

var _ Ledger = (*Client)(nil)
