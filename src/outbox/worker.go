// Package outbox drives on-chain attempts from Submitted to Mirrored. Entries are
// keyed by transaction hash, so a mirror write that fails is retried on the next
// drain instead of being lost.
package outbox

import (
	"context"
	"errors"
	"fmt"

	"github.com/stake-plus/netstate-gov/src/ledger"
	"github.com/stake-plus/netstate-gov/src/shared/gov"
	"github.com/stake-plus/netstate-gov/src/store"
	"go.uber.org/zap"
)

const defaultBatch = 100

// Handler writes the off-chain mirror of a confirmed transaction. It must be
// idempotent; the same entry may be handed over more than once.
type Handler func(ctx context.Context, e gov.MirrorEntry, r *ledger.Receipt) error

// ReceiptChecker is the non-blocking receipt lookup of the ledger.
type ReceiptChecker interface {
	CheckReceipt(ctx context.Context, txHash string) (*ledger.Receipt, error)
}

type Worker struct {
	repo     store.OutboxRepository
	chain    ReceiptChecker
	handlers map[gov.MirrorKind]Handler
	batch    int
	log      *zap.SugaredLogger
}

func NewWorker(repo store.OutboxRepository, chain ReceiptChecker, log *zap.SugaredLogger) *Worker {
	return &Worker{
		repo:     repo,
		chain:    chain,
		handlers: make(map[gov.MirrorKind]Handler),
		batch:    defaultBatch,
		log:      log,
	}
}

// Handle registers the mirror handler for kind. Not safe to call concurrently
// with Drain.
func (w *Worker) Handle(kind gov.MirrorKind, h Handler) {
	w.handlers[kind] = h
}

type DrainResult struct {
	Checked  int `json:"checked"`
	Mirrored int `json:"mirrored"`
	Failed   int `json:"failed"`
	Pending  int `json:"pending"`
}

// Drain checks up to one batch of non-terminal entries, least recently checked
// first. Every checked entry is stamped, so entries that stay pending rotate to
// the back and never hide newer ones.
func (w *Worker) Drain(ctx context.Context) (DrainResult, error) {
	var res DrainResult

	entries, err := w.repo.ListPending(ctx, w.batch)
	if err != nil {
		return res, err
	}

	for _, e := range entries {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		res.Checked++

		state, err := w.process(ctx, e)
		if err != nil {
			w.log.Warnw("outbox entry not settled", "tx", e.TxHash, "kind", e.Kind, "state", state, "error", err)
		}
		switch state {
		case gov.AttemptMirrored:
			res.Mirrored++
		case gov.AttemptFailed:
			res.Failed++
		default:
			res.Pending++
		}
	}

	if res.Checked > 0 {
		w.log.Infow("outbox drained", "checked", res.Checked, "mirrored", res.Mirrored, "failed", res.Failed, "pending", res.Pending)
	}
	return res, nil
}

func (w *Worker) process(ctx context.Context, e gov.MirrorEntry) (gov.AttemptState, error) {
	if w.chain == nil {
		return e.State, fmt.Errorf("no ledger configured")
	}

	r, err := w.chain.CheckReceipt(ctx, e.TxHash)
	if errors.Is(err, ledger.ErrPending) {
		// Moves the entry behind the rest of the backlog.
		if err := w.repo.Touch(ctx, e.TxHash); err != nil {
			w.log.Errorw("failed to touch outbox entry", "tx", e.TxHash, "error", err)
		}
		return e.State, nil
	}
	if err != nil {
		w.recordFailure(ctx, e.TxHash, err)
		return e.State, err
	}
	return w.Settle(ctx, e, r)
}

// Settle applies a mined receipt to e: a revert fails the attempt, a success is
// confirmed and then mirrored. When the mirror write fails the entry stays
// Confirmed for the next drain.
func (w *Worker) Settle(ctx context.Context, e gov.MirrorEntry, r *ledger.Receipt) (gov.AttemptState, error) {
	if !r.Confirmed() {
		if err := w.repo.Transition(ctx, e.TxHash, gov.AttemptFailed); err != nil {
			return e.State, err
		}
		return gov.AttemptFailed, fmt.Errorf("%w: %s reverted", gov.ErrTransactionFailed, e.TxHash)
	}

	if e.State != gov.AttemptConfirmed {
		if err := w.repo.Transition(ctx, e.TxHash, gov.AttemptConfirmed); err != nil {
			return e.State, err
		}
		e.State = gov.AttemptConfirmed
	}

	h, ok := w.handlers[e.Kind]
	if !ok {
		err := fmt.Errorf("no mirror handler for %q", e.Kind)
		w.recordFailure(ctx, e.TxHash, err)
		return e.State, err
	}

	if err := h(ctx, e, r); err != nil {
		w.recordFailure(ctx, e.TxHash, err)
		return e.State, err
	}

	if err := w.repo.Transition(ctx, e.TxHash, gov.AttemptMirrored); err != nil {
		return e.State, err
	}
	return gov.AttemptMirrored, nil
}

func (w *Worker) recordFailure(ctx context.Context, txHash string, cause error) {
	if err := w.repo.RecordFailure(ctx, txHash, cause); err != nil {
		w.log.Errorw("failed to record outbox failure", "tx", txHash, "error", err)
	}
}
