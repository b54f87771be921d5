// Package store is the off-chain relational store. Every mutation publishes a
// change event so subscribers see the same feed the database does.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/stake-plus/netstate-gov/src/events"
	"github.com/stake-plus/netstate-gov/src/shared/gov"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Store groups the repositories over one database handle.
type Store struct {
	db  *gorm.DB
	pub events.Publisher
	log *zap.SugaredLogger

	Proposals     ProposalRepository
	Votes         VoteRepository
	Citizens      CitizenRepository
	Forum         ForumRepository
	Activities    ActivityRepository
	NetworkStates NetworkStateRepository
	Analyses      AnalysisRepository
	Outbox        OutboxRepository
}

func New(db *gorm.DB, pub events.Publisher, log *zap.SugaredLogger) *Store {
	if pub == nil {
		pub = events.Nop()
	}

	return &Store{
		db:            db,
		pub:           pub,
		log:           log,
		Proposals:     NewProposalRepository(db, pub, log),
		Votes:         NewVoteRepository(db, pub, log),
		Citizens:      NewCitizenRepository(db, pub, log),
		Forum:         NewForumRepository(db, pub, log),
		Activities:    NewActivityRepository(db, pub, log),
		NetworkStates: NewNetworkStateRepository(db, pub, log),
		Analyses:      NewAnalysisRepository(db, pub, log),
		Outbox:        NewOutboxRepository(db, log),
	}
}

// DB exposes the handle for health checks and migrations.
func (s *Store) DB() *gorm.DB { return s.db }

// Ping checks that the database answers.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return storageErr("ping", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return storageErr("ping", err)
	}
	return nil
}

type repository struct {
	db  *gorm.DB
	pub events.Publisher
	log *zap.SugaredLogger
}

// publish never fails the mutation that triggered it; subscribers resync from
// the store on reconnect.
func (r repository) publish(ctx context.Context, table string, typ events.ChangeType, id string, record any) {
	if err := r.pub.Publish(ctx, events.NewChange(table, typ, id, record)); err != nil {
		r.log.Warnw("failed to publish change", "table", table, "type", typ, "id", id, "error", err)
	}
}

func newID() string { return uuid.NewString() }

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", gov.ErrStorage, op, err)
}

// lookupErr maps a missing row to ErrNotFound and everything else to ErrStorage.
func lookupErr(what, id string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s %s", gov.ErrNotFound, what, id)
	}
	return storageErr("load "+what, err)
}

// Page bounds list queries.
type Page struct {
	Limit  int
	Offset int
}

const (
	defaultLimit = 50
	maxLimit     = 500
)

func (p Page) apply(q *gorm.DB) *gorm.DB {
	limit := p.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	q = q.Limit(limit)
	if p.Offset > 0 {
		q = q.Offset(p.Offset)
	}
	return q
}
