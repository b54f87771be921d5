// Package metrics keeps live platform counters computed from the store and
// exports them as Prometheus gauges.
package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stake-plus/netstate-gov/src/events"
	"github.com/stake-plus/netstate-gov/src/shared/gov"
	"github.com/stake-plus/netstate-gov/src/store"
	"go.uber.org/zap"
)

const (
	namespace      = "netstate"
	voterWindow    = 24 * time.Hour
	refreshBackoff = time.Second
)

// Snapshot is the set of live counters shown on the dashboard.
type Snapshot struct {
	Citizens        int64     `json:"citizens"`
	ActiveProposals int64     `json:"active_proposals"`
	Votes           int64     `json:"votes"`
	ForumPosts      int64     `json:"forum_posts"`
	ActiveVoters24h int64     `json:"active_voters_24h"`
	OutboxPending   int64     `json:"outbox_pending"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type Live struct {
	store *store.Store
	log   *zap.SugaredLogger
	now   func() time.Time

	mu   sync.RWMutex
	snap Snapshot

	citizens        prometheus.Gauge
	activeProposals prometheus.Gauge
	votes           prometheus.Gauge
	forumPosts      prometheus.Gauge
	activeVoters    prometheus.Gauge
	outbox          *prometheus.GaugeVec
	refreshErrors   prometheus.Counter
}

func NewLive(s *store.Store, reg prometheus.Registerer, log *zap.SugaredLogger) (*Live, error) {
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help})
	}

	l := &Live{
		store:           s,
		log:             log,
		now:             time.Now,
		citizens:        gauge("citizens", "Citizens holding a Civic ID."),
		activeProposals: gauge("active_proposals", "Proposals open for voting."),
		votes:           gauge("votes", "Vote rows across all proposals."),
		forumPosts:      gauge("forum_posts", "Citizen forum threads."),
		activeVoters:    gauge("active_voters_24h", "Distinct voters in the last 24 hours."),
		outbox: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "outbox_entries",
			Help:      "On-chain attempts by state.",
		}, []string{"state"}),
		refreshErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "metrics_refresh_errors_total",
			Help:      "Failed live metric refreshes.",
		}),
	}

	for _, c := range []prometheus.Collector{l.citizens, l.activeProposals, l.votes, l.forumPosts, l.activeVoters, l.outbox, l.refreshErrors} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return l, nil
}

func (l *Live) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.snap
}

// Refresh recomputes every counter from the store.
func (l *Live) Refresh(ctx context.Context) error {
	var (
		s   Snapshot
		err error
	)

	if s.Citizens, err = l.store.Citizens.Count(ctx); err != nil {
		return l.fail(err)
	}
	if s.ActiveProposals, err = l.store.Proposals.CountByStatus(ctx, gov.StatusActive); err != nil {
		return l.fail(err)
	}
	if s.Votes, err = l.store.Votes.Count(ctx); err != nil {
		return l.fail(err)
	}
	if s.ForumPosts, err = l.store.Forum.Count(ctx); err != nil {
		return l.fail(err)
	}
	if s.ActiveVoters24h, err = l.store.Votes.CountVotersSince(ctx, l.now().Add(-voterWindow)); err != nil {
		return l.fail(err)
	}
	outbox, err := l.store.Outbox.CountByState(ctx)
	if err != nil {
		return l.fail(err)
	}
	s.OutboxPending = outbox[gov.AttemptSubmitted] + outbox[gov.AttemptConfirmed]
	s.UpdatedAt = l.now().UTC()

	l.citizens.Set(float64(s.Citizens))
	l.activeProposals.Set(float64(s.ActiveProposals))
	l.votes.Set(float64(s.Votes))
	l.forumPosts.Set(float64(s.ForumPosts))
	l.activeVoters.Set(float64(s.ActiveVoters24h))
	for _, st := range []gov.AttemptState{gov.AttemptSubmitted, gov.AttemptConfirmed, gov.AttemptMirrored, gov.AttemptFailed} {
		l.outbox.WithLabelValues(string(st)).Set(float64(outbox[st]))
	}

	l.mu.Lock()
	l.snap = s
	l.mu.Unlock()
	return nil
}

func (l *Live) fail(err error) error {
	l.refreshErrors.Inc()
	return err
}

// Run refreshes once, then again after every burst of relevant changes until
// ctx is done. Bursts are coalesced into one refresh per second.
func (l *Live) Run(ctx context.Context, bus events.Bus) error {
	changes, err := bus.Subscribe(ctx, events.TableCitizens, events.TableProposals, events.TableVotes, events.TableForumPosts)
	if err != nil {
		return err
	}

	if err := l.Refresh(ctx); err != nil {
		l.log.Warnw("initial metrics refresh failed", "error", err)
	}

	var (
		timer <-chan time.Time
		dirty bool
	)
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-changes:
			if !ok {
				return nil
			}
			if !dirty {
				dirty = true
				timer = time.After(refreshBackoff)
			}
		case <-timer:
			dirty, timer = false, nil
			if err := l.Refresh(ctx); err != nil {
				l.log.Warnw("metrics refresh failed", "error", err)
			}
		}
	}
}
