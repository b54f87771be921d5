package webserver

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/stake-plus/netstate-gov/src/events"
	"github.com/stake-plus/netstate-gov/src/metrics"
	"github.com/stake-plus/netstate-gov/src/store"
)

const keepAlive = 15 * time.Second

var streamTables = map[string]bool{
	events.TableProposals:     true,
	events.TableVotes:         true,
	events.TableCitizens:      true,
	events.TableForumPosts:    true,
	events.TableActivities:    true,
	events.TableNetworkStates: true,
	events.TableAIAnalyses:    true,
}

// Live serves the change feed, the live counters and health.
type Live struct {
	store *store.Store
	bus   events.Bus
	live  *metrics.Live
	log   *zap.SugaredLogger
}

func NewLive(s *store.Store, bus events.Bus, live *metrics.Live, log *zap.SugaredLogger) Live {
	return Live{store: s, bus: bus, live: live, log: log}
}

// Events streams row changes as Server-Sent Events. ?tables=a,b narrows the feed.
func (h Live) Events(c *gin.Context) {
	var tables []string
	if v := c.Query("tables"); v != "" {
		for _, t := range strings.Split(v, ",") {
			t = strings.TrimSpace(t)
			if !streamTables[t] {
				c.JSON(http.StatusBadRequest, gin.H{"err": "unknown table " + t})
				return
			}
			tables = append(tables, t)
		}
	}

	ctx := c.Request.Context()
	changes, err := h.bus.Subscribe(ctx, tables...)
	if err != nil {
		respondErr(c, h.log, err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	// headers go out once subscribed so clients know the feed is live
	c.Status(http.StatusOK)
	c.Writer.Flush()

	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case ch, ok := <-changes:
			if !ok {
				return false
			}
			c.SSEvent("change", ch)
			return true
		case <-ticker.C:
			c.SSEvent("ping", time.Now().UTC().Unix())
			return true
		}
	})
}

func (h Live) Metrics(c *gin.Context) {
	c.JSON(http.StatusOK, h.live.Snapshot())
}

func (h Live) Health(c *gin.Context) {
	if err := h.store.Ping(c); err != nil {
		h.log.Warnw("health check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"err": "database unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
