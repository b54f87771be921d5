package webserver

import (
	"context"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/stake-plus/netstate-gov/src/analysis"
	"github.com/stake-plus/netstate-gov/src/config"
	"github.com/stake-plus/netstate-gov/src/data"
	"github.com/stake-plus/netstate-gov/src/events"
	"github.com/stake-plus/netstate-gov/src/metrics"
	"github.com/stake-plus/netstate-gov/src/store"
	"github.com/stake-plus/netstate-gov/src/voting"
)

// Deps are the services the HTTP API is built on.
type Deps struct {
	Store    *store.Store
	Voting   *voting.Service
	Nonces   data.NonceStore
	Bus      events.Bus
	Live     *metrics.Live
	Gatherer prometheus.Gatherer
	// Analyzer is nil when no AI provider is configured.
	Analyzer *analysis.Analyzer
	Log      *zap.SugaredLogger
}

// New builds the gin engine. ctx bounds the rate limiter's cleanup loop.
func New(ctx context.Context, cfg config.Config, d Deps) *gin.Engine {
	if !cfg.App.IsDevEnvironment() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	attachRoutes(ctx, r, cfg, d)
	return r
}

func attachRoutes(ctx context.Context, r *gin.Engine, cfg config.Config, d Deps) {
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.HTTP.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "If-None-Match"},
		ExposeHeaders:    []string{"Content-Length", "ETag"},
		AllowCredentials: true,
	}))

	secret := []byte(cfg.App.JWTSecret)
	limiter := NewRateLimiter(ctx, cfg.HTTP.RateLimit, cfg.HTTP.RateWindow)

	authH := NewAuth(d.Nonces, secret, d.Log)
	propH := NewProposals(d.Store, d.Voting, d.Log)
	voteH := NewVotes(d.Store, d.Voting, d.Log)
	commH := NewCommunity(d.Store, d.Log)
	liveH := NewLive(d.Store, d.Bus, d.Live, d.Log)

	r.GET("/healthz", liveH.Health)
	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	v1 := r.Group("/v1")
	{
		v1.POST("/auth/challenge", RateLimitMiddleware(limiter), authH.Challenge)
		v1.POST("/auth/verify", RateLimitMiddleware(limiter), authH.Verify)

		v1.GET("/proposals", propH.List)
		v1.GET("/proposals/:id", propH.Get)
		v1.GET("/proposals/:id/votes", propH.Votes)
		v1.GET("/forum", commH.Forum)
		v1.GET("/network-states", commH.NetworkStates)
		v1.GET("/analyses", commH.Analyses)
		v1.GET("/metrics", liveH.Metrics)
		v1.GET("/events", liveH.Events)

		secured := v1.Group("", JWTMiddleware(secret), RateLimitMiddleware(limiter))
		secured.POST("/proposals", propH.Create)
		secured.POST("/proposals/:id/votes", voteH.Cast)
		secured.DELETE("/proposals/:id/votes", voteH.Remove)
		secured.GET("/proposals/:id/voted", voteH.Voted)
		secured.POST("/proposals/:id/votes/receipts", voteH.Receipt)

		secured.GET("/citizens/me", commH.Me)
		secured.POST("/citizens/me", commH.Register)
		secured.POST("/citizens/me/points", commH.AddPoints)
		secured.POST("/forum", commH.Post)
		secured.POST("/forum/:id/like", commH.Like)
		secured.GET("/activities", commH.Activities)
		secured.POST("/activities", commH.RecordActivity)
		secured.POST("/network-states/partnerships", commH.Partner)
		secured.POST("/analyses", commH.SaveAnalysis)
		if d.Analyzer != nil {
			secured.POST("/proposals/:id/analysis", NewAnalysis(d.Analyzer, d.Log).Analyze)
		}
	}
}
