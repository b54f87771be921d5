package webserver

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/stake-plus/netstate-gov/src/shared/gov"
	"github.com/stake-plus/netstate-gov/src/store"
)

const maxPointsPerAward = 1000

// Community serves the citizen, forum, activity, network state and analysis
// tables.
type Community struct {
	store     *store.Store
	log       *zap.SugaredLogger
	sanitizer *bluemonday.Policy
	strict    *bluemonday.Policy
}

func NewCommunity(s *store.Store, log *zap.SugaredLogger) Community {
	return Community{store: s, log: log, sanitizer: newSanitizer(), strict: bluemonday.StrictPolicy()}
}

func (h Community) Me(c *gin.Context) {
	citizen, err := h.store.Citizens.GetByWallet(c, c.GetString("addr"))
	if err != nil {
		respondErr(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, citizen)
}

// Register issues a Civic ID for the authenticated wallet.
func (h Community) Register(c *gin.Context) {
	var req struct {
		Name      string `json:"name" binding:"max=128"`
		Residency string `json:"residency" binding:"max=64"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}

	citizen := &gov.Citizen{
		WalletAddress: c.GetString("addr"),
		Residency:     h.strict.Sanitize(req.Residency),
		IsVerified:    true,
	}
	if name := h.strict.Sanitize(req.Name); name != "" {
		citizen.Name = &name
	}
	if err := h.store.Citizens.Create(c, citizen); err != nil {
		respondErr(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, citizen)
}

func (h Community) AddPoints(c *gin.Context) {
	var req struct {
		Points int64 `json:"points" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}
	if req.Points > maxPointsPerAward {
		c.JSON(http.StatusBadRequest, gin.H{"err": "too many points in one award"})
		return
	}

	citizen, err := h.store.Citizens.AddCivicPoints(c, c.GetString("addr"), req.Points)
	if err != nil {
		respondErr(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, citizen)
}

func (h Community) Forum(c *gin.Context) {
	page, err := pageFrom(c)
	if err != nil {
		respondErr(c, h.log, err)
		return
	}
	posts, err := h.store.Forum.List(c, page)
	if err != nil {
		respondErr(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, posts)
}

func (h Community) Post(c *gin.Context) {
	var req struct {
		Title        string   `json:"title" binding:"required,max=255"`
		Content      string   `json:"content" binding:"required,max=10000"`
		Category     string   `json:"category" binding:"max=64"`
		Tags         []string `json:"tags" binding:"max=10,dive,max=32"`
		NetworkState string   `json:"network_state" binding:"max=128"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}

	tags := make(gov.StringSlice, 0, len(req.Tags))
	for _, t := range req.Tags {
		if t = h.strict.Sanitize(t); t != "" {
			tags = append(tags, t)
		}
	}
	post := &gov.ForumPost{
		Title:         h.strict.Sanitize(req.Title),
		Content:       h.sanitizer.Sanitize(req.Content),
		AuthorAddress: c.GetString("addr"),
		Category:      h.strict.Sanitize(req.Category),
		Tags:          tags,
		NetworkState:  h.strict.Sanitize(req.NetworkState),
	}
	if post.Title == "" || post.Content == "" {
		c.JSON(http.StatusBadRequest, gin.H{"err": "title and content are required"})
		return
	}
	if err := h.store.Forum.Create(c, post); err != nil {
		respondErr(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, post)
}

func (h Community) Like(c *gin.Context) {
	post, err := h.store.Forum.Like(c, c.Param("id"))
	if err != nil {
		respondErr(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

func (h Community) Activities(c *gin.Context) {
	page, err := pageFrom(c)
	if err != nil {
		respondErr(c, h.log, err)
		return
	}
	addr := c.GetString("addr")
	list, err := h.store.Activities.ListByUser(c, addr, page)
	if err != nil {
		respondErr(c, h.log, err)
		return
	}
	total, err := h.store.Activities.TotalPoints(c, addr)
	if err != nil {
		respondErr(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"activities": list, "total_points": total})
}

func (h Community) RecordActivity(c *gin.Context) {
	var req struct {
		ActivityType string `json:"activity_type" binding:"required,max=64"`
		Description  string `json:"description" binding:"required,max=1000"`
		Points       int64  `json:"points" binding:"min=0"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}
	if req.Points > maxPointsPerAward {
		c.JSON(http.StatusBadRequest, gin.H{"err": "too many points in one award"})
		return
	}

	a := &gov.Activity{
		UserAddress:  c.GetString("addr"),
		ActivityType: h.strict.Sanitize(req.ActivityType),
		Description:  h.strict.Sanitize(req.Description),
		Points:       req.Points,
	}
	if err := h.store.Activities.Record(c, a); err != nil {
		respondErr(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

func (h Community) NetworkStates(c *gin.Context) {
	states, err := h.store.NetworkStates.List(c)
	if err != nil {
		respondErr(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, states)
}

func (h Community) Partner(c *gin.Context) {
	var req struct {
		From string `json:"from" binding:"required"`
		To   string `json:"to" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}

	states, err := h.store.NetworkStates.Partner(c, req.From, req.To)
	if err != nil {
		respondErr(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, states)
}

func (h Community) Analyses(c *gin.Context) {
	page, err := pageFrom(c)
	if err != nil {
		respondErr(c, h.log, err)
		return
	}
	list, err := h.store.Analyses.List(c, c.Query("proposal_id"), page)
	if err != nil {
		respondErr(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h Community) SaveAnalysis(c *gin.Context) {
	var req struct {
		ProposalID         string   `json:"proposal_id" binding:"required"`
		EconomicImpact     float64  `json:"economic_impact" binding:"min=0,max=100"`
		CitizenSentiment   float64  `json:"citizen_sentiment" binding:"min=0,max=100"`
		ImplementationRisk float64  `json:"implementation_risk" binding:"min=0,max=100"`
		Recommendation     string   `json:"recommendation" binding:"required,max=64"`
		Confidence         float64  `json:"confidence" binding:"min=0,max=100"`
		Reasoning          []string `json:"reasoning" binding:"max=20"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}

	if _, err := h.store.Proposals.Get(c, req.ProposalID); err != nil {
		if errors.Is(err, gov.ErrNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{"err": "unknown proposal"})
			return
		}
		respondErr(c, h.log, err)
		return
	}

	reasoning := make(gov.StringSlice, 0, len(req.Reasoning))
	for _, r := range req.Reasoning {
		reasoning = append(reasoning, h.strict.Sanitize(r))
	}
	a := &gov.AIAnalysis{
		ProposalID:         req.ProposalID,
		EconomicImpact:     req.EconomicImpact,
		CitizenSentiment:   req.CitizenSentiment,
		ImplementationRisk: req.ImplementationRisk,
		Recommendation:     h.strict.Sanitize(req.Recommendation),
		Confidence:         req.Confidence,
		Reasoning:          reasoning,
	}
	if err := h.store.Analyses.Save(c, a); err != nil {
		respondErr(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}
