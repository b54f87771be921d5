package webserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"unicode/utf8"

	"github.com/OneOfOne/xxhash"
	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/stake-plus/netstate-gov/src/shared/gov"
	"github.com/stake-plus/netstate-gov/src/store"
	"github.com/stake-plus/netstate-gov/src/voting"
)

type Proposals struct {
	store     *store.Store
	svc       *voting.Service
	log       *zap.SugaredLogger
	sanitizer *bluemonday.Policy
	strict    *bluemonday.Policy
}

func NewProposals(s *store.Store, svc *voting.Service, log *zap.SugaredLogger) Proposals {
	return Proposals{store: s, svc: svc, log: log, sanitizer: newSanitizer(), strict: bluemonday.StrictPolicy()}
}

// newSanitizer allows the basic markdown-rendered elements in long text.
func newSanitizer() *bluemonday.Policy {
	p := bluemonday.StrictPolicy()
	p.AllowElements("p", "br", "strong", "em", "code", "pre", "blockquote")
	p.AllowElements("ul", "ol", "li")
	p.AllowElements("h1", "h2", "h3", "h4", "h5", "h6")
	p.AllowAttrs("href").OnElements("a")
	p.RequireParseableURLs(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoFollowOnLinks(true)
	return p
}

func pageFrom(c *gin.Context) (store.Page, error) {
	var p store.Page
	var err error
	if v := c.Query("limit"); v != "" {
		if p.Limit, err = strconv.Atoi(v); err != nil || p.Limit < 0 {
			return p, fmt.Errorf("%w: bad limit", gov.ErrValidation)
		}
	}
	if v := c.Query("offset"); v != "" {
		if p.Offset, err = strconv.Atoi(v); err != nil || p.Offset < 0 {
			return p, fmt.Errorf("%w: bad offset", gov.ErrValidation)
		}
	}
	return p, nil
}

func (h Proposals) List(c *gin.Context) {
	page, err := pageFrom(c)
	if err != nil {
		respondErr(c, h.log, err)
		return
	}
	f := store.ProposalFilter{Page: page}
	if v := c.Query("status"); v != "" {
		n, err := strconv.ParseUint(v, 10, 8)
		if err != nil || n > uint64(gov.StatusRejected) {
			respondErr(c, h.log, fmt.Errorf("%w: bad status %q", gov.ErrValidation, v))
			return
		}
		status := gov.ProposalStatus(n)
		f.Status = &status
	}

	proposals, err := h.store.Proposals.List(c, f)
	if err != nil {
		respondErr(c, h.log, err)
		return
	}
	body, err := json.Marshal(proposals)
	if err != nil {
		respondErr(c, h.log, err)
		return
	}

	etag := fmt.Sprintf(`"%016x"`, xxhash.Checksum64(body))
	c.Header("ETag", etag)
	if c.GetHeader("If-None-Match") == etag {
		c.Status(http.StatusNotModified)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

func (h Proposals) Get(c *gin.Context) {
	p, err := h.store.Proposals.Get(c, c.Param("id"))
	if err != nil {
		respondErr(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h Proposals) Votes(c *gin.Context) {
	p, err := h.store.Proposals.Get(c, c.Param("id"))
	if err != nil {
		respondErr(c, h.log, err)
		return
	}
	votes, err := h.store.Votes.ListByProposal(c, p.ID)
	if err != nil {
		respondErr(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, votes)
}

func (h Proposals) Create(c *gin.Context) {
	var req struct {
		Title        string         `json:"title" binding:"required,max=255"`
		Description  string         `json:"description" binding:"required,max=20000"`
		Category     string         `json:"category" binding:"max=64"`
		VotingType   gov.VotingType `json:"voting_type"`
		DurationDays int            `json:"duration_days"`
		Anchor       bool           `json:"anchor"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}
	if !utf8.ValidString(req.Title) || !utf8.ValidString(req.Description) {
		c.JSON(http.StatusBadRequest, gin.H{"err": "invalid characters in input"})
		return
	}

	res, err := h.svc.CreateProposal(c, voting.CreateRequest{
		Title:        h.strict.Sanitize(req.Title),
		Description:  h.sanitizer.Sanitize(req.Description),
		Category:     h.strict.Sanitize(req.Category),
		VotingType:   req.VotingType,
		DurationDays: req.DurationDays,
		Proposer:     c.GetString("addr"),
		Anchor:       req.Anchor,
	})
	if err != nil {
		if res != nil && res.TxHash != "" {
			h.log.Warnw("proposal transaction not materialized", "tx", res.TxHash, "state", res.State, "error", err)
			c.JSON(statusFor(err), gin.H{"err": err.Error(), "tx_hash": res.TxHash, "state": res.State})
			return
		}
		respondErr(c, h.log, err)
		return
	}

	status := http.StatusCreated
	if res.Proposal == nil {
		status = attemptStatus(res.State)
	}
	c.JSON(status, res)
}
