package webserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/stake-plus/netstate-gov/src/store"
	"github.com/stake-plus/netstate-gov/src/voting"
)

type Votes struct {
	store *store.Store
	svc   *voting.Service
	log   *zap.SugaredLogger
}

func NewVotes(s *store.Store, svc *voting.Service, log *zap.SugaredLogger) Votes {
	return Votes{store: s, svc: svc, log: log}
}

// Cast records off-chain votes directly. For anchored proposals it answers with
// the unsigned vote call; the wallet sends it and posts the hash to
// /votes/receipts.
func (v Votes) Cast(c *gin.Context) {
	var req struct {
		Support *bool  `json:"support" binding:"required"`
		Weight  uint64 `json:"weight"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}

	p, err := v.store.Proposals.Get(c, c.Param("id"))
	if err != nil {
		respondErr(c, v.log, err)
		return
	}

	cast := voting.CastRequest{
		ProposalID: p.ID,
		Voter:      c.GetString("addr"),
		Support:    *req.Support,
		Weight:     req.Weight,
	}

	var res *voting.CastResult
	if p.Anchored() {
		res, err = v.svc.PrepareOnChainVote(c, cast)
	} else {
		res, err = v.svc.CastOffChain(c, cast)
	}
	v.respondCast(c, res, err)
}

// Receipt registers a vote the wallet submitted on-chain. Support and weight
// come from the transaction itself.
func (v Votes) Receipt(c *gin.Context) {
	var req struct {
		TxHash string `json:"tx_hash" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}

	res, err := v.svc.TrackOnChainVote(c, req.TxHash, voting.CastRequest{
		ProposalID: c.Param("id"),
		Voter:      c.GetString("addr"),
	})
	v.respondCast(c, res, err)
}

func (v Votes) respondCast(c *gin.Context, res *voting.CastResult, err error) {
	if err != nil {
		if res != nil {
			v.log.Warnw("vote partially applied", "tx", res.TxHash, "state", res.State, "error", err)
			c.JSON(statusFor(err), gin.H{"err": err.Error(), "result": res})
			return
		}
		respondErr(c, v.log, err)
		return
	}
	c.JSON(attemptStatus(res.State), res)
}

func (v Votes) Remove(c *gin.Context) {
	t, err := v.svc.RemoveVote(c, c.Param("id"), c.GetString("addr"))
	if err != nil {
		respondErr(c, v.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tally": t})
}

func (v Votes) Voted(c *gin.Context) {
	e, err := v.svc.HasVoted(c, c.Param("id"), c.GetString("addr"))
	if err != nil {
		respondErr(c, v.log, err)
		return
	}
	c.JSON(http.StatusOK, e)
}
