package webserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stake-plus/netstate-gov/src/data"
	"github.com/stake-plus/netstate-gov/src/shared/gov"
)

type Auth struct {
	nonces    data.NonceStore
	jwtSecret []byte
	log       *zap.SugaredLogger
}

func NewAuth(nonces data.NonceStore, secret []byte, log *zap.SugaredLogger) Auth {
	return Auth{nonces: nonces, jwtSecret: secret, log: log}
}

func (a Auth) Challenge(c *gin.Context) {
	var req struct {
		Address string `json:"address" binding:"required"`
		Method  string `json:"method"  binding:"required,oneof=evm substrate"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}
	nonce := "netstate:" + uuid.NewString()
	if err := a.nonces.SetNonce(c, gov.NormalizeAddress(req.Address), nonce); err != nil {
		a.log.Errorw("failed to store nonce", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"err": "could not issue challenge"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"nonce": nonce})
}

func (a Auth) Verify(c *gin.Context) {
	var req struct {
		Address   string `json:"address"   binding:"required"`
		Method    string `json:"method"    binding:"required,oneof=evm substrate"`
		Signature string `json:"signature" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}
	addr := gov.NormalizeAddress(req.Address)
	nonce, err := a.nonces.GetAndDelNonce(c, addr)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"err": "challenge expired"})
		return
	}

	if err := verifySignature(req.Method, req.Address, req.Signature, nonce); err != nil {
		a.log.Debugw("signature rejected", "address", addr, "method", req.Method, "error", err)
		c.JSON(http.StatusUnauthorized, gin.H{"err": "bad signature"})
		return
	}
	token, err := issueJWT(addr, a.jwtSecret)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}
