package webserver

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/stake-plus/netstate-gov/src/shared/gov"
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, gov.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, gov.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, gov.ErrAlreadyVoted):
		return http.StatusConflict
	case errors.Is(err, gov.ErrTransactionFailed), errors.Is(err, gov.ErrUpstream):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func respondErr(c *gin.Context, log *zap.SugaredLogger, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Errorw("request failed", "path", c.FullPath(), "addr", c.GetString("addr"), "error", err)
	}
	c.JSON(status, gin.H{"err": err.Error()})
}

// attemptStatus answers 202 while an on-chain attempt is still in flight.
func attemptStatus(state gov.AttemptState) int {
	if state == gov.AttemptSubmitted || state == gov.AttemptConfirmed {
		return http.StatusAccepted
	}
	return http.StatusOK
}
