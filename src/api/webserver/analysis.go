package webserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/stake-plus/netstate-gov/src/analysis"
)

type Analysis struct {
	analyzer *analysis.Analyzer
	log      *zap.SugaredLogger
}

func NewAnalysis(a *analysis.Analyzer, log *zap.SugaredLogger) Analysis {
	return Analysis{analyzer: a, log: log}
}

// Analyze asks the configured AI provider to assess the proposal.
func (h Analysis) Analyze(c *gin.Context) {
	a, err := h.analyzer.Analyze(c, c.Param("id"))
	if err != nil {
		respondErr(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}
