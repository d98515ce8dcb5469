package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/tablebill/internal/pricing"
)

func (s *Server) GetPricingQuote(c *gin.Context) {
	tables, err := strconv.Atoi(strings.TrimSpace(c.Query("tables")))
	if err != nil || tables < 0 {
		AbortWithError(c, newValidationError("tables", "invalid_tables", "tables must be a non-negative integer"))
		return
	}

	quote, ok := pricing.NewCalculator(s.pricing.Get()).CalculatePrice(tables)
	if !ok {
		AbortWithError(c, newValidationError("tables", "below_minimum", "at least one table is required"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": quote})
}
