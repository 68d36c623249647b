package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	adcatalogdomain "github.com/smallbiznis/spotlight/internal/adcatalog/domain"
)

type upsertAdRequest struct {
	AccountID string `json:"account_id" binding:"required"`
	Category  string `json:"category"`
	Status    string `json:"status" binding:"required"`
}

// UpsertAd records the marketplace's view of an ad so eligibility can be
// answered locally.
func (s *Server) UpsertAd(c *gin.Context) {
	adID, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_ad_id", "invalid ad id"))
		return
	}

	var req upsertAdRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}
	accountID, err := parseSnowflakeID(req.AccountID)
	if err != nil {
		AbortWithError(c, newValidationError("account_id", "invalid_account", "invalid account id"))
		return
	}

	ad, err := s.adSvc.Upsert(c.Request.Context(), adcatalogdomain.UpsertRequest{
		AdID:      adID,
		AccountID: accountID,
		Category:  req.Category,
		Status:    adcatalogdomain.Status(req.Status),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": ad})
}
