package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

type setCapacityRequest struct {
	Capacity int `json:"capacity" binding:"gte=0"`
}

type setPriceRequest struct {
	Placement    string `json:"placement" binding:"required,placement"`
	DurationDays int    `json:"duration_days" binding:"required,duration_days"`
	CreditCost   int64  `json:"credit_cost" binding:"required,gt=0"`
}

func (s *Server) GetCatalog(c *gin.Context) {
	catalog, err := s.catalogSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": catalog.Placements})
}

func (s *Server) SetPlacementCapacity(c *gin.Context) {
	var req setCapacityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	placement, err := s.catalogSvc.SetCapacity(c.Request.Context(), strings.TrimSpace(c.Param("placement")), req.Capacity)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": placement})
}

func (s *Server) SetSlotPrice(c *gin.Context) {
	var req setPriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	price, err := s.catalogSvc.SetPrice(c.Request.Context(), req.Placement, req.DurationDays, req.CreditCost)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": price})
}

func (s *Server) DeleteSlotPrice(c *gin.Context) {
	days, err := strconv.Atoi(strings.TrimSpace(c.Param("days")))
	if err != nil {
		AbortWithError(c, newValidationError("duration_days", "invalid_duration", validationErrorMessage("invalid_duration")))
		return
	}

	if err := s.catalogSvc.DeletePrice(c.Request.Context(), strings.TrimSpace(c.Param("placement")), days); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
