package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	reservationdomain "github.com/smallbiznis/spotlight/internal/reservation/domain"
)

type occupancyQuery struct {
	Placement string `form:"placement" binding:"required,placement"`
	From      string `form:"from" binding:"required"`
	To        string `form:"to" binding:"required"`
}

// GetOccupancy returns per-day counts for the inclusive date range
// [from, to].
func (s *Server) GetOccupancy(c *gin.Context) {
	var query occupancyQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, bindError(err))
		return
	}
	from, err := parseDate(query.From)
	if err != nil {
		AbortWithError(c, newValidationError("from", "invalid_from", "from must be YYYY-MM-DD"))
		return
	}
	to, err := parseDate(query.To)
	if err != nil {
		AbortWithError(c, newValidationError("to", "invalid_to", "to must be YYYY-MM-DD"))
		return
	}
	c.Set("placement", query.Placement)

	grid, err := s.occupancy.Grid(c.Request.Context(), query.Placement, from, to.Add(reservationdomain.Day))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"placement": strings.ToLower(strings.TrimSpace(query.Placement)),
		"data":      grid,
	})
}

// ListActiveOnDate lists the reservations holding a placement on one day,
// for the admin calendar.
func (s *Server) ListActiveOnDate(c *gin.Context) {
	date, err := parseDate(c.Param("date"))
	if err != nil {
		AbortWithError(c, newValidationError("date", "invalid_date", "date must be YYYY-MM-DD"))
		return
	}
	placement := strings.TrimSpace(c.Param("placement"))
	c.Set("placement", placement)

	rows, err := s.occupancy.ListActive(c.Request.Context(), placement, date)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if rows == nil {
		rows = []reservationdomain.Reservation{}
	}

	c.JSON(http.StatusOK, gin.H{
		"date": date.Format(dateOnlyLayout),
		"data": rows,
	})
}
