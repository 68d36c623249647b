package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	reservationdomain "github.com/smallbiznis/spotlight/internal/reservation/domain"
	"github.com/smallbiznis/spotlight/pkg/db/pagination"
)

type reserveRequest struct {
	AdID           string `json:"ad_id" binding:"required"`
	Placement      string `json:"placement" binding:"required,placement"`
	ScheduledStart string `json:"scheduled_start"`
	DurationDays   int    `json:"duration_days" binding:"required,duration_days"`
}

type adminReserveRequest struct {
	reserveRequest
	AccountID string `json:"account_id"`
	Reason    string `json:"reason" binding:"required"`
}

type bulkAssignRequest struct {
	Reason string           `json:"reason" binding:"required"`
	Items  []reserveRequest `json:"items" binding:"required,min=1,max=100,dive"`
}

type cancelReservationRequest struct {
	Reason string `json:"reason" binding:"required"`
	Refund *bool  `json:"refund"`
}

type editReservationRequest struct {
	Placement      *string `json:"placement" binding:"omitempty,placement"`
	ScheduledStart *string `json:"scheduled_start"`
	DurationDays   *int    `json:"duration_days" binding:"omitempty,duration_days"`
	Reason         string  `json:"reason" binding:"required"`
}

type listReservationsQuery struct {
	PageToken string `form:"page_token"`
	PageSize  int    `form:"page_size"`
	AdID      string `form:"ad_id"`
	AccountID string `form:"account_id"`
	Placement string `form:"placement"`
	Status    string `form:"status"`
}

type bulkAssignItemResponse struct {
	Index       int                            `json:"index"`
	Reservation *reservationdomain.Reservation `json:"reservation,omitempty"`
	Error       *errorPayload                  `json:"error,omitempty"`
}

func (r reserveRequest) toDomain() (reservationdomain.ReserveRequest, error) {
	adID, err := parseSnowflakeID(r.AdID)
	if err != nil {
		return reservationdomain.ReserveRequest{}, newValidationError("ad_id", "invalid_ad_id", "invalid ad id")
	}
	start, err := parseOptionalTime(r.ScheduledStart, false)
	if err != nil {
		return reservationdomain.ReserveRequest{}, newValidationError("scheduled_start", "invalid_schedule", "scheduled_start must be RFC3339 or YYYY-MM-DD")
	}
	req := reservationdomain.ReserveRequest{
		AdID:         adID,
		Placement:    strings.TrimSpace(r.Placement),
		DurationDays: r.DurationDays,
	}
	if start != nil {
		req.ScheduledStart = *start
	}
	return req, nil
}

// CreateReservation spends the seller's credits on a featured slot.
func (s *Server) CreateReservation(c *gin.Context) {
	actor, ok := principalFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req reserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}
	reserve, err := req.toDomain()
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.Set("placement", reserve.Placement)
	reserve.Auth = reservationdomain.AuthorizationContext{
		Mode:      reservationdomain.ModePaid,
		AccountID: actor.AccountID,
		ActorID:   actor.ID,
	}

	res, err := s.reservationSvc.Reserve(c.Request.Context(), reserve)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": res})
}

// AdminCreateReservation grants a free reservation. Capacity and uniqueness
// still apply.
func (s *Server) AdminCreateReservation(c *gin.Context) {
	actor, ok := principalFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req adminReserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}
	reserve, err := req.toDomain()
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.Set("placement", reserve.Placement)
	reserve.Auth = reservationdomain.AuthorizationContext{
		Mode:    reservationdomain.ModeFree,
		ActorID: actor.ID,
		Reason:  req.Reason,
	}
	if strings.TrimSpace(req.AccountID) != "" {
		accountID, err := parseSnowflakeID(req.AccountID)
		if err != nil {
			AbortWithError(c, newValidationError("account_id", "invalid_account", "invalid account id"))
			return
		}
		reserve.Auth.AccountID = accountID
	}

	res, err := s.reservationSvc.Reserve(c.Request.Context(), reserve)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": res})
}

func (s *Server) BulkAssignReservations(c *gin.Context) {
	actor, ok := principalFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req bulkAssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	items := make([]reservationdomain.BulkAssignItem, 0, len(req.Items))
	for i, item := range req.Items {
		reserve, err := item.toDomain()
		if err != nil {
			if vErr := asValidationErrors(err); vErr != nil {
				for j := range vErr.Errors {
					vErr.Errors[j].Field = "items[" + strconv.Itoa(i) + "]." + vErr.Errors[j].Field
				}
			}
			AbortWithError(c, err)
			return
		}
		items = append(items, reservationdomain.BulkAssignItem{
			AdID:           reserve.AdID,
			Placement:      reserve.Placement,
			ScheduledStart: reserve.ScheduledStart,
			DurationDays:   reserve.DurationDays,
		})
	}

	results, err := s.reservationSvc.BulkAssign(c.Request.Context(), reservationdomain.BulkAssignRequest{
		Items: items,
		Auth: reservationdomain.AuthorizationContext{
			Mode:    reservationdomain.ModeFree,
			ActorID: actor.ID,
			Reason:  req.Reason,
		},
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	out := make([]bulkAssignItemResponse, 0, len(results))
	created := 0
	for _, result := range results {
		item := bulkAssignItemResponse{Index: result.Index, Reservation: result.Reservation}
		if result.Err != nil {
			_, payload := mapError(result.Err)
			item.Error = &payload
		} else {
			created++
		}
		out = append(out, item)
	}

	c.JSON(http.StatusOK, gin.H{
		"data":    out,
		"created": created,
		"failed":  len(out) - created,
	})
}

func (s *Server) GetReservation(c *gin.Context) {
	id, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		AbortWithError(c, ErrNotFound)
		return
	}
	scope, err := scopeAccount(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	res, err := s.reservationSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if scope != nil && (res.AccountID == nil || *res.AccountID != *scope) {
		AbortWithError(c, ErrNotFound)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": res})
}

func (s *Server) ListReservations(c *gin.Context) {
	var query listReservationsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	adID, err := parseOptionalSnowflakeID(query.AdID)
	if err != nil {
		AbortWithError(c, newValidationError("ad_id", "invalid_ad_id", "invalid ad id"))
		return
	}
	accountID, err := parseOptionalSnowflakeID(query.AccountID)
	if err != nil {
		AbortWithError(c, newValidationError("account_id", "invalid_account", "invalid account id"))
		return
	}
	scope, err := scopeAccount(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if scope != nil {
		if accountID != nil && *accountID != *scope {
			AbortWithError(c, ErrForbidden)
			return
		}
		accountID = scope
	}

	resp, err := s.reservationSvc.List(c.Request.Context(), reservationdomain.ListRequest{
		Pagination: pagination.Pagination{
			PageToken: strings.TrimSpace(query.PageToken),
			PageSize:  query.PageSize,
		},
		AdID:      adID,
		AccountID: accountID,
		Placement: strings.TrimSpace(query.Placement),
		Status:    reservationdomain.Status(strings.ToLower(strings.TrimSpace(query.Status))),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Reservations, "page_info": resp.PageInfo})
}

// CancelReservation serves both the seller and admin routes; sellers may
// only cancel their own reservations.
func (s *Server) CancelReservation(c *gin.Context) {
	actor, ok := principalFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	id, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		AbortWithError(c, ErrNotFound)
		return
	}

	var req cancelReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}
	refundRequested := true
	if req.Refund != nil {
		refundRequested = *req.Refund
	}

	scope, err := scopeAccount(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	result, err := s.reservationSvc.Cancel(c.Request.Context(), reservationdomain.CancelRequest{
		ReservationID:   id,
		Reason:          req.Reason,
		RefundRequested: refundRequested,
		ActorID:         actor.ID,
		AccountID:       scope,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (s *Server) EditReservation(c *gin.Context) {
	actor, ok := principalFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	id, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		AbortWithError(c, ErrNotFound)
		return
	}

	var req editReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	edit := reservationdomain.EditRequest{
		ReservationID: id,
		Placement:     req.Placement,
		DurationDays:  req.DurationDays,
		ActorID:       actor.ID,
		Reason:        req.Reason,
	}
	if req.ScheduledStart != nil {
		start, err := parseOptionalTime(*req.ScheduledStart, false)
		if err != nil || start == nil {
			AbortWithError(c, newValidationError("scheduled_start", "invalid_schedule", "scheduled_start must be RFC3339 or YYYY-MM-DD"))
			return
		}
		edit.ScheduledStart = start
	}

	res, err := s.reservationSvc.Edit(c.Request.Context(), edit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": res})
}
