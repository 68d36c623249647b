package server

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/spotlight/internal/audit/domain"
	"github.com/smallbiznis/spotlight/internal/auditcontext"
	ledgerdomain "github.com/smallbiznis/spotlight/internal/ledger/domain"
	"github.com/smallbiznis/spotlight/internal/observability/logger"
	"github.com/smallbiznis/spotlight/pkg/db/pagination"
	"go.uber.org/zap"
)

const (
	HeaderSignature = "X-Signature"

	maxWebhookBodyBytes = 64 << 10
)

type listEntriesQuery struct {
	PageToken string `form:"page_token"`
	PageSize  int    `form:"page_size"`
}

type topupWebhookRequest struct {
	EventID   string `json:"event_id" binding:"required"`
	AccountID string `json:"account_id" binding:"required"`
	Credits   int64  `json:"credits" binding:"required,gt=0,max=1000000000"`
	Memo      string `json:"memo"`
}

type adminCreditRequest struct {
	Amount         int64  `json:"amount" binding:"required,gt=0,max=1000000000"`
	Reason         string `json:"reason" binding:"required,oneof=promo_grant admin_adjustment"`
	Memo           string `json:"memo"`
	IdempotencyKey string `json:"idempotency_key"`
}

func (s *Server) GetBalance(c *gin.Context) {
	accountID, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_account", "invalid account id"))
		return
	}
	if err := requireAccountAccess(c, accountID); err != nil {
		AbortWithError(c, err)
		return
	}

	balance, err := s.ledgerSvc.Balance(c.Request.Context(), accountID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"account_id": accountID.String(),
		"balance":    balance,
	}})
}

func (s *Server) ListEntries(c *gin.Context) {
	accountID, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_account", "invalid account id"))
		return
	}
	if err := requireAccountAccess(c, accountID); err != nil {
		AbortWithError(c, err)
		return
	}

	var query listEntriesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.ledgerSvc.ListEntries(c.Request.Context(), ledgerdomain.ListEntriesRequest{
		Pagination: pagination.Pagination{
			PageToken: strings.TrimSpace(query.PageToken),
			PageSize:  query.PageSize,
		},
		AccountID: accountID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":      resp.Entries,
		"balance":   resp.Balance,
		"page_info": resp.PageInfo,
	})
}

// TopupSignatureRequired verifies X-Signature, the hex HMAC-SHA256 of the raw
// body under the top-up webhook secret, and runs the request as system.
func (s *Server) TopupSignatureRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		secret := strings.TrimSpace(s.cfg.Webhook.TopupSecret)
		if secret == "" {
			AbortWithError(c, ErrServiceUnavailable)
			return
		}

		payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodyBytes))
		if err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(payload))

		if !validSignature(secret, payload, c.GetHeader(HeaderSignature)) {
			logger.FromContext(c.Request.Context()).Warn("top-up webhook signature mismatch")
			AbortWithError(c, ErrInvalidSignature)
			return
		}

		setPrincipal(c, principal{Type: auditdomain.ActorTypeSystem, ID: "topup_webhook"})
		c.Next()
	}
}

func validSignature(secret string, payload []byte, signature string) bool {
	signature = strings.ToLower(strings.TrimSpace(signature))
	signature = strings.TrimPrefix(signature, "sha256=")
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(signature), []byte(expected))
}

// HandleTopupWebhook credits purchased credits. The processor's event id is
// the idempotency key, so redeliveries return the original entry.
func (s *Server) HandleTopupWebhook(c *gin.Context) {
	var req topupWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}
	accountID, err := parseSnowflakeID(req.AccountID)
	if err != nil {
		AbortWithError(c, newValidationError("account_id", "invalid_account", "invalid account id"))
		return
	}

	entry, err := s.ledgerSvc.Credit(c.Request.Context(), ledgerdomain.CreditRequest{
		AccountID:      accountID,
		Amount:         req.Credits,
		Reason:         ledgerdomain.ReasonPurchase,
		Memo:           strings.TrimSpace(req.Memo),
		IdempotencyKey: "topup:" + strings.TrimSpace(req.EventID),
	})
	if err != nil {
		if errors.Is(err, ledgerdomain.ErrIdempotencyConflict) {
			logger.FromContext(c.Request.Context()).Warn("top-up event replayed with different payload",
				zap.String("event_id", req.EventID),
				zap.String("account_id", accountID.String()),
			)
		}
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": entry})
}

func (s *Server) AdminCreditAccount(c *gin.Context) {
	accountID, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_account", "invalid account id"))
		return
	}

	var req adminCreditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	ctx := c.Request.Context()
	entry, err := s.ledgerSvc.Credit(ctx, ledgerdomain.CreditRequest{
		AccountID:      accountID,
		Amount:         req.Amount,
		Reason:         ledgerdomain.Reason(req.Reason),
		Memo:           strings.TrimSpace(req.Memo),
		IdempotencyKey: strings.TrimSpace(req.IdempotencyKey),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if s.auditSvc != nil {
		target := accountID.String()
		ctx := auditcontext.WithAccountID(ctx, target)
		if err := s.auditSvc.AuditLog(ctx, "", nil, "ledger.credited", auditdomain.TargetLedgerAccount, &target, map[string]any{
			"entry_id": entry.ID.String(),
			"amount":   req.Amount,
			"reason":   req.Reason,
			"memo":     strings.TrimSpace(req.Memo),
		}); err != nil {
			logger.FromContext(ctx).Warn("audit log failed", zap.String("action", "ledger.credited"), zap.Error(err))
		}
	}

	c.JSON(http.StatusCreated, gin.H{"data": entry})
}
