package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/spotlight/internal/auditcontext"
	auditdomain "github.com/smallbiznis/spotlight/internal/audit/domain"
	"github.com/smallbiznis/spotlight/internal/authorization"
	obscontext "github.com/smallbiznis/spotlight/internal/observability/context"
	"golang.org/x/crypto/bcrypt"
)

const (
	HeaderAccountID = "X-Account-ID"
	HeaderAdminID   = "X-Admin-ID"

	contextPrincipalKey = "principal"
)

// principal is the caller resolved by SellerRequired or AdminRequired.
type principal struct {
	Type      auditdomain.ActorType
	ID        string
	AccountID snowflake.ID
}

func (p principal) subject() string {
	switch p.Type {
	case auditdomain.ActorTypeSeller:
		return authorization.ActorPrefixSeller + p.ID
	case auditdomain.ActorTypeAdmin:
		return authorization.ActorPrefixAdmin + p.ID
	case auditdomain.ActorTypeSystem:
		return authorization.ActorSystem
	default:
		return ""
	}
}

func (p principal) isAdmin() bool {
	return p.Type == auditdomain.ActorTypeAdmin
}

// SellerRequired resolves the seller account from X-Account-ID. Identity is
// asserted by the marketplace gateway in front of this service.
func (s *Server) SellerRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(HeaderAccountID))
		if raw == "" {
			AbortWithError(c, ErrAccountRequired)
			return
		}
		accountID, err := snowflake.ParseString(raw)
		if err != nil || accountID <= 0 {
			AbortWithError(c, newValidationError("account_id", "invalid_account", "invalid account id"))
			return
		}

		setPrincipal(c, principal{
			Type:      auditdomain.ActorTypeSeller,
			ID:        accountID.String(),
			AccountID: accountID,
		})
		ctx := obscontext.WithAccountID(c.Request.Context(), accountID.String())
		ctx = auditcontext.WithAccountID(ctx, accountID.String())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// AdminRequired checks the shared admin token and names the operator from
// X-Admin-ID.
func (s *Server) AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		hash := strings.TrimSpace(s.cfg.Admin.TokenHash)
		token := bearerToken(c.GetHeader("Authorization"))
		if hash == "" || token == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)); err != nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		adminID := strings.TrimSpace(c.GetHeader(HeaderAdminID))
		if adminID == "" || strings.ContainsAny(adminID, ": ") {
			AbortWithError(c, newValidationError("admin_id", "invalid_admin", "X-Admin-ID header is required"))
			return
		}

		setPrincipal(c, principal{Type: auditdomain.ActorTypeAdmin, ID: adminID})
		c.Next()
	}
}

func setPrincipal(c *gin.Context, p principal) {
	c.Set(contextPrincipalKey, p)
	ctx := c.Request.Context()
	ctx = obscontext.WithActor(ctx, string(p.Type), p.ID)
	ctx = auditcontext.WithActor(ctx, string(p.Type), p.ID)
	c.Request = c.Request.WithContext(ctx)
}

func principalFromContext(c *gin.Context) (principal, bool) {
	value, ok := c.Get(contextPrincipalKey)
	if !ok {
		return principal{}, false
	}
	p, ok := value.(principal)
	return p, ok
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}
