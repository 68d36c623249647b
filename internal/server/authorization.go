package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

func (s *Server) authorize(object string, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.authorizeWithContext(c, object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

func (s *Server) authorizeWithContext(c *gin.Context, object string, action string) error {
	actor, ok := principalFromContext(c)
	if !ok {
		return ErrUnauthorized
	}
	if s.authzSvc == nil {
		return ErrForbidden
	}
	return s.authzSvc.Authorize(c.Request.Context(), actor.subject(), strings.TrimSpace(object), strings.TrimSpace(action))
}

// scopeAccount returns the account a request is restricted to: nil for
// admins, the caller's own account for sellers.
func scopeAccount(c *gin.Context) (*snowflake.ID, error) {
	actor, ok := principalFromContext(c)
	if !ok {
		return nil, ErrUnauthorized
	}
	if actor.isAdmin() {
		return nil, nil
	}
	accountID := actor.AccountID
	return &accountID, nil
}

// requireAccountAccess lets admins read any account and sellers only their own.
func requireAccountAccess(c *gin.Context, accountID snowflake.ID) error {
	scope, err := scopeAccount(c)
	if err != nil {
		return err
	}
	if scope != nil && *scope != accountID {
		return ErrForbidden
	}
	return nil
}
