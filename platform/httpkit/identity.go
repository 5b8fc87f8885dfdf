// Package httpkit provides HTTP utilities including identity extraction.
package httpkit

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Identity is the authenticated caller as the auth middleware recorded it.
// Handlers depend on this instead of reading gin context keys themselves.
type Identity interface {
	// UserID is the authenticated user's id.
	UserID() int64
	// Roles lists the roles carried by the access token.
	Roles() []string
	// IsAuthenticated reports whether a valid token was presented.
	IsAuthenticated() bool
}

type identity struct {
	userID        int64
	roles         []string
	authenticated bool
}

func (i *identity) UserID() int64 {
	return i.userID
}

func (i *identity) Roles() []string {
	return i.roles
}

func (i *identity) IsAuthenticated() bool {
	return i.authenticated
}

// GetIdentity reads the caller identity from the gin context, returning an
// unauthenticated identity when the auth middleware did not run or rejected
// the token.
func GetIdentity(c *gin.Context) Identity {
	userID, ok := c.Get(ContextUserIDKey)
	if !ok {
		return &identity{}
	}

	uid, ok := userID.(int64)
	if !ok {
		return &identity{}
	}

	var roleList []string
	if roles, ok := c.Get(ContextRolesKey); ok {
		roleList, _ = roles.([]string)
	}

	return &identity{userID: uid, roles: roleList, authenticated: true}
}

// MustGetIdentity is GetIdentity for handlers behind the auth middleware; it
// aborts with 401 and returns nil when no identity is present.
func MustGetIdentity(c *gin.Context) Identity {
	id := GetIdentity(c)
	if !id.IsAuthenticated() {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return nil
	}
	return id
}
