package auth

import (
	"github.com/gin-gonic/gin"

	"github.com/KellyGutierrez/notifycar-sub000/internal/user"
)

// CurrentUser = short info about the logged-in user
type CurrentUser struct {
	ID             string
	Role           user.Role
	OrganizationID *string // nil for platform admins
}

const ContextUserKey = "currentUser"

func (cu CurrentUser) IsAdmin() bool {
	return cu.Role == user.RoleAdmin
}

// CanAccessOrganization reports whether cu may read data of orgID.
func (cu CurrentUser) CanAccessOrganization(orgID *string) bool {
	if cu.IsAdmin() {
		return true
	}
	return cu.OrganizationID != nil && orgID != nil && *cu.OrganizationID == *orgID
}

// Helper to read the current user inside a handler
func GetCurrentUser(c *gin.Context) (CurrentUser, bool) {
	v, ok := c.Get(ContextUserKey)
	if !ok {
		return CurrentUser{}, false
	}
	cu, ok := v.(CurrentUser)
	return cu, ok
}
