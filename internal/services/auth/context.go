package auth

import (
	"github.com/maiscreditos/creditshub/internal/models"

	"github.com/clerk/clerk-sdk-go/v2"
	"github.com/gofiber/fiber/v2"
)

const localsKey = "auth_context"

// AuthContext is the resolved identity of a request, stored in fiber locals
// by the auth middleware.
type AuthContext struct {
	UserID  string
	Profile *models.UserProfile
	Claims  *clerk.SessionClaims
}

func (a *AuthContext) Role() Role {
	if a.Profile != nil && a.Profile.IsAdmin {
		return RoleAdmin
	}
	return RoleCustomer
}

func SetAuthContext(c *fiber.Ctx, authCtx *AuthContext) {
	c.Locals(localsKey, authCtx)
}

func GetAuthContext(c *fiber.Ctx) *AuthContext {
	authCtx, ok := c.Locals(localsKey).(*AuthContext)
	if !ok {
		return nil
	}
	return authCtx
}

func GetUserID(c *fiber.Ctx) (string, bool) {
	authCtx := GetAuthContext(c)
	if authCtx == nil {
		return "", false
	}
	return authCtx.UserID, authCtx.UserID != ""
}

func GetProfile(c *fiber.Ctx) (*models.UserProfile, bool) {
	authCtx := GetAuthContext(c)
	if authCtx == nil || authCtx.Profile == nil {
		return nil, false
	}
	return authCtx.Profile, true
}

func IsAdmin(c *fiber.Ctx) bool {
	authCtx := GetAuthContext(c)
	return authCtx != nil && authCtx.Role() == RoleAdmin
}
