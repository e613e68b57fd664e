package middleware

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/maiscreditos/creditshub/internal/models"
	"github.com/maiscreditos/creditshub/internal/services/auth"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	tokens map[string]*auth.AuthContext
}

func (p *stubProvider) ValidateToken(_ context.Context, token string) (*auth.AuthContext, error) {
	if ctx, ok := p.tokens[token]; ok {
		return ctx, nil
	}
	return nil, errors.New("invalid token")
}

func newAuthApp(t *testing.T, provider auth.AuthProvider) *fiber.App {
	t.Helper()

	m := NewAuthMiddleware(provider, DefaultAuthMiddlewareConfig())

	app := fiber.New()
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	app.Use(m.RequireAuth())
	app.Get("/api/me", func(c *fiber.Ctx) error {
		userID, _ := auth.GetUserID(c)
		return c.JSON(fiber.Map{"userId": userID})
	})

	admin := app.Group("/api/admin", m.RequireAdmin())
	admin.Get("/plans", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"plans": []string{}})
	})

	return app
}

func TestRequireAuth(t *testing.T) {
	provider := &stubProvider{tokens: map[string]*auth.AuthContext{
		"good-token": {
			UserID:  "user_1",
			Profile: &models.UserProfile{ClerkUserID: "user_1"},
		},
	}}
	app := newAuthApp(t, provider)

	tests := []struct {
		name       string
		authHeader string
		wantStatus int
	}{
		{name: "missing token", authHeader: "", wantStatus: fiber.StatusUnauthorized},
		{name: "invalid token", authHeader: "Bearer nope", wantStatus: fiber.StatusUnauthorized},
		{name: "valid token", authHeader: "Bearer good-token", wantStatus: fiber.StatusOK},
		{name: "valid token without bearer prefix", authHeader: "good-token", wantStatus: fiber.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(fiber.MethodGet, "/api/me", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}

			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
		})
	}
}

func TestRequireAuthSkipsHealth(t *testing.T) {
	app := newAuthApp(t, &stubProvider{})

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/health", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestRequireAdmin(t *testing.T) {
	provider := &stubProvider{tokens: map[string]*auth.AuthContext{
		"customer-token": {
			UserID:  "user_1",
			Profile: &models.UserProfile{ClerkUserID: "user_1"},
		},
		"admin-token": {
			UserID:  "user_2",
			Profile: &models.UserProfile{ClerkUserID: "user_2", IsAdmin: true},
		},
	}}
	app := newAuthApp(t, provider)

	tests := []struct {
		name       string
		token      string
		wantStatus int
	}{
		{name: "customer is rejected", token: "customer-token", wantStatus: fiber.StatusForbidden},
		{name: "admin is allowed", token: "admin-token", wantStatus: fiber.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(fiber.MethodGet, "/api/admin/plans", nil)
			req.Header.Set("Authorization", "Bearer "+tt.token)

			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
		})
	}
}
