package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/maiscreditos/creditshub/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFromFileEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_STRIPE_KEY", "sk_test_abc")
	os.Unsetenv("TEST_UNSET_PORT")

	path := writeConfig(t, `
server:
  port: "${TEST_UNSET_PORT:-8080}"
  allowed_origins: "*"
  environment: development
stripe:
  secret_key: "${TEST_STRIPE_KEY}"
auth:
  clerk:
    secret_key: clerk-secret
database:
  type: sqlite
  file_path: test.db
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "sk_test_abc", cfg.Stripe.SecretKey)
	require.NotNil(t, cfg.Database)
	assert.Equal(t, models.SQLite, cfg.Database.Type)
}

func TestLoadFromFileRejectsBadPaths(t *testing.T) {
	_, err := LoadFromFile("../../etc/passwd.yaml")
	assert.Error(t, err)

	_, err = LoadFromFile(filepath.Join(t.TempDir(), "config.json"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := &Config{
		Server: models.ServerConfig{
			Port:           "8080",
			AllowedOrigins: "*",
		},
		Database: &models.DatabaseConfig{Type: models.SQLite, FilePath: "test.db"},
		Stripe:   models.StripeConfig{SecretKey: "sk"},
		Auth: models.AuthConfig{
			Clerk: models.ClerkAuthConfig{SecretKey: "clerk"},
		},
	}
	require.NoError(t, cfg.Validate())

	cfg.Stripe.SecretKey = ""
	cfg.CouponRPC = &models.CouponRPCConfig{AnonKey: "anon"}

	err := cfg.Validate()
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.MissingFields, "stripe.secret_key")
	assert.Contains(t, verr.MissingFields, "coupon_rpc.base_url")
	assert.Contains(t, verr.MissingFields, "coupon_rpc.product_id")
}

func TestValidateRequiresWebhookSecretsInProduction(t *testing.T) {
	cfg := &Config{
		Server: models.ServerConfig{
			Port:           "8080",
			AllowedOrigins: "*",
			Environment:    "production",
		},
		Database: &models.DatabaseConfig{Type: models.SQLite, FilePath: "test.db"},
		Stripe:   models.StripeConfig{SecretKey: "sk"},
		Auth: models.AuthConfig{
			Clerk: models.ClerkAuthConfig{SecretKey: "clerk"},
		},
	}

	err := cfg.Validate()
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.MissingFields, "stripe.webhook_secret")
	assert.Contains(t, verr.MissingFields, "auth.clerk.webhook_secret")

	// The same config is fine outside production, where unverified webhook
	// parsing is an accepted fallback.
	cfg.Server.Environment = "development"
	require.NoError(t, cfg.Validate())

	cfg.Server.Environment = "production"
	cfg.Stripe.WebhookSecret = "whsec"
	cfg.Auth.Clerk.WebhookSecret = "clerk-whsec"
	require.NoError(t, cfg.Validate())
}
