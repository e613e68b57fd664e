package builder

import "github.com/maiscreditos/creditshub/internal/models"

func (b *Builder) WithClerkAuth(secretKey, webhookSecret string) *Builder {
	b.cfg.Auth = models.AuthConfig{
		Clerk: models.ClerkAuthConfig{
			SecretKey:     secretKey,
			WebhookSecret: webhookSecret,
		},
	}
	return b
}

func (b *Builder) GetClerkWebhookSecret() (string, bool) {
	if b.cfg.Auth.Clerk.WebhookSecret != "" {
		return b.cfg.Auth.Clerk.WebhookSecret, true
	}
	return "", false
}
