package builder

import "github.com/maiscreditos/creditshub/internal/models"

func (b *Builder) WithStripe(secretKey, webhookSecret, returnURL string) *Builder {
	b.cfg.Stripe = models.StripeConfig{
		SecretKey:     secretKey,
		WebhookSecret: webhookSecret,
		ReturnURL:     returnURL,
	}
	return b
}

func (b *Builder) GetStripeConfig() (secretKey, webhookSecret string, configured bool) {
	if b.cfg.Stripe.SecretKey != "" {
		return b.cfg.Stripe.SecretKey, b.cfg.Stripe.WebhookSecret, true
	}
	return "", "", false
}
