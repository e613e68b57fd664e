package models

type AuthConfig struct {
	Clerk ClerkAuthConfig `json:"clerk" yaml:"clerk"`
}

type ClerkAuthConfig struct {
	SecretKey     string `json:"secret_key" yaml:"secret_key"`
	WebhookSecret string `json:"webhook_secret" yaml:"webhook_secret"`
}
