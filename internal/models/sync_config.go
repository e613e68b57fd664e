package models

// CouponRPCConfig points at the hosted coupon validation function. The
// original storefront hard-coded the URL, anonymous key and product id in
// three places; here they are injected once.
type CouponRPCConfig struct {
	BaseURL       string `json:"base_url" yaml:"base_url"`
	AnonKey       string `json:"anon_key" yaml:"anon_key"`
	ProductID     string `json:"product_id" yaml:"product_id"`
	CacheTTLSecs  int    `json:"cache_ttl_secs,omitzero" yaml:"cache_ttl_secs"`
	TimeoutSecs   int    `json:"timeout_secs,omitzero" yaml:"timeout_secs"`
}

// ServerBConfig describes the secondary system of record that receives
// plan and user payloads over sync-plans / sync-unified-data.
type ServerBConfig struct {
	BaseURL           string `json:"base_url" yaml:"base_url"`
	APIKey            string `json:"api_key" yaml:"api_key"`
	RetryIntervalSecs int    `json:"retry_interval_secs,omitzero" yaml:"retry_interval_secs"`
	MaxAttempts       int    `json:"max_attempts,omitzero" yaml:"max_attempts"`
}
