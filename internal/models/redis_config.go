package models

// RedisConfig holds the connection for the coupon cache and the circuit
// breaker backing the Server B sync client. Optional; both fall back to
// degraded behavior when unset.
type RedisConfig struct {
	URL string `json:"url" yaml:"url"`
}
