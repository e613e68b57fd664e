package builder

import "github.com/maiscreditos/creditshub/internal/models"

// WithCouponRPC points the coupon service at the hosted validation function.
func (b *Builder) WithCouponRPC(cfg models.CouponRPCConfig) *Builder {
	if cfg.CacheTTLSecs == 0 {
		cfg.CacheTTLSecs = 300
	}
	if cfg.TimeoutSecs == 0 {
		cfg.TimeoutSecs = 10
	}
	b.cfg.CouponRPC = &cfg
	return b
}

// WithServerB enables outbound plan/user sync to the secondary system.
func (b *Builder) WithServerB(cfg models.ServerBConfig) *Builder {
	if cfg.RetryIntervalSecs == 0 {
		cfg.RetryIntervalSecs = 300
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 5
	}
	b.cfg.ServerB = &cfg
	return b
}
