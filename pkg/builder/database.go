package builder

import "github.com/maiscreditos/creditshub/internal/models"

func (b *Builder) WithDatabase(cfg models.DatabaseConfig) *Builder {
	b.cfg.Database = &cfg
	return b
}

func (b *Builder) WithRedis(url string) *Builder {
	b.cfg.Redis = &models.RedisConfig{URL: url}
	return b
}
