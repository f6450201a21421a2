package mysql

import (
	"testing"
	"time"

	"order-service/config"

	"github.com/stretchr/testify/assert"
)

func TestConfigFrom(t *testing.T) {
	cfg := &config.Config{
		Database: config.DatabaseConfig{
			Host: "db", Port: "3307", Username: "orders", Password: "secret", Database: "orders",
			MaxOpenConns: 5, ConnMaxLifetime: time.Minute,
		},
		Log: config.LogConfig{Level: "debug"},
	}
	c := ConfigFrom(cfg)
	assert.Equal(t, "orders:secret@tcp(db:3307)/orders?parseTime=true&loc=UTC&charset=utf8mb4&collation=utf8mb4_unicode_ci&readTimeout=10s&writeTimeout=10s", c.DSN())
	assert.Equal(t, "debug", c.LogLevel)
}

func TestApplyDefaults(t *testing.T) {
	c := Config{MaxOpenConns: 4, MaxIdleConns: 8}
	c.applyDefaults()
	assert.Equal(t, 4, c.MaxIdleConns, "idle connections are capped by open connections")
	assert.Equal(t, DefaultConnMaxLifetime, c.ConnMaxLifetime)
	assert.Equal(t, DefaultConnMaxIdleTime, c.ConnMaxIdleTime)

	c = Config{}
	c.applyDefaults()
	assert.Equal(t, DefaultMaxOpenConns, c.MaxOpenConns)
	assert.Equal(t, DefaultMaxIdleConns, c.MaxIdleConns)
}
