package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	r := require.New(t)
	t.Setenv("CONFIG_ENV", "nonexistent")

	cfg, err := Load()
	r.NoError(err)
	r.Equal(8080, cfg.Port)
	r.Equal("safetalk.db", cfg.DBPath)
	r.Equal(5*time.Second, cfg.SendTimeout)
	r.Equal(3, cfg.StoreRetries)
	r.Equal(50*time.Millisecond, cfg.RetryBackoff)
}
