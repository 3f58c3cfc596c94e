package internal

import (
	"testing"

	env "github.com/Netflix/go-env"
	"github.com/stretchr/testify/require"
)

func TestConfig_Defaults_Are_Valid(t *testing.T) {
	req := require.New(t)
	var config Config
	_, err := env.UnmarshalFromEnviron(&config)
	req.NoError(err)

	req.Equal(3000, config.HTTPPort)
	req.Equal(StoreBadger, config.StoreDriver)
	req.True(config.RequireCompanyFirst)
	req.NoError(config.Validate())
}

func TestConfig_Validate(t *testing.T) {
	var base Config
	_, err := env.UnmarshalFromEnviron(&base)
	require.NoError(t, err)

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"postgres without dsn", func(c *Config) { c.StoreDriver = StorePostgres }},
		{"unknown store", func(c *Config) { c.StoreDriver = "sqlite" }},
		{"redis bus on badger", func(c *Config) { c.BusDriver = BusRedis }},
		{"same ports", func(c *Config) { c.GRPCPort = c.HTTPPort }},
		{"short secret", func(c *Config) { c.AuthSecret = "short" }},
		{"no buffer", func(c *Config) { c.ConnectionBufferSize = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			config := base
			tc.mutate(&config)
			require.Error(t, config.Validate())
		})
	}

	t.Run("redis bus on postgres", func(t *testing.T) {
		config := base
		config.StoreDriver = StorePostgres
		config.PostgresDSN = "postgres://localhost/chat"
		config.BusDriver = BusRedis
		require.NoError(t, config.Validate())
	})
}
