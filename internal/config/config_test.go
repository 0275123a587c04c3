// internal/config/config_test.go
package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"petmarket/pkg/db"
)

func TestLoadConfig(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		for _, key := range []string{
			"SERVER_PORT", "LOG_LEVEL", "DB_DRIVER", "DB_PORT", "DB_PATH",
			"DB_MAX_OPEN_CONNS", "DB_AUTO_MIGRATE", "DB_NAME",
		} {
			t.Setenv(key, "")
		}

		cfg, err := LoadConfig()
		require.NoError(t, err)

		assert.Equal(t, "8080", cfg.ServerPort)
		assert.Equal(t, "info", cfg.LogLevel)
		assert.True(t, cfg.AutoMigrate)
		assert.Equal(t, db.DriverPostgres, cfg.DB.Driver)
		assert.Equal(t, 5432, cfg.DB.Port)
		assert.Equal(t, "petmarket", cfg.DB.DBName)
		assert.Equal(t, 0, cfg.DB.MaxOpenConns)
	})

	t.Run("SQLiteFromEnvironment", func(t *testing.T) {
		t.Setenv("DB_DRIVER", db.DriverSQLite)
		t.Setenv("DB_PATH", db.MemoryPath)
		t.Setenv("DB_AUTO_MIGRATE", "false")
		t.Setenv("DB_MAX_OPEN_CONNS", "3")
		t.Setenv("LOG_LEVEL", "debug")

		cfg, err := LoadConfig()
		require.NoError(t, err)

		assert.Equal(t, db.DriverSQLite, cfg.DB.Driver)
		assert.Equal(t, db.MemoryPath, cfg.DB.Path)
		assert.False(t, cfg.AutoMigrate)
		assert.Equal(t, 3, cfg.DB.MaxOpenConns)
		assert.Equal(t, "debug", cfg.LogLevel)
	})

	t.Run("InvalidValues", func(t *testing.T) {
		cases := map[string]string{
			"DB_PORT":           "not-a-port",
			"DB_MAX_OPEN_CONNS": "many",
			"DB_AUTO_MIGRATE":   "sometimes",
			"DB_DRIVER":         "mysql",
		}
		for key, value := range cases {
			t.Run(key, func(t *testing.T) {
				t.Setenv(key, value)

				_, err := LoadConfig()
				assert.Error(t, err)
			})
		}
	})
}
