package config_test

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinywideclouds/go-call-signaling-service/callservice/config"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestUpdateConfigWithEnvOverrides(t *testing.T) {
	logger := newTestLogger()

	baseConfig := func() *config.Config {
		return &config.Config{
			ProjectID:  "base-project",
			ListenAddr: ":8080",
			Agora: config.AgoraConfig{
				AppID:          "base-app",
				AppCertificate: "base-cert",
			},
		}
	}

	t.Run("Success - All overrides applied", func(t *testing.T) {
		cfg := baseConfig()

		t.Setenv("PROJECT_ID", "env-project")
		t.Setenv("PORT", "9090")
		t.Setenv("AGORA_APP_ID", "env-app")
		t.Setenv("AGORA_APP_CERTIFICATE", "env-cert")
		t.Setenv("REGISTRATION_STORE", "memory")
		t.Setenv("REDIS_ADDR", "redis:6379")
		t.Setenv("REDIS_DB", "3")
		t.Setenv("EVENTS_TOPIC_ID", "env-topic")
		t.Setenv("CORS_ALLOWED_ORIGINS", " http://a.com, ,http://b.com ")

		finalCfg, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		require.NoError(t, err)

		assert.Equal(t, "env-project", finalCfg.ProjectID)
		assert.Equal(t, ":9090", finalCfg.ListenAddr)
		assert.Equal(t, "env-app", finalCfg.Agora.AppID)
		assert.Equal(t, "env-cert", finalCfg.Agora.AppCertificate)
		assert.Equal(t, config.StoreMemory, finalCfg.Store.Kind)
		assert.True(t, finalCfg.Redis.Enabled, "REDIS_ADDR implies enabled")
		assert.Equal(t, "redis:6379", finalCfg.Redis.Addr)
		assert.Equal(t, 3, finalCfg.Redis.DB)
		assert.Equal(t, "env-topic", finalCfg.EventsTopicID)
		assert.Equal(t, []string{"http://a.com", "http://b.com"}, finalCfg.CorsConfig.AllowedOrigins)
	})

	t.Run("Success - Defaults applied", func(t *testing.T) {
		cfg := baseConfig()
		cfg.ListenAddr = ""

		finalCfg, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		require.NoError(t, err)

		assert.Equal(t, "base-project", finalCfg.ProjectID)
		assert.Equal(t, config.DefaultListenAddr, finalCfg.ListenAddr)
		assert.Equal(t, config.GatewayFCM, finalCfg.Gateway)
		assert.Equal(t, config.StoreFirestore, finalCfg.Store.Kind)
		assert.Equal(t, config.DefaultUsersCollection, finalCfg.Store.UsersCollection)
		assert.Equal(t, config.DefaultRegistrationsField, finalCfg.Store.RegistrationsField)
		assert.Equal(t, config.DefaultRedisTTL, finalCfg.Redis.TTL)
	})

	t.Run("REDIS_ENABLED=false wins over REDIS_ADDR", func(t *testing.T) {
		t.Setenv("REDIS_ADDR", "redis:6379")
		t.Setenv("REDIS_ENABLED", "false")

		finalCfg, err := config.UpdateConfigWithEnvOverrides(baseConfig(), logger)
		require.NoError(t, err)
		assert.False(t, finalCfg.Redis.Enabled)
	})

	t.Run("Validation Failure - Missing Agora credentials", func(t *testing.T) {
		cfg := baseConfig()
		cfg.Agora.AppCertificate = ""
		_, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		assert.Error(t, err)
	})

	t.Run("Validation Failure - Missing ProjectID for firestore", func(t *testing.T) {
		cfg := baseConfig()
		cfg.ProjectID = ""
		_, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		assert.Error(t, err)
	})

	t.Run("Validation Failure - Incomplete APNs settings", func(t *testing.T) {
		cfg := baseConfig()
		cfg.Gateway = config.GatewayAPNS
		cfg.APNS.KeyID = "KEY"
		_, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		assert.Error(t, err)
	})

	t.Run("Validation Failure - Unknown gateway", func(t *testing.T) {
		cfg := baseConfig()
		cfg.Gateway = "carrier-pigeon"
		_, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		assert.Error(t, err)
	})

	t.Run("Validation Failure - Malformed env value", func(t *testing.T) {
		t.Setenv("REDIS_DB", "not-a-number")
		_, err := config.UpdateConfigWithEnvOverrides(baseConfig(), logger)
		assert.Error(t, err)
	})
}
