package config

import (
	"log/slog"
	"time"

	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
)

type YamlCorsConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	Role           string   `yaml:"role"`
}

type YamlAgoraConfig struct {
	AppID          string `yaml:"app_id"`
	AppCertificate string `yaml:"app_certificate"`
}

type YamlAPNSConfig struct {
	KeyID      string `yaml:"key_id"`
	TeamID     string `yaml:"team_id"`
	BundleID   string `yaml:"bundle_id"`
	P8KeyFile  string `yaml:"p8_key_file"`
	Production bool   `yaml:"production"`
}

type YamlStoreConfig struct {
	Kind               string `yaml:"kind"`
	UsersCollection    string `yaml:"users_collection"`
	RegistrationsField string `yaml:"registrations_field"`
}

type YamlRedisConfig struct {
	Addr       string `yaml:"addr"`
	Password   string `yaml:"password"`
	DB         int    `yaml:"db"`
	Enabled    bool   `yaml:"enabled"`
	TTLSeconds int    `yaml:"ttl_seconds"`
}

// YamlConfig is the structure that mirrors the raw config.yaml file.
type YamlConfig struct {
	ProjectID          string          `yaml:"project_id"`
	ListenAddr         string          `yaml:"listen_addr"`
	CredentialsFile    string          `yaml:"credentials_file"`
	Gateway            string          `yaml:"gateway"`
	EventsTopicID      string          `yaml:"events_topic_id"`
	IdentityServiceURL string          `yaml:"identity_service_url"`
	AgoraConfig        YamlAgoraConfig `yaml:"agora"`
	APNSConfig         YamlAPNSConfig  `yaml:"apns"`
	StoreConfig        YamlStoreConfig `yaml:"store"`
	RedisConfig        YamlRedisConfig `yaml:"redis"`
	CorsConfig         YamlCorsConfig  `yaml:"cors"`
}

// NewConfigFromYaml converts the YamlConfig into a clean, base Config struct.
func NewConfigFromYaml(baseCfg *YamlConfig, logger *slog.Logger) (*Config, error) {
	logger.Debug("Mapping YAML config to base config struct")

	cfg := &Config{
		ProjectID:          baseCfg.ProjectID,
		ListenAddr:         baseCfg.ListenAddr,
		CredentialsFile:    baseCfg.CredentialsFile,
		Gateway:            baseCfg.Gateway,
		EventsTopicID:      baseCfg.EventsTopicID,
		IdentityServiceURL: baseCfg.IdentityServiceURL,
		Agora: AgoraConfig{
			AppID:          baseCfg.AgoraConfig.AppID,
			AppCertificate: baseCfg.AgoraConfig.AppCertificate,
		},
		APNS: APNSConfig{
			KeyID:      baseCfg.APNSConfig.KeyID,
			TeamID:     baseCfg.APNSConfig.TeamID,
			BundleID:   baseCfg.APNSConfig.BundleID,
			P8KeyFile:  baseCfg.APNSConfig.P8KeyFile,
			Production: baseCfg.APNSConfig.Production,
		},
		Store: StoreConfig{
			Kind:               baseCfg.StoreConfig.Kind,
			UsersCollection:    baseCfg.StoreConfig.UsersCollection,
			RegistrationsField: baseCfg.StoreConfig.RegistrationsField,
		},
		Redis: RedisConfig{
			Addr:     baseCfg.RedisConfig.Addr,
			Password: baseCfg.RedisConfig.Password,
			DB:       baseCfg.RedisConfig.DB,
			Enabled:  baseCfg.RedisConfig.Enabled,
			TTL:      time.Duration(baseCfg.RedisConfig.TTLSeconds) * time.Second,
		},
		CorsConfig: middleware.CorsConfig{
			AllowedOrigins: baseCfg.CorsConfig.AllowedOrigins,
			Role:           middleware.CorsRole(baseCfg.CorsConfig.Role),
		},
	}

	logger.Debug("YAML config mapping complete",
		"project_id", cfg.ProjectID,
		"listen_addr", cfg.ListenAddr,
		"gateway", cfg.Gateway,
		"store", cfg.Store.Kind,
	)

	return cfg, nil
}
