package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
)

const (
	GatewayFCM  = "fcm"
	GatewayAPNS = "apns"

	StoreFirestore = "firestore"
	StoreMemory    = "memory"

	DefaultListenAddr         = ":8080"
	DefaultRedisTTL           = 24 * time.Hour
	DefaultUsersCollection    = "users"
	DefaultRegistrationsField = "fcmTokens"
)

type AgoraConfig struct {
	AppID          string
	AppCertificate string
}

type APNSConfig struct {
	KeyID      string
	TeamID     string
	BundleID   string
	P8KeyFile  string
	Production bool
}

type StoreConfig struct {
	Kind               string
	UsersCollection    string
	RegistrationsField string
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// Config defines the *single*, authoritative configuration.
type Config struct {
	ProjectID       string
	ListenAddr      string
	CredentialsFile string
	Gateway         string

	Agora AgoraConfig
	APNS  APNSConfig
	Store StoreConfig
	Redis RedisConfig

	// EventsTopicID enables call.dispatched events when set.
	EventsTopicID string
	// IdentityServiceURL enables the authenticated registration API when set.
	IdentityServiceURL string

	CorsConfig middleware.CorsConfig
}

// envOverrides holds the environment variables we honour. A nil field means
// the variable was not set.
type envOverrides struct {
	ProjectID          *string        `env:"PROJECT_ID"`
	Port               *string        `env:"PORT"`
	CredentialsFile    *string        `env:"CREDENTIALS_FILE"`
	Gateway            *string        `env:"PUSH_GATEWAY"`
	AgoraAppID         *string        `env:"AGORA_APP_ID"`
	AgoraCertificate   *string        `env:"AGORA_APP_CERTIFICATE"`
	APNSKeyID          *string        `env:"APNS_KEY_ID"`
	APNSTeamID         *string        `env:"APNS_TEAM_ID"`
	APNSBundleID       *string        `env:"APNS_BUNDLE_ID"`
	APNSP8KeyFile      *string        `env:"APNS_P8_KEY_FILE"`
	APNSProduction     *bool          `env:"APNS_PRODUCTION"`
	StoreKind          *string        `env:"REGISTRATION_STORE"`
	UsersCollection    *string        `env:"USERS_COLLECTION"`
	RegistrationsField *string        `env:"REGISTRATIONS_FIELD"`
	RedisEnabled       *bool          `env:"REDIS_ENABLED"`
	RedisAddr          *string        `env:"REDIS_ADDR"`
	RedisPassword      *string        `env:"REDIS_PASSWORD"`
	RedisDB            *int           `env:"REDIS_DB"`
	RedisTTL           *time.Duration `env:"REDIS_TTL"`
	EventsTopicID      *string        `env:"EVENTS_TOPIC_ID"`
	IdentityServiceURL *string        `env:"IDENTITY_SERVICE_URL"`
	CorsAllowedOrigins *string        `env:"CORS_ALLOWED_ORIGINS"`
}

// UpdateConfigWithEnvOverrides applies environment variables and final validation.
func UpdateConfigWithEnvOverrides(cfg *Config, logger *slog.Logger) (*Config, error) {
	logger.Debug("Applying environment variable overrides...")

	var o envOverrides
	if err := env.Parse(&o); err != nil {
		return nil, fmt.Errorf("failed to parse environment overrides: %w", err)
	}

	set := func(key string, dst *string, val *string) {
		if val != nil && *val != "" {
			logger.Debug("Overriding config value", "key", key, "source", "env")
			*dst = *val
		}
	}
	set("PROJECT_ID", &cfg.ProjectID, o.ProjectID)
	set("CREDENTIALS_FILE", &cfg.CredentialsFile, o.CredentialsFile)
	set("PUSH_GATEWAY", &cfg.Gateway, o.Gateway)
	set("AGORA_APP_ID", &cfg.Agora.AppID, o.AgoraAppID)
	set("AGORA_APP_CERTIFICATE", &cfg.Agora.AppCertificate, o.AgoraCertificate)
	set("APNS_KEY_ID", &cfg.APNS.KeyID, o.APNSKeyID)
	set("APNS_TEAM_ID", &cfg.APNS.TeamID, o.APNSTeamID)
	set("APNS_BUNDLE_ID", &cfg.APNS.BundleID, o.APNSBundleID)
	set("APNS_P8_KEY_FILE", &cfg.APNS.P8KeyFile, o.APNSP8KeyFile)
	set("REGISTRATION_STORE", &cfg.Store.Kind, o.StoreKind)
	set("USERS_COLLECTION", &cfg.Store.UsersCollection, o.UsersCollection)
	set("REGISTRATIONS_FIELD", &cfg.Store.RegistrationsField, o.RegistrationsField)
	set("REDIS_PASSWORD", &cfg.Redis.Password, o.RedisPassword)
	set("EVENTS_TOPIC_ID", &cfg.EventsTopicID, o.EventsTopicID)
	set("IDENTITY_SERVICE_URL", &cfg.IdentityServiceURL, o.IdentityServiceURL)

	if o.Port != nil && *o.Port != "" {
		logger.Debug("Overriding config value", "key", "PORT", "source", "env")
		cfg.ListenAddr = ":" + *o.Port
	}
	if o.APNSProduction != nil {
		cfg.APNS.Production = *o.APNSProduction
	}

	// Redis Overrides
	if o.RedisAddr != nil && *o.RedisAddr != "" {
		cfg.Redis.Addr = *o.RedisAddr
		cfg.Redis.Enabled = true
	}
	if o.RedisDB != nil {
		cfg.Redis.DB = *o.RedisDB
	}
	if o.RedisTTL != nil {
		cfg.Redis.TTL = *o.RedisTTL
	}
	if o.RedisEnabled != nil {
		cfg.Redis.Enabled = *o.RedisEnabled
	}

	// CORS Overrides
	if o.CorsAllowedOrigins != nil && *o.CorsAllowedOrigins != "" {
		logger.Debug("Overriding config value", "key", "CORS_ALLOWED_ORIGINS", "source", "env")
		var cleanOrigins []string
		for _, origin := range strings.Split(*o.CorsAllowedOrigins, ",") {
			if trimmed := strings.TrimSpace(origin); trimmed != "" {
				cleanOrigins = append(cleanOrigins, trimmed)
			}
		}
		cfg.CorsConfig.AllowedOrigins = cleanOrigins
	}

	applyDefaults(cfg)
	if err := validate(cfg); err != nil {
		return nil, err
	}

	logger.Debug("Configuration finalized and validated successfully")
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = DefaultListenAddr
	}
	if cfg.Gateway == "" {
		cfg.Gateway = GatewayFCM
	}
	if cfg.Store.Kind == "" {
		cfg.Store.Kind = StoreFirestore
	}
	if cfg.Store.UsersCollection == "" {
		cfg.Store.UsersCollection = DefaultUsersCollection
	}
	if cfg.Store.RegistrationsField == "" {
		cfg.Store.RegistrationsField = DefaultRegistrationsField
	}
	if cfg.Redis.TTL <= 0 {
		cfg.Redis.TTL = DefaultRedisTTL
	}
}

func validate(cfg *Config) error {
	if cfg.Agora.AppID == "" || cfg.Agora.AppCertificate == "" {
		return fmt.Errorf("agora app id and certificate are required (set via YAML or AGORA_APP_ID / AGORA_APP_CERTIFICATE)")
	}

	switch cfg.Gateway {
	case GatewayFCM:
	case GatewayAPNS:
		a := cfg.APNS
		if a.KeyID == "" || a.TeamID == "" || a.BundleID == "" || a.P8KeyFile == "" {
			return fmt.Errorf("apns gateway requires key_id, team_id, bundle_id and p8_key_file")
		}
	default:
		return fmt.Errorf("unknown push gateway %q (want %q or %q)", cfg.Gateway, GatewayFCM, GatewayAPNS)
	}

	switch cfg.Store.Kind {
	case StoreMemory:
	case StoreFirestore:
		if cfg.ProjectID == "" {
			return fmt.Errorf("project_id is required for the firestore store (set via YAML or PROJECT_ID env var)")
		}
	default:
		return fmt.Errorf("unknown registration store %q (want %q or %q)", cfg.Store.Kind, StoreFirestore, StoreMemory)
	}

	if cfg.Gateway == GatewayFCM && cfg.ProjectID == "" {
		return fmt.Errorf("project_id is required for the fcm gateway (set via YAML or PROJECT_ID env var)")
	}
	if cfg.EventsTopicID != "" && cfg.ProjectID == "" {
		return fmt.Errorf("project_id is required when events_topic_id is set")
	}
	if cfg.Redis.Enabled && cfg.Redis.Addr == "" {
		return fmt.Errorf("redis is enabled but no address is configured")
	}
	return nil
}
