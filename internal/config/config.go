package config

import (
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/spf13/viper"
)

const (
	envPrefix           = "MEALTRAIL"
	defaultHTTPAddress  = "0.0.0.0:8080"
	defaultDatabasePath = "mealtrail.db"
	defaultLogLevel     = "info"
	defaultCookieName   = "app_session"
	defaultIssuer       = "mealtrail-auth"
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress       string
	DatabasePath      string
	LogLevel          string
	SessionSigningKey string
	SessionIssuer     string
	SessionCookieName string
	// Timezone is the IANA zone used for insights day bucketing. Empty
	// means the process-local zone.
	Timezone string
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("session.issuer", defaultIssuer)
	configViper.SetDefault("session.cookie_name", defaultCookieName)
	configViper.SetDefault("insights.timezone", "")
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:       configViper.GetString("http.address"),
		DatabasePath:      configViper.GetString("database.path"),
		LogLevel:          configViper.GetString("log.level"),
		SessionSigningKey: configViper.GetString("session.signing_secret"),
		SessionIssuer:     configViper.GetString("session.issuer"),
		SessionCookieName: configViper.GetString("session.cookie_name"),
		Timezone:          configViper.GetString("insights.timezone"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

// Location resolves the configured timezone, falling back to the local zone.
func (c AppConfig) Location() (*time.Location, error) {
	if strings.TrimSpace(c.Timezone) == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

func (c AppConfig) validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.HTTPAddress, validation.Required),
		validation.Field(&c.DatabasePath, validation.Required),
		validation.Field(&c.SessionSigningKey, validation.Required),
		validation.Field(&c.SessionIssuer, validation.Required),
		validation.Field(&c.SessionCookieName, validation.Required),
		validation.Field(&c.Timezone, validation.By(func(value interface{}) error {
			name, _ := value.(string)
			if strings.TrimSpace(name) == "" {
				return nil
			}
			_, err := time.LoadLocation(name)
			return err
		})),
	)
}
