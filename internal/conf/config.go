// Package conf loads platescale settings from YAML, environment and defaults.
package conf

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"

	"github.com/platescale/platescale/internal/logger"
)

//go:embed config.yaml
var configFiles embed.FS

// Settings is the full application configuration
type Settings struct {
	Debug bool `mapstructure:"debug" yaml:"debug"`

	Server     ServerSettings       `mapstructure:"server" yaml:"server"`
	Detector   DetectorSettings     `mapstructure:"detector" yaml:"detector"`
	Vision     VisionSettings       `mapstructure:"vision" yaml:"vision"`
	Nutrition  NutritionSettings    `mapstructure:"nutrition" yaml:"nutrition"`
	Estimation EstimationSettings   `mapstructure:"estimation" yaml:"estimation"`
	MQTT       MQTTSettings         `mapstructure:"mqtt" yaml:"mqtt"`
	Logging    logger.LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Sentry     SentrySettings       `mapstructure:"sentry" yaml:"sentry"`
	Metrics    MetricsSettings      `mapstructure:"metrics" yaml:"metrics"`
}

// ServerSettings configures the HTTP API
type ServerSettings struct {
	Listen         string        `mapstructure:"listen" yaml:"listen"`                   // host:port to bind
	BodyLimit      string        `mapstructure:"bodylimit" yaml:"bodylimit"`             // max request body, echo notation e.g. "10M"
	ReadTimeout    time.Duration `mapstructure:"readtimeout" yaml:"readtimeout"`         // request read timeout
	WriteTimeout   time.Duration `mapstructure:"writetimeout" yaml:"writetimeout"`       // response write timeout
	AllowedOrigins []string      `mapstructure:"allowedorigins" yaml:"allowedorigins"`   // CORS origins, empty disables CORS
}

// DetectorSettings configures the object detection inference service
type DetectorSettings struct {
	URL     string        `mapstructure:"url" yaml:"url"`         // inference endpoint accepting multipart "file"
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"` // per-request timeout
}

// VisionSettings configures the whole-image label classifier
type VisionSettings struct {
	Enabled    bool          `mapstructure:"enabled" yaml:"enabled"`
	APIKey     string        `mapstructure:"apikey" yaml:"apikey"`         // literal or ${VAR}
	APIKeyFile string        `mapstructure:"apikeyfile" yaml:"apikeyfile"` // mounted secret, wins over APIKey
	Endpoint   string        `mapstructure:"endpoint" yaml:"endpoint"`     // optional override, mostly for tests
	MaxResults int64         `mapstructure:"maxresults" yaml:"maxresults"` // labels requested per image
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// NutritionSettings configures the Edamam food database client
type NutritionSettings struct {
	BaseURL     string        `mapstructure:"baseurl" yaml:"baseurl"`
	AppID       string        `mapstructure:"appid" yaml:"appid"`
	AppKey      string        `mapstructure:"appkey" yaml:"appkey"`           // literal or ${VAR}
	AppKeyFile  string        `mapstructure:"appkeyfile" yaml:"appkeyfile"`   // mounted secret, wins over AppKey
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`         // per-lookup timeout
	CacheTTL    time.Duration `mapstructure:"cachettl" yaml:"cachettl"`       // 0 disables caching
	RateLimit   float64       `mapstructure:"ratelimit" yaml:"ratelimit"`     // requests per second, 0 = unlimited
	Burst       int           `mapstructure:"burst" yaml:"burst"`             // limiter burst size
	Concurrency int           `mapstructure:"concurrency" yaml:"concurrency"` // parallel lookups per request
}

// EstimationSettings configures how weights are estimated
type EstimationSettings struct {
	Mode           string `mapstructure:"mode" yaml:"mode"`                     // "yolo" or "vision"
	VisionFallback bool   `mapstructure:"visionfallback" yaml:"visionfallback"` // classify when detection finds no food
	ReferenceTable string `mapstructure:"referencetable" yaml:"referencetable"` // optional YAML override of built-in table
}

// Estimation modes
const (
	ModeDetection = "yolo"
	ModeVision    = "vision"
)

// MQTTSettings configures the estimate event publisher
type MQTTSettings struct {
	Enabled      bool          `mapstructure:"enabled" yaml:"enabled"`
	Broker       string        `mapstructure:"broker" yaml:"broker"`
	ClientID     string        `mapstructure:"clientid" yaml:"clientid"`
	Username     string        `mapstructure:"username" yaml:"username"`
	Password     string        `mapstructure:"password" yaml:"password"`
	PasswordFile string        `mapstructure:"passwordfile" yaml:"passwordfile"`
	Topic        string        `mapstructure:"topic" yaml:"topic"`
	QoS          byte          `mapstructure:"qos" yaml:"qos"`
	Retain       bool          `mapstructure:"retain" yaml:"retain"`
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// SentrySettings configures opt-in error reporting
type SentrySettings struct {
	Enabled     bool    `mapstructure:"enabled" yaml:"enabled"`
	DSN         string  `mapstructure:"dsn" yaml:"dsn"`
	Environment string  `mapstructure:"environment" yaml:"environment"`
	SampleRate  float64 `mapstructure:"samplerate" yaml:"samplerate"`
}

// MetricsSettings configures the Prometheus endpoint
type MetricsSettings struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"`
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads configuration from configPath (or the default search paths when
// empty), environment variables and built-in defaults, validates it and
// stores it as the current settings.
func Load(configPath string) (*Settings, error) {
	v := viper.New()

	if err := initViper(v, configPath); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := resolveSecrets(settings); err != nil {
		return nil, fmt.Errorf("error resolving secrets: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsMutex.Lock()
	settingsInstance = settings
	settingsMutex.Unlock()
	return settings, nil
}

// initViper sets defaults, binds the environment and reads the config file.
// A missing config file falls back to the embedded default.
func initViper(v *viper.Viper, configPath string) error {
	setDefaultConfig(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindEnvVars(v); err != nil {
		return err
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("fatal error reading config file %s: %w", configPath, err)
		}
		return nil
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, path := range DefaultConfigPaths() {
		v.AddConfigPath(path)
	}

	err := v.ReadInConfig()
	if err == nil {
		return nil
	}
	var notFound viper.ConfigFileNotFoundError
	if !errors.As(err, &notFound) {
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return v.ReadConfig(bytes.NewReader(DefaultConfig()))
}

// DefaultConfigPaths returns the directories searched for config.yaml
func DefaultConfigPaths() []string {
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "platescale"))
	}
	return append(paths, "/etc/platescale")
}

// DefaultConfig returns the embedded default config.yaml
func DefaultConfig() []byte {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		panic(fmt.Sprintf("embedded config.yaml missing: %v", err))
	}
	return data
}

// GetSettings returns the current settings instance
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}
