package conf

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// envPrefix namespaces automatic environment lookups: server.listen → PLATESCALE_SERVER_LISTEN.
const envPrefix = "PLATESCALE"

// envBinding maps a well-known environment variable onto a config key
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVar    string             // Environment variable name
	Validate  func(string) error // Optional validation function
}

// getEnvBindings returns variables bound in addition to the PLATESCALE_ prefix
func getEnvBindings() []envBinding {
	return []envBinding{
		{"nutrition.appid", "EDAMAM_ID", nil},
		{"nutrition.appkey", "EDAMAM_KEY", nil},
		{"vision.apikey", "GOOGLE_VISION_API_KEY", nil},
		{"detector.url", "DETECTOR_URL", validateEnvURL},
		{"sentry.dsn", "SENTRY_DSN", validateEnvURL},
	}
}

// bindEnvVars binds each variable under both its prefixed and well-known name
func bindEnvVars(v *viper.Viper) error {
	var warnings []string

	for _, binding := range getEnvBindings() {
		prefixed := envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(binding.ConfigKey, ".", "_"))
		if err := v.BindEnv(binding.ConfigKey, prefixed, binding.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("failed to bind %s: %v", binding.EnvVar, err))
			continue
		}

		if binding.Validate == nil {
			continue
		}
		if value := os.Getenv(binding.EnvVar); value != "" {
			if err := binding.Validate(value); err != nil {
				warnings = append(warnings, fmt.Sprintf("invalid %s value: %v", binding.EnvVar, err))
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}
	return nil
}

func validateEnvURL(value string) error {
	u, err := url.Parse(value)
	if err != nil {
		return err
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%q is not an absolute URL", value)
	}
	return nil
}
