package conf

import (
	"fmt"

	"github.com/platescale/platescale/internal/secrets"
)

// resolveSecrets replaces credential fields with their resolved values:
// the *File path when set, otherwise the value with ${VAR} expanded.
func resolveSecrets(s *Settings) error {
	fields := []struct {
		name  string
		file  string
		value *string
	}{
		{"nutrition.appkey", s.Nutrition.AppKeyFile, &s.Nutrition.AppKey},
		{"vision.apikey", s.Vision.APIKeyFile, &s.Vision.APIKey},
		{"mqtt.password", s.MQTT.PasswordFile, &s.MQTT.Password},
	}

	for _, f := range fields {
		resolved, err := secrets.Resolve(f.file, *f.value)
		if err != nil {
			return fmt.Errorf("%s: %w", f.name, err)
		}
		*f.value = resolved
	}
	return nil
}
