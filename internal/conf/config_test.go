package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_EmbeddedDefaultsAreValid(t *testing.T) {
	path := writeConfig(t, string(DefaultConfig()))

	settings, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ModeDetection, settings.Estimation.Mode)
	assert.Equal(t, "https://api.edamam.com", settings.Nutrition.BaseURL)
	assert.Equal(t, 10*time.Second, settings.Nutrition.Timeout)
	assert.Equal(t, 24*time.Hour, settings.Nutrition.CacheTTL)
	assert.Equal(t, int64(20), settings.Vision.MaxResults)
	assert.Equal(t, "info", settings.Logging.DefaultLevel)
	require.NotNil(t, settings.Logging.Console)
	assert.True(t, settings.Logging.Console.Enabled)
	assert.Same(t, settings, GetSettings())
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  listen: "127.0.0.1:9090"
nutrition:
  concurrency: 8
  cachettl: 1h
`)

	settings, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9090", settings.Server.Listen)
	assert.Equal(t, 8, settings.Nutrition.Concurrency)
	assert.Equal(t, time.Hour, settings.Nutrition.CacheTTL)
	assert.Equal(t, 2.0, settings.Nutrition.RateLimit)
}

func TestLoad_EnvironmentBindings(t *testing.T) {
	t.Setenv("EDAMAM_ID", "id-from-env")
	t.Setenv("EDAMAM_KEY", "key-from-env")
	t.Setenv("PLATESCALE_SERVER_LISTEN", "127.0.0.1:7070")

	settings, err := Load(writeConfig(t, "debug: false\n"))
	require.NoError(t, err)
	assert.Equal(t, "id-from-env", settings.Nutrition.AppID)
	assert.Equal(t, "key-from-env", settings.Nutrition.AppKey)
	assert.Equal(t, "127.0.0.1:7070", settings.Server.Listen)
}

func TestLoad_ResolvesSecrets(t *testing.T) {
	t.Setenv("PLATESCALE_TEST_VISION_KEY", "vision-key")

	keyFile := filepath.Join(t.TempDir(), "edamam_key")
	require.NoError(t, os.WriteFile(keyFile, []byte("key-from-file\n"), 0o600))

	settings, err := Load(writeConfig(t, `
nutrition:
  appid: id
  appkey: ignored-when-file-is-set
  appkeyfile: `+keyFile+`
vision:
  apikey: ${PLATESCALE_TEST_VISION_KEY}
`))
	require.NoError(t, err)
	assert.Equal(t, "key-from-file", settings.Nutrition.AppKey)
	assert.Equal(t, "vision-key", settings.Vision.APIKey)
}

func TestLoad_UnresolvableSecret(t *testing.T) {
	_, err := Load(writeConfig(t, "mqtt:\n  password: ${PLATESCALE_TEST_UNSET_PASSWORD}\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mqtt.password")
}

func TestLoad_InvalidEnvironmentValue(t *testing.T) {
	t.Setenv("DETECTOR_URL", "not a url")

	_, err := Load(writeConfig(t, "debug: false\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DETECTOR_URL")
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestValidateSettings_CollectsAllErrors(t *testing.T) {
	path := writeConfig(t, string(DefaultConfig()))
	settings, err := Load(path)
	require.NoError(t, err)

	settings.Estimation.Mode = "guess"
	settings.Nutrition.Concurrency = 0
	settings.MQTT.Enabled = true
	settings.MQTT.Topic = ""
	settings.Sentry.Enabled = true

	err = ValidateSettings(settings)
	require.Error(t, err)

	var ve ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Len(t, ve.Errors, 4)
}

func TestValidateSettings_VisionModeRequiresVision(t *testing.T) {
	settings, err := Load(writeConfig(t, string(DefaultConfig())))
	require.NoError(t, err)

	settings.Estimation.Mode = ModeVision
	err = ValidateSettings(settings)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vision must be enabled")

	settings.Vision.Enabled = true
	settings.Vision.APIKey = "key"
	assert.NoError(t, ValidateSettings(settings))
}
