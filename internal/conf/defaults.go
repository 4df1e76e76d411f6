package conf

import (
	"time"

	"github.com/spf13/viper"
)

// setDefaultConfig sets default values for every configuration key
func setDefaultConfig(v *viper.Viper) {
	v.SetDefault("debug", false)

	v.SetDefault("server.listen", "0.0.0.0:8080")
	v.SetDefault("server.bodylimit", "10M")
	v.SetDefault("server.readtimeout", 30*time.Second)
	v.SetDefault("server.writetimeout", 60*time.Second)
	v.SetDefault("server.allowedorigins", []string{})

	v.SetDefault("detector.url", "http://localhost:5000/detect")
	v.SetDefault("detector.timeout", 30*time.Second)

	v.SetDefault("vision.enabled", false)
	v.SetDefault("vision.apikey", "")
	v.SetDefault("vision.apikeyfile", "")
	v.SetDefault("vision.endpoint", "")
	v.SetDefault("vision.maxresults", 20)
	v.SetDefault("vision.timeout", 15*time.Second)

	v.SetDefault("nutrition.baseurl", "https://api.edamam.com")
	v.SetDefault("nutrition.appid", "")
	v.SetDefault("nutrition.appkey", "")
	v.SetDefault("nutrition.appkeyfile", "")
	v.SetDefault("nutrition.timeout", 10*time.Second)
	v.SetDefault("nutrition.cachettl", 24*time.Hour)
	v.SetDefault("nutrition.ratelimit", 2.0)
	v.SetDefault("nutrition.burst", 4)
	v.SetDefault("nutrition.concurrency", 4)

	v.SetDefault("estimation.mode", ModeDetection)
	v.SetDefault("estimation.visionfallback", false)
	v.SetDefault("estimation.referencetable", "")

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.clientid", "platescale")
	v.SetDefault("mqtt.topic", "platescale/estimates")
	v.SetDefault("mqtt.qos", 0)
	v.SetDefault("mqtt.retain", false)
	v.SetDefault("mqtt.passwordfile", "")
	v.SetDefault("mqtt.timeout", 5*time.Second)

	v.SetDefault("logging.default_level", "info")
	v.SetDefault("logging.timezone", "Local")
	v.SetDefault("logging.console.enabled", true)
	v.SetDefault("logging.console.level", "info")
	v.SetDefault("logging.file_output.enabled", false)
	v.SetDefault("logging.file_output.path", "logs/platescale.log")
	v.SetDefault("logging.file_output.level", "info")

	v.SetDefault("sentry.enabled", false)
	v.SetDefault("sentry.environment", "production")
	v.SetDefault("sentry.samplerate", 1.0)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}
