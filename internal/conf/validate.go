package conf

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("validation errors: %s", strings.Join(ve.Errors, "; "))
}

// ValidateSettings validates the entire Settings struct, collecting every problem
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	for _, check := range []func(*Settings) []string{
		validateServerSettings,
		validateDetectorSettings,
		validateVisionSettings,
		validateNutritionSettings,
		validateEstimationSettings,
		validateMQTTSettings,
		validateSentrySettings,
	} {
		ve.Errors = append(ve.Errors, check(settings)...)
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateServerSettings(s *Settings) []string {
	var errs []string
	if _, _, err := net.SplitHostPort(s.Server.Listen); err != nil {
		errs = append(errs, fmt.Sprintf("server.listen %q must be host:port", s.Server.Listen))
	}
	return errs
}

func validateDetectorSettings(s *Settings) []string {
	var errs []string
	if s.Estimation.Mode == ModeDetection {
		if err := validateEnvURL(s.Detector.URL); err != nil {
			errs = append(errs, fmt.Sprintf("detector.url: %v", err))
		}
	}
	if s.Detector.Timeout <= 0 {
		errs = append(errs, "detector.timeout must be positive")
	}
	return errs
}

func validateVisionSettings(s *Settings) []string {
	var errs []string
	needsVision := s.Estimation.Mode == ModeVision || s.Estimation.VisionFallback
	if needsVision && !s.Vision.Enabled {
		errs = append(errs, "vision must be enabled when estimation.mode is vision or visionfallback is set")
	}
	if !s.Vision.Enabled {
		return errs
	}
	if s.Vision.APIKey == "" {
		errs = append(errs, "vision.apikey is required when vision is enabled")
	}
	if s.Vision.MaxResults <= 0 {
		errs = append(errs, "vision.maxresults must be positive")
	}
	return errs
}

func validateNutritionSettings(s *Settings) []string {
	var errs []string
	n := s.Nutrition
	if _, err := url.ParseRequestURI(n.BaseURL); err != nil {
		errs = append(errs, fmt.Sprintf("nutrition.baseurl: %v", err))
	}
	if n.Timeout <= 0 {
		errs = append(errs, "nutrition.timeout must be positive")
	}
	if n.RateLimit < 0 {
		errs = append(errs, "nutrition.ratelimit cannot be negative")
	}
	if n.RateLimit > 0 && n.Burst < 1 {
		errs = append(errs, "nutrition.burst must be at least 1 when rate limiting")
	}
	if n.Concurrency < 1 {
		errs = append(errs, "nutrition.concurrency must be at least 1")
	}
	return errs
}

func validateEstimationSettings(s *Settings) []string {
	switch s.Estimation.Mode {
	case ModeDetection, ModeVision:
		return nil
	default:
		return []string{fmt.Sprintf("estimation.mode %q must be %q or %q", s.Estimation.Mode, ModeDetection, ModeVision)}
	}
}

func validateMQTTSettings(s *Settings) []string {
	if !s.MQTT.Enabled {
		return nil
	}
	var errs []string
	if s.MQTT.Broker == "" {
		errs = append(errs, "mqtt.broker is required when mqtt is enabled")
	}
	if s.MQTT.Topic == "" {
		errs = append(errs, "mqtt.topic is required when mqtt is enabled")
	}
	if s.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1 or 2")
	}
	return errs
}

func validateSentrySettings(s *Settings) []string {
	if !s.Sentry.Enabled {
		return nil
	}
	var errs []string
	if s.Sentry.DSN == "" {
		errs = append(errs, "sentry.dsn is required when sentry is enabled")
	}
	if s.Sentry.SampleRate < 0 || s.Sentry.SampleRate > 1 {
		errs = append(errs, "sentry.samplerate must be between 0 and 1")
	}
	return errs
}
