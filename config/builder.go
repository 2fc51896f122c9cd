package config

import (
	"github.com/jpalmerr/breachwatch"
)

// Build converts a parsed configuration into SDK sensors and monitor
// options.
//
// The returned options cover everything the config file expresses; the
// caller typically appends [breachwatch.WithLogger] before calling
// [breachwatch.New].
func Build(cfg *Config) ([]breachwatch.Sensor, []breachwatch.Option, error) {
	sensors := make([]breachwatch.Sensor, 0, len(cfg.Emails))
	for _, email := range cfg.Emails {
		s, err := breachwatch.NewSensor(email)
		if err != nil {
			return nil, nil, err
		}
		sensors = append(sensors, s)
	}

	opts := []breachwatch.Option{
		breachwatch.WithSensors(sensors...),
		breachwatch.WithAPIKey(cfg.APIKey),
		breachwatch.WithPort(cfg.Port),
		breachwatch.WithUpdateInterval(cfg.UpdateInterval.Duration()),
		breachwatch.WithRetryInterval(cfg.RetryInterval.Duration()),
		breachwatch.WithTimeout(cfg.Timeout.Duration()),
	}

	if cfg.Title != "" {
		opts = append(opts, breachwatch.WithTitle(cfg.Title))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, breachwatch.WithBaseURL(cfg.BaseURL))
	}

	return sensors, opts, nil
}
