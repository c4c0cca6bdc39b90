package service

import (
	"fmt"
	"time"

	"go.uber.org/multierr"
)

// Config tunes the tracking pipeline. Zero values are not meaningful; start
// from DefaultConfig.
type Config struct {
	Validator              ValidatorConfig  `yaml:"validator"`
	MinMovementMeters      float64          `yaml:"min_movement_meters"`
	Throttle               ThrottleConfig   `yaml:"throttle"`
	Dispatcher             DispatcherConfig `yaml:"dispatcher"`
	CheckPermissionEachFix bool             `yaml:"check_permission_each_fix"`
	PermissionPollInterval time.Duration    `yaml:"permission_poll_interval"`
}

func DefaultConfig() Config {
	return Config{
		Validator:              DefaultValidatorConfig(),
		MinMovementMeters:      5,
		Throttle:               DefaultThrottleConfig(),
		Dispatcher:             DefaultDispatcherConfig(),
		CheckPermissionEachFix: true,
		PermissionPollInterval: 10 * time.Second,
	}
}

// maxGeohashPrecision is the longest geohash a 64-bit encoding yields.
const maxGeohashPrecision = 12

// Validate reports every out-of-range setting. Zero throttle intervals and
// a zero permission poll interval are allowed and disable those timers.
func (c Config) Validate() error {
	var err error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			err = multierr.Append(err, fmt.Errorf(format, args...))
		}
	}

	v := c.Validator
	check(v.MaxAccuracyMeters > 0, "validator.max_accuracy_meters must be positive, got %v", v.MaxAccuracyMeters)
	check(v.JumpDistanceMeters >= 0, "validator.jump_distance_meters must not be negative, got %v", v.JumpDistanceMeters)
	check(v.JumpWindow >= 0, "validator.jump_window must not be negative, got %s", v.JumpWindow)
	check(v.StationaryDistanceMeters >= 0, "validator.stationary_distance_meters must not be negative, got %v", v.StationaryDistanceMeters)
	check(v.StationaryAccuracyMeters >= 0, "validator.stationary_accuracy_meters must not be negative, got %v", v.StationaryAccuracyMeters)
	check(c.MinMovementMeters >= 0, "min_movement_meters must not be negative, got %v", c.MinMovementMeters)

	t := c.Throttle
	check(t.Live >= 0, "throttle.live must not be negative, got %s", t.Live)
	check(t.CurrentPosition >= 0, "throttle.current_position must not be negative, got %s", t.CurrentPosition)
	check(t.History >= 0, "throttle.history must not be negative, got %s", t.History)

	d := c.Dispatcher
	check(d.GeohashPrecision >= 1 && d.GeohashPrecision <= maxGeohashPrecision,
		"dispatcher.geohash_precision must be between 1 and %d, got %d", maxGeohashPrecision, d.GeohashPrecision)
	check(d.WriteTimeout > 0, "dispatcher.write_timeout must be positive, got %s", d.WriteTimeout)
	check(d.ReconnectInterval > 0, "dispatcher.reconnect_interval must be positive, got %s", d.ReconnectInterval)

	check(c.PermissionPollInterval >= 0, "permission_poll_interval must not be negative, got %s", c.PermissionPollInterval)
	return err
}
