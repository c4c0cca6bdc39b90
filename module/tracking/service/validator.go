package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/Michaelch2406/MascotaLink-sub003/module/tracking/domain"
)

type ValidatorConfig struct {
	MaxAccuracyMeters        float64       `yaml:"max_accuracy_meters"`
	JumpDistanceMeters       float64       `yaml:"jump_distance_meters"`
	JumpWindow               time.Duration `yaml:"jump_window"`
	StationaryDistanceMeters float64       `yaml:"stationary_distance_meters"`
	StationaryAccuracyMeters float64       `yaml:"stationary_accuracy_meters"`
}

func DefaultValidatorConfig() ValidatorConfig {
	return ValidatorConfig{
		MaxAccuracyMeters:        500,
		JumpDistanceMeters:       100,
		JumpWindow:               2 * time.Second,
		StationaryDistanceMeters: 10,
		StationaryAccuracyMeters: 20,
	}
}

// RejectError describes why a fix was not admitted. It unwraps to one of
// domain.ErrInaccurate, domain.ErrImplausibleJump or domain.ErrStationaryNoise.
type RejectError struct {
	Reason   error
	Distance float64
	Elapsed  time.Duration
	Accuracy float64
}

func (e *RejectError) Error() string {
	return fmt.Sprintf("%v: accuracy=%.1fm distance=%.1fm elapsed=%s", e.Reason, e.Accuracy, e.Distance, e.Elapsed)
}

func (e *RejectError) Unwrap() error {
	return e.Reason
}

type Validator struct {
	cfg ValidatorConfig
}

func NewValidator(cfg ValidatorConfig) *Validator {
	return &Validator{cfg: cfg}
}

// Validate checks a candidate against the last accepted fix. A nil baseline
// means the candidate is the first fix of the session and only the accuracy
// gate applies.
func (v *Validator) Validate(candidate domain.PositionFix, baseline *domain.PositionFix) error {
	if candidate.Accuracy > v.cfg.MaxAccuracyMeters {
		return &RejectError{Reason: domain.ErrInaccurate, Accuracy: candidate.Accuracy}
	}
	if baseline == nil {
		return nil
	}

	dist := distanceMeters(*baseline, candidate)
	elapsed := candidate.CapturedAt.Sub(baseline.CapturedAt)

	if dist > v.cfg.JumpDistanceMeters && elapsed < v.cfg.JumpWindow {
		return &RejectError{Reason: domain.ErrImplausibleJump, Distance: dist, Elapsed: elapsed, Accuracy: candidate.Accuracy}
	}
	if dist < v.cfg.StationaryDistanceMeters && candidate.Accuracy > v.cfg.StationaryAccuracyMeters {
		return &RejectError{Reason: domain.ErrStationaryNoise, Distance: dist, Elapsed: elapsed, Accuracy: candidate.Accuracy}
	}
	return nil
}

// rejectReason is the metrics label for a validation error.
func rejectReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrInaccurate):
		return "accuracy"
	case errors.Is(err, domain.ErrImplausibleJump):
		return "jump"
	case errors.Is(err, domain.ErrStationaryNoise):
		return "stationary"
	default:
		return "other"
	}
}
