package domain

import "errors"

var (
	ErrInaccurate      = errors.New("accuracy radius too large")
	ErrImplausibleJump = errors.New("implausible jump")
	ErrStationaryNoise = errors.New("stationary noise")

	ErrPermissionDenied  = errors.New("location permission not granted")
	ErrPermissionLost    = errors.New("location permission lost")
	ErrSourceClosed      = errors.New("positioning source closed")
	ErrInvalidTransition = errors.New("invalid session transition")
	ErrSessionNotFound   = errors.New("session not found")
	ErrSessionActive     = errors.New("session already tracking")
)
