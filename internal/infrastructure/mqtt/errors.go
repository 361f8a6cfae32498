package mqtt

import "errors"

// Sentinel errors; callers compare with errors.Is.
var (
	ErrNotConnected     = errors.New("mqtt: client not connected")
	ErrConnectionFailed = errors.New("mqtt: connection failed")
	ErrPublishFailed    = errors.New("mqtt: publish failed")
	ErrSubscribeFailed  = errors.New("mqtt: subscribe failed")

	// ErrInvalidQoS is returned for QoS levels outside 0-2.
	ErrInvalidQoS = errors.New("mqtt: invalid QoS level (must be 0, 1, or 2)")

	ErrInvalidTopic    = errors.New("mqtt: topic cannot be empty")
	ErrPayloadTooLarge = errors.New("mqtt: payload exceeds maximum size")
	ErrTimeout         = errors.New("mqtt: operation timed out")
)
