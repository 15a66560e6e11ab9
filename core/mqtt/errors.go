package mqtt

import "errors"

// ErrPublish is returned when a message could not be delivered after all retries.
var ErrPublish = errors.New("mqtt publish failed")
