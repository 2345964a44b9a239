package gphoto

import (
	"errors"
	"fmt"
	"strings"
)

// DeviceError wraps a failed gphoto2 invocation together with its merged
// stdout/stderr output. The output text is the only signal we have for
// telling transient USB faults apart from real failures.
type DeviceError struct {
	Op     string
	Output string
	Err    error
}

func (e *DeviceError) Error() string {
	out := strings.TrimSpace(e.Output)
	if out == "" {
		return fmt.Sprintf("gphoto2 %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("gphoto2 %s: %v: %s", e.Op, e.Err, out)
}

func (e *DeviceError) Unwrap() error {
	return e.Err
}

// Substrings (lower-cased) that mark a device error as transient.
// These come from real gphoto2 output during USB arbitration races.
var transientMarkers = []string{
	"could not claim the usb device",
	"device or resource busy",
	"device busy",
	"ptp i/o error",
	"i/o error",
	"busy",
}

// IsTransient reports whether err is a device error that is likely to
// resolve itself on retry (USB claim contention, generic busy, I/O error).
func IsTransient(err error) bool {
	var de *DeviceError
	if !errors.As(err, &de) {
		return false
	}
	out := strings.ToLower(de.Output)
	for _, marker := range transientMarkers {
		if strings.Contains(out, marker) {
			return true
		}
	}
	return false
}
