package camera

import (
	"context"
	"time"

	"github.com/Mojo24x7/canon-eos-studio-remote/internal/gphoto"
)

// withRetry runs fn up to attempts times, sleeping delay between tries,
// but only while the failure is classified transient (USB claim race,
// resource busy, PTP I/O error). Any other failure is returned
// immediately. The dominant real-world fault this absorbs is USB
// arbitration between the OS and the device driver.
func withRetry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if !gphoto.IsTransient(err) || i == attempts-1 {
			return err
		}
		select {
		case <-ctx.Done():
			return err
		case <-time.After(delay):
		}
	}
	return err
}
