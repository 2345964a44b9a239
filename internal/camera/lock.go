package camera

import "sync"

// DeviceLock is the single serialization point for device-touching
// operations. The underlying driver does not support concurrent sessions;
// two simultaneous callers produce USB claim failures. One coarse lock
// for the whole device, correctness over throughput.
type DeviceLock struct {
	mu sync.Mutex
}

// NewDeviceLock returns the process-wide device gate. Construct exactly
// one and inject it everywhere.
func NewDeviceLock() *DeviceLock {
	return &DeviceLock{}
}

// WithDevice runs fn while holding the device. The lock is released on
// every exit path. Retry delays happen inside fn while the lock is held;
// the device is unusable during the fault window anyway.
func (l *DeviceLock) WithDevice(fn func() error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return fn()
}
