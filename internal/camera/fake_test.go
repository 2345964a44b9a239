package camera

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Mojo24x7/canon-eos-studio-remote/internal/gphoto"
)

// fakeGateway implements Gateway with overridable behaviour per call. It
// also tracks how many gateway calls are in flight at once, to verify the
// device lock keeps them serialized.
type fakeGateway struct {
	mu          sync.Mutex
	inFlight    int
	maxInFlight int

	getConfigFn      func(key string) (gphoto.ConfigValue, error)
	setConfigFn      func(key, value string) error
	setConfigIndexFn func(key string, index int) error
	captureFn        func(pattern string) (string, error)
	listFilesFn      func() ([]gphoto.FileRef, error)
	getFileFn        func(index int, dest string, skipExisting bool) (string, error)
	setLiveViewFn    func(on bool) error
}

func (f *fakeGateway) enter() {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	f.mu.Unlock()
}

func (f *fakeGateway) leave() {
	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()
}

func (f *fakeGateway) GetConfig(ctx context.Context, key string) (gphoto.ConfigValue, error) {
	f.enter()
	defer f.leave()
	if f.getConfigFn != nil {
		return f.getConfigFn(key)
	}
	return gphoto.ConfigValue{}, errors.New("no config")
}

func (f *fakeGateway) SetConfig(ctx context.Context, key, value string) error {
	f.enter()
	defer f.leave()
	if f.setConfigFn != nil {
		return f.setConfigFn(key, value)
	}
	return nil
}

func (f *fakeGateway) SetConfigIndex(ctx context.Context, key string, index int) error {
	f.enter()
	defer f.leave()
	if f.setConfigIndexFn != nil {
		return f.setConfigIndexFn(key, index)
	}
	return nil
}

func (f *fakeGateway) CaptureAndDownload(ctx context.Context, pattern string) (string, error) {
	f.enter()
	defer f.leave()
	if f.captureFn != nil {
		return f.captureFn(pattern)
	}
	return "", nil
}

func (f *fakeGateway) ListFiles(ctx context.Context) ([]gphoto.FileRef, error) {
	f.enter()
	defer f.leave()
	if f.listFilesFn != nil {
		return f.listFilesFn()
	}
	return nil, nil
}

func (f *fakeGateway) GetFile(ctx context.Context, index int, dest string, skipExisting bool) (string, error) {
	f.enter()
	defer f.leave()
	if f.getFileFn != nil {
		return f.getFileFn(index, dest, skipExisting)
	}
	return "", nil
}

func (f *fakeGateway) StorageInfo(ctx context.Context) (gphoto.StorageInfo, error) {
	f.enter()
	defer f.leave()
	return gphoto.StorageInfo{}, errors.New("no storage")
}

func (f *fakeGateway) CapturePreview(ctx context.Context) ([]byte, error) {
	f.enter()
	defer f.leave()
	return []byte{0xff, 0xd8, 0xff, 0xd9}, nil
}

func (f *fakeGateway) AutoDetect(ctx context.Context) ([]gphoto.Camera, error) {
	f.enter()
	defer f.leave()
	return nil, nil
}

func (f *fakeGateway) SetLiveView(ctx context.Context, on bool) error {
	f.enter()
	defer f.leave()
	if f.setLiveViewFn != nil {
		return f.setLiveViewFn(on)
	}
	return nil
}

// transientErr builds a device error whose output marks it retryable.
func transientErr() error {
	return &gphoto.DeviceError{
		Op:     "capture",
		Output: "*** Error: Could not claim the USB device",
		Err:    errors.New("exit status 1"),
	}
}

// fakeProcess implements Process for supervisor tests.
type fakeProcess struct {
	mu     sync.Mutex
	alive  bool
	killed bool
	termed bool
	done   chan struct{}
}

func newFakeProcess() *fakeProcess {
	return &fakeProcess{alive: true, done: make(chan struct{})}
}

func (p *fakeProcess) Alive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.alive
}

func (p *fakeProcess) exit() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.alive {
		p.alive = false
		close(p.done)
	}
}

func (p *fakeProcess) Terminate() error {
	p.mu.Lock()
	p.termed = true
	p.mu.Unlock()
	p.exit()
	return nil
}

func (p *fakeProcess) Kill() error {
	p.mu.Lock()
	p.killed = true
	p.mu.Unlock()
	p.exit()
	return nil
}

func (p *fakeProcess) WaitExit(timeout time.Duration) bool {
	select {
	case <-p.done:
		return true
	case <-time.After(timeout):
		return false
	}
}

func (p *fakeProcess) Done() <-chan struct{} {
	return p.done
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, d time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
