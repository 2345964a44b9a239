package camera

import (
	"errors"
	"io"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Mojo24x7/canon-eos-studio-remote/internal/config"
)

func newTestSupervisor(t *testing.T, gw Gateway) (*Supervisor, *config.Store, *int32, func() *fakeProcess) {
	t.Helper()
	store := config.NewStore(t.TempDir())

	var spawns int32
	var current atomic.Value

	startHold := func(waitSeconds int) (Process, error) {
		atomic.AddInt32(&spawns, 1)
		p := newFakeProcess()
		current.Store(p)
		return p, nil
	}
	startMovie := func() (Process, io.ReadCloser, error) {
		atomic.AddInt32(&spawns, 1)
		p := newFakeProcess()
		current.Store(p)
		return p, io.NopCloser(strings.NewReader("")), nil
	}

	sup := NewSupervisor(NewDeviceLock(), gw, store, startHold, startMovie, 300)
	last := func() *fakeProcess {
		p, _ := current.Load().(*fakeProcess)
		return p
	}
	return sup, store, &spawns, last
}

// TestStartHoldIdempotent verifies a second start while the hold is alive
// does not spawn a duplicate process.
func TestStartHoldIdempotent(t *testing.T) {
	sup, _, spawns, _ := newTestSupervisor(t, &fakeGateway{})

	if err := sup.StartHold(30); err != nil {
		t.Fatalf("StartHold: %v", err)
	}
	if err := sup.StartHold(60); err != nil {
		t.Fatalf("second StartHold: %v", err)
	}

	if n := atomic.LoadInt32(spawns); n != 1 {
		t.Errorf("Expected 1 spawn, got %d", n)
	}
	if !sup.HoldRunning() {
		t.Error("Expected hold to be running")
	}
	// The duplicate start must not overwrite the active wait either.
	if st := sup.HoldStatus(); st.WaitSeconds != 30 {
		t.Errorf("Expected wait 30, got %d", st.WaitSeconds)
	}
}

// TestStartHoldClampsAndPersistsWait verifies out-of-range durations are
// clamped and the accepted value becomes the new persisted default.
func TestStartHoldClampsAndPersistsWait(t *testing.T) {
	testCases := []struct {
		name string
		in   int
		want int
	}{
		{"below minimum", 1, 5},
		{"above maximum", 9999, 3600},
		{"in range", 120, 120},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			sup, store, _, _ := newTestSupervisor(t, &fakeGateway{})
			if err := sup.StartHold(tc.in); err != nil {
				t.Fatalf("StartHold: %v", err)
			}
			if st := sup.HoldStatus(); st.WaitSeconds != tc.want {
				t.Errorf("Expected wait %d, got %d", tc.want, st.WaitSeconds)
			}
			if got := store.LoadHoldWait(300); got != tc.want {
				t.Errorf("Expected persisted default %d, got %d", tc.want, got)
			}
		})
	}
}

// TestStopHoldTerminatesAndDropsLiveView verifies the stop sequence:
// graceful terminate, then a best-effort live view off on the camera.
func TestStopHoldTerminatesAndDropsLiveView(t *testing.T) {
	var liveViewOff int32
	gw := &fakeGateway{
		setLiveViewFn: func(on bool) error {
			if !on {
				atomic.AddInt32(&liveViewOff, 1)
			}
			return nil
		},
	}
	sup, _, _, last := newTestSupervisor(t, gw)

	if err := sup.StartHold(30); err != nil {
		t.Fatalf("StartHold: %v", err)
	}
	sup.StopHold()

	p := last()
	if p == nil || !p.termed {
		t.Error("Expected the hold process to be terminated")
	}
	if sup.HoldRunning() {
		t.Error("Expected hold to be stopped")
	}
	if atomic.LoadInt32(&liveViewOff) != 1 {
		t.Error("Expected live view to be switched off after stop")
	}
}

// TestStopHoldSwallowsLiveViewError verifies a failing live-view-off does
// not surface; the hold is already gone.
func TestStopHoldSwallowsLiveViewError(t *testing.T) {
	gw := &fakeGateway{
		setLiveViewFn: func(on bool) error { return errors.New("no key accepted") },
	}
	sup, _, _, _ := newTestSupervisor(t, gw)

	if err := sup.StartHold(30); err != nil {
		t.Fatalf("StartHold: %v", err)
	}
	sup.StopHold()

	if sup.HoldRunning() {
		t.Error("Expected hold to be stopped despite live view error")
	}
}

// TestHoldReapsDeadProcess verifies a hold whose wait window ran out is
// noticed lazily and a new one can start.
func TestHoldReapsDeadProcess(t *testing.T) {
	sup, _, spawns, last := newTestSupervisor(t, &fakeGateway{})

	if err := sup.StartHold(30); err != nil {
		t.Fatalf("StartHold: %v", err)
	}
	last().exit()

	if sup.HoldRunning() {
		t.Error("Expected dead hold to be reaped")
	}
	if err := sup.StartHold(30); err != nil {
		t.Fatalf("restart after reap: %v", err)
	}
	if n := atomic.LoadInt32(spawns); n != 2 {
		t.Errorf("Expected 2 spawns, got %d", n)
	}
}

// TestStartMovieRefusedWhileActive verifies the stream's single-reader
// constraint: a second start while one is alive is refused.
func TestStartMovieRefusedWhileActive(t *testing.T) {
	sup, _, _, _ := newTestSupervisor(t, &fakeGateway{})

	if _, err := sup.StartMovie(); err != nil {
		t.Fatalf("StartMovie: %v", err)
	}
	if _, err := sup.StartMovie(); !errors.Is(err, ErrStreamActive) {
		t.Errorf("Expected ErrStreamActive, got %v", err)
	}

	sup.StopMovie()
	if sup.MovieRunning() {
		t.Error("Expected movie to be stopped")
	}
	if _, err := sup.StartMovie(); err != nil {
		t.Errorf("Expected restart after stop to work, got %v", err)
	}
}

// TestStopAllIsIdempotent verifies shutdown teardown tolerates being
// called with nothing running.
func TestStopAllIsIdempotent(t *testing.T) {
	sup, _, _, _ := newTestSupervisor(t, &fakeGateway{})
	sup.StopAll()
	sup.StopAll()

	if sup.HoldRunning() || sup.MovieRunning() {
		t.Error("Expected nothing to be running")
	}
}

// TestStopProcessEscalatesToKill verifies a process ignoring the graceful
// signal is force-killed within the bounded wait.
func TestStopProcessEscalatesToKill(t *testing.T) {
	p := newFakeProcess()
	// Terminate is absorbed without exiting; Kill still works.
	stubborn := &stubbornProcess{fakeProcess: p}

	stopProcess(stubborn, 10*time.Millisecond)

	if !stubborn.killed {
		t.Error("Expected escalation to Kill")
	}
}

// stubbornProcess ignores Terminate.
type stubbornProcess struct {
	*fakeProcess
}

func (p *stubbornProcess) Terminate() error {
	p.mu.Lock()
	p.termed = true
	p.mu.Unlock()
	return nil
}
