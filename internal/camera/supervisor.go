package camera

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Mojo24x7/canon-eos-studio-remote/internal/config"
	"github.com/Mojo24x7/canon-eos-studio-remote/pkg/models"
)

// Bounds for the live-view hold duration.
const (
	minHoldWait = 5
	maxHoldWait = 3600
)

// Graceful-termination windows. The movie window is short because a
// caller is actively blocked reading the stream.
const (
	holdStopWait  = 5 * time.Second
	movieStopWait = 800 * time.Millisecond
)

// ErrStreamActive is returned when a movie stream is requested while one
// is already serving a viewer; the stream's stdout cannot be shared.
var ErrStreamActive = errors.New("movie stream already active")

// Supervisor owns the long-lived camera subprocesses: the live-view hold
// and the MJPEG movie stream. At most one instance of each exists at any
// time. Both hold the physical device implicitly for their lifetime, so
// captures must stop the hold before touching the camera.
type Supervisor struct {
	lock       *DeviceLock
	gw         Gateway
	store      *config.Store
	startHold  StartHoldFunc
	startMovie StartMovieFunc

	mu       sync.Mutex
	hold     Process
	holdWait int
	lastErr  string
	movie    Process
	movieOut io.ReadCloser
}

// NewSupervisor wires the supervisor. startHold/startMovie spawn the real
// gphoto2 subprocesses in production and fakes in tests. The persisted
// hold-wait default seeds the initial wait duration.
func NewSupervisor(lock *DeviceLock, gw Gateway, store *config.Store, startHold StartHoldFunc, startMovie StartMovieFunc, defaultWait int) *Supervisor {
	return &Supervisor{
		lock:       lock,
		gw:         gw,
		store:      store,
		startHold:  startHold,
		startMovie: startMovie,
		holdWait:   clampHoldWait(defaultWait),
	}
}

func clampHoldWait(s int) int {
	if s < minHoldWait {
		return minHoldWait
	}
	if s > maxHoldWait {
		return maxHoldWait
	}
	return s
}

// StartHold starts the live-view hold subprocess. Idempotent: a start
// while the process is alive succeeds without spawning a duplicate. The
// wait duration is clamped to [5s, 3600s] and persisted as the new
// default.
func (s *Supervisor) StartHold(waitSeconds int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reapHoldLocked()
	if s.hold != nil {
		return nil
	}

	waitSeconds = clampHoldWait(waitSeconds)

	var p Process
	err := s.lock.WithDevice(func() error {
		var err error
		p, err = s.startHold(waitSeconds)
		return err
	})
	if err != nil {
		s.lastErr = err.Error()
		return fmt.Errorf("live view hold: %w", err)
	}

	s.hold = p
	s.holdWait = waitSeconds
	s.lastErr = ""

	if err := s.store.SaveHoldWait(waitSeconds); err != nil {
		log.Warn().Err(err).Msg("Failed to persist hold wait default")
	}

	log.Info().Int("wait_s", waitSeconds).Msg("Live view hold running")
	return nil
}

// StopHold terminates the hold subprocess: graceful signal, bounded wait,
// then force-kill. Afterwards it turns live view off on the camera as a
// best effort, swallowing that call's own failure. No-op when idle.
func (s *Supervisor) StopHold() {
	s.mu.Lock()
	p := s.hold
	s.hold = nil
	s.mu.Unlock()

	if p == nil {
		return
	}
	stopProcess(p, holdStopWait)
	s.liveViewOff()
	log.Info().Msg("Live view hold stopped")
}

// HoldRunning reports whether the hold subprocess is alive, lazily
// reaping a dead one before answering.
func (s *Supervisor) HoldRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reapHoldLocked()
	return s.hold != nil
}

// reapHoldLocked clears state for a hold process that exited on its own
// (its --wait-event window ran out).
func (s *Supervisor) reapHoldLocked() {
	if s.hold != nil && !s.hold.Alive() {
		s.hold = nil
	}
}

// HoldStatus returns the live-view status snapshot.
func (s *Supervisor) HoldStatus() models.LiveViewStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reapHoldLocked()
	return models.LiveViewStatus{
		Running:     s.hold != nil,
		WaitSeconds: s.holdWait,
		LastError:   s.lastErr,
	}
}

// StartMovie starts the movie-capture subprocess and hands its MJPEG
// byte stream to the caller. Only one stream can exist: its stdout has
// exactly one reader, so a second start is refused with ErrStreamActive.
func (s *Supervisor) StartMovie() (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.movie != nil && s.movie.Alive() {
		return nil, ErrStreamActive
	}
	s.movie = nil
	s.movieOut = nil

	var p Process
	var out io.ReadCloser
	err := s.lock.WithDevice(func() error {
		var err error
		p, out, err = s.startMovie()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("movie stream: %w", err)
	}

	s.movie = p
	s.movieOut = out
	return out, nil
}

// StopMovie terminates the movie subprocess quickly (a viewer is blocked
// on its stream) and drops live view afterwards. No-op when idle.
func (s *Supervisor) StopMovie() {
	s.mu.Lock()
	p := s.movie
	out := s.movieOut
	s.movie = nil
	s.movieOut = nil
	s.mu.Unlock()

	if p == nil {
		return
	}
	// Close the stream first: it unblocks a reader waiting on the pipe
	// and lets the exited child be reaped before the bounded wait below.
	if out != nil {
		_ = out.Close()
	}
	stopProcess(p, movieStopWait)
	s.liveViewOff()
	log.Info().Msg("Movie stream stopped")
}

// MovieRunning reports whether the movie subprocess is alive.
func (s *Supervisor) MovieRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.movie != nil && !s.movie.Alive() {
		s.movie = nil
		s.movieOut = nil
	}
	return s.movie != nil
}

// StopAll terminates both subprocess kinds; used on shutdown.
func (s *Supervisor) StopAll() {
	s.StopMovie()
	s.StopHold()
}

// liveViewOff turns the live-view feature off on the camera as a best
// effort after a subprocess stop.
func (s *Supervisor) liveViewOff() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := s.lock.WithDevice(func() error {
		return s.gw.SetLiveView(ctx, false)
	})
	if err != nil {
		log.Debug().Err(err).Msg("Live view off after stop failed")
	}
}

// stopProcess sends a graceful terminate, waits up to the bound, then
// force-kills. Leaving the child alive would keep the device claimed by
// a zombie.
func stopProcess(p Process, wait time.Duration) {
	if !p.Alive() {
		return
	}
	if err := p.Terminate(); err != nil {
		log.Debug().Err(err).Msg("Terminate failed, killing")
		_ = p.Kill()
		return
	}
	if !p.WaitExit(wait) {
		_ = p.Kill()
	}
}
