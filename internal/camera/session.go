package camera

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Mojo24x7/canon-eos-studio-remote/internal/gphoto"
	"github.com/Mojo24x7/canon-eos-studio-remote/internal/photos"
	"github.com/Mojo24x7/canon-eos-studio-remote/pkg/models"
)

// ErrHoldActive is returned for single preview frames while the hold
// subprocess owns the device.
var ErrHoldActive = errors.New("live view hold is running")

// SessionOptions tune retry and cooldown behaviour; zero fields fall back
// to production defaults.
type SessionOptions struct {
	CaptureCooldown time.Duration
	CaptureAttempts int
	CaptureRetryGap time.Duration
}

func (o *SessionOptions) fill() {
	if o.CaptureCooldown == 0 {
		o.CaptureCooldown = 1200 * time.Millisecond
	}
	if o.CaptureAttempts == 0 {
		o.CaptureAttempts = 2
	}
	if o.CaptureRetryGap == 0 {
		o.CaptureRetryGap = 600 * time.Millisecond
	}
}

// Session is the front door for short device operations: manual capture,
// config reads/writes, status. Every device touch goes through the shared
// DeviceLock; manual captures additionally pass the cooldown gate.
type Session struct {
	lock   *DeviceLock
	gw     Gateway
	photos *photos.Store
	sup    *Supervisor
	hist   Recorder
	opts   SessionOptions

	cdMu        sync.Mutex
	lastCapture time.Time

	cacheMu     sync.Mutex
	statusCache map[string]string // last known good battery / shooting mode
	quickKey    map[string]string // quick field id -> last working config key
}

// NewSession wires a session. hist may be nil.
func NewSession(lock *DeviceLock, gw Gateway, store *photos.Store, sup *Supervisor, hist Recorder, opts SessionOptions) *Session {
	opts.fill()
	return &Session{
		lock:        lock,
		gw:          gw,
		photos:      store,
		sup:         sup,
		hist:        hist,
		opts:        opts,
		statusCache: make(map[string]string),
		quickKey:    make(map[string]string),
	}
}

// waitCooldown blocks until the minimum gap since the last accepted
// manual capture has elapsed, then records the new timestamp. Applies to
// the manual path only; the intervalometer spaces itself.
func (s *Session) waitCooldown() {
	s.cdMu.Lock()
	defer s.cdMu.Unlock()
	if d := s.opts.CaptureCooldown - time.Since(s.lastCapture); d > 0 {
		time.Sleep(d)
	}
	s.lastCapture = time.Now()
}

// Capture performs one manual capture: cooldown, stop a running live-view
// hold (capture takes precedence over the hold's device claim), then one
// retried capture under the device lock.
func (s *Session) Capture(ctx context.Context) models.CaptureResult {
	s.waitCooldown()

	if s.sup != nil && s.sup.HoldRunning() {
		log.Info().Msg("Stopping live view hold before capture")
		s.sup.StopHold()
	}

	name, err := s.captureOnce(ctx)
	if err != nil {
		s.record("capture", "", false, err.Error())
		return models.CaptureResult{Status: "Error", Error: err.Error()}
	}
	s.record("capture", name, true, "")
	return models.CaptureResult{Status: "OK", File: name}
}

// captureOnce runs a single retried capture-and-download and resolves the
// file it produced. Shared by the manual path and the intervalometer.
func (s *Session) captureOnce(ctx context.Context) (string, error) {
	now := time.Now()
	pattern := s.photos.CapturePattern(now)

	err := s.lock.WithDevice(func() error {
		return withRetry(ctx, s.opts.CaptureAttempts, s.opts.CaptureRetryGap, func() error {
			_, err := s.gw.CaptureAndDownload(ctx, pattern)
			if err != nil {
				log.Warn().Err(err).Msg("Capture attempt failed")
			}
			return err
		})
	})
	if err != nil {
		return "", err
	}

	name := s.photos.ResolveCapture(now)
	log.Info().Str("file", name).Msg("Capture OK")
	return name, nil
}

// PreviewFrame grabs one live-view frame as JPEG bytes. Refused while the
// hold subprocess owns the device.
func (s *Session) PreviewFrame(ctx context.Context) ([]byte, error) {
	if s.sup != nil && s.sup.HoldRunning() {
		return nil, ErrHoldActive
	}
	var data []byte
	err := s.lock.WithDevice(func() error {
		var err error
		data, err = s.gw.CapturePreview(ctx)
		return err
	})
	return data, err
}

// getConfigSafe reads one config key under the device lock, swallowing
// the error; a busy camera is an everyday condition here.
func (s *Session) getConfigSafe(ctx context.Context, key string) (gphoto.ConfigValue, bool) {
	var cv gphoto.ConfigValue
	err := s.lock.WithDevice(func() error {
		var err error
		cv, err = s.gw.GetConfig(ctx, key)
		return err
	})
	if err != nil {
		return gphoto.ConfigValue{}, false
	}
	return cv, true
}

// firstValue tries a list of config keys and returns the first usable
// current value. When nothing is readable it falls back to the last
// cached value for cacheKey, so the UI keeps showing the previous reading
// during device-busy windows.
func (s *Session) firstValue(ctx context.Context, keys []string, cacheKey string) string {
	for _, k := range keys {
		cv, ok := s.getConfigSafe(ctx, k)
		if !ok || cv.Value == "" || cv.Value == "N/A" {
			continue
		}
		if cacheKey != "" {
			s.cacheMu.Lock()
			s.statusCache[cacheKey] = cv.Value
			s.cacheMu.Unlock()
		}
		return cv.Value
	}
	if cacheKey != "" {
		s.cacheMu.Lock()
		defer s.cacheMu.Unlock()
		return s.statusCache[cacheKey]
	}
	return ""
}

// Status collects the camera status snapshot. Individual reads that fail
// leave their field empty (or cached) rather than failing the whole
// snapshot.
func (s *Session) Status(ctx context.Context) models.CameraStatus {
	st := models.CameraStatus{
		Battery:        s.firstValue(ctx, batteryKeys, "battery"),
		ShootingMode:   s.firstValue(ctx, shootingModeKeys, "shooting_mode"),
		LensName:       s.firstValue(ctx, lensKeys, ""),
		ShutterCounter: s.firstValue(ctx, shutterCounterKeys, ""),
		AvailableShots: s.firstValue(ctx, availableShotsKeys, ""),
		ImagesLeft:     -1,
		ImagesCapacity: -1,
		FreeBytes:      -1,
		CapacityBytes:  -1,
		LatestFile:     s.photos.LatestName(),
	}

	var storage gphoto.StorageInfo
	err := s.lock.WithDevice(func() error {
		var err error
		storage, err = s.gw.StorageInfo(ctx)
		return err
	})
	if err == nil {
		st.ImagesLeft = storage.FreeImages
		st.ImagesCapacity = storage.CapacityImages
		st.FreeBytes = storage.FreeBytes
		st.CapacityBytes = storage.CapacityBytes
	}

	st.Cameras = s.DetectCameras(ctx)
	return st
}

// DetectCameras lists connected cameras.
func (s *Session) DetectCameras(ctx context.Context) []models.CameraInfo {
	var cams []gphoto.Camera
	err := s.lock.WithDevice(func() error {
		var err error
		cams, err = s.gw.AutoDetect(ctx)
		return err
	})
	if err != nil {
		log.Debug().Err(err).Msg("Auto-detect failed")
		return nil
	}
	out := make([]models.CameraInfo, 0, len(cams))
	for _, c := range cams {
		out = append(out, models.CameraInfo{Model: c.Model, Port: c.Port})
	}
	return out
}

// setValueOrIndex sets key=val directly, falling back to the matching
// choice index when the camera rejects the direct form. Caller must hold
// the device lock.
func (s *Session) setValueOrIndex(ctx context.Context, key, val string) error {
	err := s.gw.SetConfig(ctx, key, val)
	if err == nil {
		return nil
	}
	cv, gerr := s.gw.GetConfig(ctx, key)
	if gerr != nil {
		return err
	}
	for i, choice := range cv.Choices {
		if choice == val {
			return s.gw.SetConfigIndex(ctx, key, i)
		}
	}
	return err
}

func (s *Session) record(kind, detail string, ok bool, errText string) {
	if s.hist != nil {
		s.hist.Record(kind, detail, ok, errText)
	}
}
