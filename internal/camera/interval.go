package camera

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Mojo24x7/canon-eos-studio-remote/pkg/models"
)

// Interval runs the single-slot intervalometer job: count captures spaced
// by a caller-chosen gap. Each tick is one retried capture through the
// session primitive; a failed capture is fatal to the job (the retry
// already happened inside the primitive).
type Interval struct {
	session *Session

	mu     sync.Mutex
	state  models.IntervalStatus
	cancel context.CancelFunc
}

// NewInterval wires the intervalometer around a session.
func NewInterval(session *Session) *Interval {
	return &Interval{session: session}
}

// Start launches an interval job. Fails with ErrJobRunning while one is
// active; interval must be >= 0 and count > 0.
func (iv *Interval) Start(interval time.Duration, count int) error {
	if interval < 0 || count <= 0 {
		return fmt.Errorf("invalid interval or count")
	}

	iv.mu.Lock()
	defer iv.mu.Unlock()

	if iv.state.Running {
		return ErrJobRunning
	}

	iv.state = models.IntervalStatus{
		Running:   true,
		Interval:  interval.Seconds(),
		Remaining: count,
		Total:     count,
	}

	ctx, cancel := context.WithCancel(context.Background())
	iv.cancel = cancel

	log.Info().Float64("interval_s", interval.Seconds()).Int("count", count).Msg("Interval job started")
	go iv.run(ctx, interval, count)
	return nil
}

// Stop requests cancellation; the worker notices between ticks.
func (iv *Interval) Stop() {
	iv.mu.Lock()
	defer iv.mu.Unlock()
	if iv.state.Running && iv.cancel != nil {
		iv.cancel()
	}
}

// Status returns the current progress snapshot.
func (iv *Interval) Status() models.IntervalStatus {
	iv.mu.Lock()
	defer iv.mu.Unlock()
	return iv.state
}

func (iv *Interval) run(ctx context.Context, interval time.Duration, count int) {
	var lastErr string

	for i := 0; i < count; i++ {
		if ctx.Err() != nil {
			break
		}

		// Deliberately not the job context: cancellation must never kill
		// an in-flight capture.
		_, err := iv.session.captureOnce(context.Background())

		iv.mu.Lock()
		iv.state.Remaining--
		if err != nil {
			lastErr = err.Error()
			iv.state.LastError = lastErr
		}
		remaining := iv.state.Remaining
		iv.mu.Unlock()

		if err != nil {
			log.Warn().Err(err).Msg("Interval capture failed, stopping job")
			break
		}
		if remaining <= 0 {
			break
		}
		if interval > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(interval):
			}
		}
	}

	iv.mu.Lock()
	iv.state.Running = false
	if iv.cancel != nil {
		iv.cancel()
		iv.cancel = nil
	}
	st := iv.state
	iv.mu.Unlock()

	if iv.session.hist != nil {
		detail := fmt.Sprintf("total=%d remaining=%d", st.Total, st.Remaining)
		iv.session.hist.Record("interval", detail, lastErr == "", lastErr)
	}
	log.Info().Int("remaining", st.Remaining).Str("last_error", lastErr).Msg("Interval job finished")
}
