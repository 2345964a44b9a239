package camera

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Mojo24x7/canon-eos-studio-remote/internal/config"
	"github.com/Mojo24x7/canon-eos-studio-remote/internal/gphoto"
	"github.com/Mojo24x7/canon-eos-studio-remote/internal/photos"
	"github.com/Mojo24x7/canon-eos-studio-remote/pkg/models"
)

// ErrJobRunning is returned when a job start collides with a running job
// of the same kind. Jobs are never queued.
var ErrJobRunning = errors.New("job already running")

// ImportMode selects which card files an import considers.
type ImportMode string

const (
	// ImportNew keeps files with index strictly greater than the
	// persisted high-water mark.
	ImportNew ImportMode = "new"
	// ImportAll keeps everything on the card.
	ImportAll ImportMode = "all"
)

// ImporterOptions tune the per-file transfer retry; zero fields fall back
// to production defaults.
type ImporterOptions struct {
	FetchAttempts int
	FetchRetryGap time.Duration
}

func (o *ImporterOptions) fill() {
	if o.FetchAttempts == 0 {
		o.FetchAttempts = 3
	}
	if o.FetchRetryGap == 0 {
		o.FetchRetryGap = 800 * time.Millisecond
	}
}

// Importer runs the single-slot card import job. It holds the device lock
// per gateway call, never across the whole file loop, so short operations
// (status polls) can interleave between files.
type Importer struct {
	lock   *DeviceLock
	gw     Gateway
	store  *config.Store
	photos *photos.Store
	sup    *Supervisor
	hist   Recorder
	opts   ImporterOptions

	mu     sync.Mutex
	state  models.ImportStatus
	cancel context.CancelFunc
}

// NewImporter wires the import job runner. sup and hist may be nil.
func NewImporter(lock *DeviceLock, gw Gateway, store *config.Store, ph *photos.Store, sup *Supervisor, hist Recorder, opts ImporterOptions) *Importer {
	opts.fill()
	return &Importer{lock: lock, gw: gw, store: store, photos: ph, sup: sup, hist: hist, opts: opts}
}

// Start launches an import job in the background. Fails with
// ErrJobRunning while one is active.
func (im *Importer) Start(mode ImportMode, useSessionDir bool) error {
	im.mu.Lock()
	defer im.mu.Unlock()

	if im.state.Running {
		return ErrJobRunning
	}

	// An active hold owns the device for its whole lifetime; the transfer
	// loop takes precedence.
	if im.sup != nil && im.sup.HoldRunning() {
		log.Info().Msg("Stopping live view hold before import")
		im.sup.StopHold()
	}

	target := "root"
	if useSessionDir {
		target = "session"
	}
	now := time.Now()
	im.state = models.ImportStatus{
		Running:   true,
		Mode:      string(mode),
		Target:    target,
		StartedAt: &now,
	}

	ctx, cancel := context.WithCancel(context.Background())
	im.cancel = cancel

	log.Info().Str("mode", string(mode)).Str("target", target).Msg("Import started")
	go im.run(ctx, mode, useSessionDir)
	return nil
}

// Stop requests cancellation. It returns immediately; the worker notices
// between files, never mid-transfer.
func (im *Importer) Stop() bool {
	im.mu.Lock()
	defer im.mu.Unlock()
	if !im.state.Running {
		return false
	}
	im.state.LastError = "cancel requested"
	if im.cancel != nil {
		im.cancel()
	}
	return true
}

// Status returns the current progress snapshot.
func (im *Importer) Status() models.ImportStatus {
	im.mu.Lock()
	defer im.mu.Unlock()
	st := im.state
	return st
}

func (im *Importer) run(ctx context.Context, mode ImportMode, useSessionDir bool) {
	defer func() {
		if r := recover(); r != nil {
			im.finish(fmt.Sprintf("worker crashed: %v", r), false)
		}
	}()

	lastIdx := im.store.LoadImportMark()

	var files []gphoto.FileRef
	err := im.lock.WithDevice(func() error {
		var err error
		files, err = im.gw.ListFiles(context.Background())
		return err
	})
	if err != nil {
		im.finish(fmt.Sprintf("list files: %v", err), false)
		return
	}
	if len(files) == 0 {
		im.finish("no files listed by camera", false)
		return
	}

	var selected []gphoto.FileRef
	if mode == ImportNew {
		for _, f := range files {
			if f.Index > lastIdx {
				selected = append(selected, f)
			}
		}
	} else {
		selected = files
	}

	im.mu.Lock()
	im.state.Total = len(selected)
	im.mu.Unlock()

	if len(selected) == 0 {
		im.finish("", false)
		return
	}

	targetDir := im.photos.Root()
	if useSessionDir {
		dir, err := im.photos.SessionDir(time.Now())
		if err != nil {
			im.finish(fmt.Sprintf("session dir: %v", err), false)
			return
		}
		targetDir = dir
	}

	maxIdx := lastIdx
	cancelled := false

	for _, item := range selected {
		// Cancellation is checked between files only; an in-flight
		// transfer always completes.
		if ctx.Err() != nil {
			cancelled = true
			break
		}

		im.mu.Lock()
		im.state.Current = item.Name
		im.mu.Unlock()

		dest := filepath.Join(targetDir, item.Name)
		var out string
		err := im.lock.WithDevice(func() error {
			return withRetry(ctx, im.opts.FetchAttempts, im.opts.FetchRetryGap, func() error {
				// Deliberately not the job context: cancellation must
				// never kill an in-flight transfer.
				var err error
				out, err = im.gw.GetFile(context.Background(), item.Index, dest, true)
				return err
			})
		})

		im.mu.Lock()
		if err != nil {
			// Single-file failure is non-fatal; move on to the next.
			im.state.Errors++
			im.state.LastError = err.Error()
			log.Warn().Err(err).Str("file", item.Name).Msg("Import transfer failed")
		} else {
			if fileExists(dest) && !gphoto.ReportsExisting(out) {
				im.state.Imported++
			} else {
				im.state.Skipped++
			}
			if item.Index > maxIdx {
				maxIdx = item.Index
			}
		}
		im.state.Done++
		im.mu.Unlock()
	}

	// A cancelled run never advances the mark, so a resumed "new" import
	// re-offers anything skipped due to cancellation.
	if maxIdx > lastIdx && !cancelled {
		if err := im.store.SaveImportMark(maxIdx); err != nil {
			log.Warn().Err(err).Int("last_index", maxIdx).Msg("Failed to persist import mark")
		}
	}

	im.finish("", cancelled)
}

// finish closes out the job state; errText overrides LastError when the
// run failed systemically.
func (im *Importer) finish(errText string, cancelled bool) {
	now := time.Now()

	im.mu.Lock()
	im.state.Running = false
	im.state.Current = ""
	im.state.FinishedAt = &now
	if im.cancel != nil {
		im.cancel()
		im.cancel = nil
	}
	if errText != "" {
		im.state.LastError = errText
	}
	if cancelled && im.state.LastError == "" {
		im.state.LastError = "cancelled by user"
	}
	st := im.state
	im.mu.Unlock()

	detail := fmt.Sprintf("mode=%s imported=%d skipped=%d errors=%d", st.Mode, st.Imported, st.Skipped, st.Errors)
	ok := st.Errors == 0 && errText == "" && !cancelled
	if im.hist != nil {
		im.hist.Record("import", detail, ok, st.LastError)
	}
	log.Info().
		Int("imported", st.Imported).
		Int("skipped", st.Skipped).
		Int("errors", st.Errors).
		Bool("cancelled", cancelled).
		Msg("Import finished")
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
