package camera

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/Mojo24x7/canon-eos-studio-remote/internal/config"
	"github.com/Mojo24x7/canon-eos-studio-remote/internal/gphoto"
	"github.com/Mojo24x7/canon-eos-studio-remote/internal/photos"
)

// Mirror pulls the newest still from the camera card into the photo root
// so the UI's "latest" view tracks shots taken on the camera itself.
// It keeps its own high-water mark (timestamp preferred, index fallback)
// and does nothing when disabled.
type Mirror struct {
	lock   *DeviceLock
	gw     Gateway
	store  *config.Store
	photos *photos.Store
	opts   ImporterOptions

	mu sync.Mutex // serializes concurrent pulls
}

// NewMirror wires the card mirror. It shares the transfer retry policy
// with the importer.
func NewMirror(lock *DeviceLock, gw Gateway, store *config.Store, ph *photos.Store, opts ImporterOptions) *Mirror {
	opts.fill()
	return &Mirror{lock: lock, gw: gw, store: store, photos: ph, opts: opts}
}

// Enabled reports whether card mirroring is switched on.
func (m *Mirror) Enabled() bool {
	return m.store.LoadMirrorMark().Enabled
}

// SetEnabled toggles card mirroring, persisting the flag.
func (m *Mirror) SetEnabled(on bool) error {
	mark := m.store.LoadMirrorMark()
	mark.Enabled = on
	return m.store.SaveMirrorMark(mark)
}

// PullLatest mirrors the newest camera still that is newer than the
// mirror mark. When nothing on the card is newer it does nothing, so
// locally captured shots keep being the latest image. Errors are logged,
// not returned: the mirror is advisory.
func (m *Mirror) PullLatest(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	mark := m.store.LoadMirrorMark()
	if !mark.Enabled {
		return
	}

	var files []gphoto.FileRef
	err := m.lock.WithDevice(func() error {
		var err error
		files, err = m.gw.ListFiles(context.Background())
		return err
	})
	if err != nil {
		log.Debug().Err(err).Msg("Mirror: list files failed")
		return
	}

	var stills []gphoto.FileRef
	for _, f := range files {
		if photos.IsImage(f.Name) {
			stills = append(stills, f)
		}
	}
	if len(stills) == 0 {
		return
	}

	target, ok := newestAfterMark(stills, mark)
	if !ok {
		return
	}

	dest := filepath.Join(m.photos.Root(), target.Name)
	var out string
	err = m.lock.WithDevice(func() error {
		return withRetry(ctx, m.opts.FetchAttempts, m.opts.FetchRetryGap, func() error {
			var err error
			out, err = m.gw.GetFile(context.Background(), target.Index, dest, false)
			return err
		})
	})
	if err != nil {
		log.Warn().Err(err).Str("file", target.Name).Msg("Mirror transfer failed")
		return
	}

	// Bump the local copy's mtime so it becomes the UI's latest shot.
	if local := gphoto.SavedPath(out); local != "" {
		if _, statErr := os.Stat(local); statErr == nil {
			m.photos.Touch(local)
		}
	}

	mark.LastIndex = target.Index
	if target.TS > 0 {
		mark.LastTS = target.TS
	}
	if err := m.store.SaveMirrorMark(mark); err != nil {
		log.Warn().Err(err).Msg("Failed to persist mirror mark")
	}
	log.Info().Str("file", target.Name).Int("index", target.Index).Msg("Mirrored latest camera shot")
}

// newestAfterMark picks the newest still strictly newer than the mark,
// by timestamp when the card reports one, by index otherwise.
func newestAfterMark(stills []gphoto.FileRef, mark config.MirrorMark) (gphoto.FileRef, bool) {
	tsAvailable := false
	for _, f := range stills {
		if f.TS > 0 {
			tsAvailable = true
			break
		}
	}

	var best gphoto.FileRef
	found := false
	for _, f := range stills {
		if tsAvailable {
			if f.TS <= mark.LastTS {
				continue
			}
			if !found || f.TS > best.TS {
				best = f
				found = true
			}
		} else {
			if f.Index <= mark.LastIndex {
				continue
			}
			if !found || f.Index > best.Index {
				best = f
				found = true
			}
		}
	}
	return best, found
}
