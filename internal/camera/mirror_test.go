package camera

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Mojo24x7/canon-eos-studio-remote/internal/config"
	"github.com/Mojo24x7/canon-eos-studio-remote/internal/gphoto"
	"github.com/Mojo24x7/canon-eos-studio-remote/internal/photos"
)

func newTestMirror(t *testing.T, gw Gateway) (*Mirror, *config.Store, *photos.Store) {
	t.Helper()
	dir := t.TempDir()
	store := config.NewStore(dir)
	ph, err := photos.NewStore(filepath.Join(dir, "photos"))
	if err != nil {
		t.Fatalf("photo store: %v", err)
	}
	m := NewMirror(NewDeviceLock(), gw, store, ph, ImporterOptions{
		FetchAttempts: 1,
		FetchRetryGap: time.Millisecond,
	})
	return m, store, ph
}

// TestMirrorPullsNewestStill verifies the newest still (not movie) above
// the mark is pulled and the mark advances.
func TestMirrorPullsNewestStill(t *testing.T) {
	var fetchedIndex int32
	gw := &fakeGateway{
		listFilesFn: func() ([]gphoto.FileRef, error) {
			return []gphoto.FileRef{
				{Index: 1, Name: "IMG_0001.JPG", TS: 100},
				{Index: 2, Name: "IMG_0002.JPG", TS: 200},
				{Index: 3, Name: "MVI_0003.MOV", TS: 300},
			}, nil
		},
		getFileFn: func(index int, dest string, skipExisting bool) (string, error) {
			atomic.StoreInt32(&fetchedIndex, int32(index))
			if err := os.WriteFile(dest, []byte("jpeg"), 0644); err != nil {
				return "", err
			}
			return "Saving file as " + dest, nil
		},
	}

	m, store, ph := newTestMirror(t, gw)
	m.PullLatest(context.Background())

	if got := atomic.LoadInt32(&fetchedIndex); got != 2 {
		t.Errorf("Expected file index 2 pulled, got %d", got)
	}
	if got := ph.LatestName(); got != "IMG_0002.JPG" {
		t.Errorf("Expected latest IMG_0002.JPG, got %q", got)
	}
	mark := store.LoadMirrorMark()
	if mark.LastIndex != 2 || mark.LastTS != 200 {
		t.Errorf("Expected mark index=2 ts=200, got %+v", mark)
	}
}

// TestMirrorNoopWhenNothingNewer verifies an up-to-date mark triggers no
// transfer, so local captures stay the latest image.
func TestMirrorNoopWhenNothingNewer(t *testing.T) {
	var fetches int32
	gw := &fakeGateway{
		listFilesFn: func() ([]gphoto.FileRef, error) {
			return []gphoto.FileRef{{Index: 2, Name: "IMG_0002.JPG", TS: 200}}, nil
		},
		getFileFn: func(index int, dest string, skipExisting bool) (string, error) {
			atomic.AddInt32(&fetches, 1)
			return "", nil
		},
	}

	m, store, _ := newTestMirror(t, gw)
	if err := store.SaveMirrorMark(config.MirrorMark{LastIndex: 2, LastTS: 200, Enabled: true}); err != nil {
		t.Fatalf("seed mark: %v", err)
	}

	m.PullLatest(context.Background())
	if n := atomic.LoadInt32(&fetches); n != 0 {
		t.Errorf("Expected no transfer, got %d", n)
	}
}

// TestMirrorDisabledDoesNothing verifies the kill switch skips even the
// card listing.
func TestMirrorDisabledDoesNothing(t *testing.T) {
	var listings int32
	gw := &fakeGateway{
		listFilesFn: func() ([]gphoto.FileRef, error) {
			atomic.AddInt32(&listings, 1)
			return nil, nil
		},
	}

	m, _, _ := newTestMirror(t, gw)
	if err := m.SetEnabled(false); err != nil {
		t.Fatalf("SetEnabled: %v", err)
	}

	m.PullLatest(context.Background())
	if n := atomic.LoadInt32(&listings); n != 0 {
		t.Errorf("Expected no card listing while disabled, got %d", n)
	}
}

// TestMirrorIndexFallback verifies cards that report no timestamps fall
// back to index ordering.
func TestMirrorIndexFallback(t *testing.T) {
	var fetchedIndex int32
	gw := &fakeGateway{
		listFilesFn: func() ([]gphoto.FileRef, error) {
			return []gphoto.FileRef{
				{Index: 4, Name: "IMG_0004.JPG"},
				{Index: 6, Name: "IMG_0006.JPG"},
			}, nil
		},
		getFileFn: func(index int, dest string, skipExisting bool) (string, error) {
			atomic.StoreInt32(&fetchedIndex, int32(index))
			if err := os.WriteFile(dest, []byte("jpeg"), 0644); err != nil {
				return "", err
			}
			return "Saving file as " + dest, nil
		},
	}

	m, store, _ := newTestMirror(t, gw)
	if err := store.SaveMirrorMark(config.MirrorMark{LastIndex: 4, Enabled: true}); err != nil {
		t.Fatalf("seed mark: %v", err)
	}

	m.PullLatest(context.Background())
	if got := atomic.LoadInt32(&fetchedIndex); got != 6 {
		t.Errorf("Expected index 6 pulled, got %d", got)
	}
	if mark := store.LoadMirrorMark(); mark.LastIndex != 6 {
		t.Errorf("Expected mark index 6, got %+v", mark)
	}
}
