// Package camera coordinates every access to the physical camera: the
// exclusive device lock, retry policy, capture cooldown, long-running
// subprocess supervision and the cancellable background jobs (import,
// intervalometer, card mirror).
package camera

import (
	"context"
	"io"
	"time"

	"github.com/Mojo24x7/canon-eos-studio-remote/internal/gphoto"
)

// Gateway is the device command surface the coordinator drives. The real
// implementation is *gphoto.CLI; tests substitute fakes.
type Gateway interface {
	GetConfig(ctx context.Context, key string) (gphoto.ConfigValue, error)
	SetConfig(ctx context.Context, key, value string) error
	SetConfigIndex(ctx context.Context, key string, index int) error
	CaptureAndDownload(ctx context.Context, pattern string) (string, error)
	ListFiles(ctx context.Context) ([]gphoto.FileRef, error)
	GetFile(ctx context.Context, index int, dest string, skipExisting bool) (string, error)
	StorageInfo(ctx context.Context) (gphoto.StorageInfo, error)
	CapturePreview(ctx context.Context) ([]byte, error)
	AutoDetect(ctx context.Context) ([]gphoto.Camera, error)
	SetLiveView(ctx context.Context, on bool) error
}

// Process is a supervised subprocess handle. *gphoto.Process implements
// it.
type Process interface {
	Alive() bool
	Terminate() error
	Kill() error
	WaitExit(timeout time.Duration) bool
	Done() <-chan struct{}
}

// StartHoldFunc spawns the live-view hold subprocess.
type StartHoldFunc func(waitSeconds int) (Process, error)

// StartMovieFunc spawns the movie-capture subprocess and returns its
// MJPEG byte stream.
type StartMovieFunc func() (Process, io.ReadCloser, error)

// Recorder journals notable device events. A nil Recorder is valid and
// records nothing.
type Recorder interface {
	Record(kind, detail string, ok bool, errText string)
}
