// Package gphoto invokes the external gphoto2 CLI as a subprocess, one
// process per operation, and parses its textual output. The CLI is treated
// as a black box: merged stdout/stderr and the exit code are the whole
// contract.
package gphoto

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"

	"github.com/rs/zerolog/log"
)

// Config keys that toggle Live View, tried in order. Different Canon
// bodies expose different ones.
var LiveViewKeys = []string{
	"/main/actions/viewfinder",
	"/main/actions/eosviewfinder",
}

// CLI drives a camera through the gphoto2 binary.
type CLI struct {
	bin string
}

// NewCLI returns a gateway using the given gphoto2 binary ("gphoto2" when
// empty).
func NewCLI(bin string) *CLI {
	if bin == "" {
		bin = "gphoto2"
	}
	return &CLI{bin: bin}
}

// run spawns one gphoto2 process, captures merged stdout/stderr and blocks
// until exit. A non-zero exit becomes a *DeviceError carrying the output.
func (c *CLI) run(ctx context.Context, op string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, c.bin, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return string(out), &DeviceError{Op: op, Output: string(out), Err: err}
	}
	return string(out), nil
}

// GetConfig reads one config entry (current value plus choices).
func (c *CLI) GetConfig(ctx context.Context, key string) (ConfigValue, error) {
	out, err := c.run(ctx, "get-config", "--get-config", key)
	if err != nil {
		return ConfigValue{}, err
	}
	return ParseGetConfig(out), nil
}

// SetConfig sets a config entry by value.
func (c *CLI) SetConfig(ctx context.Context, key, value string) error {
	_, err := c.run(ctx, "set-config", "--set-config", key+"="+value)
	return err
}

// SetConfigIndex sets a config entry by choice index. Fallback for values
// the camera rejects in direct form.
func (c *CLI) SetConfigIndex(ctx context.Context, key string, index int) error {
	_, err := c.run(ctx, "set-config-index", "--set-config-index", key, strconv.Itoa(index))
	return err
}

// CaptureAndDownload triggers one capture and downloads the result to the
// given filename pattern (%C expands to the camera-side extension).
func (c *CLI) CaptureAndDownload(ctx context.Context, pattern string) (string, error) {
	return c.run(ctx, "capture",
		"--capture-image-and-download",
		"--filename", pattern,
		"--force-overwrite")
}

// ListFiles returns the camera card file listing.
func (c *CLI) ListFiles(ctx context.Context) ([]FileRef, error) {
	out, err := c.run(ctx, "list-files", "--list-files")
	if err != nil {
		return nil, err
	}
	return ParseFileList(out), nil
}

// GetFile downloads one file by camera index. With skipExisting the
// transfer tool refuses to overwrite and reports the existing file, which
// callers use to tell "imported" from "skipped".
func (c *CLI) GetFile(ctx context.Context, index int, dest string, skipExisting bool) (string, error) {
	overwrite := "--force-overwrite"
	if skipExisting {
		overwrite = "--skip-existing"
	}
	return c.run(ctx, "get-file",
		"--get-file", strconv.Itoa(index),
		overwrite,
		"--filename", dest)
}

// StorageInfo reads card capacity and free-space counters.
func (c *CLI) StorageInfo(ctx context.Context) (StorageInfo, error) {
	out, err := c.run(ctx, "storage-info", "--storage-info")
	if err != nil {
		return StorageInfo{}, err
	}
	return ParseStorageInfo(out), nil
}

// CapturePreview grabs a single live-view frame as raw JPEG bytes.
func (c *CLI) CapturePreview(ctx context.Context) ([]byte, error) {
	cmd := exec.CommandContext(ctx, c.bin, "--capture-preview", "--stdout")
	out, err := cmd.Output()
	if err != nil {
		return nil, &DeviceError{Op: "capture-preview", Output: string(out), Err: err}
	}
	return out, nil
}

// AutoDetect lists connected cameras.
func (c *CLI) AutoDetect(ctx context.Context) ([]Camera, error) {
	out, err := c.run(ctx, "auto-detect", "--auto-detect")
	if err != nil {
		return nil, err
	}
	return ParseAutoDetect(out), nil
}

// SetLiveView toggles Live View, trying each known config key in order.
// The first key the camera accepts wins.
func (c *CLI) SetLiveView(ctx context.Context, on bool) error {
	val := "0"
	if on {
		val = "1"
	}
	var lastErr error
	for _, key := range LiveViewKeys {
		if err := c.SetConfig(ctx, key, val); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return fmt.Errorf("no live view key accepted: %w", lastErr)
}

// StartHold spawns the long-running hold process that keeps the mirror up
// and output on PC for roughly waitSeconds:
//
//	gphoto2 --set-config /main/actions/viewfinder=1 --wait-event=<N>s
//
// The process holds the physical device for its lifetime.
func (c *CLI) StartHold(waitSeconds int) (*Process, error) {
	cmd := exec.Command(c.bin,
		"--set-config", "/main/actions/viewfinder=1",
		fmt.Sprintf("--wait-event=%ds", waitSeconds))
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start live view hold: %w", err)
	}
	log.Debug().Int("pid", cmd.Process.Pid).Int("wait_s", waitSeconds).Msg("Live view hold started")
	return newProcess(cmd), nil
}

// StartMovie spawns the movie-capture process and returns its stdout, a
// continuous MJPEG byte stream. Reads end when the process exits or is
// terminated; frames buffered in the pipe stay readable after exit until
// the stream is closed, which also reaps the child.
func (c *CLI) StartMovie() (*Process, io.ReadCloser, error) {
	cmd := exec.Command(c.bin, "--capture-movie", "--stdout")
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("movie stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, nil, fmt.Errorf("start movie capture: %w", err)
	}
	log.Debug().Int("pid", cmd.Process.Pid).Msg("Movie stream started")
	p, release := newStreamProcess(cmd)
	return p, &streamPipe{ReadCloser: stdout, release: release}, nil
}
