package gphoto

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

func fakeBin(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fake binary")
	}
	path := filepath.Join(t.TempDir(), "fakegphoto2")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0755); err != nil {
		t.Fatalf("write fake binary: %v", err)
	}
	return path
}

// TestStartMovieFramesSurviveChildExit verifies frames still buffered in
// the stdout pipe remain readable after the subprocess has exited; they
// must not be dropped by an early reap.
func TestStartMovieFramesSurviveChildExit(t *testing.T) {
	// Two complete frames, then immediate exit.
	bin := fakeBin(t, `printf '\377\330AAA\377\331\377\330BBB\377\331'`)
	cli := NewCLI(bin)

	p, out, err := cli.StartMovie()
	if err != nil {
		t.Fatalf("StartMovie: %v", err)
	}

	// Let the child write and exit before the first read.
	time.Sleep(300 * time.Millisecond)

	data, err := io.ReadAll(out)
	if err != nil {
		t.Fatalf("Expected buffered frames to be readable, got %v", err)
	}
	want := []byte("\xff\xd8AAA\xff\xd9\xff\xd8BBB\xff\xd9")
	if !bytes.Equal(data, want) {
		t.Errorf("Expected %q, got %q", want, data)
	}

	// Closing the stream hands the child to the reaper.
	if err := out.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if !p.WaitExit(2 * time.Second) {
		t.Error("Expected the child to be reaped after the stream closed")
	}
	if p.Alive() {
		t.Error("Expected Alive to report the reaped child as gone")
	}
}

// TestStartHoldReapsOnExit verifies the hold process is reaped as soon
// as its wait window runs out, with no close required.
func TestStartHoldReapsOnExit(t *testing.T) {
	bin := fakeBin(t, "exit 0")
	cli := NewCLI(bin)

	p, err := cli.StartHold(30)
	if err != nil {
		t.Fatalf("StartHold: %v", err)
	}
	if !p.WaitExit(2 * time.Second) {
		t.Error("Expected the exited hold process to be reaped")
	}
	if p.Alive() {
		t.Error("Expected Alive to report the exited hold as gone")
	}
}
