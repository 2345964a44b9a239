package gphoto

import (
	"io"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// Process is a handle to a spawned long-lived gphoto2 subprocess with a
// non-blocking liveness check. A background goroutine reaps the child as
// soon as it exits so no zombie keeps the device claimed.
type Process struct {
	cmd  *exec.Cmd
	done chan struct{}
}

func newProcess(cmd *exec.Cmd) *Process {
	p := &Process{cmd: cmd, done: make(chan struct{})}
	go func() {
		_ = cmd.Wait()
		close(p.done)
	}()
	return p
}

// newStreamProcess is the variant for a subprocess whose stdout pipe has
// a consumer. Wait closes the pipe the moment the child exits, which
// would drop frames the consumer has not read yet, so the reap is held
// back until release is called (once the stream is closed).
func newStreamProcess(cmd *exec.Cmd) (*Process, func()) {
	p := &Process{cmd: cmd, done: make(chan struct{})}
	released := make(chan struct{})
	var once sync.Once
	release := func() {
		once.Do(func() { close(released) })
	}
	go func() {
		<-released
		_ = cmd.Wait()
		close(p.done)
	}()
	return p, release
}

// streamPipe hands the reap release to the stream consumer: closing the
// stream is the signal that no more frames will be read.
type streamPipe struct {
	io.ReadCloser
	release func()
}

func (s *streamPipe) Close() error {
	err := s.ReadCloser.Close()
	s.release()
	return err
}

// Alive reports whether the subprocess is still running, without blocking.
func (p *Process) Alive() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// Terminate sends SIGTERM for a graceful shutdown.
func (p *Process) Terminate() error {
	return p.cmd.Process.Signal(syscall.SIGTERM)
}

// Kill force-kills the subprocess.
func (p *Process) Kill() error {
	return p.cmd.Process.Kill()
}

// WaitExit blocks until the subprocess exits or the timeout elapses.
// It returns true when the process is gone.
func (p *Process) WaitExit(timeout time.Duration) bool {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-p.done:
		return true
	case <-t.C:
		return false
	}
}

// Done is closed once the subprocess has exited and been reaped.
func (p *Process) Done() <-chan struct{} {
	return p.done
}
