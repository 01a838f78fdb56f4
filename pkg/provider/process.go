package provider

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tinyland-inc/chatsink/pkg/logger"
)

const processStopTimeout = 5 * time.Second

// processConn runs the bridge as a child process. Envelopes are framed
// with a Content-Length header on stdin and stdout; stderr is passed
// through.
type processConn struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
	mu     sync.Mutex
	once   sync.Once
}

func startProcess(_ context.Context, command string) (frameConn, error) {
	args := strings.Fields(command)
	if len(args) == 0 {
		return nil, errors.New("empty bridge command")
	}

	cmd := exec.Command(args[0], args[1:]...)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start bridge: %w", err)
	}

	p := &processConn{
		cmd:    cmd,
		stdin:  stdin,
		stdout: bufio.NewReader(stdout),
	}
	logger.InfoCF("bridge", "Bridge process started", map[string]any{
		"command": args[0],
		"pid":     cmd.Process.Pid,
	})
	return p, nil
}

func (p *processConn) ReadFrame() ([]byte, error) {
	return readFrame(p.stdout)
}

func (p *processConn) WriteFrame(data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return writeFrame(p.stdin, data)
}

// Close closes stdin, which asks the bridge to exit, and kills it if it
// has not gone away after processStopTimeout.
func (p *processConn) Close() error {
	var err error
	p.once.Do(func() {
		p.mu.Lock()
		p.stdin.Close()
		p.mu.Unlock()

		done := make(chan error, 1)
		go func() { done <- p.cmd.Wait() }()

		select {
		case err = <-done:
		case <-time.After(processStopTimeout):
			logger.WarnC("bridge", "Bridge process did not exit; killing it")
			_ = p.cmd.Process.Kill()
			err = <-done
		}
	})
	return err
}

func writeFrame(w io.Writer, data []byte) error {
	header := fmt.Sprintf("Content-Length: %d\r\n\r\n", len(data))
	if _, err := io.WriteString(w, header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}

// readFrame reads one Content-Length framed payload. Lines before the
// header that are not a Content-Length header are skipped, so stray
// output from the bridge does not break the stream.
func readFrame(r *bufio.Reader) ([]byte, error) {
	length := -1
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimSpace(line)

		if line == "" {
			if length >= 0 {
				break
			}
			continue
		}

		name, value, ok := strings.Cut(line, ":")
		if !ok || !strings.EqualFold(strings.TrimSpace(name), "Content-Length") {
			if length < 0 {
				logger.DebugCF("bridge", "Skipping non-frame output", map[string]any{"line": line})
			}
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid content length %q", value)
		}
		length = n
	}

	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("failed to read frame: %w", err)
	}
	return buf, nil
}
