package detector

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/okian/blackjack/internal/domain/model"
)

// JSONLinesDetector reads one JSON frame per line:
//
//	{"frame_id":"f1","height":720,"detections":[{"label":"KH","confidence":0.91,"bbox":[10,20,60,90]}]}
//
// Blank lines are skipped. A frame without a height gets the configured
// default height.
type JSONLinesDetector struct {
	mu            sync.Mutex
	r             *bufio.Reader
	closer        io.Closer
	line          int
	defaultHeight int
	closed        bool
}

// Option configures a JSONLinesDetector.
type Option func(*JSONLinesDetector)

// WithDefaultHeight sets the frame height used when a record omits it.
func WithDefaultHeight(h int) Option {
	return func(d *JSONLinesDetector) {
		if h > 0 {
			d.defaultHeight = h
		}
	}
}

// NewJSONLinesDetector reads frames from r. If r is an io.Closer it is
// closed by Close.
func NewJSONLinesDetector(r io.Reader, opts ...Option) *JSONLinesDetector {
	d := &JSONLinesDetector{r: bufio.NewReader(r)}
	if c, ok := r.(io.Closer); ok {
		d.closer = c
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// OpenFile reads frames from a JSON-lines file.
func OpenFile(path string, opts ...Option) (*JSONLinesDetector, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open detections file: %w", err)
	}
	return NewJSONLinesDetector(f, opts...), nil
}

// Detect implements Detector.
func (d *JSONLinesDetector) Detect(ctx context.Context) (model.Frame, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return model.Frame{}, ErrClosed
	}

	for {
		if err := ctx.Err(); err != nil {
			return model.Frame{}, err
		}

		raw, err := d.r.ReadBytes('\n')
		if len(raw) == 0 && err != nil {
			if errors.Is(err, io.EOF) {
				return model.Frame{}, io.EOF
			}
			return model.Frame{}, fmt.Errorf("read frame: %w", err)
		}
		d.line++

		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 {
			continue
		}

		var f model.Frame
		if err := json.Unmarshal(raw, &f); err != nil {
			return model.Frame{}, fmt.Errorf("%w: line %d: %w", ErrMalformedFrame, d.line, err)
		}
		if f.Height == 0 {
			f.Height = d.defaultHeight
		}
		return f, nil
	}
}

// Close implements Detector.
func (d *JSONLinesDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true
	if d.closer != nil {
		return d.closer.Close()
	}
	return nil
}

// CommandDetector runs an external detector process and reads JSON-lines
// frames from its stdout. The process is started on the first Detect.
type CommandDetector struct {
	name string
	args []string
	opts []Option

	mu     sync.Mutex
	cmd    *exec.Cmd
	lines  *JSONLinesDetector
	closed bool
}

// NewCommandDetector prepares a detector process. Nothing is started yet.
func NewCommandDetector(name string, args []string, opts ...Option) *CommandDetector {
	return &CommandDetector{name: name, args: args, opts: opts}
}

// Detect implements Detector.
func (d *CommandDetector) Detect(ctx context.Context) (model.Frame, error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return model.Frame{}, ErrClosed
	}
	if err := d.ensureStarted(); err != nil {
		d.mu.Unlock()
		return model.Frame{}, err
	}
	lines := d.lines
	d.mu.Unlock()

	return lines.Detect(ctx)
}

func (d *CommandDetector) ensureStarted() error {
	if d.cmd != nil {
		return nil
	}

	cmd := exec.Command(d.name, d.args...) //nolint:gosec // detector command comes from operator config
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start detector %s: %w", d.name, err)
	}
	d.cmd = cmd
	d.lines = NewJSONLinesDetector(stdout, d.opts...)
	return nil
}

// Close stops the detector process.
func (d *CommandDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true
	if d.cmd == nil {
		return nil
	}

	_ = d.cmd.Process.Kill()
	_ = d.cmd.Wait()
	return nil
}
