package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"regexp"
	"strconv"
	"sync"
	"time"

	"platecam/errors"
)

var frameRegex = regexp.MustCompile(`frame=\s*(\d+)`)

// errStalled is the cancel cause when ffmpeg stops producing output
var errStalled = errors.New("ffmpeg stalled")

// monitor follows ffmpeg's stderr: it logs progress, remembers the last
// lines for a failure dump and tracks when output was last seen
type monitor struct {
	buffer *OutputBuffer

	mutex      sync.Mutex
	lastOutput time.Time
	lastFrame  int
}

func newMonitor(bufferLines int) *monitor {
	return &monitor{
		buffer:     NewOutputBuffer(bufferLines),
		lastOutput: time.Now(),
	}
}

// consume reads pipe until EOF
func (m *monitor) consume(pipe io.Reader) {
	scanner := bufio.NewScanner(pipe)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	scanner.Split(scanOutputLines)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		m.buffer.Add(line)
		m.observe(line)
	}
	if err := scanner.Err(); err != nil {
		m.buffer.Add("SCANNER_ERROR: " + err.Error())
	}
}

func (m *monitor) observe(line string) {
	m.mutex.Lock()
	m.lastOutput = time.Now()
	frame, ok := parseFrame(line)
	advanced := ok && frame > m.lastFrame
	if advanced {
		m.lastFrame = frame
	}
	m.mutex.Unlock()

	if advanced {
		logger.Debug("ffmpeg progress", "frame", frame)
	}
}

// watch cancels the run with errStalled once no output has arrived for
// timeout. It returns when ctx is done.
func (m *monitor) watch(ctx context.Context, timeout time.Duration, cancel context.CancelCauseFunc) {
	interval := max(timeout/4, 10*time.Millisecond)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if idle := m.idle(); idle > timeout {
				logger.Warn("ffmpeg produced no output, stopping it",
					"idle", idle.Round(time.Millisecond),
					"last_frame", m.frame())
				cancel(errStalled)
				return
			}
		}
	}
}

func (m *monitor) idle() time.Duration {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return time.Since(m.lastOutput)
}

func (m *monitor) frame() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.lastFrame
}

// dump logs the buffered output after a failure
func (m *monitor) dump() {
	lines := m.buffer.Recent()
	if len(lines) == 0 {
		logger.Error("ffmpeg failed without output")
		return
	}
	logger.Error("ffmpeg failed, recent output follows", "lines", len(lines))
	for _, line := range lines {
		logger.Error("ffmpeg", "output", line)
	}
}

// parseFrame extracts N from a "frame=   N" progress line
func parseFrame(line string) (int, bool) {
	matches := frameRegex.FindStringSubmatch(line)
	if len(matches) < 2 {
		return 0, false
	}
	n, err := strconv.Atoi(matches[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// scanOutputLines splits on '\n' or '\r'; ffmpeg rewrites its progress line
// in place with carriage returns
func scanOutputLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
