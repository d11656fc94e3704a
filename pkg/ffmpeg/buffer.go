package ffmpeg

import (
	"fmt"
	"sync"
	"time"
)

// OutputBuffer keeps the most recent ffmpeg output lines for the failure dump
type OutputBuffer struct {
	lines    []string
	maxLines int
	index    int
	full     bool
	mutex    sync.RWMutex
}

// NewOutputBuffer creates a circular buffer holding up to maxLines lines
func NewOutputBuffer(maxLines int) *OutputBuffer {
	if maxLines < 1 {
		maxLines = 1
	}
	return &OutputBuffer{
		lines:    make([]string, maxLines),
		maxLines: maxLines,
	}
}

// Add stores a line, overwriting the oldest once the buffer is full
func (ob *OutputBuffer) Add(line string) {
	ob.mutex.Lock()
	defer ob.mutex.Unlock()

	ob.lines[ob.index] = fmt.Sprintf("[%s] %s", time.Now().Format("15:04:05.000"), line)
	ob.index = (ob.index + 1) % ob.maxLines
	if ob.index == 0 {
		ob.full = true
	}
}

// Recent returns the buffered lines, oldest first
func (ob *OutputBuffer) Recent() []string {
	ob.mutex.RLock()
	defer ob.mutex.RUnlock()

	if !ob.full {
		return append([]string(nil), ob.lines[:ob.index]...)
	}

	result := make([]string, 0, ob.maxLines)
	result = append(result, ob.lines[ob.index:]...)
	return append(result, ob.lines[:ob.index]...)
}

// Len reports how many lines are buffered
func (ob *OutputBuffer) Len() int {
	ob.mutex.RLock()
	defer ob.mutex.RUnlock()

	if ob.full {
		return ob.maxLines
	}
	return ob.index
}
