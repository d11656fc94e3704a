package pipeline

import (
	"log/slog"
	"sort"
	"time"
)

// Stats summarizes one render run
type Stats struct {
	FramesRead      int
	FramesWritten   int
	OverlaysDrawn   int
	OverlaysSkipped map[string]int // keyed by errors.KindOf
	Elapsed         time.Duration

	// Timing measurements
	readTimeTotal   time.Duration
	renderTimeTotal time.Duration
	writeTimeTotal  time.Duration
}

func newStats() Stats {
	return Stats{OverlaysSkipped: make(map[string]int)}
}

func (s *Stats) updateRead(d time.Duration) {
	s.FramesRead++
	s.readTimeTotal += d
}

func (s *Stats) updateRender(d time.Duration) {
	s.renderTimeTotal += d
}

func (s *Stats) updateWrite(d time.Duration) {
	s.FramesWritten++
	s.writeTimeTotal += d
}

func (s *Stats) skip(kind string) {
	s.OverlaysSkipped[kind]++
}

// Skipped is the total number of overlays skipped for any reason
func (s Stats) Skipped() int {
	total := 0
	for _, n := range s.OverlaysSkipped {
		total += n
	}
	return total
}

// FPS is the end-to-end throughput in frames written per second
func (s Stats) FPS() float64 {
	seconds := s.Elapsed.Seconds()
	if seconds <= 0 {
		return 0
	}
	return float64(s.FramesWritten) / seconds
}

// Averages returns the mean per-frame time of each stage
func (s Stats) Averages() (avgRead, avgRender, avgWrite time.Duration) {
	if s.FramesRead > 0 {
		avgRead = s.readTimeTotal / time.Duration(s.FramesRead)
		avgRender = s.renderTimeTotal / time.Duration(s.FramesRead)
	}
	if s.FramesWritten > 0 {
		avgWrite = s.writeTimeTotal / time.Duration(s.FramesWritten)
	}
	return
}

// LogValue groups the stats for slog
func (s Stats) LogValue() slog.Value {
	avgRead, avgRender, avgWrite := s.Averages()
	attrs := []slog.Attr{
		slog.Int("frames_read", s.FramesRead),
		slog.Int("frames_written", s.FramesWritten),
		slog.Int("overlays_drawn", s.OverlaysDrawn),
		slog.Int("overlays_skipped", s.Skipped()),
		slog.Duration("elapsed", s.Elapsed),
		slog.Float64("fps", s.FPS()),
		slog.Duration("avg_read", avgRead),
		slog.Duration("avg_render", avgRender),
		slog.Duration("avg_write", avgWrite),
	}
	kinds := make([]string, 0, len(s.OverlaysSkipped))
	for kind := range s.OverlaysSkipped {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		attrs = append(attrs, slog.Int("skipped_"+kind, s.OverlaysSkipped[kind]))
	}
	return slog.GroupValue(attrs...)
}
