package tracking

import (
	"sort"

	"platecam/detection"
	"platecam/errors"
)

// Registry maps each car id to its canonical plate text. It is built once,
// before streaming, and never mutated afterwards, so concurrent reads are
// safe.
type Registry struct {
	entries map[int]TrackEntry
}

// BuildRegistry groups records by car id and keeps, for each track, the
// license number of the row with the smallest frame number. Ties on the
// frame number go to the row seen first in the dataset.
func BuildRegistry(records []detection.DetectionRecord) *Registry {
	entries := make(map[int]TrackEntry)
	for _, rec := range records {
		entry, seen := entries[rec.CarID]
		if !seen {
			entries[rec.CarID] = TrackEntry{
				CarID:         rec.CarID,
				LicenseNumber: rec.LicenseNumber,
				FirstFrame:    rec.FrameNmr,
				LastFrame:     rec.FrameNmr,
				Rows:          1,
			}
			continue
		}

		entry.Rows++
		if rec.FrameNmr < entry.FirstFrame {
			entry.FirstFrame = rec.FrameNmr
			entry.LicenseNumber = rec.LicenseNumber
		}
		if rec.FrameNmr > entry.LastFrame {
			entry.LastFrame = rec.FrameNmr
		}
		entries[rec.CarID] = entry
	}

	return &Registry{entries: entries}
}

// Lookup returns the canonical plate text for carID
func (r *Registry) Lookup(carID int) (string, error) {
	entry, ok := r.entries[carID]
	if !ok {
		return "", errors.Wrapf(errors.ErrNotFound, "car_id %d is not in the track registry", carID)
	}
	return entry.LicenseNumber, nil
}

// Len returns the number of tracks
func (r *Registry) Len() int {
	return len(r.entries)
}

// Entries returns all tracks ordered by car id
func (r *Registry) Entries() []TrackEntry {
	out := make([]TrackEntry, 0, len(r.entries))
	for _, entry := range r.entries {
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CarID < out[j].CarID })
	return out
}
