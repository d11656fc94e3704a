package tracking

// TrackEntry is the cached state for one vehicle track
type TrackEntry struct {
	CarID         int    `json:"car_id"`
	LicenseNumber string `json:"license_number"` // canonical text, taken from the earliest frame of the track
	FirstFrame    int    `json:"first_frame"`
	LastFrame     int    `json:"last_frame"`
	Rows          int    `json:"rows"` // dataset rows belonging to the track
}

// Frames returns the span of frames the track covers, inclusive
func (e TrackEntry) Frames() int {
	return e.LastFrame - e.FirstFrame + 1
}
