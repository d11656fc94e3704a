package detection

// FrameIndex groups records by frame number. It is built once before
// streaming and only read afterwards.
type FrameIndex struct {
	byFrame  map[int][]DetectionRecord
	maxFrame int
}

// NewFrameIndex indexes records by FrameNmr, keeping dataset order within a frame
func NewFrameIndex(records []DetectionRecord) *FrameIndex {
	ix := &FrameIndex{
		byFrame:  make(map[int][]DetectionRecord),
		maxFrame: -1,
	}
	for _, rec := range records {
		ix.byFrame[rec.FrameNmr] = append(ix.byFrame[rec.FrameNmr], rec)
		if rec.FrameNmr > ix.maxFrame {
			ix.maxFrame = rec.FrameNmr
		}
	}
	return ix
}

// At returns the records for frame, or nil when the frame has none
func (ix *FrameIndex) At(frame int) []DetectionRecord {
	return ix.byFrame[frame]
}

// Frames returns the number of distinct frames with at least one record
func (ix *FrameIndex) Frames() int {
	return len(ix.byFrame)
}

// MaxFrame returns the highest indexed frame number, or -1 for an empty index
func (ix *FrameIndex) MaxFrame() int {
	return ix.maxFrame
}
