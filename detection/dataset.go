package detection

import (
	"encoding/csv"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"platecam/errors"
)

// Dataset column names produced by the interpolation stage
const (
	ColFrameNmr      = "frame_nmr"
	ColCarID         = "car_id"
	ColCarBBox       = "car_bbox"
	ColPlateBBox     = "license_plate_bbox"
	ColLicenseNumber = "license_number"
)

var requiredColumns = []string{ColFrameNmr, ColCarID, ColCarBBox, ColPlateBBox, ColLicenseNumber}

// Dataset is the full, read-only set of detection records for one video
type Dataset struct {
	Records []DetectionRecord
	Dropped int // rows that could not be indexed (bad frame_nmr/car_id or field count)
}

// LoadDataset reads a CSV dataset from disk
func LoadDataset(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WithHint(
			errors.Mark(errors.Wrapf(err, "open dataset %s", path), errors.ErrIO),
			"run the interpolation stage first or check the --dataset path")
	}
	defer f.Close()

	ds, err := ReadDataset(f)
	if err != nil {
		return nil, errors.Wrapf(err, "dataset %s", path)
	}

	logger.Info("Dataset loaded",
		"path", path,
		"records", len(ds.Records),
		"dropped", ds.Dropped)
	return ds, nil
}

// ReadDataset parses a CSV dataset with a header row. Columns are located by
// name; extra columns are ignored.
func ReadDataset(r io.Reader) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.Mark(errors.New("dataset is empty"), errors.ErrFormat)
	}
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "read header"), errors.ErrIO)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		if _, dup := cols[name]; !dup {
			cols[name] = i
		}
	}
	for _, name := range requiredColumns {
		if _, ok := cols[name]; !ok {
			return nil, errors.Mark(errors.Newf("missing required column %q", name), errors.ErrFormat)
		}
	}

	ds := &Dataset{}
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Mark(errors.Wrap(err, "read row"), errors.ErrIO)
		}
		line, _ := reader.FieldPos(0)

		rec, err := decodeRow(row, cols, len(header))
		if err != nil {
			ds.Dropped++
			logger.Warn("Dropping dataset row", "line", line, "error", err)
			continue
		}
		rec.Line = line
		ds.Records = append(ds.Records, rec)
	}

	return ds, nil
}

func decodeRow(row []string, cols map[string]int, width int) (DetectionRecord, error) {
	if len(row) != width {
		return DetectionRecord{}, errors.Mark(
			errors.Newf("expected %d fields, got %d", width, len(row)), errors.ErrFormat)
	}

	frame, err := parseIndex(row[cols[ColFrameNmr]])
	if err != nil {
		return DetectionRecord{}, errors.Wrap(err, ColFrameNmr)
	}
	if frame < 0 {
		return DetectionRecord{}, errors.Mark(errors.Newf("%s %d is negative", ColFrameNmr, frame), errors.ErrFormat)
	}
	carID, err := parseIndex(row[cols[ColCarID]])
	if err != nil {
		return DetectionRecord{}, errors.Wrap(err, ColCarID)
	}

	return DetectionRecord{
		FrameNmr:      frame,
		CarID:         carID,
		CarBBox:       row[cols[ColCarBBox]],
		PlateBBox:     row[cols[ColPlateBBox]],
		LicenseNumber: strings.TrimSpace(row[cols[ColLicenseNumber]]),
	}, nil
}

// parseIndex accepts "12" as well as the float form "12.0" written by some
// dataframe exporters
func parseIndex(field string) (int, error) {
	field = strings.TrimSpace(field)
	if n, err := strconv.Atoi(field); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(field, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, errors.Mark(errors.Newf("%q is not an integer", field), errors.ErrFormat)
	}
	return int(f), nil
}
