package detection

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"platecam/errors"
)

const sampleCSV = `frame_nmr,car_id,car_bbox,license_plate_bbox,license_plate_bbox_score,license_number,license_number_score
0,7,[100 200 500 600],[250 500 350 540],0.9,ABC123,0.8
0,9,"[600, 200, 900, 600]","[700, 500, 780, 530]",0.7,DEF456,0.6
1.0,7,[102 200 502 600],[252 500 352 540],0.9,ABC123,0.8
2,7.0,[104 200 504 600],[254 500 354 540],0.9,XYZ999,0.8
`

func TestReadDataset(t *testing.T) {
	ds, err := ReadDataset(strings.NewReader(sampleCSV))
	require.NoError(t, err)

	require.Len(t, ds.Records, 4)
	assert.Zero(t, ds.Dropped)

	first := ds.Records[0]
	assert.Equal(t, 0, first.FrameNmr)
	assert.Equal(t, 7, first.CarID)
	assert.Equal(t, "[100 200 500 600]", first.CarBBox)
	assert.Equal(t, "ABC123", first.LicenseNumber)
	assert.Equal(t, 2, first.Line)

	assert.Equal(t, 1, ds.Records[2].FrameNmr)
	assert.Equal(t, 7, ds.Records[3].CarID)

	car, err := ds.Records[1].Car()
	require.NoError(t, err)
	assert.Equal(t, Rect{600, 200, 900, 600}, car)
}

func TestReadDataset_ReorderedColumns(t *testing.T) {
	csv := "license_number,car_bbox,car_id,license_plate_bbox,frame_nmr\n" +
		"Q1,0 0 10 10,4,1 1 5 5,3\n"

	ds, err := ReadDataset(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, ds.Records, 1)

	rec := ds.Records[0]
	assert.Equal(t, 3, rec.FrameNmr)
	assert.Equal(t, 4, rec.CarID)
	assert.Equal(t, "Q1", rec.LicenseNumber)
}

func TestReadDataset_DropsUnindexableRows(t *testing.T) {
	csv := "frame_nmr,car_id,car_bbox,license_plate_bbox,license_number\n" +
		"0,1,0 0 10 10,1 1 5 5,A\n" +
		"x,1,0 0 10 10,1 1 5 5,A\n" +
		"1,1.5,0 0 10 10,1 1 5 5,A\n" +
		"-1,1,0 0 10 10,1 1 5 5,A\n" +
		"2,1,0 0 10 10\n" +
		"3,1,oops,1 1 5 5,A\n"

	ds, err := ReadDataset(strings.NewReader(csv))
	require.NoError(t, err)

	// malformed boxes are kept; they fail at render time for that record only
	require.Len(t, ds.Records, 2)
	assert.Equal(t, 4, ds.Dropped)
	assert.Equal(t, "oops", ds.Records[1].CarBBox)
	assert.Equal(t, 7, ds.Records[1].Line)
}

func TestReadDataset_FatalErrors(t *testing.T) {
	_, err := ReadDataset(strings.NewReader(""))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrFormat))

	_, err = ReadDataset(strings.NewReader("frame_nmr,car_id,car_bbox,license_number\n0,1,1 2 3 4,A\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrFormat))
	assert.Contains(t, err.Error(), "license_plate_bbox")
}

func TestLoadDataset(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test_interpolated.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0644))

	ds, err := LoadDataset(path)
	require.NoError(t, err)
	assert.Len(t, ds.Records, 4)

	_, err = LoadDataset(filepath.Join(dir, "missing.csv"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrIO))
}

func TestFrameIndex(t *testing.T) {
	ds, err := ReadDataset(strings.NewReader(sampleCSV))
	require.NoError(t, err)

	ix := NewFrameIndex(ds.Records)

	require.Len(t, ix.At(0), 2)
	assert.Equal(t, 7, ix.At(0)[0].CarID)
	assert.Equal(t, 9, ix.At(0)[1].CarID)
	assert.Len(t, ix.At(1), 1)
	assert.Len(t, ix.At(2), 1)
	assert.Nil(t, ix.At(3))
	assert.Equal(t, 3, ix.Frames())
	assert.Equal(t, 2, ix.MaxFrame())

	assert.Equal(t, -1, NewFrameIndex(nil).MaxFrame())
}

func TestWaitForDataset_Existing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ready.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0644))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, WaitForDataset(ctx, path))
}

func TestWaitForDataset_Appears(t *testing.T) {
	path := filepath.Join(t.TempDir(), "later.csv")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go func() {
		time.Sleep(100 * time.Millisecond)
		_ = os.WriteFile(path, []byte(sampleCSV), 0644)
	}()

	require.NoError(t, WaitForDataset(ctx, path))
}

func TestWaitForDataset_Timeout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "never.csv")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := WaitForDataset(ctx, path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrIO))
}
