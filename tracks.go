package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"platecam/detection"
	"platecam/tracking"
)

var tracksCmd = &cobra.Command{
	Use:   "tracks",
	Short: "List the canonical plate text of every track",
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonOutput, _ := cmd.Flags().GetBool("json")

		ds, err := detection.LoadDataset(cfg.Dataset.Path)
		if err != nil {
			return err
		}
		entries := tracking.BuildRegistry(ds.Records).Entries()

		if jsonOutput {
			return writeTracksJSON(cmd.OutOrStdout(), entries)
		}
		return writeTracksTable(cmd.OutOrStdout(), entries)
	},
}

func init() {
	tracksCmd.Flags().String("dataset", "", "interpolated detection CSV (default test_interpolated.csv)")
	tracksCmd.Flags().BoolP("json", "j", false, "output tracks as JSON")
}

func writeTracksJSON(w io.Writer, entries []tracking.TrackEntry) error {
	if entries == nil {
		entries = []tracking.TrackEntry{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(entries)
}

func writeTracksTable(w io.Writer, entries []tracking.TrackEntry) error {
	data := pterm.TableData{{"CAR", "FIRST FRAME", "LAST FRAME", "PLATE", "ROWS"}}
	for _, e := range entries {
		data = append(data, []string{
			strconv.Itoa(e.CarID),
			strconv.Itoa(e.FirstFrame),
			strconv.Itoa(e.LastFrame),
			e.LicenseNumber,
			strconv.Itoa(e.Rows),
		})
	}

	table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return fmt.Errorf("failed to render track table: %w", err)
	}
	_, err = fmt.Fprintln(w, table)
	return err
}
