package cmd

import (
	"fmt"
	"io"

	"github.com/jsphweid/notescribe/midi"
	"github.com/spf13/cobra"
)

var (
	inspectFrom  uint64
	inspectLimit int
)

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().Uint64Var(&inspectFrom, "from", 0, "skip notes before this tick")
	inspectCmd.Flags().IntVar(&inspectLimit, "limit", 0, "stop after this many note on/off messages")
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <file.mid>",
	Short: "Prints the notes of a MIDI file",
	Long:  `Prints the resolution, tempo and notes of a MIDI file.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return inspect(cmd.OutOrStdout(), args[0], inspectFrom, inspectLimit)
	},
}

func inspect(w io.Writer, path string, fromTick uint64, limit int) error {
	s, err := midi.ReadMidiFile(path)
	if err != nil {
		return err
	}
	if fromTick > 0 || limit > 0 {
		s = midi.Excerpt(s, fromTick, limit)
		fmt.Fprintf(w, "from tick: %v\n", fromTick)
	}
	events := midi.NoteEvents(s)
	fmt.Fprintf(w, "ticks per beat: %v\n", midi.TicksPerBeat(s))
	fmt.Fprintf(w, "tempo: %.2f\n", midi.Tempo(s))
	fmt.Fprintf(w, "notes: %v\n", len(events))
	for _, e := range events {
		start := float64(s.TimeAt(int64(e.StartTick))) / 1e6
		end := float64(s.TimeAt(int64(e.EndTick))) / 1e6
		fmt.Fprintf(w, "%4d  %8d-%-8d  %8.3fs-%.3fs\n", e.Pitch, e.StartTick, e.EndTick, start, end)
	}
	return nil
}
