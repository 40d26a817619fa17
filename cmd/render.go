package cmd

import (
	"path/filepath"

	"github.com/jsphweid/notescribe/midi"
	"github.com/jsphweid/notescribe/model"
	"github.com/jsphweid/notescribe/timeline"
	"github.com/jsphweid/notescribe/util"
	"github.com/spf13/cobra"
)

var (
	renderOut          string
	renderTempo        float64
	renderTicksPerBeat int
)

func init() {
	rootCmd.AddCommand(renderCmd)
	f := renderCmd.Flags()
	f.StringVarP(&renderOut, "out", "o", "", "MIDI file to write (default next to the session)")
	f.Float64Var(&renderTempo, "tempo", 0, "tempo (default timeline.tempo)")
	f.IntVar(&renderTicksPerBeat, "ticks-per-beat", 0, "resolution (default timeline.ticks_per_beat)")
}

var renderCmd = &cobra.Command{
	Use:   "render <file.session>",
	Short: "Writes MIDI from a saved session",
	Long: `Rebuilds the note timeline of a session saved by transcribe --session,
possibly at another tempo or resolution, without calling the model.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := renderOut
		if out == "" {
			out = outputName(filepath.Dir(args[0]), args[0], ".mid")
		}
		tempo := renderTempo
		if tempo == 0 {
			tempo = cfg.Timeline.Tempo
		}
		tpb := renderTicksPerBeat
		if tpb == 0 {
			tpb = cfg.Timeline.TicksPerBeat
		}
		_, err := render(args[0], out, tempo, tpb, cfg.Inference.Lenient)
		return err
	},
}

func render(sessionPath, out string, tempo float64, ticksPerBeat int, lenient bool) ([]model.NoteEvent, error) {
	session, err := util.ReadBinary[model.Session](sessionPath)
	if err != nil {
		return nil, err
	}
	b, err := timeline.NewBuilder(tempo, ticksPerBeat, session.SampleRate)
	if err != nil {
		return nil, err
	}

	var events []model.NoteEvent
	if lenient {
		var errs []error
		events, errs = b.BuildLenient(session.Markers, session.Predictions)
		for _, err := range errs {
			appLog.Warn().Err(err).Msg("skipped chunk")
		}
	} else {
		events, err = b.Build(session.Markers, session.Predictions)
		if err != nil {
			return nil, err
		}
	}

	if err := midi.WriteFile(out, events, tempo, ticksPerBeat); err != nil {
		return nil, err
	}
	appLog.Info().Str("session", sessionPath).Str("midi", out).Int("notes", len(events)).Msg("rendered")
	return events, nil
}
