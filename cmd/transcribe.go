package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jsphweid/notescribe/apperror"
	"github.com/jsphweid/notescribe/audio"
	"github.com/jsphweid/notescribe/constants"
	"github.com/jsphweid/notescribe/midi"
	"github.com/jsphweid/notescribe/transcribe"
	"github.com/jsphweid/notescribe/util"
	"github.com/spf13/cobra"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

var (
	transcribeOut     string
	transcribeTempo   float64
	transcribeMax     int
	transcribeSession bool
	transcribeReplay  string
	transcribeLenient bool
)

func init() {
	rootCmd.AddCommand(transcribeCmd)
	f := transcribeCmd.Flags()
	f.StringVarP(&transcribeOut, "out", "o", "", "output directory (default out_dir)")
	f.Float64Var(&transcribeTempo, "tempo", 0, "tempo of the written MIDI (default timeline.tempo)")
	f.IntVar(&transcribeMax, "max", 0, "transcribe at most this many files of a directory")
	f.BoolVar(&transcribeSession, "session", false, "also save markers and predictions for render")
	f.StringVar(&transcribeReplay, "replay", "", "answer from a saved session instead of the model")
	f.BoolVar(&transcribeLenient, "lenient", false, "skip chunks the model fails on")
}

var transcribeCmd = &cobra.Command{
	Use:   "transcribe <file.wav|dir>",
	Short: "Transcribes WAV files to MIDI",
	Long: `Transcribes a WAV file, or every WAV file under a directory, into MIDI
files named after the input.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTranscribe(cmd.Context(), args[0])
	},
}

func inputPaths(path string, maxNum int) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, apperror.NotFound(path)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}
	paths, err := util.GatherAllPaths(path, maxNum, constants.AudioExtensions...)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, apperror.NotFound(fmt.Sprintf("WAV files under %s", path))
	}
	return paths, nil
}

func outputName(outDir, path, ext string) string {
	base := filepath.Base(path)
	return filepath.Join(outDir, strings.TrimSuffix(base, filepath.Ext(base))+ext)
}

func runTranscribe(ctx context.Context, path string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	outDir := transcribeOut
	if outDir == "" {
		outDir = cfg.OutDir
	}
	tempo := transcribeTempo
	if tempo == 0 {
		tempo = cfg.Timeline.Tempo
	}
	if transcribeLenient {
		cfg.Inference.Lenient = true
	}

	paths, err := inputPaths(path, transcribeMax)
	if err != nil {
		return err
	}
	if err := util.EnsureOutputDir(outDir); err != nil {
		return err
	}

	m, err := newModel(cfg, transcribeReplay)
	if err != nil {
		return err
	}
	pipeline, err := newPipeline(cfg, m, tempo, appLog)
	if err != nil {
		return err
	}

	p := mpb.NewWithContext(ctx, mpb.WithWidth(64), mpb.WithOutput(os.Stderr))
	var failed int
	for _, path := range paths {
		bar := p.AddBar(0,
			mpb.PrependDecorators(
				decor.Name(filepath.Base(path)+": ", decor.WCSyncSpaceR),
				decor.CountersNoUnit("%d / %d"),
			),
			mpb.AppendDecorators(
				decor.Percentage(),
				decor.AverageETA(decor.ET_STYLE_GO),
			),
		)
		pipeline.OnProgress = func(done, total int) {
			bar.SetTotal(int64(total), false)
			bar.Increment()
		}

		err := transcribeFile(ctx, pipeline, path, outDir, tempo)
		bar.SetTotal(-1, true)
		if err != nil {
			failed++
			appLog.Error().Err(err).Str("file", path).Msg("transcription failed")
		}
	}
	p.Wait()

	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(paths))
	}
	return nil
}

func transcribeFile(ctx context.Context, pipeline *transcribe.Pipeline, path, outDir string, tempo float64) error {
	w, err := audio.Load(path)
	if err != nil {
		return err
	}
	res, err := pipeline.Run(ctx, w)
	if err != nil {
		return err
	}

	midiPath := outputName(outDir, path, ".mid")
	if err := midi.WriteFile(midiPath, res.Events, tempo, cfg.Timeline.TicksPerBeat); err != nil {
		return err
	}
	if transcribeSession {
		if err := util.CreateBinary(outputName(outDir, path, ".session"), res.Session(path)); err != nil {
			return err
		}
	}
	appLog.Info().
		Str("file", path).
		Str("midi", midiPath).
		Int("chunks", len(res.Markers)).
		Int("notes", len(res.Events)).
		Int("skipped", len(res.Errors)).
		Msg("transcribed")
	return nil
}
