package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/jsphweid/notescribe/audio"
	"github.com/jsphweid/notescribe/model"
	"github.com/jsphweid/notescribe/util"
	"github.com/spf13/cobra"
)

var splitOut string

func init() {
	rootCmd.AddCommand(splitCmd)
	splitCmd.Flags().StringVarP(&splitOut, "out", "o", "", "output directory (default out_dir)")
}

var splitCmd = &cobra.Command{
	Use:   "split <file.wav>",
	Short: "Cuts a WAV file into phrases",
	Long: `Cuts a WAV file at its silences and writes every phrase as a mono WAV
file, plus a manifest.json mapping files to frame ranges.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		outDir := splitOut
		if outDir == "" {
			outDir = cfg.OutDir
		}
		_, err := split(args[0], outDir)
		return err
	},
}

type splitEntry struct {
	model.Marker
	File string `json:"file"`
}

type splitManifest struct {
	Source     string       `json:"source"`
	SampleRate int          `json:"sample_rate"`
	Chunks     []splitEntry `json:"chunks"`
}

func split(path, outDir string) (*splitManifest, error) {
	w, err := audio.Load(path)
	if err != nil {
		return nil, err
	}
	s, err := newSlicer(cfg, w.SampleRate, appLog)
	if err != nil {
		return nil, err
	}
	mono := w.Mono()
	markers, err := s.Slice(mono.Samples, 1)
	if err != nil {
		return nil, err
	}
	if err := util.EnsureOutputDir(outDir); err != nil {
		return nil, err
	}

	manifest := &splitManifest{Source: path, SampleRate: w.SampleRate}
	for _, m := range markers {
		name := uuid.New().String() + ".wav"
		if err := audio.WriteChunk(filepath.Join(outDir, name), mono.Slice(m), w.SampleRate); err != nil {
			return nil, err
		}
		manifest.Chunks = append(manifest.Chunks, splitEntry{Marker: m, File: name})
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(outDir, "manifest.json"), data, 0666); err != nil {
		return nil, err
	}
	appLog.Info().Str("file", path).Int("chunks", len(markers)).Str("out", outDir).Msg("split")
	return manifest, nil
}
