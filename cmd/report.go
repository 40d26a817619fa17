package cmd

import (
	"fmt"
	"io"

	"github.com/jsphweid/notescribe/audio"
	"github.com/jsphweid/notescribe/util"
	"github.com/spf13/cobra"
)

var reportMax int

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().IntVar(&reportMax, "max", 0, "report on at most this many files of a directory")
}

var reportCmd = &cobra.Command{
	Use:   "report <file.wav|dir>",
	Short: "Reports how audio gets segmented",
	Long:  `Reports how many chunks each WAV file is cut into and how long they are.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := inputPaths(args[0], reportMax)
		if err != nil {
			return err
		}
		for _, path := range paths {
			r, err := analyzeSegments(path)
			if err != nil {
				appLog.Error().Err(err).Str("file", path).Msg("could not segment")
				continue
			}
			r.print(cmd.OutOrStdout())
		}
		return nil
	},
}

type segmentsReport struct {
	path         string
	sampleRate   int
	frames       int
	chunkLengths []int
}

func analyzeSegments(path string) (segmentsReport, error) {
	var report segmentsReport
	w, err := audio.Load(path)
	if err != nil {
		return report, err
	}
	s, err := newSlicer(cfg, w.SampleRate, appLog)
	if err != nil {
		return report, err
	}
	markers, err := s.Slice(w.Samples, w.Channels)
	if err != nil {
		return report, err
	}

	report.path = path
	report.sampleRate = w.SampleRate
	report.frames = w.Frames()
	for _, m := range markers {
		report.chunkLengths = append(report.chunkLengths, m.Len())
	}
	return report, nil
}

func (r segmentsReport) seconds(frames int) float64 {
	return float64(frames) / float64(r.sampleRate)
}

func (r segmentsReport) print(w io.Writer) {
	kept := util.Sum(r.chunkLengths)
	shortest, longest := r.chunkLengths[0], r.chunkLengths[0]
	for _, l := range r.chunkLengths {
		shortest = util.Min(shortest, l)
		longest = util.Max(longest, l)
	}

	fmt.Fprintf(w, "%s\n", r.path)
	fmt.Fprintf(w, "  duration: %.2fs\n", r.seconds(r.frames))
	fmt.Fprintf(w, "  chunks: %v\n", len(r.chunkLengths))
	fmt.Fprintf(w, "  shortest: %.2fs, longest: %.2fs, average: %.2fs\n",
		r.seconds(shortest), r.seconds(longest), r.seconds(int(kept))/float64(len(r.chunkLengths)))
	fmt.Fprintf(w, "  dropped as silence: %.1f%%\n", 100*(1-float64(kept)/float64(r.frames)))
}
