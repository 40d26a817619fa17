// Package slicer splits a waveform into non-silent chunks using a framewise
// RMS energy curve.
package slicer

import (
	"math"

	"github.com/jsphweid/notescribe/apperror"
	"github.com/jsphweid/notescribe/model"
	"github.com/jsphweid/notescribe/util"
)

const unitFactor = 1000

// Params are the slicer settings converted to the units the algorithm works
// in: samples for HopSize and WinSize, RMS frames for the rest.
type Params struct {
	Threshold   float64
	HopSize     int
	WinSize     int
	MinLength   int
	MinInterval int
	MaxSilKept  int
}

// Slicer holds a validated configuration. It is never mutated by Slice, so
// one instance may be shared.
type Slicer struct {
	threshold   float64
	hopSize     int
	winSize     int
	minLength   int
	minInterval int
	maxSilKept  int

	sink func(error)
}

type Option func(*Slicer)

// WithErrorSink registers a function that is handed every error the slicer
// returns, including the one from New.
func WithErrorSink(sink func(error)) Option {
	return func(s *Slicer) { s.sink = sink }
}

// New validates cfg and converts it to frame units. A configuration error
// leaves no usable slicer.
func New(cfg Config, opts ...Option) (*Slicer, error) {
	s := &Slicer{}
	for _, opt := range opts {
		opt(s)
	}
	if err := cfg.Validate(); err != nil {
		return nil, s.report(err)
	}

	sr := cfg.SampleRate
	hopSize := util.DivRound(cfg.HopSize*sr, unitFactor)
	if hopSize <= 0 {
		err := apperror.InvalidArgument("hop_size is shorter than one sample at this sample rate").
			WithDetail("hop_size", cfg.HopSize).
			WithDetail("sample_rate", sr)
		return nil, s.report(err)
	}

	s.threshold = math.Pow(10, cfg.ThresholdDB/20.0)
	s.hopSize = hopSize
	s.winSize = util.Min(util.DivRound(cfg.MinInterval*sr, unitFactor), hopSize*4)
	s.minLength = util.DivRound(cfg.MinLength*sr, unitFactor*hopSize)
	s.minInterval = util.DivRound(cfg.MinInterval*sr, unitFactor*hopSize)
	s.maxSilKept = util.DivRound(cfg.MaxSilKept*sr, unitFactor*hopSize)
	return s, nil
}

func (s *Slicer) Params() Params {
	return Params{
		Threshold:   s.threshold,
		HopSize:     s.hopSize,
		WinSize:     s.winSize,
		MinLength:   s.minLength,
		MinInterval: s.minInterval,
		MaxSilKept:  s.maxSilKept,
	}
}

// Slice partitions an interleaved waveform into markers in frame units.
// The markers are sorted and disjoint; the gaps between them are the
// removed silence. On error no markers are returned. Audio errors leave the
// slicer usable.
func (s *Slicer) Slice(waveform []float32, channels int) ([]model.Marker, error) {
	if s == nil {
		return nil, apperror.InvalidArgument("slicer is not configured")
	}
	if channels <= 0 {
		return nil, s.report(apperror.Audio("Invalid audio channel size!").WithDetail("channels", channels))
	}
	frames := len(waveform) / channels
	if frames <= 0 {
		return nil, s.report(apperror.Audio("Audio is empty!"))
	}

	whole := []model.Marker{{Begin: 0, End: frames}}
	if (frames+s.hopSize-1)/s.hopSize <= s.minLength {
		return whole, nil
	}

	samples := waveform
	if channels > 1 {
		samples = util.ToMono(waveform, channels)
	}
	rmsList := GetRMS(samples, s.winSize, s.hopSize)

	tags := s.silenceTags(rmsList)
	if len(tags) == 0 {
		return whole, nil
	}
	markers := s.markers(tags, len(rmsList), frames)
	if len(markers) == 0 {
		// nothing but silence
		return whole, nil
	}
	return markers, nil
}

// markers turns silence tags into the chunks between them, in samples.
func (s *Slicer) markers(tags []silenceTag, totalFrames, frames int) []model.Marker {
	chunks := make([]model.Marker, 0, len(tags)+1)
	add := func(begin, end int) {
		chunks = append(chunks, model.Marker{
			Begin: begin * s.hopSize,
			End:   util.Min(frames, end*s.hopSize),
		})
	}

	if tags[0].begin > 0 {
		add(0, tags[0].begin)
	}
	for i := 0; i < len(tags)-1; i++ {
		add(tags[i].end, tags[i+1].begin)
	}
	if last := tags[len(tags)-1]; last.end < totalFrames {
		add(last.end, totalFrames)
	}
	return chunks
}

func (s *Slicer) report(err error) error {
	if s.sink != nil {
		s.sink(err)
	}
	return err
}
