package cmd

import (
	"github.com/jsphweid/notescribe/config"
	"github.com/jsphweid/notescribe/inference"
	"github.com/jsphweid/notescribe/logger"
	"github.com/jsphweid/notescribe/model"
	"github.com/jsphweid/notescribe/slicer"
	"github.com/jsphweid/notescribe/timeline"
	"github.com/jsphweid/notescribe/transcribe"
	"github.com/jsphweid/notescribe/util"
	"github.com/rs/zerolog"
)

// newSlicer builds a slicer for audio at sampleRate.
func newSlicer(c *config.Config, sampleRate int, log zerolog.Logger) (*slicer.Slicer, error) {
	sc := c.Slicer
	sc.SampleRate = sampleRate
	return slicer.New(sc, slicer.WithErrorSink(func(err error) {
		log.Warn().Err(err).Msg("slicer rejected input")
	}))
}

func newModel(c *config.Config, replay string) (inference.Model, error) {
	if replay != "" {
		session, err := util.ReadBinary[model.Session](replay)
		if err != nil {
			return nil, err
		}
		return inference.NewReplayModel(session)
	}
	return inference.NewHTTPModel(c.Inference.URL, c.Inference.Timeout, c.Slicer.SampleRate)
}

func newPipeline(c *config.Config, m inference.Model, tempo float64, log zerolog.Logger) (*transcribe.Pipeline, error) {
	s, err := newSlicer(c, c.Slicer.SampleRate, log)
	if err != nil {
		return nil, err
	}
	b, err := timeline.NewBuilder(tempo, c.Timeline.TicksPerBeat, c.Slicer.SampleRate)
	if err != nil {
		return nil, err
	}
	pipelineLog := logger.WithComponent(log, "transcribe")
	return &transcribe.Pipeline{
		Slicer:     s,
		Model:      m,
		Builder:    b,
		Workers:    c.Inference.Workers,
		Lenient:    c.Inference.Lenient,
		SampleRate: c.Slicer.SampleRate,
		MaxLength:  c.MaxLength,
		Logger:     &pipelineLog,
	}, nil
}
