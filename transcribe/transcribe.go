// Package transcribe runs audio through the slicer, the model and the
// timeline builder.
package transcribe

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/jsphweid/notescribe/apperror"
	"github.com/jsphweid/notescribe/audio"
	"github.com/jsphweid/notescribe/inference"
	"github.com/jsphweid/notescribe/model"
	"github.com/jsphweid/notescribe/slicer"
	"github.com/jsphweid/notescribe/timeline"
	"github.com/rs/zerolog"
)

const progressInterval = 250 * time.Millisecond

// Pipeline transcribes one waveform at a time. Slicer, Model and Builder are
// required.
type Pipeline struct {
	Slicer  *slicer.Slicer
	Model   inference.Model
	Builder *timeline.Builder

	// Workers bounds the concurrent model calls. 0 means one per CPU.
	Workers int
	// Lenient keeps going when a chunk fails. Failed chunks contribute no
	// notes and are listed in Result.Errors.
	Lenient bool

	// SampleRate, when set, is the only accepted input rate.
	SampleRate int
	// MaxLength, when set, rejects inputs this long or longer.
	MaxLength time.Duration

	OnProgress func(done, total int)
	Logger     *zerolog.Logger
}

// Result is the outcome of a run. Predictions[i] belongs to Markers[i].
type Result struct {
	SampleRate  int
	Markers     []model.Marker
	Predictions []model.Notes
	Events      []model.NoteEvent
	Errors      []error
}

// Session snapshots the run so the timeline can be rebuilt later.
func (r *Result) Session(source string) model.Session {
	return model.Session{
		Source:      source,
		SampleRate:  r.SampleRate,
		Markers:     r.Markers,
		Predictions: r.Predictions,
	}
}

type chunkResult struct {
	index int
	notes model.Notes
	err   error
}

func (p *Pipeline) logger() *zerolog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	nop := zerolog.Nop()
	return &nop
}

func (p *Pipeline) workers(jobs int) int {
	w := p.Workers
	if w <= 0 {
		w = runtime.NumCPU()
	}
	if w > jobs {
		w = jobs
	}
	return w
}

func (p *Pipeline) Run(ctx context.Context, w *audio.Waveform) (*Result, error) {
	if p.Slicer == nil || p.Model == nil || p.Builder == nil {
		return nil, apperror.InvalidArgument("pipeline is missing a slicer, model or timeline builder")
	}
	if w == nil || w.Channels <= 0 {
		return nil, apperror.Audio("no audio")
	}
	if p.MaxLength > 0 {
		if err := w.CheckLength(p.MaxLength); err != nil {
			return nil, err
		}
	}
	if p.SampleRate > 0 {
		if err := w.CheckSampleRate(p.SampleRate); err != nil {
			return nil, err
		}
	}

	mono := w.Mono()
	markers, err := p.Slicer.Slice(mono.Samples, 1)
	if err != nil {
		return nil, err
	}
	if len(markers) == 0 {
		return nil, apperror.Audio("Run slicer failed.")
	}
	p.logger().Debug().Int("chunks", len(markers)).Dur("duration", w.Duration()).Msg("sliced audio")

	predictions, errs, err := p.infer(ctx, mono.Samples, markers)
	if err != nil {
		return nil, err
	}

	res := &Result{
		SampleRate:  w.SampleRate,
		Markers:     markers,
		Predictions: predictions,
	}
	if !p.Lenient {
		res.Events, err = p.Builder.Build(markers, predictions)
		if err != nil {
			return nil, err
		}
		return res, nil
	}

	for _, err := range errs {
		if err != nil {
			res.Errors = append(res.Errors, err)
		}
	}
	events, buildErrs := p.Builder.BuildLenient(markers, predictions)
	res.Events = events
	res.Errors = append(res.Errors, buildErrs...)
	for _, err := range res.Errors {
		p.logger().Warn().Err(err).Msg("skipped chunk")
	}
	return res, nil
}

// infer runs the model over every marker. Results land at the marker's index
// whatever order the workers finish in. A failed chunk leaves empty notes
// behind. Outside lenient mode the first failure stops new chunks from being
// handed out.
func (p *Pipeline) infer(parent context.Context, waveform []float32, markers []model.Marker) ([]model.Notes, []error, error) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	total := len(markers)
	predictions := make([]model.Notes, total)
	errs := make([]error, total)

	jobs := make(chan int)
	results := make(chan chunkResult, total)

	var wg sync.WaitGroup
	for i := 0; i < p.workers(total); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				if err := ctx.Err(); err != nil {
					results <- chunkResult{index: idx, err: err}
					continue
				}
				m := markers[idx]
				notes, err := p.Model.Infer(ctx, waveform, m.Begin, m.Len())
				if err != nil {
					err = fmt.Errorf("chunk %d (frames %d-%d): %w", idx, m.Begin, m.End, err)
				}
				results <- chunkResult{index: idx, notes: notes, err: err}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := range markers {
			select {
			case jobs <- i:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	log := p.logger()
	debounced := debounce.New(progressInterval)
	var firstErr error
	done := 0
	for r := range results {
		done++
		if r.err != nil {
			errs[r.index] = r.err
			predictions[r.index] = model.Notes{Midi: []float32{}, Rest: []bool{}, Dur: []float32{}}
			if firstErr == nil {
				firstErr = r.err
			}
			if !p.Lenient {
				cancel()
			}
		} else {
			predictions[r.index] = r.notes
		}
		if p.OnProgress != nil {
			p.OnProgress(done, total)
		}
		if n := done; n < total {
			debounced(func() {
				log.Info().Int("done", n).Int("total", total).Msg("inferring chunks")
			})
		}
	}
	// drop any pending progress line
	debounced(func() {})

	if err := parent.Err(); err != nil {
		return nil, nil, err
	}
	if !p.Lenient && firstErr != nil {
		return nil, nil, firstErr
	}
	log.Debug().Int("done", done).Int("total", total).Msg("inference finished")
	return predictions, errs, nil
}
