// Package audio reads and writes the PCM WAV files the transcriber works on.
package audio

import (
	"fmt"
	"io"
	"os"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/jsphweid/notescribe/apperror"
	"github.com/jsphweid/notescribe/model"
	"github.com/jsphweid/notescribe/util"
)

// Waveform holds interleaved samples normalised to [-1, 1].
type Waveform struct {
	Samples    []float32
	Channels   int
	SampleRate int
}

// Frames is the number of samples per channel.
func (w *Waveform) Frames() int {
	if w.Channels <= 0 {
		return 0
	}
	return len(w.Samples) / w.Channels
}

func (w *Waveform) Duration() time.Duration {
	if w.SampleRate <= 0 {
		return 0
	}
	return time.Duration(w.Frames()) * time.Second / time.Duration(w.SampleRate)
}

// Mono returns the waveform averaged down to one channel. A mono waveform is
// returned as a copy.
func (w *Waveform) Mono() *Waveform {
	return &Waveform{
		Samples:    util.ToMono(w.Samples, w.Channels),
		Channels:   1,
		SampleRate: w.SampleRate,
	}
}

// Slice returns the frames covered by m, clamped to the waveform.
func (w *Waveform) Slice(m model.Marker) []float32 {
	frames := w.Frames()
	begin := util.Max(0, util.Min(m.Begin, frames))
	end := util.Max(begin, util.Min(m.End, frames))
	return w.Samples[begin*w.Channels : end*w.Channels]
}

// CheckLength rejects waveforms that are maxLength or longer.
func (w *Waveform) CheckLength(maxLength time.Duration) error {
	if w.Duration() >= maxLength {
		return apperror.Audio(fmt.Sprintf("The audio file is too long (%s), please keep it under %s.",
			w.Duration().Round(time.Second), maxLength)).
			WithDetail("duration", w.Duration().String())
	}
	return nil
}

// CheckSampleRate rejects waveforms that are not at the target rate.
func (w *Waveform) CheckSampleRate(target int) error {
	if w.SampleRate != target {
		return apperror.Audio(fmt.Sprintf("Please convert the sample rate of the audio file to %d Hz first.", target)).
			WithDetail("sample_rate", w.SampleRate)
	}
	return nil
}

// Decode reads a PCM WAV stream.
func Decode(r io.ReadSeeker) (*Waveform, error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		return nil, apperror.Audio("not a valid WAV file")
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, apperror.Audio("error decoding WAV data").WithCause(err)
	}
	if buf.Format == nil || buf.Format.NumChannels <= 0 {
		return nil, apperror.Audio("WAV file has no channels")
	}

	bitDepth := int(d.BitDepth)
	if bitDepth == 0 {
		bitDepth = buf.SourceBitDepth
	}
	samples, err := normalize(buf.Data, bitDepth)
	if err != nil {
		return nil, err
	}
	return &Waveform{
		Samples:    samples,
		Channels:   buf.Format.NumChannels,
		SampleRate: buf.Format.SampleRate,
	}, nil
}

func Load(path string) (*Waveform, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperror.NotFound(path)
		}
		return nil, apperror.Audio(fmt.Sprintf("error opening %s", path)).WithCause(err)
	}
	defer f.Close()
	return Decode(f)
}

// 8 bit WAV is unsigned, everything wider is signed.
func normalize(data []int, bitDepth int) ([]float32, error) {
	if bitDepth <= 0 || bitDepth > 32 {
		return nil, apperror.Audio(fmt.Sprintf("unsupported bit depth %d", bitDepth))
	}
	res := make([]float32, len(data))
	if bitDepth == 8 {
		for i, v := range data {
			res[i] = float32(v-128) / 128
		}
		return res, nil
	}
	scale := float64(int64(1) << (bitDepth - 1))
	for i, v := range data {
		res[i] = float32(float64(v) / scale)
	}
	return res, nil
}

// Encode writes mono samples as 16 bit PCM WAV. Samples outside [-1, 1] are
// clipped.
func Encode(ws io.WriteSeeker, samples []float32, sampleRate int) error {
	e := wav.NewEncoder(ws, sampleRate, 16, 1, 1)
	data := make([]int, len(samples))
	for i, s := range samples {
		s = util.Max(-1, util.Min(s, 1))
		data[i] = int(s * 32767)
	}
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := e.Write(buf); err != nil {
		return apperror.Audio("error encoding WAV data").WithCause(err)
	}
	if err := e.Close(); err != nil {
		return apperror.Audio("error finishing WAV file").WithCause(err)
	}
	return nil
}

// WriteChunk writes samples to a new WAV file at path.
func WriteChunk(path string, samples []float32, sampleRate int) error {
	f, err := os.Create(path)
	if err != nil {
		return apperror.Audio(fmt.Sprintf("error creating %s", path)).WithCause(err)
	}
	if err := Encode(f, samples, sampleRate); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
