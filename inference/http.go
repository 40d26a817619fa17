package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jsphweid/notescribe/apperror"
	"github.com/jsphweid/notescribe/model"
)

const inferPath = "/infer"

type inferRequest struct {
	SampleRate int       `json:"sample_rate"`
	Samples    []float32 `json:"samples"`
}

// HTTPModel posts chunks to a model sidecar and decodes its
// {note_midi, note_rest, note_dur} answer.
type HTTPModel struct {
	client     *http.Client
	endpoint   string
	sampleRate int
}

func NewHTTPModel(baseURL string, timeout time.Duration, sampleRate int) (*HTTPModel, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, apperror.InvalidArgument(fmt.Sprintf("invalid model url %q", baseURL))
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	return &HTTPModel{
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
		endpoint:   strings.TrimRight(baseURL, "/") + inferPath,
		sampleRate: sampleRate,
	}, nil
}

func (m *HTTPModel) Infer(ctx context.Context, waveform []float32, begin, count int) (model.Notes, error) {
	chunk := Clamp(waveform, begin, count)
	if len(chunk) == 0 {
		return emptyNotes(), nil
	}

	body, err := json.Marshal(inferRequest{SampleRate: m.sampleRate, Samples: chunk})
	if err != nil {
		return model.Notes{}, apperror.Internal(err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(body))
	if err != nil {
		return model.Notes{}, apperror.Internal(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return model.Notes{}, apperror.Inference(err).WithDetail("begin", begin)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return model.Notes{}, apperror.Inference(fmt.Errorf("model answered %d: %s", resp.StatusCode, bytes.TrimSpace(msg))).
			WithDetail("status", resp.StatusCode).
			WithDetail("begin", begin)
	}

	var notes model.Notes
	if err := json.NewDecoder(resp.Body).Decode(&notes); err != nil {
		return model.Notes{}, apperror.Inference(fmt.Errorf("decoding model response: %w", err)).WithDetail("begin", begin)
	}
	return notes, nil
}
