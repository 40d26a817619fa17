package inference

import (
	"context"
	"fmt"

	"github.com/jsphweid/notescribe/apperror"
	"github.com/jsphweid/notescribe/model"
)

// ReplayModel answers with the predictions recorded in a session, looked up
// by the frame range of each marker.
type ReplayModel struct {
	predictions map[model.Marker]model.Notes
}

func NewReplayModel(s model.Session) (*ReplayModel, error) {
	if len(s.Markers) != len(s.Predictions) {
		return nil, apperror.DataIntegrity(fmt.Sprintf("session has %d markers but %d predictions",
			len(s.Markers), len(s.Predictions)))
	}
	res := &ReplayModel{predictions: make(map[model.Marker]model.Notes, len(s.Markers))}
	for i, m := range s.Markers {
		res.predictions[m] = s.Predictions[i]
	}
	return res, nil
}

func (r *ReplayModel) Infer(ctx context.Context, waveform []float32, begin, count int) (model.Notes, error) {
	if err := ctx.Err(); err != nil {
		return model.Notes{}, err
	}
	if len(Clamp(waveform, begin, count)) == 0 {
		return emptyNotes(), nil
	}
	key := model.Marker{Begin: begin, End: begin + count}
	notes, ok := r.predictions[key]
	if !ok {
		return model.Notes{}, apperror.NotFound(fmt.Sprintf("recorded prediction for frames %d-%d", key.Begin, key.End))
	}
	return notes, nil
}
