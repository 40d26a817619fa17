package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jsphweid/notescribe/apperror"
	"github.com/jsphweid/notescribe/constants"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0666))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(LoadOptions{})
	require.NoError(t, err)

	assert.Equal(t, constants.TargetSampleRate, cfg.Slicer.SampleRate)
	assert.Equal(t, -40.0, cfg.Slicer.ThresholdDB)
	assert.Equal(t, 5000, cfg.Slicer.MinLength)
	assert.Equal(t, 300, cfg.Slicer.MinInterval)
	assert.Equal(t, 20, cfg.Slicer.HopSize)
	assert.Equal(t, 1000, cfg.Slicer.MaxSilKept)

	assert.Equal(t, 120.0, cfg.Timeline.Tempo)
	assert.Equal(t, 480, cfg.Timeline.TicksPerBeat)
	assert.Equal(t, 60*time.Second, cfg.Inference.Timeout)
	assert.Equal(t, 4, cfg.Inference.Workers)
	assert.Equal(t, 20*time.Minute, cfg.MaxLength)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadYAMLThenEnv(t *testing.T) {
	path := writeFile(t, "config.yml", `
timeline:
  tempo: 90
  ticks_per_beat: 960
inference:
  url: http://model:9000
  timeout: 5s
slicer:
  max_sil_kept: 5000
`)
	t.Setenv("NOTESCRIBE_TIMELINE_TEMPO", "100")
	t.Setenv("NOTESCRIBE_INFERENCE_WORKERS", "8")

	cfg, err := Load(LoadOptions{ConfigFile: path})
	require.NoError(t, err)

	assert.Equal(t, 100.0, cfg.Timeline.Tempo, "env wins over the file")
	assert.Equal(t, 960, cfg.Timeline.TicksPerBeat)
	assert.Equal(t, "http://model:9000", cfg.Inference.URL)
	assert.Equal(t, 5*time.Second, cfg.Inference.Timeout)
	assert.Equal(t, 8, cfg.Inference.Workers)
	assert.Equal(t, 5000, cfg.Slicer.MaxSilKept)
}

func TestLoadEnvFile(t *testing.T) {
	path := writeFile(t, "test.env", `
NOTESCRIBE_SERVER_ADDR=:9999
NOTESCRIBE_TIMELINE_TICKS_PER_BEAT=96
NOTESCRIBE_LOG_FORMAT=json
UNRELATED=1
`)
	t.Setenv("NOTESCRIBE_LOG_FORMAT", "console")

	cfg, err := Load(LoadOptions{EnvFile: path})
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.Equal(t, 96, cfg.Timeline.TicksPerBeat)
	assert.Equal(t, "console", cfg.Log.Format, "the environment wins over .env")
	_, set := os.LookupEnv("UNRELATED")
	assert.False(t, set)
}

func TestLoadMissingFiles(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(LoadOptions{ConfigFile: filepath.Join(dir, "nope.yml")})
	assert.True(t, apperror.HasCode(err, apperror.ErrCodeInvalidArgument))

	_, err = Load(LoadOptions{EnvFile: filepath.Join(dir, "nope.env")})
	assert.True(t, apperror.HasCode(err, apperror.ErrCodeNotFound))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		env   map[string]string
		field string
	}{
		{"zero tempo", map[string]string{"NOTESCRIBE_TIMELINE_TEMPO": "0"}, "Config.Timeline.Tempo"},
		{"huge resolution", map[string]string{"NOTESCRIBE_TIMELINE_TICKS_PER_BEAT": "40000"}, "Config.Timeline.TicksPerBeat"},
		{"bad url", map[string]string{"NOTESCRIBE_INFERENCE_URL": "not a url"}, "Config.Inference.URL"},
		{"bad log format", map[string]string{"NOTESCRIBE_LOG_FORMAT": "xml"}, "Config.Log.Format"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load(LoadOptions{})
			require.Error(t, err)
			appErr, ok := apperror.As(err)
			require.True(t, ok)
			assert.Equal(t, apperror.ErrCodeInvalidArgument, appErr.Code)
			assert.Equal(t, tc.field, appErr.Details["field"])
		})
	}
}

func TestValidateSlicerRelations(t *testing.T) {
	t.Setenv("NOTESCRIBE_SLICER_MIN_LENGTH", "100")

	_, err := Load(LoadOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "min_length >= min_interval >= hop_size")
}

func TestEnvName(t *testing.T) {
	assert.Equal(t, "NOTESCRIBE_TIMELINE_TICKS_PER_BEAT", EnvName("timeline.ticks_per_beat"))
	assert.Equal(t, "NOTESCRIBE_OUT_DIR", EnvName("out_dir"))
}
