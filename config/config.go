// Package config loads notescribe settings from defaults, an optional YAML
// file, an optional .env file and NOTESCRIBE_ environment variables, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/jsphweid/notescribe/apperror"
	"github.com/jsphweid/notescribe/constants"
	"github.com/jsphweid/notescribe/logger"
	"github.com/jsphweid/notescribe/slicer"
	"github.com/spf13/viper"
)

const EnvPrefix = "NOTESCRIBE"

type TimelineConfig struct {
	Tempo        float64 `yaml:"tempo" mapstructure:"tempo" validate:"gt=0"`
	TicksPerBeat int     `yaml:"ticks_per_beat" mapstructure:"ticks_per_beat" validate:"gt=0,lte=32767"`
}

type InferenceConfig struct {
	URL     string        `yaml:"url" mapstructure:"url" validate:"required,url"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout" validate:"gte=0"`
	// 0 means one worker per CPU
	Workers int  `yaml:"workers" mapstructure:"workers" validate:"gte=0"`
	Lenient bool `yaml:"lenient" mapstructure:"lenient"`
}

type ServerConfig struct {
	Addr           string   `yaml:"addr" mapstructure:"addr" validate:"required"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	// MaxBodyBytes caps uploaded WAV files.
	MaxBodyBytes int64 `yaml:"max_body_bytes" mapstructure:"max_body_bytes" validate:"gt=0"`
}

type Config struct {
	Slicer    slicer.Config   `yaml:"slicer" mapstructure:"slicer"`
	Timeline  TimelineConfig  `yaml:"timeline" mapstructure:"timeline"`
	Inference InferenceConfig `yaml:"inference" mapstructure:"inference"`
	Log       logger.Config   `yaml:"log" mapstructure:"log"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	OutDir    string          `yaml:"out_dir" mapstructure:"out_dir" validate:"required"`
	// MaxLength rejects inputs this long or longer.
	MaxLength time.Duration `yaml:"max_length" mapstructure:"max_length" validate:"gt=0"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("slicer.sample_rate", constants.TargetSampleRate)
	v.SetDefault("slicer.threshold_db", constants.SliceThresholdDB)
	v.SetDefault("slicer.min_length", constants.SliceMinLength)
	v.SetDefault("slicer.min_interval", constants.SliceMinInterval)
	v.SetDefault("slicer.hop_size", constants.SliceHopSize)
	v.SetDefault("slicer.max_sil_kept", constants.SliceMaxSilKept)

	v.SetDefault("timeline.tempo", constants.DefaultTempo)
	v.SetDefault("timeline.ticks_per_beat", constants.DefaultTicksPerBeat)

	v.SetDefault("inference.url", "http://localhost:8000")
	v.SetDefault("inference.timeout", "60s")
	v.SetDefault("inference.workers", 4)
	v.SetDefault("inference.lenient", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", logger.FormatConsole)
	v.SetDefault("log.output", "stderr")
	v.SetDefault("log.no_color", false)
	v.SetDefault("log.timestamp", true)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.max_body_bytes", 512<<20)

	v.SetDefault("out_dir", constants.GetOutDir())
	v.SetDefault("max_length", constants.MaxAllowedLength*time.Second)
}

// EnvName returns the environment variable that overrides a config key,
// e.g. timeline.ticks_per_beat -> NOTESCRIBE_TIMELINE_TICKS_PER_BEAT.
func EnvName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

type LoadOptions struct {
	// ConfigFile is read when set. A missing file is an error.
	ConfigFile string
	// EnvFile is read when set. Otherwise ./.env is read if it exists.
	EnvFile string
}

func Load(opts LoadOptions) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, apperror.InvalidArgument(fmt.Sprintf("failed to read config file %s", opts.ConfigFile)).WithCause(err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := loadEnvFile(v, opts.EnvFile); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, apperror.InvalidArgument("failed to decode configuration").WithCause(err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadEnvFile applies .env entries that the real environment does not
// already set.
func loadEnvFile(v *viper.Viper, path string) error {
	explicit := path != ""
	if !explicit {
		path = ".env"
	}
	if _, err := os.Stat(path); err != nil {
		if explicit {
			return apperror.NotFound(path)
		}
		return nil
	}
	entries, err := godotenv.Read(path)
	if err != nil {
		return apperror.InvalidArgument(fmt.Sprintf("failed to read env file %s", path)).WithCause(err)
	}

	keys := make(map[string]string)
	for _, key := range v.AllKeys() {
		keys[EnvName(key)] = key
	}
	for name, value := range entries {
		key, ok := keys[name]
		if !ok {
			continue
		}
		if _, set := os.LookupEnv(name); set {
			continue
		}
		v.Set(key, value)
	}
	return nil
}

var validate = validator.New()

// Validate checks field constraints and the slicer parameter relations.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fe := verrs[0]
			if strings.HasPrefix(fe.Namespace(), "Config.Slicer.") {
				return c.Slicer.Validate()
			}
			return apperror.InvalidArgument(fmt.Sprintf("invalid configuration: %s failed %q", fe.Namespace(), fe.Tag())).
				WithDetail("field", fe.Namespace())
		}
		return apperror.InvalidArgument("invalid configuration").WithCause(err)
	}
	return nil
}
