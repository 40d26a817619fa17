package slicer

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/jsphweid/notescribe/apperror"
)

// Config holds the slicer parameters. Durations are in milliseconds.
type Config struct {
	SampleRate  int     `mapstructure:"sample_rate" yaml:"sample_rate" validate:"gt=0"`
	ThresholdDB float64 `mapstructure:"threshold_db" yaml:"threshold_db"`
	MinLength   int     `mapstructure:"min_length" yaml:"min_length" validate:"gtefield=MinInterval"`
	MinInterval int     `mapstructure:"min_interval" yaml:"min_interval" validate:"gtefield=HopSize"`
	HopSize     int     `mapstructure:"hop_size" yaml:"hop_size" validate:"gt=0"`
	MaxSilKept  int     `mapstructure:"max_sil_kept" yaml:"max_sil_kept" validate:"gtefield=HopSize"`
}

func DefaultConfig(sampleRate int) Config {
	return Config{
		SampleRate:  sampleRate,
		ThresholdDB: -40.0,
		MinLength:   5000,
		MinInterval: 300,
		HopSize:     20,
		MaxSilKept:  5000,
	}
}

const relationMessage = "ValueError: The following conditions must be satisfied: " +
	"(min_length >= min_interval >= hop_size) and (max_sil_kept >= hop_size)."

var validate = validator.New()

// Validate reports the first broken constraint as an INVALID_ARGUMENT error.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperror.InvalidArgument("invalid slicer configuration").WithCause(err)
	}
	for _, fe := range verrs {
		if fe.Field() == "SampleRate" {
			return apperror.InvalidArgument("Invalid audio sample rate!").
				WithDetail("sample_rate", c.SampleRate)
		}
	}
	return apperror.InvalidArgument(relationMessage).
		WithDetail("field", verrs[0].Field()).
		WithDetail("constraint", verrs[0].Tag())
}
