package cmd

import (
	"github.com/jsphweid/notescribe/config"
	"github.com/jsphweid/notescribe/logger"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	envFile  string
	logLevel string

	cfg    *config.Config
	appLog zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "notescribe",
	Short: "Transcribes singing into MIDI",
	Long: `notescribe cuts a recording into phrases at its silences, asks a note
prediction model about each phrase and writes the notes to a MIDI file.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(config.LoadOptions{ConfigFile: cfgFile, EnvFile: envFile})
		if err != nil {
			return err
		}
		if logLevel != "" {
			loaded.Log.Level = logLevel
		}
		cfg = loaded
		appLog = logger.New(cfg.Log)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", ".env file (default ./.env when present)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "overrides log.level")
}

func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}
