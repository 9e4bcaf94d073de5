package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/cwbudde/algo-oscfx/internal/config"
	"github.com/cwbudde/algo-oscfx/internal/logging"
	"github.com/cwbudde/algo-oscfx/plugin"
)

// app carries state shared by all subcommands once the root pre-run hook has
// loaded settings.
type app struct {
	v          *viper.Viper
	configPath string
	settings   *config.Settings
	log        *slog.Logger
}

func newRootCommand() *cobra.Command {
	a := &app{v: config.New()}

	root := &cobra.Command{
		Use:           "oscfx",
		Short:         "OSC-controlled audio effects",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "YAML settings file")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.String("log-format", logging.FormatText, "log format: text or json")
	pf.String("effect", plugin.KindFilter, fmt.Sprintf("effect variant %v", plugin.Kinds()))
	pf.Int("block-size", 512, "processing block size in frames")

	a.bind("log.level", pf.Lookup("log-level"))
	a.bind("log.format", pf.Lookup("log-format"))
	a.bind("effect", pf.Lookup("effect"))
	a.bind("audio.block_size", pf.Lookup("block-size"))

	root.AddCommand(
		newServeCommand(a),
		newRenderCommand(a),
		newSendCommand(a),
		newAnalyzeCommand(),
		newStagesCommand(),
	)

	return root
}

func (a *app) load(cmd *cobra.Command) error {
	s, err := config.Load(a.v, a.configPath)
	if err != nil {
		return err
	}

	log, err := logging.New(cmd.ErrOrStderr(), s.Log.Level, s.Log.Format)
	if err != nil {
		return err
	}
	slog.SetDefault(log)

	a.settings = s
	a.log = log

	return nil
}

// bind ties a flag to a settings key. Lookup only fails for names this file
// registers, so a failure is a programming error.
func (a *app) bind(key string, flag *pflag.Flag) {
	if err := a.v.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("oscfx: bind %s: %v", key, err))
	}
}

// newEffect builds the configured effect variant.
func (a *app) newEffect(opts ...plugin.Option) (plugin.Effect, error) {
	opts = append([]plugin.Option{plugin.WithLogger(a.log)}, opts...)
	return plugin.New(a.settings.Effect, a.settings.PluginConfig(), opts...)
}
