package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/periospot/implantgen/generator"
	"github.com/periospot/implantgen/internal/config"
	"github.com/periospot/implantgen/internal/sink"
	"github.com/periospot/implantgen/internal/telemetry"
	"github.com/periospot/implantgen/pkg/errors"
	"github.com/periospot/implantgen/pkg/log"
)

// app carries the state shared by every subcommand of one invocation.
type app struct {
	v        *viper.Viper
	cfgFile  string
	cfg      *config.Config
	logger   log.Logger
	runID    string
	recorder *telemetry.Recorder

	// replaced in tests
	newRunID func() string
	openSink func(ctx context.Context, cfg config.SinkConfig) (sink.Store, error)
}

func newApp() *app {
	return &app{
		v:        config.New(),
		recorder: telemetry.NewRecorder(),
		newRunID: func() string { return uuid.NewString() },
		openSink: func(ctx context.Context, cfg config.SinkConfig) (sink.Store, error) {
			return sink.Open(ctx, cfg)
		},
	}
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "implantgen",
		Short:         "Synthetic dental implant datasets and teaching models",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.finish()
		},
	}

	f := rootCmd.PersistentFlags()
	f.StringVar(&a.cfgFile, "config", "", "config file (yaml, json or toml)")
	f.Int64("seed", 42, "random seed for both generators")
	f.Int("cases", 500, "number of cases per dataset")
	f.Int("preview-rows", generator.DefaultBoneLossConfig().PreviewRows, "rows in the bone loss preview table (0 disables it)")
	f.Int("success-preview-rows", generator.DefaultSuccessConfig().PreviewRows, "rows in the implant success preview table (0, the default, disables it)")
	f.String("out", "data", "output directory of the fs sink")
	f.String("sink", config.SinkFS, "output sink: fs or s3")
	f.String("log-level", "info", "log level: debug, info, warn or error")
	f.Bool("log-console", false, "human readable logs instead of JSON")
	f.String("metrics-textfile", "", "write run metrics to this Prometheus textfile")

	// one flag feeds the same setting of both datasets
	bind(a.v, f.Lookup("seed"), "bone_loss.seed", "success.seed")
	bind(a.v, f.Lookup("cases"), "bone_loss.cases", "success.cases")
	bind(a.v, f.Lookup("preview-rows"), "bone_loss.preview_rows")
	bind(a.v, f.Lookup("success-preview-rows"), "success.preview_rows")
	bind(a.v, f.Lookup("out"), "sink.dir")
	bind(a.v, f.Lookup("sink"), "sink.kind")
	bind(a.v, f.Lookup("log-level"), "log_level")
	bind(a.v, f.Lookup("log-console"), "log_console")
	bind(a.v, f.Lookup("metrics-textfile"), "metrics_textfile")

	rootCmd.AddCommand(generateCmd(a))
	rootCmd.AddCommand(analyzeCmd(a))
	rootCmd.AddCommand(exportCmd(a))
	return rootCmd
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.v, a.cfgFile)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.runID = a.newRunID()
	a.logger = log.Setup(log.Options{
		Level:   cfg.Level(),
		Console: cfg.LogConsole,
		Output:  cmd.ErrOrStderr(),
	}).With(log.RunIDKey, a.runID)
	a.logger.Debug("Configuration loaded",
		log.OperationKey, cmd.CommandPath(),
		log.SinkKey, cfg.Sink.Kind,
	)
	return nil
}

func (a *app) finish() error {
	a.recorder.MarkRun(a.runID, strconv.FormatInt(a.cfg.BoneLoss.Seed, 10))
	if a.cfg.MetricsTextfile == "" {
		return nil
	}
	if err := a.recorder.WriteTextfile(a.cfg.MetricsTextfile); err != nil {
		return err
	}
	a.logger.Debug("Metrics written", log.PathKey, a.cfg.MetricsTextfile)
	return nil
}

func (a *app) generatorOptions() []generator.Option {
	return []generator.Option{generator.WithLogger(a.logger)}
}

func (a *app) generateBoneLoss() (*generator.Output, error) {
	g, err := generator.NewBoneLossGenerator(a.cfg.BoneLoss.BoneLossConfig, a.generatorOptions()...)
	if err != nil {
		return nil, err
	}
	out, err := g.Generate()
	if err != nil {
		return nil, err
	}
	a.recorder.ObserveOutput(generator.BoneLossTable, out)
	return out, nil
}

func (a *app) generateSuccess() (*generator.Output, error) {
	g, err := generator.NewSuccessGenerator(a.cfg.Success.SuccessConfig, a.generatorOptions()...)
	if err != nil {
		return nil, err
	}
	out, err := g.Generate()
	if err != nil {
		return nil, err
	}
	a.recorder.ObserveOutput(generator.SuccessTable, out)
	return out, nil
}

// publish writes objects as one batch and reports each written key.
func (a *app) publish(cmd *cobra.Command, seed int64, objects []sink.Object) error {
	ctx := cmd.Context()
	store, err := a.openSink(ctx, a.cfg.Sink)
	if err != nil {
		return err
	}
	start := time.Now()
	infos, err := store.WriteAll(ctx, objects, map[string]string{
		sink.MetaRunID: a.runID,
		sink.MetaSeed:  strconv.FormatInt(seed, 10),
	})
	if err != nil {
		return errors.Wrapf(err, "write to %s", store.Location())
	}
	a.logger.Info("Run published",
		log.SinkKey, store.Driver(),
		log.PathKey, store.Location(),
		log.SamplesKey, len(infos),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	for _, info := range infos {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\n", info.Key, info.Size)
	}
	return nil
}

func bind(v *viper.Viper, flag *pflag.Flag, keys ...string) {
	for _, key := range keys {
		// BindPFlag only fails on a nil flag.
		_ = v.BindPFlag(key, flag)
	}
}
