// Package config loads run configuration from defaults, an optional config
// file and IMPLANTGEN_* environment variables, in increasing precedence.
package config

import (
	"strings"

	"github.com/spf13/viper"

	"github.com/periospot/implantgen/analysis"
	"github.com/periospot/implantgen/generator"
	"github.com/periospot/implantgen/pkg/errors"
	"github.com/periospot/implantgen/pkg/log"
)

// EnvPrefix prefixes every environment override, e.g. IMPLANTGEN_SEED or
// IMPLANTGEN_SINK_S3_BUCKET.
const EnvPrefix = "IMPLANTGEN"

// Sink kinds.
const (
	SinkFS = "fs"
	SinkS3 = "s3"
)

// Config is the complete run configuration.
type Config struct {
	LogLevel        string `mapstructure:"log_level"`
	LogConsole      bool   `mapstructure:"log_console"`
	MetricsTextfile string `mapstructure:"metrics_textfile"`

	Sink     SinkConfig     `mapstructure:"sink"`
	BoneLoss BoneLossConfig `mapstructure:"bone_loss"`
	Success  SuccessConfig  `mapstructure:"success"`
	Export   ExportConfig   `mapstructure:"export"`
}

// SinkConfig selects where generated tables and reports are written.
type SinkConfig struct {
	Kind string   `mapstructure:"kind"`
	Dir  string   `mapstructure:"dir"`
	S3   S3Config `mapstructure:"s3"`
}

// S3Config configures the S3 sink. Endpoint and PathStyle support MinIO;
// empty credentials fall back to the default AWS chain.
type S3Config struct {
	Bucket          string `mapstructure:"bucket"`
	Prefix          string `mapstructure:"prefix"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	PathStyle       bool   `mapstructure:"path_style"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

// BoneLossConfig holds the generator settings and the analysis options.
type BoneLossConfig struct {
	generator.BoneLossConfig `mapstructure:",squash"`
	Analysis                 analysis.BoneLossOptions `mapstructure:"analysis"`
}

// SuccessConfig holds the generator settings and the analysis options.
type SuccessConfig struct {
	generator.SuccessConfig `mapstructure:",squash"`
	Analysis                analysis.SuccessOptions `mapstructure:"analysis"`
}

// ExportConfig configures the SQLite export.
type ExportConfig struct {
	SQLitePath string `mapstructure:"sqlite_path"`
}

// SetDefaults registers every key with its default so environment
// variables can override keys that appear nowhere else.
func SetDefaults(v *viper.Viper) {
	bl := generator.DefaultBoneLossConfig()
	sc := generator.DefaultSuccessConfig()
	bla := analysis.DefaultBoneLossOptions()
	sca := analysis.DefaultSuccessOptions()

	v.SetDefault("log_level", "info")
	v.SetDefault("log_console", false)
	v.SetDefault("metrics_textfile", "")

	v.SetDefault("sink.kind", SinkFS)
	v.SetDefault("sink.dir", "data")
	v.SetDefault("sink.s3.bucket", "")
	v.SetDefault("sink.s3.prefix", "")
	v.SetDefault("sink.s3.region", "us-east-1")
	v.SetDefault("sink.s3.endpoint", "")
	v.SetDefault("sink.s3.path_style", false)
	v.SetDefault("sink.s3.access_key_id", "")
	v.SetDefault("sink.s3.secret_access_key", "")

	v.SetDefault("bone_loss.cases", bl.Cases)
	v.SetDefault("bone_loss.seed", bl.Seed)
	v.SetDefault("bone_loss.preview_rows", bl.PreviewRows)
	v.SetDefault("bone_loss.missing", missingMaps(bl.Missing))
	v.SetDefault("bone_loss.analysis.test_size", bla.TestSize)
	v.SetDefault("bone_loss.analysis.seed", bla.Seed)
	v.SetDefault("bone_loss.analysis.cv_folds", bla.CVFolds)

	v.SetDefault("success.cases", sc.Cases)
	v.SetDefault("success.seed", sc.Seed)
	v.SetDefault("success.preview_rows", sc.PreviewRows)
	v.SetDefault("success.missing", missingMaps(sc.Missing))
	v.SetDefault("success.analysis.test_size", sca.TestSize)
	v.SetDefault("success.analysis.seed", sca.Seed)
	v.SetDefault("success.analysis.c", sca.C)
	v.SetDefault("success.analysis.cv_folds", sca.CVFolds)

	v.SetDefault("export.sqlite_path", "implantgen.db")
}

func missingMaps(rates []generator.MissingRate) []map[string]any {
	out := make([]map[string]any, len(rates))
	for i, r := range rates {
		out[i] = map[string]any{"column": r.Column, "rate": r.Rate}
	}
	return out
}

// New returns a viper instance with defaults and environment binding set up.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads configFile (if non-empty) into v and decodes the result.
// Flags bound to v before Load take precedence over the file.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", configFile)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every section; generator settings are checked by the
// generators' own Validate.
func (c *Config) Validate() error {
	if _, ok := log.ParseLevel(c.LogLevel); !ok {
		return errors.NewConfigError("config", "log_level", "must be debug, info, warn or error", c.LogLevel)
	}
	switch c.Sink.Kind {
	case SinkFS:
		if c.Sink.Dir == "" {
			return errors.NewConfigError("config.sink", "dir", "required for the fs sink", c.Sink.Dir)
		}
	case SinkS3:
		if c.Sink.S3.Bucket == "" {
			return errors.NewConfigError("config.sink", "s3.bucket", "required for the s3 sink", c.Sink.S3.Bucket)
		}
	default:
		return errors.NewConfigError("config.sink", "kind", "must be \"fs\" or \"s3\"", c.Sink.Kind)
	}
	if err := c.BoneLoss.BoneLossConfig.Validate(); err != nil {
		return err
	}
	if err := c.Success.SuccessConfig.Validate(); err != nil {
		return err
	}
	if ts := c.BoneLoss.Analysis.TestSize; !(ts > 0 && ts < 1) {
		return errors.NewConfigError("config.bone_loss.analysis", "test_size", "must be within (0, 1)", ts)
	}
	if ts := c.Success.Analysis.TestSize; !(ts > 0 && ts < 1) {
		return errors.NewConfigError("config.success.analysis", "test_size", "must be within (0, 1)", ts)
	}
	if c.Success.Analysis.C <= 0 {
		return errors.NewConfigError("config.success.analysis", "c", "must be positive", c.Success.Analysis.C)
	}
	return nil
}

// Level returns the parsed log level; Validate has already rejected
// unknown names.
func (c *Config) Level() log.Level {
	level, _ := log.ParseLevel(c.LogLevel)
	return level
}
