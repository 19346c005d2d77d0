// Package config loads stratconv settings from a YAML file, STRATCONV_*
// environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/quant-king299/stratconv/converr"
	"github.com/quant-king299/stratconv/internal/converter/registry"
)

const (
	configBaseName = "stratconv"
	configFileName = configBaseName + ".yaml"
	envPrefix      = "STRATCONV"

	VariantKey   = "variant"
	MappingKey   = "mapping"
	OutputDirKey = "output_dir"
	ParallelKey  = "parallel"
	ReportKey    = "report"

	LogLevelKey      = "log.level"
	LogFileKey       = "log.file"
	LogMaxSizeKey    = "log.max_size"
	LogMaxBackupsKey = "log.max_backups"
	LogMaxAgeKey     = "log.max_age"
	LogCompressKey   = "log.compress"

	DefaultVariant  = "generic"
	DefaultParallel = 4
	DefaultReport   = "table"

	defaultLogLevel      = "warn"
	defaultLogMaxSize    = 10
	defaultLogMaxBackups = 3
	defaultLogMaxAge     = 28
	defaultLogCompress   = true
)

// Log configures the process logger.
type Log struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	// File enables a rotated JSON log file next to the console output.
	File       string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"max_size" validate:"min=1"`
	MaxBackups int    `mapstructure:"max_backups" validate:"min=0"`
	MaxAge     int    `mapstructure:"max_age" validate:"min=0"`
	Compress   bool   `mapstructure:"compress"`
}

// Config holds the settings shared by every command.
type Config struct {
	Variant string `mapstructure:"variant" validate:"required,variant"`
	// MappingOverride is a YAML or JSON call-mapping override file.
	MappingOverride string `mapstructure:"mapping" validate:"omitempty,file"`
	OutputDir       string `mapstructure:"output_dir"`
	Parallel        int    `mapstructure:"parallel" validate:"min=1,max=64"`
	Report          string `mapstructure:"report" validate:"oneof=table json yaml"`
	Log             Log    `mapstructure:"log"`
}

// New returns a viper instance with defaults and the environment binding
// set. path selects an explicit config file; when empty, stratconv.yaml is
// looked up in the working directory.
func New(path string) *viper.Viper {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configBaseName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	v.SetDefault(VariantKey, DefaultVariant)
	v.SetDefault(MappingKey, "")
	v.SetDefault(OutputDirKey, "")
	v.SetDefault(ParallelKey, DefaultParallel)
	v.SetDefault(ReportKey, DefaultReport)

	v.SetDefault(LogLevelKey, defaultLogLevel)
	v.SetDefault(LogFileKey, "")
	v.SetDefault(LogMaxSizeKey, defaultLogMaxSize)
	v.SetDefault(LogMaxBackupsKey, defaultLogMaxBackups)
	v.SetDefault(LogMaxAgeKey, defaultLogMaxAge)
	v.SetDefault(LogCompressKey, defaultLogCompress)
	return v
}

// Load reads the config file, if any, and decodes and validates the result.
// A missing stratconv.yaml is not an error; a missing explicit file is.
func Load(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || v.ConfigFileUsed() != "" {
			return nil, converr.NewConfigErrorInFile(v.ConfigFileUsed(), "", err.Error())
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, converr.NewConfigErrorInFile(v.ConfigFileUsed(), "", err.Error())
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	val := validator.New()
	_ = val.RegisterValidation("variant", func(fl validator.FieldLevel) bool {
		_, err := registry.Resolve(fl.Field().String())
		return err == nil
	})
	return val
}

// Validate checks field constraints. Every violation is reported as a
// *converr.ConfigError keyed by its config path.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var fields validator.ValidationErrors
	if !errors.As(err, &fields) {
		return converr.NewConfigError(err.Error())
	}

	errs := make([]error, 0, len(fields))
	for _, fe := range fields {
		errs = append(errs, converr.NewConfigErrorFor(keyOf(fe), describe(fe)))
	}
	if len(errs) == 1 {
		return errs[0]
	}
	return &converr.MultiError{Errors: errs}
}

var fieldKeys = map[string]string{
	"Config.Variant":         VariantKey,
	"Config.MappingOverride": MappingKey,
	"Config.Parallel":        ParallelKey,
	"Config.Report":          ReportKey,
	"Config.Log.Level":       LogLevelKey,
	"Config.Log.MaxSize":     LogMaxSizeKey,
	"Config.Log.MaxBackups":  LogMaxBackupsKey,
	"Config.Log.MaxAge":      LogMaxAgeKey,
}

func keyOf(fe validator.FieldError) string {
	if k, ok := fieldKeys[fe.StructNamespace()]; ok {
		return k
	}
	return fe.Field()
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "variant":
		return fmt.Sprintf("unknown variant %q", fe.Value())
	case "file":
		return fmt.Sprintf("file %q does not exist", fe.Value())
	case "oneof":
		return fmt.Sprintf("%v is not one of [%s]", fe.Value(), fe.Param())
	case "min":
		return fmt.Sprintf("%v is below the minimum %s", fe.Value(), fe.Param())
	case "max":
		return fmt.Sprintf("%v is above the maximum %s", fe.Value(), fe.Param())
	}
	return fmt.Sprintf("failed %s validation", fe.Tag())
}
