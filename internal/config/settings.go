package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Settings are process-level options: where runs are stored, how the
// logger behaves, how fast the scheduler ticks. Scene files never carry
// these.
type Settings struct {
	DataDir  string        `mapstructure:"data_dir"`
	TickRate time.Duration `mapstructure:"tick_rate"`
	Logger   LoggerConfig  `mapstructure:"logger"`
	Server   ServerConfig  `mapstructure:"server"`
	Eval     EvalConfig    `mapstructure:"eval"`
}

type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig names the console color for each log level.
type ColorConfig struct {
	Debug string `mapstructure:"debug" yaml:"debug"`
	Info  string `mapstructure:"info" yaml:"info"`
	Warn  string `mapstructure:"warn" yaml:"warn"`
	Error string `mapstructure:"error" yaml:"error"`
}

type ServerConfig struct {
	Addr       string `mapstructure:"addr"`
	FrameEvery int    `mapstructure:"frame_every"`
}

type EvalConfig struct {
	Workers int `mapstructure:"workers"`
}

// SetDefaults registers the default value of every setting.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", ".policyloop")
	v.SetDefault("tick_rate", "20ms")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "policyloop")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")

	v.SetDefault("server.addr", ":8123")
	v.SetDefault("server.frame_every", 1)

	v.SetDefault("eval.workers", 4)
}

// NewViper returns a viper instance reading policyloop.yaml (or the given
// file) and POLICYLOOP_* environment variables.
func NewViper(file string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("policyloop")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("POLICYLOOP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || file != "" {
			return nil, fmt.Errorf("error reading settings file: %w", err)
		}
	}
	return v, nil
}

func LoadSettings(v *viper.Viper) (*Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal settings: %w", err)
	}
	if s.TickRate <= 0 {
		return nil, fmt.Errorf("tick_rate must be positive, got %s", s.TickRate)
	}
	if s.Eval.Workers < 1 {
		s.Eval.Workers = 1
	}
	if s.Server.FrameEvery < 1 {
		s.Server.FrameEvery = 1
	}
	return &s, nil
}
