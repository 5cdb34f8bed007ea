package config

import (
	"path/filepath"
	"runtime"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type SchedulerConfig struct {
	MLFQS      bool `mapstructure:"mlfqs"`
	TickHz     int  `mapstructure:"tick_hz"`
	TimeSlice  int  `mapstructure:"time_slice"`
	MaxThreads int  `mapstructure:"max_threads"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
}

type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	Console bool   `mapstructure:"console"`
}

// WorkloadConfig sizes the synthetic threads started at boot so the
// scheduler has something to schedule.
type WorkloadConfig struct {
	Spinners        int `mapstructure:"spinners"`
	SpinnerPriority int `mapstructure:"spinner_priority"`
	Sleepers        int `mapstructure:"sleepers"`
	SleeperPriority int `mapstructure:"sleeper_priority"`
	SleepTicks      int `mapstructure:"sleep_ticks"`
}

type Config struct {
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Workload  WorkloadConfig  `mapstructure:"workload"`
}

var cfg *Config

func GetConfig() *Config {
	return cfg
}

func InitConfig(configName string, configPath string) (Config, error) {
	var c Config
	if configPath != "" {
		viper.AddConfigPath(configPath)
	}
	if configName == "" {
		configName = "config"
	}
	viper.AddConfigPath(GetAbsPath("config"))
	viper.SetConfigName(configName)
	viper.SetConfigType("toml")
	viper.SetEnvPrefix("SCHEDCORE")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults()

	err := viper.ReadInConfig()
	if err != nil {
		// Defaults and environment cover everything; a missing file is fine.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return c, err
		}
	}

	err = viper.Unmarshal(&c)
	if err != nil {
		return c, err
	}
	cfg = &c
	return c, nil
}

func setDefaults() {
	viper.SetDefault("scheduler.mlfqs", false)
	viper.SetDefault("scheduler.tick_hz", 100)
	viper.SetDefault("scheduler.time_slice", 4)
	viper.SetDefault("scheduler.max_threads", 256)
	viper.SetDefault("server.host", ":8080")
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.console", true)
	viper.SetDefault("workload.spinners", 2)
	viper.SetDefault("workload.spinner_priority", 31)
	viper.SetDefault("workload.sleepers", 2)
	viper.SetDefault("workload.sleeper_priority", 40)
	viper.SetDefault("workload.sleep_ticks", 20)
}

// GetAbsPath returns the absolute path by joining the given paths with the project root directory
func GetAbsPath(paths ...string) string {
	_, filePath, _, _ := runtime.Caller(1)
	basePath := filepath.Dir(filePath)
	rootPath := filepath.Join(basePath, "..")
	return filepath.Join(rootPath, filepath.Join(paths...))
}
