package config

import (
	"os"
	"strings"

	"github.com/cnotch/xlog"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// EnvLogLevel overrides the configured log level.
const EnvLogLevel = "STREAMVIDEO_LOG_LEVEL"

// LogConfig configures the process logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `toml:"level" yaml:"level"`

	// ToFile tees logs as JSON into a rotated file.
	ToFile   bool   `toml:"tofile" yaml:"tofile"`
	Filename string `toml:"filename" yaml:"filename"`

	// MaxSize is in megabytes.
	MaxSize    int  `toml:"maxsize" yaml:"maxsize"`
	MaxDays    int  `toml:"maxdays" yaml:"maxdays"`
	MaxBackups int  `toml:"maxbackups" yaml:"maxbackups"`
	Compress   bool `toml:"compress" yaml:"compress"`
}

// DefaultLogConfig logs at info to the console only.
func DefaultLogConfig() LogConfig {
	c := LogConfig{}
	c.applyDefaults()
	return c
}

// ApplyEnv applies STREAMVIDEO_LOG_LEVEL.
func (c *LogConfig) ApplyEnv() {
	if lvl := os.Getenv(EnvLogLevel); lvl != "" {
		c.Level = lvl
	}
}

func (c *LogConfig) applyDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Filename == "" {
		c.Filename = "./logs/" + Name + ".log"
	}
	if c.MaxSize == 0 {
		c.MaxSize = 20
	}
	if c.MaxDays == 0 {
		c.MaxDays = 7
	}
	if c.MaxBackups == 0 {
		c.MaxBackups = 14
	}
}

// ParseLevel converts a level name into an xlog.Level.
func ParseLevel(name string) (xlog.Level, error) {
	var lvl xlog.Level
	err := lvl.Set(strings.ToLower(name))
	return lvl, err
}

// InitLogger replaces the global xlog logger: console on stderr, plus a JSON
// file through lumberjack when ToFile is set.
func (c *LogConfig) InitLogger() error {
	c.applyDefaults()
	level, err := ParseLevel(c.Level)
	if err != nil {
		return err
	}

	console := xlog.NewCore(xlog.NewConsoleEncoder(xlog.LstdFlags|xlog.Lmicroseconds|xlog.Llongfile), xlog.Lock(os.Stderr), level)
	if !c.ToFile {
		xlog.ReplaceGlobal(xlog.New(console, xlog.AddCaller()))
		return nil
	}

	fileWriter := &lumberjack.Logger{
		Filename:   c.Filename,
		MaxSize:    c.MaxSize,
		MaxBackups: c.MaxBackups,
		MaxAge:     c.MaxDays,
		LocalTime:  true,
		Compress:   c.Compress,
	}
	xlog.ReplaceGlobal(xlog.New(
		xlog.NewTee(console, xlog.NewCore(xlog.NewJSONEncoder(xlog.Llongfile), fileWriter, level)),
		xlog.AddCaller()))
	return nil
}
