package config

import (
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/mosaicnetworks/nodekit/src/common"
	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

// Default configuration values.
const (
	DefaultLogLevel         = "info"
	DefaultLogFile          = ""
	DefaultQueueSize        = 10
	DefaultRetryInterval    = 500 * time.Millisecond
	DefaultRetryMultiplier  = 1.0
	DefaultRetryMaxInterval = 0
	DefaultRetryMaxAttempts = 0
	DefaultShutdownTimeout  = 5 * time.Second
	DefaultNoService        = true
	DefaultServiceAddr      = "127.0.0.1:8000"
)

// Config contains all the configuration properties of a node.
type Config struct {
	// DataDir is the top-level directory searched for a nodekit config file.
	DataDir string `mapstructure:"datadir"`

	// LogLevel determines the chattiness of the log output.
	LogLevel string `mapstructure:"log"`

	// LogFile, when set, receives a copy of every log line in plain text.
	// Logs always go to stderr as well; stdout is reserved for envelopes.
	LogFile string `mapstructure:"log-file"`

	// QueueSize is the capacity of the queue between the input reader and the
	// dispatcher. A full queue blocks the reader.
	QueueSize int `mapstructure:"queue-size"`

	// RetryInterval is the delay before the first resend of an unacknowledged
	// request.
	RetryInterval time.Duration `mapstructure:"retry-interval"`

	// RetryMultiplier grows the interval after every resend. 1 keeps the
	// interval fixed.
	RetryMultiplier float64 `mapstructure:"retry-multiplier"`

	// RetryMaxInterval caps the grown interval. 0 means no cap.
	RetryMaxInterval time.Duration `mapstructure:"retry-max-interval"`

	// RetryMaxAttempts caps the number of sends per request, the first one
	// included. 0 means the request is resent until acknowledged.
	RetryMaxAttempts int `mapstructure:"retry-max-attempts"`

	// ShutdownTimeout bounds the time spent waiting for in-flight handlers
	// once the input is closed.
	ShutdownTimeout time.Duration `mapstructure:"shutdown-timeout"`

	// NoService disables the HTTP debug service.
	NoService bool `mapstructure:"no-service"`

	// ServiceAddr is the address:port of the optional HTTP debug service.
	ServiceAddr string `mapstructure:"service-listen"`

	logger *logrus.Logger
}

// NewDefaultConfig returns a config object with default values.
func NewDefaultConfig() *Config {
	config := &Config{
		DataDir:          DefaultDataDir(),
		LogLevel:         DefaultLogLevel,
		LogFile:          DefaultLogFile,
		QueueSize:        DefaultQueueSize,
		RetryInterval:    DefaultRetryInterval,
		RetryMultiplier:  DefaultRetryMultiplier,
		RetryMaxInterval: DefaultRetryMaxInterval,
		RetryMaxAttempts: DefaultRetryMaxAttempts,
		ShutdownTimeout:  DefaultShutdownTimeout,
		NoService:        DefaultNoService,
		ServiceAddr:      DefaultServiceAddr,
	}

	return config
}

// NewTestConfig returns a config object with default values and a special
// logger for debugging tests.
func NewTestConfig(t testing.TB, level logrus.Level) *Config {
	config := NewDefaultConfig()
	config.logger = common.NewTestLogger(t, level)
	return config
}

// Logger returns a formatted logrus Entry, with prefix set to "nodekit". The
// underlying logger writes to stderr, and to LogFile when one is configured.
func (c *Config) Logger() *logrus.Entry {
	if c.logger == nil {
		c.logger = logrus.New()
		c.logger.Out = os.Stderr
		c.logger.Level = LogLevel(c.LogLevel)
		c.logger.Formatter = new(prefixed.TextFormatter)

		if c.LogFile != "" {
			pathMap := lfshook.PathMap{}
			for _, l := range logrus.AllLevels {
				pathMap[l] = c.LogFile
			}
			c.logger.Hooks.Add(lfshook.NewHook(
				pathMap,
				&logrus.TextFormatter{},
			))
		}
	}
	return c.logger.WithField("prefix", "nodekit")
}

// SetLogger overrides the logger returned by Logger.
func (c *Config) SetLogger(logger *logrus.Logger) {
	c.logger = logger
}

// DefaultDataDir return the default directory name for the nodekit config
// file based on the underlying OS, attempting to respect conventions.
func DefaultDataDir() string {
	// Try to place the data folder in the user's home dir
	home := HomeDir()
	if home != "" {
		if runtime.GOOS == "darwin" {
			return filepath.Join(home, ".Nodekit")
		} else if runtime.GOOS == "windows" {
			return filepath.Join(home, "AppData", "Roaming", "Nodekit")
		} else {
			return filepath.Join(home, ".nodekit")
		}
	}
	// As we cannot guess a stable location, return empty and handle later
	return ""
}

// HomeDir returns the user's home directory.
func HomeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if usr, err := user.Current(); err == nil {
		return usr.HomeDir
	}
	return ""
}

// LogLevel parses a string into a Logrus log level.
func LogLevel(l string) logrus.Level {
	switch l {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.DebugLevel
	}
}
