// Package build provides the logging plumbing shared by every package in
// this module. Each package owns a single package-level btclog.Logger
// (see the per-package log.go files), created at package init by
// NewSubLogger at InfoLevel, until the host application calls UseLogger or
// DisableLog to replace it.
package build

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/btcsuite/btclog"
)

var (
	logWriterMu sync.Mutex
	logWriter   io.Writer = os.Stdout

	registryMu sync.Mutex
	registry   = make(map[string]btclog.Logger)
)

// SetLogWriter redirects every subsystem logger created by NewSubLogger to
// w. Packages that already called UseLogger before this is invoked keep
// their existing backend; call it during process start-up.
func SetLogWriter(w io.Writer) {
	logWriterMu.Lock()
	defer logWriterMu.Unlock()
	logWriter = w
}

// NewSubLogger constructs a subsystem logger writing to the module-wide log
// writer (stdout by default). The returned logger starts at InfoLevel; the
// caller can adjust it via ParseAndSetDebugLevels or logger.SetLevel.
func NewSubLogger(subsystem string) btclog.Logger {
	logWriterMu.Lock()
	w := logWriter
	logWriterMu.Unlock()

	backend := btclog.NewBackend(w)
	logger := backend.Logger(subsystem)
	logger.SetLevel(btclog.LevelInfo)

	registryMu.Lock()
	registry[subsystem] = logger
	registryMu.Unlock()

	return logger
}

// subLogRegistry implements LeveledSubLogger over every subsystem logger
// created so far via NewSubLogger, letting a single debug-level spec from
// the command line or config file reach every package's logger.
type subLogRegistry struct{}

// Registry returns the LeveledSubLogger view of every subsystem logger
// created via NewSubLogger, for use with ParseAndSetDebugLevels.
func Registry() LeveledSubLogger {
	return subLogRegistry{}
}

func (subLogRegistry) SubLoggers() map[string]btclog.Logger {
	registryMu.Lock()
	defer registryMu.Unlock()

	out := make(map[string]btclog.Logger, len(registry))
	for k, v := range registry {
		out[k] = v
	}
	return out
}

func (subLogRegistry) SupportedSubsystems() []string {
	registryMu.Lock()
	defer registryMu.Unlock()

	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	return out
}

func (subLogRegistry) SetLogLevel(subsystemID string, logLevel string) {
	registryMu.Lock()
	logger, ok := registry[subsystemID]
	registryMu.Unlock()
	if !ok {
		return
	}

	level, _ := btclog.LevelFromString(logLevel)
	logger.SetLevel(level)
}

func (r subLogRegistry) SetLogLevels(logLevel string) {
	level, _ := btclog.LevelFromString(logLevel)

	registryMu.Lock()
	defer registryMu.Unlock()
	for _, logger := range registry {
		logger.SetLevel(level)
	}
}

// LeveledSubLogger is implemented by packages that expose one or more named
// subsystem loggers whose levels can be adjusted at runtime.
type LeveledSubLogger interface {
	// SubLoggers returns the map of all registered subsystem loggers.
	SubLoggers() map[string]btclog.Logger

	// SupportedSubsystems returns the names of the supported subsystems.
	SupportedSubsystems() []string

	// SetLogLevel assigns an individual subsystem logger a new log level.
	SetLogLevel(subsystemID string, logLevel string)

	// SetLogLevels assigns all subsystem loggers the same new log level.
	SetLogLevels(logLevel string)
}

// ParseAndSetDebugLevels parses a comma-separated level spec such as
// "debug" or "info,WLLT=debug,CPRM=trace" and applies it to logger.
// Subsystems are named by their registered Subsystem tags.
func ParseAndSetDebugLevels(level string, logger LeveledSubLogger) error {
	levels := strings.Split(level, ",")
	if len(levels) == 0 {
		return fmt.Errorf("invalid log level: %v", level)
	}

	globalLevel := levels[0]
	if !strings.Contains(globalLevel, "=") {
		if !validLogLevel(globalLevel) {
			return fmt.Errorf("the specified debug level [%v] is invalid",
				globalLevel)
		}
		logger.SetLogLevels(globalLevel)
		levels = levels[1:]
	}

	for _, pair := range levels {
		fields := strings.Split(pair, "=")
		if len(fields) != 2 {
			return fmt.Errorf("the specified debug level has an invalid "+
				"format [%v] -- use format subsystem1=level1,"+
				"subsystem2=level2", pair)
		}
		subsysID, logLevel := fields[0], fields[1]

		if _, ok := logger.SubLoggers()[subsysID]; !ok {
			return fmt.Errorf("the specified subsystem [%v] is invalid "+
				"-- supported subsystems are %v", subsysID,
				logger.SupportedSubsystems())
		}
		if !validLogLevel(logLevel) {
			return fmt.Errorf("the specified debug level [%v] is invalid",
				logLevel)
		}
		logger.SetLogLevel(subsysID, logLevel)
	}

	return nil
}

func validLogLevel(logLevel string) bool {
	switch logLevel {
	case "trace", "debug", "info", "warn", "error", "critical", "off":
		return true
	}
	return false
}
