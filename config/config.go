// Package config parses the wallet's command-line flags and configuration
// file, following the two-pass pattern lnd's own config package uses: a
// pre-parse picks up an alternative config file location, the file fills
// in defaults, and a final command-line parse takes precedence over both.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	flags "github.com/jessevdk/go-flags"

	"github.com/kmels/bitcoincashj/build"
	"github.com/kmels/bitcoincashj/chainparams"
)

const (
	defaultConfigFilename = "bitcoincashj.conf"
	defaultDataDirname    = "data"
	defaultLogLevel       = "info"
	defaultCoin           = "BCH"
)

// defaultAppDir is the base directory holding the config file, per-coin
// data directories, and logs, the same default-location convention lnd's
// DefaultLndDir follows.
var defaultAppDir = build.DefaultAppDir("bitcoincashj")

// Config holds every flag and config-file option the wallet understands.
type Config struct {
	ShowVersion bool `short:"V" long:"version" description:"Display version information and exit"`

	AppDir     string `long:"appdir" description:"The base directory that contains the wallet's data, logs, and configuration file"`
	ConfigFile string `short:"C" long:"configfile" description:"Path to configuration file"`
	DataDir    string `short:"b" long:"datadir" description:"The directory to store per-coin wallet data within"`

	Coin      string `long:"coin" description:"Which coin to operate the wallet on: BTC, tBTC, BCH, or tBCH"`
	AccountID uint32 `long:"account" description:"BIP-47 account index to derive, per m/47'/coin_type'/account'"`

	Seed string `long:"seed" description:"Hex-encoded 32-byte seed to restore the wallet from, deleting any existing SPV chain file; leave empty to load or create a wallet normally"`

	ConnectPeers []string `long:"connect" description:"Add a peer to connect to at wallet start, bypassing DNS seed discovery"`

	DebugLevel string `short:"d" long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- may also specify <global-level>,<subsystem>=<level>,..."`
}

// DefaultConfig returns a Config populated with the wallet's default
// settings, before any config file or command-line flags are applied.
func DefaultConfig() Config {
	return Config{
		AppDir:     defaultAppDir,
		ConfigFile: filepath.Join(defaultAppDir, defaultConfigFilename),
		DataDir:    filepath.Join(defaultAppDir, defaultDataDirname),
		Coin:       defaultCoin,
		DebugLevel: defaultLogLevel,
	}
}

// LoadConfig parses the wallet's configuration: defaults, then the config
// file, then the command line, each layer overriding the last.
func LoadConfig() (*Config, error) {
	preCfg := DefaultConfig()
	if _, err := flags.Parse(&preCfg); err != nil {
		return nil, err
	}

	if preCfg.ShowVersion {
		fmt.Println("bitcoincashj version", build.Version())
		os.Exit(0)
	}

	cfg := preCfg
	if err := flags.IniParse(preCfg.ConfigFile, &cfg); err != nil {
		if _, ok := err.(*flags.IniError); ok {
			return nil, err
		}
		// A missing config file is fine; fall through with defaults
		// plus whatever the pre-parse already picked up.
	}

	if _, err := flags.Parse(&cfg); err != nil {
		return nil, err
	}

	return validate(&cfg)
}

// validate checks the parsed configuration for internal consistency and
// normalizes its paths.
func validate(cfg *Config) (*Config, error) {
	if _, err := chainparams.ByCoin(chainparams.Coin(cfg.Coin)); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	cfg.AppDir = cleanAndExpandPath(cfg.AppDir)
	cfg.DataDir = cleanAndExpandPath(cfg.DataDir)

	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("config: creating data directory: %w", err)
	}

	if err := build.ParseAndSetDebugLevels(cfg.DebugLevel, build.Registry()); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// cleanAndExpandPath expands environment variables and leading ~ in the
// passed path, then cleans the result via filepath.Clean.
func cleanAndExpandPath(path string) string {
	if path == "" {
		return ""
	}

	if path[0] == '~' {
		homeDir := filepath.Clean(os.Getenv("HOME"))
		path = filepath.Join(homeDir, path[1:])
	}

	return filepath.Clean(os.ExpandEnv(path))
}
