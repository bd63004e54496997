package build

import "github.com/btcsuite/btcd/btcutil"

// DefaultAppDir returns the OS-appropriate default application data
// directory for appName, following the same per-platform convention
// (%LOCALAPPDATA%, ~/Library/Application Support, or ~/.appName) that
// btcutil.AppDataDir applies for every btcsuite application.
func DefaultAppDir(appName string) string {
	return btcutil.AppDataDir(appName, false)
}
