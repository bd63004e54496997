package wallet

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kmels/bitcoincashj/channel"
)

// sidecarTempSuffix names the staging file written alongside the sidecar
// before the atomic rename that publishes it, mirroring how the backup
// file pattern stages in the same directory as its destination.
const sidecarTempSuffix = ".tmp"

// sidecarFile is the on-disk BIP-47 metadata sidecar: a JSON array of
// channel records, rewritten atomically on every mutating call.
type sidecarFile struct {
	path     string
	tempPath string
}

func newSidecarFile(path string) *sidecarFile {
	return &sidecarFile{
		path:     path,
		tempPath: path + sidecarTempSuffix,
	}
}

// Load reads and decodes the sidecar file. A missing file is not an error;
// it is reported as an empty channel set, the shape of a freshly created
// wallet that has never written a sidecar yet.
func (s *sidecarFile) Load() ([]*channel.Channel, error) {
	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("wallet: reading sidecar: %w", err)
	}

	var channels []*channel.Channel
	if err := json.Unmarshal(raw, &channels); err != nil {
		log.Warnf("sidecar %s is corrupt, continuing with an empty channel "+
			"set: %v", s.path, err)
		return nil, nil
	}
	return channels, nil
}

// Save atomically rewrites the sidecar file with the given channel set: it
// writes to a temp file in the same directory, syncs it, closes it, and
// renames it over the destination, so a crash mid-write never leaves a
// half-written sidecar in place.
func (s *sidecarFile) Save(channels []*channel.Channel) error {
	if s.path == "" {
		return fmt.Errorf("wallet: no sidecar path configured")
	}

	encoded, err := json.MarshalIndent(channels, "", "  ")
	if err != nil {
		return fmt.Errorf("wallet: encoding sidecar: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("wallet: creating sidecar directory: %w", err)
	}

	if _, err := os.Stat(s.tempPath); err == nil {
		if err := os.Remove(s.tempPath); err != nil {
			return fmt.Errorf("wallet: removing stale temp sidecar: %w", err)
		}
	}

	tempFile, err := os.OpenFile(
		s.tempPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600,
	)
	if err != nil {
		return fmt.Errorf("wallet: creating temp sidecar: %w", err)
	}

	if _, err := tempFile.Write(encoded); err != nil {
		tempFile.Close()
		return fmt.Errorf("wallet: writing temp sidecar: %w", err)
	}
	if err := tempFile.Sync(); err != nil {
		tempFile.Close()
		return fmt.Errorf("wallet: syncing temp sidecar: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("wallet: closing temp sidecar: %w", err)
	}

	if err := os.Rename(s.tempPath, s.path); err != nil {
		return fmt.Errorf("wallet: swapping sidecar into place: %w", err)
	}
	return nil
}
