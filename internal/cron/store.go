package cron

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
)

const storeVersion = 1

// loadStore reads the job store from disk. A missing file yields an empty
// store; a corrupt file is logged and replaced by an empty store so the
// scheduler keeps running.
func loadStore(path string) Store {
	store := Store{Version: storeVersion}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("cron store unreadable, starting empty", "path", path, "error", err)
		}
		return store
	}

	if err := json.Unmarshal(data, &store); err != nil {
		slog.Warn("cron store corrupt, starting empty", "path", path, "error", err)
		return Store{Version: storeVersion}
	}
	if store.Version == 0 {
		store.Version = storeVersion
	}
	return store
}

// saveStore writes the store atomically (temp file, then rename).
func saveStore(path string, store Store) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(store, "", "  ")
	if err != nil {
		return err
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(path), "jobs-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return err
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return err
	}
	tmpFile.Close()

	if err := os.Rename(tmpPath, path); err != nil {
		return err
	}
	cleanup = false
	return nil
}
