package undoring

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"giftregistry/api/internal/logger"
)

// FileStore persists a ring as a JSON array of snapshots in one file.
// Persistence is best effort: the ring in memory stays authoritative.
type FileStore struct {
	Path string
	Log  *logger.Logger
}

func (f FileStore) log() *logger.Logger {
	if f.Log == nil {
		return logger.Nop()
	}
	return f.Log
}

// Load returns the persisted ring, or an empty one when the file is missing
// or unreadable.
func (f FileStore) Load(capacity int) *Ring {
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return New(capacity)
	}
	if err != nil {
		f.log().Warn().Err(err).Str("path", f.Path).Msg("undo ring unreadable, starting empty")
		return New(capacity)
	}

	var snapshots []json.RawMessage
	if err := json.Unmarshal(data, &snapshots); err != nil {
		f.log().Warn().Err(err).Str("path", f.Path).Msg("undo ring corrupt, starting empty")
		return New(capacity)
	}
	raw := make([][]byte, len(snapshots))
	for i, s := range snapshots {
		raw[i] = s
	}
	return FromSnapshots(capacity, raw)
}

// Save writes the ring. Failures are logged and swallowed.
func (f FileStore) Save(r *Ring) {
	if err := f.write(r); err != nil {
		f.log().Warn().Err(err).Str("path", f.Path).Msg("undo ring not persisted")
	}
}

func (f FileStore) write(r *Ring) error {
	snapshots := r.Snapshots()
	doc := make([]json.RawMessage, len(snapshots))
	for i, s := range snapshots {
		if !json.Valid(s) {
			return fmt.Errorf("snapshot %d is not JSON", i)
		}
		doc[i] = s
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o755); err != nil {
		return err
	}
	tmp := f.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, f.Path)
}
