package registry

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidMode = errors.New("invalid_mode")
	ErrNoUndo      = errors.New("no_undo")
)

// StageMeta is the write stage reported when the pointer write fails.
const StageMeta = "meta"

// ConflictError means the caller's expected pointers are stale. Server holds
// the pointers the caller must reconcile with before retrying.
type ConflictError struct {
	Expected Pointers
	Server   Pointers
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("version_conflict: expected %s/%s, server has %s/%s",
		e.Expected.PublishedVersion, e.Expected.DraftVersion,
		e.Server.PublishedVersion, e.Server.DraftVersion)
}

// WriteFailedError means the store rejected one write of the protocol. Stage
// is the document name for phase-1 failures and StageMeta for the commit.
// Nothing was committed, so the whole write is safe to retry.
type WriteFailedError struct {
	Stage   string
	Version VersionID
	Err     error
}

func (e *WriteFailedError) Error() string {
	return fmt.Sprintf("write_failed at %s (version %s): %v", e.Stage, e.Version, e.Err)
}

func (e *WriteFailedError) Unwrap() error {
	return e.Err
}
