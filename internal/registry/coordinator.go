package registry

import (
	"context"
	"errors"
	"fmt"

	"giftregistry/api/internal/store"
)

// Mode selects which lineage a write targets.
type Mode string

const (
	ModeSaveDraft   Mode = "save_draft"
	ModePublishLive Mode = "publish_live"
)

// ParseMode accepts the wire name of a write mode.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeSaveDraft, ModePublishLive:
		return m, nil
	}
	return "", ErrInvalidMode
}

func (m Mode) lineage() Lineage {
	if m == ModePublishLive {
		return LineagePublished
	}
	return LineageDraft
}

// WriteRequest is one save or publish. Expected holds the pointers the
// client last observed.
type WriteRequest struct {
	Mode     Mode
	Payload  Bundle
	Expected Pointers
}

// Committed describes a successful write.
type Committed struct {
	Mode       Mode
	NewVersion VersionID
	Meta       Meta
}

type writeStage int

const (
	stageCheckConflict writeStage = iota
	stageWritePhase1
	stageWritePhase2
	stageCommitted
)

func (s writeStage) String() string {
	switch s {
	case stageCheckConflict:
		return "check_conflict"
	case stageWritePhase1:
		return "write_phase1"
	case stageWritePhase2:
		return "write_phase2"
	case stageCommitted:
		return "committed"
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// writeOp carries one write through its stages.
type writeOp struct {
	r       *Registry
	req     WriteRequest
	meta    Meta
	rawMeta []byte
	version VersionID
	next    Meta
}

// Write runs the two-phase protocol: conflict check, the four documents of
// the new version, then the meta pointer. The meta is only replaced after
// every document is stored, so a failure at any stage leaves the current
// pointers untouched. Errors are ErrInvalidMode, *ConflictError or
// *WriteFailedError.
func (r *Registry) Write(ctx context.Context, req WriteRequest) (Committed, error) {
	if _, err := ParseMode(string(req.Mode)); err != nil {
		return Committed{}, err
	}

	meta, raw, err := r.load(ctx)
	if err != nil {
		return Committed{}, err
	}

	op := &writeOp{r: r, req: req, meta: meta, rawMeta: raw}
	stage := stageCheckConflict
	for stage != stageCommitted {
		next, err := op.step(ctx, stage)
		if err != nil {
			r.log.Warn().
				Err(err).
				Str("mode", string(req.Mode)).
				Str("stage", stage.String()).
				Msg("write aborted")
			return Committed{}, err
		}
		stage = next
	}

	r.log.Info().
		Str("mode", string(req.Mode)).
		Str("version", string(op.version)).
		Msg("write committed")

	if req.Mode == ModePublishLive && r.onPublish != nil {
		r.onPublish(ctx, op.version, req.Payload)
	}
	return Committed{Mode: req.Mode, NewVersion: op.version, Meta: op.next.Clone()}, nil
}

func (op *writeOp) step(ctx context.Context, stage writeStage) (writeStage, error) {
	switch stage {
	case stageCheckConflict:
		return op.checkConflict()
	case stageWritePhase1:
		return op.writeDocuments(ctx)
	case stageWritePhase2:
		return op.commit(ctx)
	}
	return stage, fmt.Errorf("unexpected write stage %s", stage)
}

// checkConflict compares both expected pointers and allocates the new id.
func (op *writeOp) checkConflict() (writeStage, error) {
	current := op.meta.Pointers()
	if op.req.Expected != current {
		return stageCheckConflict, &ConflictError{Expected: op.req.Expected, Server: current}
	}

	head := op.meta.DraftVersion
	if op.req.Mode.lineage() == LineagePublished {
		head = op.meta.PublishedVersion
	}
	id, err := head.Next()
	if err != nil {
		return stageCheckConflict, err
	}
	op.version = id
	return stageWritePhase1, nil
}

func (op *writeOp) writeDocuments(ctx context.Context) (writeStage, error) {
	if err := op.r.writeBundle(ctx, op.version, op.req.Payload); err != nil {
		return stageWritePhase1, err
	}
	return stageWritePhase2, nil
}

func (op *writeOp) commit(ctx context.Context) (writeStage, error) {
	now := op.r.now()
	if op.req.Mode == ModePublishLive {
		op.next = op.meta.withPublished(op.version, now)
	} else {
		op.next = op.meta.withDraft(op.version, now)
	}

	err := op.r.commitMeta(ctx, op.rawMeta, op.next)
	if errors.Is(err, store.ErrPreconditionFailed) {
		return stageWritePhase2, op.r.lostRace(ctx, op.req.Expected)
	}
	if err != nil {
		return stageWritePhase2, &WriteFailedError{Stage: StageMeta, Version: op.version, Err: err}
	}
	return stageCommitted, nil
}
