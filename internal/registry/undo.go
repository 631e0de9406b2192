package registry

import (
	"context"
	"errors"

	"giftregistry/api/internal/store"
)

// UndoPublish rolls the published pointer back to the previous entry of the
// history chain. Only the meta document is written; the abandoned version's
// documents stay in the store. It fails with ErrNoUndo when fewer than two
// published versions are recorded.
func (r *Registry) UndoPublish(ctx context.Context) (Meta, error) {
	meta, raw, err := r.load(ctx)
	if err != nil {
		return Meta{}, err
	}
	if len(meta.History) < 2 {
		return Meta{}, ErrNoUndo
	}

	next := meta.withoutLatestPublish(r.now())
	err = r.commitMeta(ctx, raw, next)
	if errors.Is(err, store.ErrPreconditionFailed) {
		return Meta{}, r.lostRace(ctx, meta.Pointers())
	}
	if err != nil {
		return Meta{}, &WriteFailedError{Stage: StageMeta, Version: next.PublishedVersion, Err: err}
	}

	r.log.Info().
		Str("from", string(meta.PublishedVersion)).
		Str("to", string(next.PublishedVersion)).
		Msg("publish undone")
	return next.Clone(), nil
}
