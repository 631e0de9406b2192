package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"giftregistry/api/internal/auth"
	"giftregistry/api/internal/email"
	"giftregistry/api/internal/export"
	"giftregistry/api/internal/logger"
	"giftregistry/api/internal/metrics"
	"giftregistry/api/internal/registry"
	"giftregistry/api/internal/search"
)

// WriteInput is the body of a write request.
type WriteInput struct {
	Mode    string           `json:"mode"`
	Payload *registry.Bundle `json:"payload"`
	Client  *ClientPointers  `json:"client"`
}

// ClientPointers are the versions the editor last loaded.
type ClientPointers struct {
	ExpectedPublishedVersion registry.VersionID `json:"expectedPublishedVersion"`
	ExpectedDraftVersion     registry.VersionID `json:"expectedDraftVersion"`
}

// WriteResult is the success body of a write. Only the version of the
// targeted lineage is set.
type WriteResult struct {
	OK                  bool                `json:"ok"`
	Mode                registry.Mode       `json:"mode"`
	NewDraftVersion     *registry.VersionID `json:"newDraftVersion"`
	NewPublishedVersion *registry.VersionID `json:"newPublishedVersion"`
	Meta                registry.Meta       `json:"meta"`
}

type UndoInput struct {
	Mode string `json:"mode"`
}

const undoPublishMode = "undo_publish"

type Service struct {
	registry *registry.Registry
	verifier *auth.Verifier
	search   *search.Service
	notifier *email.Notifier
	exporter *export.Service
	metrics  *metrics.Metrics
	log      *logger.Logger
}

// Deps are the optional collaborators of the service. A nil Search,
// Notifier or Exporter disables the feature it backs.
type Deps struct {
	Search   *search.Service
	Notifier *email.Notifier
	Exporter *export.Service
	Metrics  *metrics.Metrics
	Log      *logger.Logger
}

func New(reg *registry.Registry, verifier *auth.Verifier, deps Deps) *Service {
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	return &Service{
		registry: reg,
		verifier: verifier,
		search:   deps.Search,
		notifier: deps.Notifier,
		exporter: deps.Exporter,
		metrics:  deps.Metrics,
		log:      deps.Log,
	}
}

// RegistryHooks returns the registry options that feed search indexing,
// publish notices and bootstrap metrics.
func RegistryHooks(deps Deps) []registry.Option {
	return []registry.Option{
		registry.WithPublishHook(func(_ context.Context, id registry.VersionID, bundle registry.Bundle) {
			deps.Search.IndexPublished(string(id), bundle.Gifts)
			if deps.Notifier.Enabled() {
				records, _ := search.GiftRecords(string(id), bundle.Gifts)
				deps.Notifier.Notify(email.PublishNotice{
					Version:     string(id),
					PublishedAt: time.Now(),
					GiftCount:   len(records),
				})
			}
		}),
		registry.WithBootstrapHook(func(registry.Meta) {
			if deps.Metrics != nil {
				deps.Metrics.BootstrapsTotal.Inc()
			}
		}),
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.registry.Ping(ctx)
}

// Authorize checks a bearer token against the configured write secret.
func (s *Service) Authorize(token string) error {
	if err := s.verifier.Verify(token); err != nil {
		if errors.Is(err, auth.ErrNotConfigured) {
			s.log.Warn().Msg("write rejected: no write secret configured")
		}
		return errUnauthorized
	}
	return nil
}

func (s *Service) observeMeta(meta registry.Meta) {
	s.metrics.SetPointers(meta.PublishedVersion.Number(), meta.DraftVersion.Number())
}

func (s *Service) Bundle(ctx context.Context) (registry.BundleView, error) {
	view, err := s.registry.ReadBundle(ctx)
	if err != nil {
		return registry.BundleView{}, err
	}
	s.observeMeta(view.Meta)
	return view, nil
}

// Write validates the request and runs the write protocol.
func (s *Service) Write(ctx context.Context, input WriteInput) (WriteResult, error) {
	mode, err := registry.ParseMode(input.Mode)
	if err != nil {
		s.metrics.RecordWrite("unknown", "invalid")
		return WriteResult{}, err
	}
	if input.Payload == nil || input.Client == nil {
		s.metrics.RecordWrite(string(mode), "invalid")
		return WriteResult{}, errMissingFields
	}

	committed, err := s.registry.Write(ctx, registry.WriteRequest{
		Mode:    mode,
		Payload: *input.Payload,
		Expected: registry.Pointers{
			PublishedVersion: input.Client.ExpectedPublishedVersion,
			DraftVersion:     input.Client.ExpectedDraftVersion,
		},
	})
	if err != nil {
		s.metrics.RecordWrite(string(mode), writeOutcome(err))
		return WriteResult{}, err
	}
	s.metrics.RecordWrite(string(mode), "committed")
	s.observeMeta(committed.Meta)

	result := WriteResult{OK: true, Mode: mode, Meta: committed.Meta}
	id := committed.NewVersion
	if mode == registry.ModePublishLive {
		result.NewPublishedVersion = &id
	} else {
		result.NewDraftVersion = &id
	}
	return result, nil
}

func writeOutcome(err error) string {
	var conflict *registry.ConflictError
	var failed *registry.WriteFailedError
	switch {
	case errors.As(err, &conflict):
		return "conflict"
	case errors.As(err, &failed):
		return "write_failed"
	}
	return "error"
}

// UndoPublish rolls back the latest publish.
func (s *Service) UndoPublish(ctx context.Context, input UndoInput) (registry.Meta, error) {
	if input.Mode != undoPublishMode {
		s.metrics.RecordUndoPublish("invalid")
		return registry.Meta{}, registry.ErrInvalidMode
	}
	meta, err := s.registry.UndoPublish(ctx)
	switch {
	case errors.Is(err, registry.ErrNoUndo):
		s.metrics.RecordUndoPublish("no_undo")
		return registry.Meta{}, err
	case err != nil:
		s.metrics.RecordUndoPublish("error")
		return registry.Meta{}, err
	}
	s.metrics.RecordUndoPublish("ok")
	s.observeMeta(meta)
	s.notifier.Notify(email.PublishNotice{
		Version:     string(meta.PublishedVersion),
		PublishedAt: time.UnixMilli(meta.LastPublishedAt),
		Undo:        true,
	})
	return meta, nil
}

func (s *Service) PublishedVersion(ctx context.Context) (registry.VersionID, error) {
	return s.registry.PublishedVersion(ctx)
}

// PublishedDocument returns one document of the live version by name.
func (s *Service) PublishedDocument(ctx context.Context, name string) (registry.VersionID, json.RawMessage, error) {
	docName, err := registry.ParseDocName(name)
	if err != nil {
		return "", nil, domainError(http.StatusNotFound, "not_found", "Unknown document", nil)
	}
	return s.registry.PublishedDocument(ctx, docName)
}

// Search queries the gifts of the live version.
func (s *Service) Search(ctx context.Context, text string, limit, offset int) (search.Response, error) {
	if !s.search.Enabled() {
		return search.Response{}, search.ErrUnavailable
	}
	version, err := s.registry.PublishedVersion(ctx)
	if err != nil {
		return search.Response{}, err
	}
	return s.search.Search(search.Query{
		Text:    strings.TrimSpace(text),
		Version: string(version),
		Limit:   limit,
		Offset:  offset,
	})
}

// ReindexPublished pushes the live gifts into the search index. It is run at
// startup so an index that missed publishes catches up.
func (s *Service) ReindexPublished(ctx context.Context) error {
	if !s.search.Enabled() {
		return nil
	}
	version, gifts, err := s.registry.PublishedDocument(ctx, registry.DocGifts)
	if err != nil {
		return err
	}
	s.search.IndexPublished(string(version), gifts)
	return nil
}

// Export renders the live version as a printable gift list.
func (s *Service) Export(ctx context.Context, formatName string) (*export.Result, error) {
	if s.exporter == nil {
		return nil, errExportDisabled
	}
	format, err := export.ParseFormat(formatName)
	if err != nil {
		return nil, err
	}
	view, err := s.registry.ReadBundle(ctx)
	if err != nil {
		return nil, err
	}
	return s.exporter.Export(ctx, view.Meta.PublishedVersion, view.Published, format)
}
