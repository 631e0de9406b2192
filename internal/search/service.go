package search

import (
	"encoding/json"
	"sync"

	"giftregistry/api/internal/logger"
)

// Backend is a search engine that can both index and query.
type Backend interface {
	Searcher
	Indexer
}

// Service is the facade that tries the primary backend first and falls back
// to postgres full-text search when one is configured.
type Service struct {
	primary  Backend
	fallback Searcher
	log      *logger.Logger
	wg       sync.WaitGroup
}

// NewService creates a search service. Either backend may be nil.
func NewService(primary Backend, fallback Searcher, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{primary: primary, fallback: fallback, log: log}
}

// Enabled reports whether any backend is configured.
func (s *Service) Enabled() bool {
	return s != nil && (s.primary != nil || s.fallback != nil)
}

// Search tries the primary backend if healthy, otherwise the fallback.
func (s *Service) Search(q Query) (Response, error) {
	if !s.Enabled() {
		return Response{}, ErrUnavailable
	}
	if s.primary != nil && s.primary.Healthy() {
		results, total, err := s.primary.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text, Version: q.Version}, nil
		}
		s.log.Warn().Err(err).Msg("primary search failed, trying fallback")
	}
	if s.fallback == nil || !s.fallback.Healthy() {
		return Response{}, ErrUnavailable
	}
	results, total, err := s.fallback.Search(q)
	if err != nil {
		s.log.Error().Err(err).Msg("fallback search failed")
		return Response{}, ErrUnavailable
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text, Version: q.Version}, nil
}

// IndexPublished indexes the gifts of a newly published version
// (fire-and-forget). Documents not shaped {"gifts":[...]} are skipped.
func (s *Service) IndexPublished(version string, gifts json.RawMessage) {
	if s == nil || s.primary == nil || !s.primary.Healthy() {
		return
	}
	records, err := GiftRecords(version, gifts)
	if err != nil {
		s.log.Warn().Err(err).Str("version", version).Msg("gifts document not indexable")
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.primary.IndexGifts(records); err != nil {
			s.log.Warn().Err(err).Str("version", version).Msg("index gifts")
			return
		}
		s.log.Debug().Str("version", version).Int("gifts", len(records)).Msg("gifts indexed")
	}()
}

// Wait blocks until in-flight indexing finishes.
func (s *Service) Wait() {
	if s != nil {
		s.wg.Wait()
	}
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
