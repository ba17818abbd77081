package search

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Service is the facade that tries Meilisearch first and falls back to a
// Postgres title match.
type Service struct {
	meili *Meili
	pg    *PgTitle
}

// NewService creates a search service. meili may be nil if Meilisearch is not
// configured.
func NewService(meili *Meili, pg *PgTitle) *Service {
	return &Service{meili: meili, pg: pg}
}

// Search tries Meilisearch if healthy, otherwise falls back to Postgres.
func (s *Service) Search(ctx context.Context, q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Query: q.Text}
		}
		log.Warn().Err(err).Msg("search: meilisearch error, falling back to postgres")
	}

	results, err := s.pg.Search(ctx, q)
	if err != nil {
		log.Error().Err(err).Msg("search: postgres title search failed")
		return Response{Results: []Result{}, Query: q.Text}
	}
	return Response{Results: nonNil(results), Query: q.Text}
}

// IndexDiagram indexes a diagram (fire-and-forget to Meilisearch).
func (s *Service) IndexDiagram(record Record) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexDiagram(record); err != nil {
			log.Warn().Err(err).Str("diagram", record.ID).Msg("search: index diagram")
		}
	}()
}

// DeleteDiagram removes a diagram from the search index (fire-and-forget).
func (s *Service) DeleteDiagram(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteDiagram(id); err != nil {
			log.Warn().Err(err).Str("diagram", id).Msg("search: delete diagram")
		}
	}()
}

func nonNil(results []Result) []Result {
	if results == nil {
		return []Result{}
	}
	return results
}
