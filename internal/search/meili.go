package search

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
	"github.com/rs/zerolog/log"
)

const idxDiagrams = "diagrams"

// Meili searches and indexes diagram titles via Meilisearch.
type Meili struct {
	client  meili.ServiceManager
	healthy atomic.Bool
	done    chan struct{}
}

// NewMeili creates a Meilisearch client and configures the diagrams index.
// An unreachable server is tolerated; the health loop retries.
func NewMeili(url, apiKey string) *Meili {
	client := meili.New(url, meili.WithAPIKey(apiKey))

	m := &Meili{
		client: client,
		done:   make(chan struct{}),
	}

	if _, err := client.Health(); err != nil {
		log.Warn().Err(err).Str("url", url).Msg("search: meilisearch unavailable")
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndex()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndex() {
	if _, err := m.client.CreateIndex(&meili.IndexConfig{
		Uid:        idxDiagrams,
		PrimaryKey: "id",
	}); err != nil {
		log.Warn().Err(err).Msg("search: create index (may already exist)")
	}

	index := m.client.Index(idxDiagrams)
	filterable := []interface{}{"members"}
	if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
		log.Warn().Err(err).Msg("search: update filterable attrs")
	}
	searchable := []string{"title", "ownerEmail"}
	if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
		log.Warn().Err(err).Msg("search: update searchable attrs")
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				log.Info().Msg("search: meilisearch recovered, reconfiguring index")
				m.configureIndex()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

// Healthy reports whether Meilisearch is reachable.
func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// Search queries the diagrams index, filtered to the caller's diagrams.
func (m *Meili) Search(q Query) ([]Result, error) {
	if !m.healthy.Load() {
		return nil, fmt.Errorf("meilisearch unhealthy")
	}

	limit := int64(q.Limit)
	if limit == 0 {
		limit = 20
	}

	resp, err := m.client.Index(idxDiagrams).Search(q.Text, &meili.SearchRequest{
		Limit:  limit,
		Filter: []string{fmt.Sprintf("members = %q", q.UserID)},
	})
	if err != nil {
		m.healthy.Store(false)
		return nil, fmt.Errorf("meilisearch search: %w", err)
	}

	results := make([]Result, 0, len(resp.Hits))
	for _, hit := range resp.Hits {
		results = append(results, Result{
			ID:         decodeString(hit, "id"),
			Title:      decodeString(hit, "title"),
			OwnerEmail: decodeString(hit, "ownerEmail"),
		})
	}
	return results, nil
}

// IndexDiagram adds or updates a diagram in the search index.
func (m *Meili) IndexDiagram(record Record) error {
	_, err := m.client.Index(idxDiagrams).AddDocuments([]Record{record}, nil)
	return err
}

// DeleteDiagram removes a diagram from the search index.
func (m *Meili) DeleteDiagram(id string) error {
	_, err := m.client.Index(idxDiagrams).DeleteDocument(id, nil)
	return err
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}
