// Package audit writes order and payment lifecycle events into an Elasticsearch index
// and reads them back as a per-order history.
package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/google/uuid"

	"github.com/Skotchmaster/marketplace/internal/events"
)

type Entry struct {
	Kind      string    `json:"kind"`
	Type      string    `json:"type"`
	OrderID   string    `json:"order_id"`
	PaymentID string    `json:"payment_id,omitempty"`
	ActorID   string    `json:"actor_id,omitempty"`
	From      string    `json:"from,omitempty"`
	To        string    `json:"to,omitempty"`
	Amount    string    `json:"amount,omitempty"`
	Source    string    `json:"source,omitempty"`
	At        time.Time `json:"at"`
}

type Options struct {
	Addresses []string
	Username  string
	Password  string
}

func NewClient(ctx context.Context, opts Options) (*elasticsearch.Client, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: opts.Addresses,
		Username:  opts.Username,
		Password:  opts.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch: new client: %w", err)
	}

	res, err := client.Info(client.Info.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("elasticsearch: info: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("elasticsearch: info: %s: %s", res.Status(), body)
	}
	return client, nil
}

// Index is an events.Publisher that stores every order and payment event as an
// audit entry.
type Index struct {
	es    *elasticsearch.Client
	index string
}

var _ events.Publisher = (*Index)(nil)

func NewIndex(es *elasticsearch.Client, index string) *Index {
	return &Index{es: es, index: index}
}

// Identifiers must be keywords: under dynamic mapping a UUID is analyzed text and a
// term query on it never matches.
var indexMapping = map[string]any{
	"mappings": map[string]any{
		"properties": map[string]any{
			"kind":       map[string]string{"type": "keyword"},
			"type":       map[string]string{"type": "keyword"},
			"order_id":   map[string]string{"type": "keyword"},
			"payment_id": map[string]string{"type": "keyword"},
			"actor_id":   map[string]string{"type": "keyword"},
			"from":       map[string]string{"type": "keyword"},
			"to":         map[string]string{"type": "keyword"},
			"amount":     map[string]string{"type": "keyword"},
			"source":     map[string]string{"type": "keyword"},
			"at":         map[string]string{"type": "date"},
		},
	},
}

// EnsureIndex creates the index with its mapping. An existing index is left alone.
func (x *Index) EnsureIndex(ctx context.Context) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(indexMapping); err != nil {
		return fmt.Errorf("audit: encode mapping: %w", err)
	}

	res, err := x.es.Indices.Create(
		x.index,
		x.es.Indices.Create.WithBody(&buf),
		x.es.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("audit: create index: %w", err)
	}
	defer res.Body.Close()
	if !res.IsError() {
		return nil
	}

	body, _ := io.ReadAll(res.Body)
	if res.StatusCode == http.StatusBadRequest && strings.Contains(string(body), "resource_already_exists_exception") {
		return nil
	}
	return fmt.Errorf("audit: create index: %s: %s", res.Status(), body)
}

func (x *Index) Publish(ctx context.Context, _ string, _ string, event any) error {
	entry, ok := entryFor(event)
	if !ok {
		return nil
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(entry); err != nil {
		return fmt.Errorf("audit: encode: %w", err)
	}

	res, err := x.es.Index(
		x.index,
		&buf,
		x.es.Index.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("audit: index: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("audit: index: %s", res.Status())
	}
	return nil
}

// History returns the audit entries of one order, oldest first.
func (x *Index) History(ctx context.Context, orderID uuid.UUID, size int) ([]Entry, error) {
	if size <= 0 {
		size = 100
	}
	body := map[string]interface{}{
		// order_id.keyword covers indices created by dynamic mapping.
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"should": []interface{}{
					map[string]interface{}{"term": map[string]interface{}{"order_id": orderID.String()}},
					map[string]interface{}{"term": map[string]interface{}{"order_id.keyword": orderID.String()}},
				},
				"minimum_should_match": 1,
			},
		},
		"sort": []interface{}{
			map[string]interface{}{"at": map[string]string{"order": "asc"}},
		},
		"size": size,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, fmt.Errorf("audit: encode query: %w", err)
	}

	res, err := x.es.Search(
		x.es.Search.WithContext(ctx),
		x.es.Search.WithIndex(x.index),
		x.es.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, fmt.Errorf("audit: search: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("audit: search: %s", res.Status())
	}

	var r struct {
		Hits struct {
			Hits []struct {
				Source Entry `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, fmt.Errorf("audit: decode: %w", err)
	}

	out := make([]Entry, len(r.Hits.Hits))
	for i, hit := range r.Hits.Hits {
		out[i] = hit.Source
	}
	return out, nil
}

func entryFor(event any) (Entry, bool) {
	switch e := event.(type) {
	case events.OrderEvent:
		return Entry{
			Kind:    "order",
			Type:    e.Type,
			OrderID: e.OrderID.String(),
			ActorID: e.ActorID.String(),
			From:    e.From,
			To:      e.To,
			Amount:  e.Total.StringFixed(2),
			At:      e.At,
		}, true
	case events.PaymentEvent:
		return Entry{
			Kind:      "payment",
			Type:      e.Type,
			OrderID:   e.OrderID.String(),
			PaymentID: e.PaymentID.String(),
			ActorID:   e.UserID.String(),
			To:        e.Status,
			Amount:    e.Amount.StringFixed(2),
			Source:    e.Source,
			At:        e.At,
		}, true
	}
	return Entry{}, false
}
