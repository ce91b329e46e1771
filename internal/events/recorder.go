package events

import (
	"context"
	"sync"
)

type Record struct {
	Topic string
	Key   string
	Event any
}

// Recorder keeps published events in memory. Err, when set, is returned from every
// Publish after recording.
type Recorder struct {
	Err error

	mu      sync.Mutex
	records []Record
}

func (r *Recorder) Publish(_ context.Context, topic, key string, event any) error {
	r.mu.Lock()
	r.records = append(r.records, Record{Topic: topic, Key: key, Event: event})
	r.mu.Unlock()
	return r.Err
}

func (r *Recorder) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Record(nil), r.records...)
}

// Types lists event type names in publish order for records carrying OrderEvent or
// PaymentEvent values.
func (r *Recorder) Types() []string {
	var out []string
	for _, rec := range r.Records() {
		switch e := rec.Event.(type) {
		case OrderEvent:
			out = append(out, e.Type)
		case PaymentEvent:
			out = append(out, e.Type)
		}
	}
	return out
}
