package ingest

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// ObjectStore is the part of the object store the poller needs.
type ObjectStore interface {
	ListDocuments(ctx context.Context, prefix string) ([]string, error)
	GetDocument(ctx context.Context, key string) ([]byte, error)
}

// BucketPoller lists a bucket prefix on an interval and forwards new
// detection documents in key order.
type BucketPoller struct {
	store    ObjectStore
	prefix   string
	interval time.Duration
	gate     *gate
}

func NewBucketPoller(store ObjectStore, prefix string, interval time.Duration, processedCap int) *BucketPoller {
	if interval <= 0 {
		interval = time.Second
	}
	return &BucketPoller{store: store, prefix: prefix, interval: interval, gate: newGate(processedCap)}
}

func (p *BucketPoller) Run(ctx context.Context, out chan<- Record) error {
	slog.Info("polling detection bucket", "prefix", p.prefix, "interval", p.interval)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if err := p.poll(ctx, out); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			slog.Warn("poll detection bucket", "error", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (p *BucketPoller) poll(ctx context.Context, out chan<- Record) error {
	keys, err := p.store.ListDocuments(ctx, p.prefix)
	if err != nil {
		return err
	}
	for _, key := range keys {
		if !strings.HasSuffix(key, ".json") || p.gate.seen(key) {
			continue
		}
		data, err := p.store.GetDocument(ctx, key)
		if err != nil {
			slog.Warn("fetch detection object", "key", key, "error", err)
			continue
		}
		rec, ok := p.gate.admit(key, data)
		if !ok {
			continue
		}
		if err := emit(ctx, out, rec); err != nil {
			return err
		}
	}
	return nil
}
