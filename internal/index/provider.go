package index

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"invoicematch/internal/catalog"
	"invoicematch/internal/metrics"
)

// EntrySource lists the stored catalog entries.
type EntrySource interface {
	ListEntries(ctx context.Context) ([]catalog.Entry, error)
}

// Provider hands out the active snapshot. Replacing it never affects callers
// still holding the previous one.
type Provider struct {
	current atomic.Pointer[Snapshot]
	group   singleflight.Group
	source  EntrySource
	stores  []Store
	log     *zap.Logger
}

// NewProvider tries stores in order when no snapshot is loaded yet and
// falls back to rebuilding from source.
func NewProvider(source EntrySource, log *zap.Logger, stores ...Store) *Provider {
	return &Provider{source: source, stores: stores, log: log.Named("index")}
}

func (p *Provider) Current(ctx context.Context) (*Snapshot, error) {
	if s := p.current.Load(); s != nil {
		return s, nil
	}
	v, err, _ := p.group.Do("load", func() (interface{}, error) {
		if s := p.current.Load(); s != nil {
			return s, nil
		}
		for _, st := range p.stores {
			s, err := st.Load(ctx)
			if errors.Is(err, ErrSnapshotNotFound) {
				continue
			}
			if err != nil {
				p.log.Warn("load snapshot", zap.String("store", st.Name()), zap.Error(err))
				continue
			}
			metrics.SnapshotLoadsTotal.WithLabelValues(st.Name()).Inc()
			p.swap(s)
			return s, nil
		}
		return p.rebuild(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Snapshot), nil
}

// Refresh rebuilds the snapshot from the stored catalog.
func (p *Provider) Refresh(ctx context.Context) (*Snapshot, error) {
	v, err, _ := p.group.Do("refresh", func() (interface{}, error) {
		return p.rebuild(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Snapshot), nil
}

// Publish builds a snapshot from entries that were just written to the
// catalog and makes it current.
func (p *Provider) Publish(ctx context.Context, entries []catalog.Entry) error {
	s := Build(entries)
	p.swap(s)
	return p.save(ctx, s)
}

// Run refreshes the snapshot every interval until ctx is done.
func (p *Provider) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := p.Refresh(ctx); err != nil {
				p.log.Error("refresh snapshot", zap.Error(err))
			}
		}
	}
}

func (p *Provider) rebuild(ctx context.Context) (*Snapshot, error) {
	entries, err := p.source.ListEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("list catalog entries: %w", err)
	}
	s := Build(entries)
	metrics.SnapshotLoadsTotal.WithLabelValues("rebuild").Inc()
	p.swap(s)
	if err := p.save(ctx, s); err != nil {
		p.log.Warn("persist rebuilt snapshot", zap.Error(err))
	}
	return s, nil
}

func (p *Provider) swap(s *Snapshot) {
	p.current.Store(s)
	metrics.SnapshotDocuments.Set(float64(s.Len()))
	p.log.Info("index snapshot active", zap.Int("documents", s.Len()))
}

func (p *Provider) save(ctx context.Context, s *Snapshot) error {
	var errs []error
	for _, st := range p.stores {
		if err := st.Save(ctx, s); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", st.Name(), err))
		}
	}
	return errors.Join(errs...)
}
