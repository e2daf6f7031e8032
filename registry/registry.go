package registry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"golang.org/x/exp/slices"

	"github.com/caritasnetwork/Caritas/campaign"
	"github.com/caritasnetwork/Caritas/ledger"
	"github.com/caritasnetwork/Caritas/logger"
	"github.com/caritasnetwork/Caritas/reactive"
)

var ErrSubscriptionBufferNotInRange = errors.New("subscription_buffer is not in range of [1 : 1000]")

// Config holds configuration of the campaign Registry.
type Config struct {
	SubscriptionBuffer int `yaml:"subscription_buffer"`
}

// Validate validates the Registry configuration.
func (c Config) Validate() error {
	if c.SubscriptionBuffer < 1 || c.SubscriptionBuffer > 1000 {
		return ErrSubscriptionBufferNotInRange
	}
	return nil
}

// Update carries the cached campaign before and after a refresh.
// Old is nil when the campaign was seen for the first time.
type Update struct {
	Old *campaign.Campaign
	New campaign.Campaign
}

type entry struct {
	c   campaign.Campaign
	seq uint64
}

// Registry is the client side cache of known campaigns.
// Entries are refreshed from ledger reads and their status recomputed
// locally, the locally derived status is advisory until the next read
// confirms it. Each read carries a monotonically increasing sequence
// number assigned at issue time, a read that finishes after a younger
// one never overwrites the younger result.
type Registry struct {
	mux       sync.RWMutex
	reader    ledger.Reader
	campaigns map[uint64]entry
	seq       uint64
	obs       *reactive.Observable[Update]
	log       logger.Logger
	now       func() time.Time
}

// New creates a new empty Registry reading campaigns with the given ledger reader.
func New(cfg Config, reader ledger.Reader, log logger.Logger) (*Registry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Registry{
		reader:    reader,
		campaigns: make(map[uint64]entry),
		obs:       reactive.New[Update](cfg.SubscriptionBuffer),
		log:       log,
		now:       time.Now,
	}, nil
}

// Refresh re-reads the campaign raw fields from the ledger, recomputes the status
// and updates the cached entity. Subscribers receive the old and new entity pair.
// Refresh is idempotent and safe to call concurrently with itself for the same id,
// the read sequence guard drops results of reads that were issued earlier
// but completed later.
func (r *Registry) Refresh(ctx context.Context, id uint64) error {
	seq := r.nextSeq()

	raw, err := r.reader.CampaignInfo(ctx, id)
	if err != nil {
		return err
	}

	reconciled := raw
	reconciled.Status = raw.Derive(r.now())

	r.mux.Lock()
	existing, known := r.campaigns[id]
	if known && existing.seq >= seq {
		r.mux.Unlock()
		r.log.Debug(fmt.Sprintf("registry: dropping stale read %d for campaign %d", seq, id))
		return nil
	}
	r.campaigns[id] = entry{c: reconciled, seq: seq}
	r.mux.Unlock()

	update := Update{New: reconciled}
	if known {
		old := existing.c
		update.Old = &old
	}
	r.obs.Publish(update)
	return nil
}

// SyncAll refreshes every campaign the ledger reports to exist, ids are 1 based.
func (r *Registry) SyncAll(ctx context.Context) error {
	total, err := r.reader.TotalCampaigns(ctx)
	if err != nil {
		return err
	}
	var errs error
	for id := uint64(1); id <= total; id++ {
		if err := r.Refresh(ctx, id); err != nil {
			errs = errors.Join(errs, err)
		}
	}
	return errs
}

// Get returns the cached campaign by id.
func (r *Registry) Get(id uint64) (campaign.Campaign, bool) {
	r.mux.RLock()
	defer r.mux.RUnlock()
	e, ok := r.campaigns[id]
	return e.c, ok
}

// CachedStatus returns the locally derived status of the cached campaign.
func (r *Registry) CachedStatus(id uint64) (campaign.Status, bool) {
	c, ok := r.Get(id)
	return c.Status, ok
}

// List returns all cached campaigns ordered by id ascending,
// the order in which they were created on the ledger.
func (r *Registry) List() []campaign.Campaign {
	r.mux.RLock()
	defer r.mux.RUnlock()
	list := make([]campaign.Campaign, 0, len(r.campaigns))
	for _, e := range r.campaigns {
		list = append(list, e.c)
	}
	slices.SortFunc(list, func(a, b campaign.Campaign) bool { return a.ID < b.ID })
	return list
}

// Subscribe subscribes to cache updates. Cancel the subscriber when done.
func (r *Registry) Subscribe() *reactive.Subscriber[Update] {
	return r.obs.Subscribe()
}

// Close tears the registry down cancelling all subscriptions.
func (r *Registry) Close() {
	r.obs.Close()
}

func (r *Registry) nextSeq() uint64 {
	r.mux.Lock()
	defer r.mux.Unlock()
	if r.seq == math.MaxUint64 {
		// A corrupted counter breaks the stale read guard, there is
		// no safe way to keep serving from this cache.
		r.log.Fatal("registry: read sequence counter overflow")
		panic("registry: read sequence counter overflow")
	}
	r.seq++
	return r.seq
}
