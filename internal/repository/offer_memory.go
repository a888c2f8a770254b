package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"transport-dispatch/internal/apperr"
	"transport-dispatch/internal/domain"
	"transport-dispatch/internal/ports/offerstore"
)

// MemoryOfferRepo keeps tier records in process memory.
// Read-modify-write of a group is serialized by a per-order mutex.
type MemoryOfferRepo struct {
	mu      sync.RWMutex
	offers  map[string]domain.Offer
	byOrder map[string][]string
	locks   *xsync.MapOf[string, *sync.Mutex]
}

// NewMemoryOfferRepo creates an empty MemoryOfferRepo.
func NewMemoryOfferRepo() *MemoryOfferRepo {
	return &MemoryOfferRepo{
		offers:  make(map[string]domain.Offer),
		byOrder: make(map[string][]string),
		locks:   xsync.NewMapOf[string, *sync.Mutex](),
	}
}

// Get - returns a record by its ID.
func (r *MemoryOfferRepo) Get(_ context.Context, offerID string) (domain.Offer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.offers[offerID]
	if !ok {
		return domain.Offer{}, apperr.ErrNotFound
	}
	return o.Clone(), nil
}

// GetByOrder - returns the latest cycle of the order ordered by tier.
func (r *MemoryOfferRepo) GetByOrder(_ context.Context, orderID string) (*domain.Group, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	latest := 0
	for _, id := range r.byOrder[orderID] {
		if c := r.offers[id].Cycle; c > latest {
			latest = c
		}
	}
	g := r.groupLocked(orderID, latest)
	if g == nil {
		return nil, apperr.ErrNotFound
	}
	return g, nil
}

// GetByTransporter - returns records that reached the transporter, newest first.
func (r *MemoryOfferRepo) GetByTransporter(_ context.Context, transporterID string, filter domain.StatusFilter) ([]domain.Offer, error) {
	r.mu.RLock()
	out := make([]domain.Offer, 0)
	for _, o := range r.offers {
		if o.TransporterID != transporterID || o.ActivatedAt == nil {
			continue
		}
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		out = append(out, o.Clone())
	}
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].OfferedAt.Equal(out[j].OfferedAt) {
			return out[i].OfferedAt.After(out[j].OfferedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// CreateGroup - inserts all records of a cycle at once.
func (r *MemoryOfferRepo) CreateGroup(_ context.Context, g *domain.Group) error {
	unlock := r.lockOrder(g.OrderID)
	defer unlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range r.byOrder[g.OrderID] {
		if r.offers[id].Cycle == g.Cycle {
			return fmt.Errorf("create group for order %q cycle %d: %w", g.OrderID, g.Cycle, apperr.ErrDispatchInProgress)
		}
	}
	for _, o := range g.Offers {
		if _, exists := r.offers[o.ID]; exists {
			return fmt.Errorf("insert offer %q: %w", o.ID, apperr.ErrConflict)
		}
	}
	for _, o := range g.Offers {
		r.putLocked(o)
	}
	return nil
}

// Save - upserts a single record.
func (r *MemoryOfferRepo) Save(_ context.Context, o domain.Offer) error {
	unlock := r.lockOrder(o.OrderID)
	defer unlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.putLocked(o)
	return nil
}

// Transition - serializes on the order and applies mutate to a copy of the
// group. The copy replaces the stored records only when mutate succeeds.
func (r *MemoryOfferRepo) Transition(ctx context.Context, offerID string, expected domain.OfferStatus, mutate offerstore.Mutation) (*domain.Group, error) {
	current, err := r.Get(ctx, offerID)
	if err != nil {
		return nil, err
	}

	unlock := r.lockOrder(current.OrderID)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	g := r.groupLocked(current.OrderID, current.Cycle)
	r.mu.RUnlock()
	if g == nil {
		return nil, apperr.ErrNotFound
	}

	target := g.Find(offerID)
	if target == nil {
		return nil, apperr.ErrNotFound
	}
	if target.Status != expected || !target.IsActive {
		return nil, apperr.ErrConflict
	}
	if err := mutate(g); err != nil {
		return nil, err
	}

	r.mu.Lock()
	for _, o := range g.Offers {
		r.putLocked(o)
	}
	r.mu.Unlock()
	return g.Clone(), nil
}

// ListOverdue - returns active pending records whose deadline passed.
func (r *MemoryOfferRepo) ListOverdue(_ context.Context, now time.Time, limit int) ([]domain.Offer, error) {
	r.mu.RLock()
	out := make([]domain.Offer, 0)
	for _, o := range r.offers {
		if o.IsActive && o.Status == domain.StatusPending && o.ExpiresAt != nil && !o.ExpiresAt.After(now) {
			out = append(out, o.Clone())
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(*out[j].ExpiresAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryOfferRepo) lockOrder(orderID string) func() {
	m, _ := r.locks.LoadOrCompute(orderID, func() *sync.Mutex { return &sync.Mutex{} })
	m.Lock()
	return m.Unlock
}

func (r *MemoryOfferRepo) putLocked(o domain.Offer) {
	if _, exists := r.offers[o.ID]; !exists {
		r.byOrder[o.OrderID] = append(r.byOrder[o.OrderID], o.ID)
	}
	r.offers[o.ID] = o.Clone()
}

func (r *MemoryOfferRepo) groupLocked(orderID string, cycle int) *domain.Group {
	var offers []domain.Offer
	for _, id := range r.byOrder[orderID] {
		if o := r.offers[id]; o.Cycle == cycle {
			offers = append(offers, o.Clone())
		}
	}
	if len(offers) == 0 {
		return nil
	}
	return domain.NewGroup(offers)
}

var (
	_ offerstore.Store = (*MemoryOfferRepo)(nil)
	_ offerstore.Store = (*OfferRepo)(nil)
)
