package domain

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"transport-dispatch/internal/apperr"
)

// Phase is the derived state of a dispatch group.
type Phase string

// List of group phases
const (
	PhaseDispatching Phase = "dispatching"
	PhaseAssigned    Phase = "assigned"
	PhaseExhausted   Phase = "exhausted"
)

// State is computed from the member records; it is never stored.
type State struct {
	Phase                 Phase
	ActiveOfferID         string
	ActiveTier            int
	ActiveTierName        string
	AssignedTransporterID string
}

// Group is the set of tier records of one dispatch cycle of an order.
type Group struct {
	OrderID string
	Cycle   int
	Offers  []Offer
}

// NewGroup builds a group ordered by tier rank.
func NewGroup(offers []Offer) *Group {
	g := &Group{Offers: offers}
	sort.SliceStable(g.Offers, func(i, j int) bool { return g.Offers[i].Tier < g.Offers[j].Tier })
	if len(offers) > 0 {
		g.OrderID = offers[0].OrderID
		g.Cycle = offers[0].Cycle
	}
	return g
}

// Find returns a pointer into the group for the given offer, or nil.
func (g *Group) Find(offerID string) *Offer {
	for i := range g.Offers {
		if g.Offers[i].ID == offerID {
			return &g.Offers[i]
		}
	}
	return nil
}

// Active returns the record currently eligible to act, or nil.
func (g *Group) Active() *Offer {
	for i := range g.Offers {
		if g.Offers[i].IsActive {
			return &g.Offers[i]
		}
	}
	return nil
}

// State derives the group phase from its records.
func (g *Group) State() State {
	declined := 0
	for _, o := range g.Offers {
		switch o.Status {
		case StatusAccepted:
			return State{
				Phase:                 PhaseAssigned,
				ActiveTier:            -1,
				AssignedTransporterID: o.TransporterID,
			}
		case StatusDeclined:
			declined++
		}
	}
	if len(g.Offers) > 0 && declined == len(g.Offers) {
		return State{Phase: PhaseExhausted, ActiveTier: -1}
	}
	st := State{Phase: PhaseDispatching, ActiveTier: -1}
	if a := g.Active(); a != nil {
		st.ActiveOfferID = a.ID
		st.ActiveTier = a.Tier
		st.ActiveTierName = a.TierName
	}
	return st
}

// Terminal reports whether the group is assigned or exhausted.
func (g *Group) Terminal() bool {
	return g.State().Phase != PhaseDispatching
}

// Activate makes o the active record and stamps the tier activation time on every record.
func (g *Group) Activate(o *Offer, now time.Time, timeout time.Duration) {
	o.IsActive = true
	at := now
	o.ActivatedAt = &at
	if timeout > 0 {
		exp := now.Add(timeout)
		o.ExpiresAt = &exp
	}
	for i := range g.Offers {
		if g.Offers[i].TierSentAt == nil {
			g.Offers[i].TierSentAt = make(map[string]time.Time, len(g.Offers))
		}
		g.Offers[i].TierSentAt[o.TierName] = now
	}
}

// Accept resolves the group in favour of offerID and supersedes every other pending record.
func (g *Group) Accept(offerID string, now time.Time) error {
	o, err := g.actionable(offerID)
	if err != nil {
		return err
	}
	o.Status = StatusAccepted
	o.IsActive = false
	o.RespondedAt = timePtr(now)

	for i := range g.Offers {
		other := &g.Offers[i]
		if other.ID == offerID {
			continue
		}
		other.IsActive = false
		if other.Status == StatusPending {
			other.Status = StatusDeclined
			other.DeclineReason = ReasonSuperseded
			other.RespondedAt = timePtr(now)
		}
	}
	return nil
}

// Decline resolves offerID as declined and activates the next tier.
// It returns the newly activated record, or nil when the group is exhausted.
func (g *Group) Decline(offerID, reason string, now time.Time, timeout time.Duration) (*Offer, error) {
	o, err := g.actionable(offerID)
	if err != nil {
		return nil, err
	}
	o.Status = StatusDeclined
	o.IsActive = false
	o.DeclineReason = reason
	o.RespondedAt = timePtr(now)

	next := g.nextAfter(o.Tier)
	if next == nil {
		return nil, nil
	}
	g.Activate(next, now, timeout)
	return next, nil
}

// Counter records a counter-offer fee on the active record without resolving it.
func (g *Group) Counter(offerID string, fee decimal.Decimal, now time.Time) error {
	o, err := g.actionable(offerID)
	if err != nil {
		return err
	}
	f := fee
	o.CounterFee = &f
	o.CounteredAt = timePtr(now)
	return nil
}

// actionable returns the record only if it is still pending and active.
func (g *Group) actionable(offerID string) (*Offer, error) {
	o := g.Find(offerID)
	if o == nil {
		return nil, apperr.ErrNotFound
	}
	if o.Status != StatusPending || !o.IsActive {
		return nil, apperr.ErrConflict
	}
	return o, nil
}

// nextAfter returns the first never-activated pending record ranked after rank.
func (g *Group) nextAfter(rank int) *Offer {
	for i := range g.Offers {
		o := &g.Offers[i]
		if o.Tier > rank && o.Status == StatusPending && o.ActivatedAt == nil {
			return o
		}
	}
	return nil
}

// Clone returns a deep copy of the group.
func (g *Group) Clone() *Group {
	out := &Group{OrderID: g.OrderID, Cycle: g.Cycle, Offers: make([]Offer, len(g.Offers))}
	for i, o := range g.Offers {
		out.Offers[i] = o.Clone()
	}
	return out
}

func timePtr(t time.Time) *time.Time { return &t }
