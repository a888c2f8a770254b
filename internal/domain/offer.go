package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MoneyScale is the number of decimal places stored for costs and fees.
const MoneyScale = 2

var maxMoney = decimal.New(1, 12)

// ValidMoney reports whether d is positive and stored without rounding.
func ValidMoney(d decimal.Decimal) bool {
	return d.IsPositive() && d.LessThan(maxMoney) && d.Equal(d.Truncate(MoneyScale))
}

// Offer is one tier record of a dispatch group: the right of a single
// transporter to take the order's transport job.
type Offer struct {
	ID            string
	OrderID       string
	FarmerID      string
	Cycle         int
	TransporterID string
	Tier          int
	TierName      string
	TransportCost decimal.Decimal
	CounterFee    *decimal.Decimal
	CounteredAt   *time.Time
	Status        OfferStatus
	DeclineReason string
	IsActive      bool
	OfferedAt     time.Time
	RespondedAt   *time.Time
	ActivatedAt   *time.Time
	ExpiresAt     *time.Time
	// TierSentAt holds the activation time of every tier of the group reached so far.
	TierSentAt map[string]time.Time
}

// Clone returns a deep copy so callers never share pointers with a store.
func (o Offer) Clone() Offer {
	c := o
	if o.CounterFee != nil {
		fee := *o.CounterFee
		c.CounterFee = &fee
	}
	c.CounteredAt = cloneTime(o.CounteredAt)
	c.RespondedAt = cloneTime(o.RespondedAt)
	c.ActivatedAt = cloneTime(o.ActivatedAt)
	c.ExpiresAt = cloneTime(o.ExpiresAt)
	if o.TierSentAt != nil {
		c.TierSentAt = make(map[string]time.Time, len(o.TierSentAt))
		for k, v := range o.TierSentAt {
			c.TierSentAt[k] = v
		}
	}
	return c
}

// SentAt returns the activation time of the named tier, if it was reached.
func (o Offer) SentAt(tier string) *time.Time {
	t, ok := o.TierSentAt[tier]
	if !ok {
		return nil
	}
	return &t
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// Candidate is a ranked transporter returned by the ranking provider.
type Candidate struct {
	TransporterID string
	ProposedCost  decimal.Decimal
}

// DispatchRequest asks the engine to open a dispatch cycle for an order.
type DispatchRequest struct {
	OrderID    string
	FarmerID   string
	Candidates []Candidate
}

// StatusFilter narrows a transporter's offer listing. Empty means all statuses.
type StatusFilter struct {
	Status OfferStatus
}
