// Package dispatch runs the tiered offer escalation for orders.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"

	"transport-dispatch/internal/apperr"
	"transport-dispatch/internal/domain"
	"transport-dispatch/internal/gateway/notify"
	"transport-dispatch/internal/logx"
	"transport-dispatch/internal/ports/offerstore"
)

// Transition events
const (
	EventCreated   = "created"
	EventAccepted  = "accepted"
	EventDeclined  = "declined"
	EventExpired   = "expired"
	EventEscalated = "escalated"
	EventCountered = "countered"
)

// Outcomes of a dispatch group
const (
	OutcomeAssigned  = "assigned"
	OutcomeExhausted = "exhausted"
)

// Side effect targets
const (
	targetNotify = "notify"
	targetOrders = "orders"
	targetTimer  = "timer"
)

const maxReasonLen = 500

// Config holds engine settings.
type Config struct {
	Tiers            domain.Tiers
	OfferTimeout     time.Duration
	OperationTimeout time.Duration
	SweepBatch       int
}

// Deps are the collaborators of the Service. Ranker and Metrics are optional.
type Deps struct {
	Store    offerstore.Store
	Timers   Timers
	Orders   OrderGateway
	Notifier Notifier
	Ranker   Ranker
	Metrics  Metrics
	Logger   logx.Logger
}

// Service is the dispatch scheduler.
type Service struct {
	store    offerstore.Store
	timers   Timers
	orders   OrderGateway
	notifier Notifier
	ranker   Ranker
	metrics  Metrics
	logger   logx.Logger
	cfg      Config
	now      func() time.Time
	newID    func() string
}

// NewService creates a dispatch Service.
func NewService(d Deps, cfg Config) *Service {
	if len(cfg.Tiers) == 0 {
		cfg.Tiers = domain.DefaultTiers
	}
	if cfg.OfferTimeout <= 0 {
		cfg.OfferTimeout = 5 * time.Minute
	}
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = 3 * time.Second
	}
	if cfg.SweepBatch <= 0 {
		cfg.SweepBatch = 100
	}
	if d.Metrics == nil {
		d.Metrics = nopMetrics{}
	}
	if d.Logger == nil {
		d.Logger = logx.Nop()
	}
	return &Service{
		store:    d.Store,
		timers:   d.Timers,
		orders:   d.Orders,
		notifier: d.Notifier,
		ranker:   d.Ranker,
		metrics:  d.Metrics,
		logger:   d.Logger,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    newULIDGenerator(),
	}
}

// Tiers returns the escalation sequence, rank 0 first.
func (s *Service) Tiers() domain.Tiers {
	return s.cfg.Tiers
}

// WithClock replaces the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// WithIDGenerator replaces the offer id generator.
func (s *Service) WithIDGenerator(fn func() string) *Service {
	if fn != nil {
		s.newID = fn
	}
	return s
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.cfg.OperationTimeout)
}

// clock truncates to the precision kept by Postgres timestamps.
func (s *Service) clock() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func newULIDGenerator() func() string {
	var mu sync.Mutex
	entropy := ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		return ulid.MustNew(ulid.Now(), entropy).String()
	}
}

// Dispatch ranks candidates for the order and opens a dispatch cycle.
func (s *Service) Dispatch(ctx context.Context, orderID, farmerID string) (*domain.Group, error) {
	orderID, farmerID = strings.TrimSpace(orderID), strings.TrimSpace(farmerID)
	if orderID == "" || farmerID == "" {
		return nil, fmt.Errorf("%w: order and farmer ids are required", apperr.ErrInvalid)
	}
	if s.ranker == nil {
		return nil, apperr.ErrRankingUnavailable
	}
	if err := s.ensureNoActiveGroup(ctx, orderID); err != nil {
		return nil, err
	}

	candidates, err := s.ranker.Rank(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("rank candidates for order %q: %w", orderID, err)
	}
	g, err := s.CreateDispatch(ctx, domain.DispatchRequest{
		OrderID:    orderID,
		FarmerID:   farmerID,
		Candidates: candidates,
	})
	if errors.Is(err, apperr.ErrInvalid) {
		// ids were checked above, so only the ranked list can be at fault
		return nil, fmt.Errorf("%w: unusable ranking for order %q: %s", apperr.ErrNoCandidates, orderID, err.Error())
	}
	return g, err
}

// CreateDispatch stores one pending record per candidate and activates the first tier.
func (s *Service) CreateDispatch(ctx context.Context, req domain.DispatchRequest) (*domain.Group, error) {
	req, err := s.validateRequest(req)
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	cycle, err := s.nextCycle(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	offers := make([]domain.Offer, 0, len(req.Candidates))
	for rank, c := range req.Candidates {
		offers = append(offers, domain.Offer{
			ID:            s.newID(),
			OrderID:       req.OrderID,
			FarmerID:      req.FarmerID,
			Cycle:         cycle,
			TransporterID: c.TransporterID,
			Tier:          rank,
			TierName:      s.cfg.Tiers.Name(rank),
			TransportCost: c.ProposedCost,
			Status:        domain.StatusPending,
			OfferedAt:     now,
		})
	}
	g := domain.NewGroup(offers)
	first := &g.Offers[0]
	g.Activate(first, now, s.cfg.OfferTimeout)

	if err := s.store.CreateGroup(ctx, g); err != nil {
		return nil, err
	}

	s.metrics.Transition(EventCreated)
	s.logger.Info("dispatch created",
		logx.String("event", EventCreated),
		logx.String("order_id", g.OrderID),
		logx.String("offer_id", first.ID),
		logx.Int("cycle", cycle),
		logx.Int("tiers", len(g.Offers)),
	)

	s.arm(ctx, *first)
	s.notifyNewOffer(ctx, *first)
	return g.Clone(), nil
}

// Accept resolves the group in favour of the active transporter.
func (s *Service) Accept(ctx context.Context, offerID, transporterID string) (domain.Offer, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if _, err := s.actionable(ctx, offerID, transporterID); err != nil {
		return domain.Offer{}, err
	}

	now := s.clock()
	g, err := s.store.Transition(ctx, offerID, domain.StatusPending, func(g *domain.Group) error {
		return g.Accept(offerID, now)
	})
	if err != nil {
		return domain.Offer{}, mapTransitionErr("accept", offerID, err)
	}
	s.timers.Cancel(offerID)

	accepted := *g.Find(offerID)
	s.metrics.Transition(EventAccepted)
	s.metrics.Outcome(OutcomeAssigned)
	s.logger.Info("offer accepted",
		logx.String("event", EventAccepted),
		logx.String("order_id", accepted.OrderID),
		logx.String("offer_id", accepted.ID),
		logx.String("transporter_id", accepted.TransporterID),
		logx.String("tier", accepted.TierName),
	)

	if err := s.orders.MarkAssigned(ctx, accepted.OrderID, accepted.TransporterID); err != nil {
		s.sideEffectFailed(targetOrders, "mark order assigned failed", accepted, err)
	}
	s.notifyFarmer(ctx, accepted, notify.EventOrderAssigned, map[string]any{
		"transporter_id": accepted.TransporterID,
		"tier":           accepted.TierName,
		"transport_cost": accepted.TransportCost.String(),
	})
	return accepted, nil
}

// Decline resolves the active record as declined and escalates to the next tier.
func (s *Service) Decline(ctx context.Context, offerID, transporterID, reason string) (domain.Offer, error) {
	reason = strings.TrimSpace(reason)
	if len(reason) > maxReasonLen {
		return domain.Offer{}, fmt.Errorf("%w: reason is longer than %d characters", apperr.ErrInvalid, maxReasonLen)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if _, err := s.actionable(ctx, offerID, transporterID); err != nil {
		return domain.Offer{}, err
	}

	declined, next, err := s.decline(ctx, offerID, reason)
	if err != nil {
		return domain.Offer{}, mapTransitionErr("decline", offerID, err)
	}

	s.metrics.Transition(EventDeclined)
	s.logger.Info("offer declined",
		logx.String("event", EventDeclined),
		logx.String("order_id", declined.OrderID),
		logx.String("offer_id", declined.ID),
		logx.String("transporter_id", declined.TransporterID),
		logx.String("tier", declined.TierName),
	)
	s.afterDecline(ctx, declined, next)
	return declined, nil
}

// Expire times out the active record. Resolved, inactive or unknown records are ignored.
func (s *Service) Expire(ctx context.Context, offerID string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	expired, next, err := s.decline(ctx, offerID, domain.ReasonTimeout)
	if err != nil {
		if errors.Is(err, apperr.ErrConflict) || errors.Is(err, apperr.ErrNotFound) {
			s.logger.Debug("stale expiry ignored", logx.String("offer_id", offerID))
			return nil
		}
		return fmt.Errorf("expire offer %q: %w", offerID, err)
	}

	s.metrics.Transition(EventExpired)
	s.logger.Info("offer expired",
		logx.String("event", EventExpired),
		logx.String("order_id", expired.OrderID),
		logx.String("offer_id", expired.ID),
		logx.String("transporter_id", expired.TransporterID),
		logx.String("tier", expired.TierName),
	)
	s.afterDecline(ctx, expired, next)
	return nil
}

// Counter records a counter-offer fee on the active record. The record stays pending.
func (s *Service) Counter(ctx context.Context, offerID, transporterID string, fee decimal.Decimal) (domain.Offer, error) {
	if !domain.ValidMoney(fee) {
		return domain.Offer{}, fmt.Errorf("%w: counter fee must be positive with at most %d decimals", apperr.ErrInvalid, domain.MoneyScale)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if _, err := s.actionable(ctx, offerID, transporterID); err != nil {
		return domain.Offer{}, err
	}

	now := s.clock()
	g, err := s.store.Transition(ctx, offerID, domain.StatusPending, func(g *domain.Group) error {
		return g.Counter(offerID, fee, now)
	})
	if err != nil {
		return domain.Offer{}, mapTransitionErr("counter", offerID, err)
	}

	countered := *g.Find(offerID)
	s.metrics.Transition(EventCountered)
	s.logger.Info("counter offer recorded",
		logx.String("event", EventCountered),
		logx.String("order_id", countered.OrderID),
		logx.String("offer_id", countered.ID),
		logx.String("counter_fee", fee.String()),
	)
	return countered, nil
}

// ListOffersForTransporter returns the transporter's own records.
func (s *Service) ListOffersForTransporter(ctx context.Context, transporterID string, filter domain.StatusFilter) ([]domain.Offer, error) {
	transporterID = strings.TrimSpace(transporterID)
	if transporterID == "" {
		return nil, fmt.Errorf("%w: transporter id is required", apperr.ErrInvalid)
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", apperr.ErrInvalid, filter.Status)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.store.GetByTransporter(ctx, transporterID, filter)
}

// State returns the derived state and the records of the order's latest cycle.
func (s *Service) State(ctx context.Context, orderID string) (domain.State, *domain.Group, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.State{}, nil, fmt.Errorf("%w: order id is required", apperr.ErrInvalid)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	g, err := s.store.GetByOrder(ctx, orderID)
	if err != nil {
		return domain.State{}, nil, err
	}
	return g.State(), g, nil
}

// ExpireOverdue expires active records whose deadline passed without a timer firing.
func (s *Service) ExpireOverdue(ctx context.Context) (int, error) {
	listCtx, cancel := s.withTimeout(ctx)
	overdue, err := s.store.ListOverdue(listCtx, s.clock(), s.cfg.SweepBatch)
	cancel()
	if err != nil {
		return 0, err
	}

	n := 0
	for _, o := range overdue {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		if err := s.Expire(ctx, o.ID); err != nil {
			s.logger.Error("overdue expiry failed", logx.String("offer_id", o.ID), logx.Err(err))
			continue
		}
		n++
	}
	return n, nil
}

// actionable checks ownership, status and activity in that order.
func (s *Service) actionable(ctx context.Context, offerID, transporterID string) (domain.Offer, error) {
	offerID, transporterID = strings.TrimSpace(offerID), strings.TrimSpace(transporterID)
	if offerID == "" || transporterID == "" {
		return domain.Offer{}, fmt.Errorf("%w: offer and transporter ids are required", apperr.ErrInvalid)
	}
	o, err := s.store.Get(ctx, offerID)
	if err != nil {
		return domain.Offer{}, err
	}
	switch {
	case o.TransporterID != transporterID:
		return domain.Offer{}, apperr.ErrForbidden
	case o.Status != domain.StatusPending:
		return domain.Offer{}, apperr.ErrAlreadyResponded
	case !o.IsActive:
		return domain.Offer{}, apperr.ErrNotActive
	}
	return o, nil
}

// decline commits the decline and returns the resolved record and the next active one, if any.
func (s *Service) decline(ctx context.Context, offerID, reason string) (domain.Offer, *domain.Offer, error) {
	now := s.clock()
	var nextID string
	g, err := s.store.Transition(ctx, offerID, domain.StatusPending, func(g *domain.Group) error {
		next, err := g.Decline(offerID, reason, now, s.cfg.OfferTimeout)
		if err != nil {
			return err
		}
		nextID = ""
		if next != nil {
			nextID = next.ID
		}
		return nil
	})
	if err != nil {
		return domain.Offer{}, nil, err
	}
	s.timers.Cancel(offerID)

	resolved := *g.Find(offerID)
	if nextID == "" {
		return resolved, nil, nil
	}
	next := *g.Find(nextID)
	return resolved, &next, nil
}

func (s *Service) afterDecline(ctx context.Context, resolved domain.Offer, next *domain.Offer) {
	if next != nil {
		s.metrics.Transition(EventEscalated)
		s.logger.Info("offer escalated",
			logx.String("event", EventEscalated),
			logx.String("order_id", next.OrderID),
			logx.String("offer_id", next.ID),
			logx.String("transporter_id", next.TransporterID),
			logx.String("tier", next.TierName),
		)
		s.arm(ctx, *next)
		s.notifyNewOffer(ctx, *next)
		return
	}

	s.metrics.Outcome(OutcomeExhausted)
	s.logger.Info("dispatch exhausted",
		logx.String("event", OutcomeExhausted),
		logx.String("order_id", resolved.OrderID),
		logx.String("offer_id", resolved.ID),
	)
	if err := s.orders.MarkUnfulfilled(ctx, resolved.OrderID); err != nil {
		s.sideEffectFailed(targetOrders, "mark order unfulfilled failed", resolved, err)
	}
	s.notifyFarmer(ctx, resolved, notify.EventAllDeclined, nil)
}

func (s *Service) ensureNoActiveGroup(ctx context.Context, orderID string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	_, err := s.nextCycle(ctx, orderID)
	return err
}

// nextCycle returns the cycle number for a new group, or ErrDispatchInProgress.
func (s *Service) nextCycle(ctx context.Context, orderID string) (int, error) {
	g, err := s.store.GetByOrder(ctx, orderID)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return 1, nil
	case err != nil:
		return 0, err
	case !g.Terminal():
		return 0, apperr.ErrDispatchInProgress
	default:
		return g.Cycle + 1, nil
	}
}

func (s *Service) validateRequest(req domain.DispatchRequest) (domain.DispatchRequest, error) {
	req.OrderID = strings.TrimSpace(req.OrderID)
	req.FarmerID = strings.TrimSpace(req.FarmerID)
	if req.OrderID == "" || req.FarmerID == "" {
		return req, fmt.Errorf("%w: order and farmer ids are required", apperr.ErrInvalid)
	}
	if len(req.Candidates) == 0 {
		return req, apperr.ErrNoCandidates
	}

	seen := make(map[string]struct{}, len(req.Candidates))
	candidates := make([]domain.Candidate, 0, len(req.Candidates))
	for i, c := range req.Candidates {
		c.TransporterID = strings.TrimSpace(c.TransporterID)
		if c.TransporterID == "" {
			return req, fmt.Errorf("%w: candidate %d has no transporter id", apperr.ErrInvalid, i)
		}
		if _, dup := seen[c.TransporterID]; dup {
			return req, fmt.Errorf("%w: transporter %q ranked twice", apperr.ErrInvalid, c.TransporterID)
		}
		if !domain.ValidMoney(c.ProposedCost) {
			return req, fmt.Errorf("%w: candidate %d cost must be positive with at most %d decimals", apperr.ErrInvalid, i, domain.MoneyScale)
		}
		seen[c.TransporterID] = struct{}{}
		candidates = append(candidates, c)
	}

	if len(candidates) > len(s.cfg.Tiers) {
		s.logger.Warn("candidates truncated to tier count",
			logx.String("order_id", req.OrderID),
			logx.Int("candidates", len(candidates)),
			logx.Int("tiers", len(s.cfg.Tiers)),
		)
		candidates = candidates[:len(s.cfg.Tiers)]
	}
	req.Candidates = candidates
	return req, nil
}

func (s *Service) arm(ctx context.Context, o domain.Offer) {
	if o.ExpiresAt == nil {
		return
	}
	if err := s.timers.Schedule(ctx, o.ID, *o.ExpiresAt); err != nil {
		// the sweeper still expires the record once it is overdue
		s.sideEffectFailed(targetTimer, "schedule expiry failed", o, err)
	}
}

func (s *Service) notifyNewOffer(ctx context.Context, o domain.Offer) {
	payload := map[string]any{
		"tier":           o.TierName,
		"transport_cost": o.TransportCost.String(),
	}
	if o.ExpiresAt != nil {
		payload["expires_at"] = o.ExpiresAt.Format(time.RFC3339)
	}
	err := s.notifier.NotifyTransporter(ctx, o.TransporterID, newMessage(notify.EventNewOffer, o, payload, s.clock()))
	if err != nil {
		s.sideEffectFailed(targetNotify, "new offer notification failed", o, err)
	}
}

func (s *Service) notifyFarmer(ctx context.Context, o domain.Offer, event string, payload map[string]any) {
	if err := s.notifier.NotifyFarmer(ctx, o.FarmerID, newMessage(event, o, payload, s.clock())); err != nil {
		s.sideEffectFailed(targetNotify, "farmer notification failed", o, err)
	}
}

func (s *Service) sideEffectFailed(target, msg string, o domain.Offer, err error) {
	s.metrics.SideEffectFailure(target)
	s.logger.Error(msg,
		logx.String("order_id", o.OrderID),
		logx.String("offer_id", o.ID),
		logx.Err(err),
	)
}

// mapTransitionErr keeps sentinel errors intact and wraps the rest.
func mapTransitionErr(op, offerID string, err error) error {
	switch {
	case errors.Is(err, apperr.ErrConflict),
		errors.Is(err, apperr.ErrNotFound),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return err
	default:
		return fmt.Errorf("%s offer %q: %w", op, offerID, err)
	}
}

type nopMetrics struct{}

func (nopMetrics) Transition(string)        {}
func (nopMetrics) Outcome(string)           {}
func (nopMetrics) SideEffectFailure(string) {}
