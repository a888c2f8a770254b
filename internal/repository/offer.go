package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"transport-dispatch/internal/apperr"
	"transport-dispatch/internal/domain"
	"transport-dispatch/internal/ports/offerstore"
)

const offerColumns = `offer_id, order_id, farmer_id, cycle, transporter_id, tier, tier_name,
	transport_cost::text, counter_fee::text, countered_at, status, decline_reason, is_active,
	offered_at, responded_at, activated_at, expires_at, tier_sent_at`

// RetryPolicy bounds retries of transactions aborted by lock contention.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

var defaultRetryPolicy = RetryPolicy{MaxAttempts: 4, BaseDelay: 10 * time.Millisecond, MaxDelay: 200 * time.Millisecond}

// OfferRepo stores tier records in Postgres.
type OfferRepo struct {
	db    *pgxpool.Pool
	retry RetryPolicy
}

// NewOfferRepo creates a new OfferRepo.
func NewOfferRepo(db *pgxpool.Pool) *OfferRepo {
	return &OfferRepo{db: db, retry: defaultRetryPolicy}
}

// WithRetryPolicy overrides the contention retry policy.
func (r *OfferRepo) WithRetryPolicy(p RetryPolicy) *OfferRepo {
	if p.MaxAttempts > 0 {
		r.retry = p
	}
	return r
}

// Get - returns a record by its ID.
func (r *OfferRepo) Get(ctx context.Context, offerID string) (domain.Offer, error) {
	row := r.db.QueryRow(ctx, `SELECT `+offerColumns+` FROM transport_offers WHERE offer_id = $1`, offerID)
	o, err := scanOffer(row)
	if err != nil {
		if IsNotFound(err) {
			return domain.Offer{}, apperr.ErrNotFound
		}
		return domain.Offer{}, fmt.Errorf("get offer %q: %w", offerID, err)
	}
	return o, nil
}

// GetByOrder - returns the latest cycle of the order ordered by tier.
func (r *OfferRepo) GetByOrder(ctx context.Context, orderID string) (*domain.Group, error) {
	rows, err := r.db.Query(ctx, `
        SELECT `+offerColumns+`
        FROM transport_offers
        WHERE order_id = $1
          AND cycle = (SELECT max(cycle) FROM transport_offers WHERE order_id = $1)
        ORDER BY tier
    `, orderID)
	if err != nil {
		return nil, fmt.Errorf("get offers by order %q: %w", orderID, err)
	}
	offers, err := collectOffers(rows)
	if err != nil {
		return nil, fmt.Errorf("get offers by order %q: %w", orderID, err)
	}
	if len(offers) == 0 {
		return nil, apperr.ErrNotFound
	}
	return domain.NewGroup(offers), nil
}

// GetByTransporter - returns records that reached the transporter, newest first.
func (r *OfferRepo) GetByTransporter(ctx context.Context, transporterID string, filter domain.StatusFilter) ([]domain.Offer, error) {
	q := `SELECT ` + offerColumns + `
        FROM transport_offers
        WHERE transporter_id = $1 AND activated_at IS NOT NULL`
	args := []any{transporterID}
	if filter.Status != "" {
		q += fmt.Sprintf(" AND status = $%d", len(args)+1)
		args = append(args, string(filter.Status))
	}
	q += ` ORDER BY offered_at DESC, tier`

	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list offers of transporter %q: %w", transporterID, err)
	}
	offers, err := collectOffers(rows)
	if err != nil {
		return nil, fmt.Errorf("list offers of transporter %q: %w", transporterID, err)
	}
	return offers, nil
}

// CreateGroup - inserts all records of a cycle in one transaction.
func (r *OfferRepo) CreateGroup(ctx context.Context, g *domain.Group) error {
	err := r.withTx(ctx, func(tx pgx.Tx) error {
		for _, o := range g.Offers {
			if err := insertOffer(ctx, tx, o); err != nil {
				return err
			}
		}
		return nil
	})
	if IsDuplicate(err) {
		return fmt.Errorf("create group for order %q cycle %d: %w", g.OrderID, g.Cycle, apperr.ErrDispatchInProgress)
	}
	return err
}

// Save - upserts a single record.
func (r *OfferRepo) Save(ctx context.Context, o domain.Offer) error {
	args, err := offerArgs(o)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `
        INSERT INTO transport_offers (
            offer_id, order_id, farmer_id, cycle, transporter_id, tier, tier_name,
            transport_cost, counter_fee, countered_at, status, decline_reason, is_active,
            offered_at, responded_at, activated_at, expires_at, tier_sent_at
        ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8::numeric,$9::numeric,$10,$11,$12,$13,$14,$15,$16,$17,$18::jsonb)
        ON CONFLICT (offer_id) DO UPDATE SET
            counter_fee    = EXCLUDED.counter_fee,
            countered_at   = EXCLUDED.countered_at,
            status         = EXCLUDED.status,
            decline_reason = EXCLUDED.decline_reason,
            is_active      = EXCLUDED.is_active,
            responded_at   = EXCLUDED.responded_at,
            activated_at   = EXCLUDED.activated_at,
            expires_at     = EXCLUDED.expires_at,
            tier_sent_at   = EXCLUDED.tier_sent_at
    `, args...)
	if err != nil {
		return fmt.Errorf("save offer %q: %w", o.ID, err)
	}
	return nil
}

// Transition - locks the group owning offerID, checks the target record and
// applies mutate. Contention aborts are retried.
func (r *OfferRepo) Transition(ctx context.Context, offerID string, expected domain.OfferStatus, mutate offerstore.Mutation) (*domain.Group, error) {
	var (
		out     *domain.Group
		lastErr error
	)
	for attempt := 1; attempt <= r.retry.MaxAttempts; attempt++ {
		lastErr = r.withTx(ctx, func(tx pgx.Tx) error {
			g, err := transitionTx(ctx, tx, offerID, expected, mutate)
			out = g
			return err
		})
		if lastErr == nil {
			return out, nil
		}
		if !IsTransient(lastErr) || attempt == r.retry.MaxAttempts {
			break
		}
		if !sleepWithContext(ctx, backoff(r.retry.BaseDelay, r.retry.MaxDelay, attempt)) {
			break
		}
	}
	return nil, lastErr
}

// ListOverdue - returns active pending records whose deadline passed.
func (r *OfferRepo) ListOverdue(ctx context.Context, now time.Time, limit int) ([]domain.Offer, error) {
	rows, err := r.db.Query(ctx, `
        SELECT `+offerColumns+`
        FROM transport_offers
        WHERE is_active AND status = 'pending' AND expires_at <= $1
        ORDER BY expires_at
        LIMIT $2
    `, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list overdue offers: %w", err)
	}
	offers, err := collectOffers(rows)
	if err != nil {
		return nil, fmt.Errorf("list overdue offers: %w", err)
	}
	return offers, nil
}

func transitionTx(ctx context.Context, tx pgx.Tx, offerID string, expected domain.OfferStatus, mutate offerstore.Mutation) (*domain.Group, error) {
	var (
		orderID string
		cycle   int
	)
	err := tx.QueryRow(ctx, `SELECT order_id, cycle FROM transport_offers WHERE offer_id = $1`, offerID).Scan(&orderID, &cycle)
	if err != nil {
		if IsNotFound(err) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("locate offer %q: %w", offerID, err)
	}

	rows, err := tx.Query(ctx, `
        SELECT `+offerColumns+`
        FROM transport_offers
        WHERE order_id = $1 AND cycle = $2
        ORDER BY tier
        FOR UPDATE
    `, orderID, cycle)
	if err != nil {
		return nil, fmt.Errorf("lock group of order %q: %w", orderID, err)
	}
	offers, err := collectOffers(rows)
	if err != nil {
		return nil, fmt.Errorf("lock group of order %q: %w", orderID, err)
	}

	g := domain.NewGroup(offers)
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

	for _, o := range g.Offers {
		if err := updateOffer(ctx, tx, o); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func insertOffer(ctx context.Context, tx pgx.Tx, o domain.Offer) error {
	args, err := offerArgs(o)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
        INSERT INTO transport_offers (
            offer_id, order_id, farmer_id, cycle, transporter_id, tier, tier_name,
            transport_cost, counter_fee, countered_at, status, decline_reason, is_active,
            offered_at, responded_at, activated_at, expires_at, tier_sent_at
        ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8::numeric,$9::numeric,$10,$11,$12,$13,$14,$15,$16,$17,$18::jsonb)
    `, args...)
	if err != nil {
		return fmt.Errorf("insert offer %q: %w", o.ID, err)
	}
	return nil
}

func updateOffer(ctx context.Context, tx pgx.Tx, o domain.Offer) error {
	sentAt, err := encodeSentAt(o.TierSentAt)
	if err != nil {
		return err
	}
	ct, err := tx.Exec(ctx, `
        UPDATE transport_offers
        SET counter_fee    = $2::numeric,
            countered_at   = $3,
            status         = $4,
            decline_reason = $5,
            is_active      = $6,
            responded_at   = $7,
            activated_at   = $8,
            expires_at     = $9,
            tier_sent_at   = $10::jsonb
        WHERE offer_id = $1
    `, o.ID, decimalArg(o.CounterFee), o.CounteredAt, string(o.Status), o.DeclineReason, o.IsActive,
		o.RespondedAt, o.ActivatedAt, o.ExpiresAt, sentAt)
	if err != nil {
		return fmt.Errorf("update offer %q: %w", o.ID, err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("update offer %q: %w", o.ID, apperr.ErrNotFound)
	}
	return nil
}

func offerArgs(o domain.Offer) ([]any, error) {
	sentAt, err := encodeSentAt(o.TierSentAt)
	if err != nil {
		return nil, err
	}
	return []any{
		o.ID, o.OrderID, o.FarmerID, o.Cycle, o.TransporterID, o.Tier, o.TierName,
		o.TransportCost.String(), decimalArg(o.CounterFee), o.CounteredAt, string(o.Status), o.DeclineReason, o.IsActive,
		o.OfferedAt, o.RespondedAt, o.ActivatedAt, o.ExpiresAt, sentAt,
	}, nil
}

func encodeSentAt(m map[string]time.Time) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encode tier activation times: %w", err)
	}
	return string(b), nil
}

func decimalArg(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

func scanOffer(row pgx.Row) (domain.Offer, error) {
	var (
		o          domain.Offer
		cost       string
		counterFee *string
		status     string
		sentAt     []byte
	)
	err := row.Scan(
		&o.ID, &o.OrderID, &o.FarmerID, &o.Cycle, &o.TransporterID, &o.Tier, &o.TierName,
		&cost, &counterFee, &o.CounteredAt, &status, &o.DeclineReason, &o.IsActive,
		&o.OfferedAt, &o.RespondedAt, &o.ActivatedAt, &o.ExpiresAt, &sentAt,
	)
	if err != nil {
		return domain.Offer{}, err
	}
	o.Status = domain.OfferStatus(status)
	if o.TransportCost, err = decimal.NewFromString(cost); err != nil {
		return domain.Offer{}, fmt.Errorf("decode transport cost: %w", err)
	}
	if counterFee != nil {
		fee, err := decimal.NewFromString(*counterFee)
		if err != nil {
			return domain.Offer{}, fmt.Errorf("decode counter fee: %w", err)
		}
		o.CounterFee = &fee
	}
	if len(sentAt) > 0 {
		if err := json.Unmarshal(sentAt, &o.TierSentAt); err != nil {
			return domain.Offer{}, fmt.Errorf("decode tier activation times: %w", err)
		}
	}
	return o, nil
}

func collectOffers(rows pgx.Rows) ([]domain.Offer, error) {
	defer rows.Close()
	out := make([]domain.Offer, 0, 4)
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// withTx opens a transaction and executes fn within it.
func (r *OfferRepo) withTx(ctx context.Context, fn func(tx pgx.Tx) error) (err error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return fmt.Errorf("rollback tx: %w (original error: %s)", rbErr, err.Error())
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func backoff(base, max time.Duration, attempt int) time.Duration {
	d := base << (attempt - 1)
	if d > max {
		return max
	}
	return d
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
