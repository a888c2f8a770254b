package router_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"transport-dispatch/internal/domain"
	"transport-dispatch/internal/gateway/notify"
	"transport-dispatch/internal/http/handlers"
	httpmw "transport-dispatch/internal/http/middleware"
	"transport-dispatch/internal/http/middleware/ratelimit"
	"transport-dispatch/internal/http/router"
	"transport-dispatch/internal/logx"
	"transport-dispatch/internal/repository"
	"transport-dispatch/internal/service/dispatch"
)

type nopTimers struct{}

func (nopTimers) Schedule(context.Context, string, time.Time) error { return nil }
func (nopTimers) Cancel(string)                                     {}

type recordingGateway struct {
	assigned    []string
	unfulfilled []string
}

func (g *recordingGateway) MarkAssigned(_ context.Context, orderID, transporterID string) error {
	g.assigned = append(g.assigned, orderID+":"+transporterID)
	return nil
}

func (g *recordingGateway) MarkUnfulfilled(_ context.Context, orderID string) error {
	g.unfulfilled = append(g.unfulfilled, orderID)
	return nil
}

type nopNotifier struct{}

func (nopNotifier) NotifyTransporter(context.Context, string, notify.Message) error { return nil }
func (nopNotifier) NotifyFarmer(context.Context, string, notify.Message) error      { return nil }

func newTestRouter(t *testing.T, limiter ratelimit.Limiter) (http.Handler, *recordingGateway) {
	t.Helper()

	gw := &recordingGateway{}
	ids := 0
	svc := dispatch.NewService(dispatch.Deps{
		Store:    repository.NewMemoryOfferRepo(),
		Timers:   nopTimers{},
		Orders:   gw,
		Notifier: nopNotifier{},
	}, dispatch.Config{OfferTimeout: time.Minute}).WithIDGenerator(func() string {
		ids++
		return "offer-" + strconv.Itoa(ids)
	})

	logger := logx.Nop()
	h := router.New(
		logger,
		handlers.New(logger),
		handlers.NewOfferHandler(logger, handlers.NewOfferUsecase(svc)),
		handlers.NewDispatchHandler(logger, handlers.NewDispatchUsecase(svc)),
		ratelimit.New(logger, nil, limiter),
		serviceToken,
	)
	return h, gw
}

const serviceToken = "svc-secret"

// doService calls an internal route the way the order service does.
func doService(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(httpmw.ServiceTokenHeader, serviceToken)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func do(t *testing.T, h http.Handler, method, path, transporterID, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	if transporterID != "" {
		req.Header.Set("X-Transporter-ID", transporterID)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRouter_Operational(t *testing.T) {
	h, _ := newTestRouter(t, nil)

	require.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/ping", "", "").Code)
	require.Equal(t, http.StatusNoContent, do(t, h, http.MethodHead, "/healthcheck", "", "").Code)
	require.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/metrics", "", "").Code)
	require.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/unknown", "", "").Code)
}

func TestRouter_OffersRequireIdentity(t *testing.T) {
	h, _ := newTestRouter(t, nil)

	rr := do(t, h, http.MethodGet, "/transport-offers", "", "")
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.JSONEq(t, `{"success":false,"error":{"code":"unauthorized","message":"transporter identity required"}}`, rr.Body.String())
}

func TestRouter_DispatchFlow(t *testing.T) {
	h, gw := newTestRouter(t, nil)

	body := `{"orderId":"order-1","farmerId":"farmer-1","candidates":[
		{"transporterId":"t1","proposedCost":"50"},
		{"transporterId":"t2","proposedCost":"55"},
		{"transporterId":"t3","proposedCost":"60"}]}`
	rr := doService(t, h, http.MethodPost, "/dispatches", body)
	require.Equal(t, http.StatusCreated, rr.Code)

	// t2 cannot act before escalation
	rr = do(t, h, http.MethodPost, "/transport-offers/offer-2/accept", "t2", "")
	require.Equal(t, http.StatusConflict, rr.Code)

	// t1 cannot touch t2's record
	rr = do(t, h, http.MethodPost, "/transport-offers/offer-2/accept", "t1", "")
	require.Equal(t, http.StatusForbidden, rr.Code)

	rr = do(t, h, http.MethodPost, "/transport-offers/offer-1/decline", "t1", `{"reason":"busy"}`)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, h, http.MethodGet, "/transport-offers?status=pending", "t2", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var list struct {
		Data struct {
			Offers []struct {
				OfferID           string     `json:"offerId"`
				IsActive          bool       `json:"isActive"`
				SentToSecondaryAt *time.Time `json:"sentToSecondaryAt"`
			} `json:"offers"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&list))
	require.Len(t, list.Data.Offers, 1)
	require.Equal(t, "offer-2", list.Data.Offers[0].OfferID)
	require.True(t, list.Data.Offers[0].IsActive)
	require.NotNil(t, list.Data.Offers[0].SentToSecondaryAt)

	rr = do(t, h, http.MethodPost, "/transport-offers/offer-2/accept", "t2", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, []string{"order-1:t2"}, gw.assigned)

	rr = do(t, h, http.MethodPost, "/transport-offers/offer-3/accept", "t3", "")
	require.Equal(t, http.StatusConflict, rr.Code)

	rr = doService(t, h, http.MethodGet, "/dispatches/order-1", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var state struct {
		Data struct {
			State                 string `json:"state"`
			AssignedTransporterID string `json:"assignedTransporterId"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&state))
	require.Equal(t, "assigned", state.Data.State)
	require.Equal(t, "t2", state.Data.AssignedTransporterID)
}

func TestRouter_CounterRoute(t *testing.T) {
	h, _ := newTestRouter(t, nil)

	rr := doService(t, h, http.MethodPost, "/dispatches", `{"orderId":"o","farmerId":"f","candidates":[{"transporterId":"t1","proposedCost":10}]}`)
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = do(t, h, http.MethodPost, "/transport-offers/offer-1/counter", "t1", `{"counterFee":12.5}`)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Data struct {
			CounterFee decimal.Decimal `json:"counterFee"`
			Status     string          `json:"status"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	require.True(t, decimal.RequireFromString("12.5").Equal(resp.Data.CounterFee))
	require.Equal(t, string(domain.StatusPending), resp.Data.Status)
}

func TestRouter_DispatchRoutesHiddenFromTransporters(t *testing.T) {
	h, _ := newTestRouter(t, nil)

	body := `{"orderId":"order-1","farmerId":"farmer-1","candidates":[
		{"transporterId":"t1","proposedCost":"50"},
		{"transporterId":"t2","proposedCost":"55"}]}`

	rr := do(t, h, http.MethodPost, "/dispatches", "t9", body)
	require.Equal(t, http.StatusForbidden, rr.Code)
	rr = do(t, h, http.MethodPost, "/dispatches", "", body)
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = doService(t, h, http.MethodPost, "/dispatches", body)
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = do(t, h, http.MethodGet, "/dispatches/order-1", "t2", "")
	require.Equal(t, http.StatusForbidden, rr.Code)
	require.NotContains(t, rr.Body.String(), `"transporterId":"t1"`)

	rr = do(t, h, http.MethodGet, "/transport-offers", "t2", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.NotContains(t, rr.Body.String(), "t1")
}

func TestRouter_DispatchRoutesUnmountedWithoutToken(t *testing.T) {
	logger := logx.Nop()
	svc := dispatch.NewService(dispatch.Deps{
		Store:    repository.NewMemoryOfferRepo(),
		Timers:   nopTimers{},
		Orders:   &recordingGateway{},
		Notifier: nopNotifier{},
	}, dispatch.Config{OfferTimeout: time.Minute})
	h := router.New(
		logger,
		handlers.New(logger),
		handlers.NewOfferHandler(logger, handlers.NewOfferUsecase(svc)),
		handlers.NewDispatchHandler(logger, handlers.NewDispatchUsecase(svc)),
		nil,
		"",
	)

	rr := do(t, h, http.MethodGet, "/dispatches/order-1", "", "")
	require.Equal(t, http.StatusNotFound, rr.Code)
}

type denyAll struct{}

func (denyAll) Allow(string) bool { return false }

func TestRouter_RateLimited(t *testing.T) {
	h, _ := newTestRouter(t, denyAll{})

	rr := do(t, h, http.MethodGet, "/ping", "", "")
	require.Equal(t, http.StatusTooManyRequests, rr.Code)
}
