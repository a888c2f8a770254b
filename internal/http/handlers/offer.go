package handlers

import (
	"net/http"
	"strings"

	"transport-dispatch/internal/domain"
	httpmw "transport-dispatch/internal/http/middleware"
	"transport-dispatch/internal/logx"
)

// OfferHandler serves the transporter facing offer endpoints.
type OfferHandler struct {
	usecase offerUsecase
	logger  logx.Logger
}

// NewOfferHandler creates a new OfferHandler.
func NewOfferHandler(logger logx.Logger, uc offerUsecase) *OfferHandler {
	return &OfferHandler{usecase: uc, logger: logger}
}

// List handles GET /transport-offers.
// @Summary Offers of the caller
// @Tags offers
// @Produce json
// @Param status query string false "pending | accepted | declined"
// @Success 200 {object} Envelope
// @Failure 400 {object} Envelope "invalid status"
// @Failure 401 {object} Envelope "missing identity"
// @Router /transport-offers [get]
func (h *OfferHandler) List(w http.ResponseWriter, r *http.Request) {
	transporterID, ok := h.caller(w, r)
	if !ok {
		return
	}

	filter := domain.StatusFilter{
		Status: domain.OfferStatus(strings.ToLower(strings.TrimSpace(r.URL.Query().Get("status")))),
	}
	list, err := h.usecase.ListOffersForTransporter(r.Context(), transporterID, filter)
	if err != nil {
		writeAppError(h.logger, w, r, err)
		return
	}
	writeData(h.logger, w, r, http.StatusOK, offersToResponse(list, h.usecase.Tiers()))
}

// Accept handles POST /transport-offers/{offerId}/accept.
// @Summary Accept the active offer
// @Tags offers
// @Produce json
// @Param offerId path string true "Offer ID"
// @Success 200 {object} Envelope
// @Failure 403 {object} Envelope "foreign offer"
// @Failure 404 {object} Envelope "offer not found"
// @Failure 409 {object} Envelope "not active, already handled or lost race"
// @Router /transport-offers/{offerId}/accept [post]
func (h *OfferHandler) Accept(w http.ResponseWriter, r *http.Request) {
	transporterID, offerID, ok := h.target(w, r)
	if !ok {
		return
	}

	o, err := h.usecase.Accept(r.Context(), offerID, transporterID)
	if err != nil {
		writeAppError(h.logger, w, r, err)
		return
	}
	writeData(h.logger, w, r, http.StatusOK, offerToResponse(o, h.usecase.Tiers()))
}

// Decline handles POST /transport-offers/{offerId}/decline.
// @Summary Decline the active offer
// @Tags offers
// @Accept json
// @Produce json
// @Param offerId path string true "Offer ID"
// @Param request body declineOfferRequest false "Optional reason"
// @Success 200 {object} Envelope
// @Failure 409 {object} Envelope "not active, already handled or lost race"
// @Router /transport-offers/{offerId}/decline [post]
func (h *OfferHandler) Decline(w http.ResponseWriter, r *http.Request) {
	transporterID, offerID, ok := h.target(w, r)
	if !ok {
		return
	}

	var req declineOfferRequest
	if ok := decodeJSON(h.logger, w, r, &req, true); !ok {
		return
	}
	reason := ""
	if req.Reason != nil {
		reason = *req.Reason
	}

	if _, err := h.usecase.Decline(r.Context(), offerID, transporterID, reason); err != nil {
		writeAppError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, Envelope{Success: true})
}

// Counter handles POST /transport-offers/{offerId}/counter.
// @Summary Record a counter-offer fee
// @Tags offers
// @Accept json
// @Produce json
// @Param offerId path string true "Offer ID"
// @Param request body counterOfferRequest true "Counter fee"
// @Success 200 {object} Envelope
// @Failure 400 {object} Envelope "invalid fee"
// @Router /transport-offers/{offerId}/counter [post]
func (h *OfferHandler) Counter(w http.ResponseWriter, r *http.Request) {
	transporterID, offerID, ok := h.target(w, r)
	if !ok {
		return
	}

	var req counterOfferRequest
	if ok := decodeJSON(h.logger, w, r, &req, false); !ok {
		return
	}
	if req.CounterFee == nil {
		writeError(h.logger, w, r, http.StatusBadRequest, codeInvalidInput, "counterFee is required")
		return
	}

	o, err := h.usecase.Counter(r.Context(), offerID, transporterID, *req.CounterFee)
	if err != nil {
		writeAppError(h.logger, w, r, err)
		return
	}
	writeData(h.logger, w, r, http.StatusOK, offerToResponse(o, h.usecase.Tiers()))
}

func (h *OfferHandler) caller(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := httpmw.TransporterID(r.Context())
	if !ok {
		writeError(h.logger, w, r, http.StatusUnauthorized, codeUnauthorized, "transporter identity required")
		return "", false
	}
	return id, true
}

func (h *OfferHandler) target(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	transporterID, ok := h.caller(w, r)
	if !ok {
		return "", "", false
	}
	offerID, ok := pathParam(r, "offerId")
	if !ok {
		writeError(h.logger, w, r, http.StatusBadRequest, codeInvalidInput, "invalid offer id")
		return "", "", false
	}
	return transporterID, offerID, true
}
