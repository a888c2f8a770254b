package handlers

import (
	"net/http"

	"transport-dispatch/internal/domain"
	"transport-dispatch/internal/logx"
)

// DispatchHandler serves the order service facing dispatch endpoints.
type DispatchHandler struct {
	usecase dispatchUsecase
	logger  logx.Logger
}

// NewDispatchHandler creates a new DispatchHandler.
func NewDispatchHandler(logger logx.Logger, uc dispatchUsecase) *DispatchHandler {
	return &DispatchHandler{usecase: uc, logger: logger}
}

// Create handles POST /dispatches. Without candidates the ranking provider is asked.
// @Summary Open a dispatch cycle
// @Tags dispatches
// @Accept json
// @Produce json
// @Param request body createDispatchRequest true "Order and optional ranked candidates"
// @Success 201 {object} Envelope
// @Failure 400 {object} Envelope "invalid input"
// @Failure 409 {object} Envelope "dispatch in progress"
// @Failure 422 {object} Envelope "no transport available"
// @Router /dispatches [post]
func (h *DispatchHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createDispatchRequest
	if ok := decodeJSON(h.logger, w, r, &req, false); !ok {
		return
	}

	var (
		g   *domain.Group
		err error
	)
	if len(req.Candidates) == 0 {
		g, err = h.usecase.Dispatch(r.Context(), req.OrderID, req.FarmerID)
	} else {
		g, err = h.usecase.CreateDispatch(r.Context(), req.toModel())
	}
	if err != nil {
		writeAppError(h.logger, w, r, err)
		return
	}
	writeData(h.logger, w, r, http.StatusCreated, groupToResponse(g.State(), g, h.usecase.Tiers()))
}

// Get handles GET /dispatches/{orderId}.
// @Summary Dispatch state of an order
// @Tags dispatches
// @Produce json
// @Param orderId path string true "Order ID"
// @Success 200 {object} Envelope
// @Failure 404 {object} Envelope "no dispatch for the order"
// @Router /dispatches/{orderId} [get]
func (h *DispatchHandler) Get(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathParam(r, "orderId")
	if !ok {
		writeError(h.logger, w, r, http.StatusBadRequest, codeInvalidInput, "invalid order id")
		return
	}

	st, g, err := h.usecase.State(r.Context(), orderID)
	if err != nil {
		writeAppError(h.logger, w, r, err)
		return
	}
	writeData(h.logger, w, r, http.StatusOK, groupToResponse(st, g, h.usecase.Tiers()))
}
