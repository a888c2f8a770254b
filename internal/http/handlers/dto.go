package handlers

import (
	"time"

	"github.com/shopspring/decimal"

	"transport-dispatch/internal/domain"
)

type offerDTO struct {
	OfferID           string               `json:"offerId"`
	OrderID           string               `json:"orderId"`
	FarmerID          string               `json:"farmerId"`
	TransporterID     string               `json:"transporterId"`
	Cycle             int                  `json:"cycle"`
	Tier              string               `json:"tier"`
	TierRank          int                  `json:"tierRank"`
	TransportCost     decimal.Decimal      `json:"transportCost"`
	CounterFee        *decimal.Decimal     `json:"counterFee,omitempty"`
	CounteredAt       *time.Time           `json:"counteredAt,omitempty"`
	Status            domain.OfferStatus   `json:"status"`
	DeclineReason     string               `json:"declineReason,omitempty"`
	IsActive          bool                 `json:"isActive"`
	OfferedAt         time.Time            `json:"offeredAt"`
	RespondedAt       *time.Time           `json:"respondedAt"`
	ExpiresAt         *time.Time           `json:"expiresAt,omitempty"`
	SentToPrimaryAt   *time.Time           `json:"sentToPrimaryAt"`
	SentToSecondaryAt *time.Time           `json:"sentToSecondaryAt"`
	SentToTertiaryAt  *time.Time           `json:"sentToTertiaryAt"`
	TierSentAt        map[string]time.Time `json:"tierSentAt,omitempty"`
}

type offerListDTO struct {
	Offers []offerDTO `json:"offers"`
}

type declineOfferRequest struct {
	Reason *string `json:"reason,omitempty"`
}

type counterOfferRequest struct {
	CounterFee *decimal.Decimal `json:"counterFee"`
}

type candidateDTO struct {
	TransporterID string          `json:"transporterId"`
	ProposedCost  decimal.Decimal `json:"proposedCost"`
}

type createDispatchRequest struct {
	OrderID    string         `json:"orderId"`
	FarmerID   string         `json:"farmerId"`
	Candidates []candidateDTO `json:"candidates,omitempty"`
}

type dispatchDTO struct {
	OrderID               string     `json:"orderId"`
	Cycle                 int        `json:"cycle"`
	State                 string     `json:"state"`
	ActiveOfferID         string     `json:"activeOfferId,omitempty"`
	ActiveTier            string     `json:"activeTier,omitempty"`
	AssignedTransporterID string     `json:"assignedTransporterId,omitempty"`
	Offers                []offerDTO `json:"offers"`
}
