package handlers

import (
	"transport-dispatch/internal/domain"
)

// offerToResponse maps the primary/secondary/tertiary sent-at fields by rank
// through the configured tier names.
func offerToResponse(o domain.Offer, tiers domain.Tiers) offerDTO {
	return offerDTO{
		OfferID:           o.ID,
		OrderID:           o.OrderID,
		FarmerID:          o.FarmerID,
		TransporterID:     o.TransporterID,
		Cycle:             o.Cycle,
		Tier:              o.TierName,
		TierRank:          o.Tier,
		TransportCost:     o.TransportCost,
		CounterFee:        o.CounterFee,
		CounteredAt:       o.CounteredAt,
		Status:            o.Status,
		DeclineReason:     o.DeclineReason,
		IsActive:          o.IsActive,
		OfferedAt:         o.OfferedAt,
		RespondedAt:       o.RespondedAt,
		ExpiresAt:         o.ExpiresAt,
		SentToPrimaryAt:   o.SentAt(tiers.Name(0)),
		SentToSecondaryAt: o.SentAt(tiers.Name(1)),
		SentToTertiaryAt:  o.SentAt(tiers.Name(2)),
		TierSentAt:        o.TierSentAt,
	}
}

func offersToResponse(list []domain.Offer, tiers domain.Tiers) offerListDTO {
	out := make([]offerDTO, 0, len(list))
	for _, o := range list {
		out = append(out, offerToResponse(o, tiers))
	}
	return offerListDTO{Offers: out}
}

func groupToResponse(st domain.State, g *domain.Group, tiers domain.Tiers) dispatchDTO {
	resp := dispatchDTO{
		OrderID:               g.OrderID,
		Cycle:                 g.Cycle,
		State:                 string(st.Phase),
		ActiveOfferID:         st.ActiveOfferID,
		ActiveTier:            st.ActiveTierName,
		AssignedTransporterID: st.AssignedTransporterID,
		Offers:                make([]offerDTO, 0, len(g.Offers)),
	}
	for _, o := range g.Offers {
		resp.Offers = append(resp.Offers, offerToResponse(o, tiers))
	}
	return resp
}

func (r createDispatchRequest) toModel() domain.DispatchRequest {
	req := domain.DispatchRequest{
		OrderID:    r.OrderID,
		FarmerID:   r.FarmerID,
		Candidates: make([]domain.Candidate, 0, len(r.Candidates)),
	}
	for _, c := range r.Candidates {
		req.Candidates = append(req.Candidates, domain.Candidate{
			TransporterID: c.TransporterID,
			ProposedCost:  c.ProposedCost,
		})
	}
	return req
}
