package domain

// OfferStatus represents the status of a single tier record.
type OfferStatus string

// List of possible offer statuses
const (
	StatusPending  OfferStatus = "pending"
	StatusAccepted OfferStatus = "accepted"
	StatusDeclined OfferStatus = "declined"
)

// Decline reasons set by the engine itself.
const (
	ReasonTimeout    = "timeout"
	ReasonSuperseded = "superseded"
)

var allowedStatuses = [...]OfferStatus{
	StatusPending, StatusAccepted, StatusDeclined,
}

// Valid checks if the OfferStatus is valid
func (s OfferStatus) Valid() bool {
	for _, v := range allowedStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Resolved reports whether the record left the pending state.
func (s OfferStatus) Resolved() bool {
	return s == StatusAccepted || s == StatusDeclined
}
