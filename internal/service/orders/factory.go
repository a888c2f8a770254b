package orders

import (
	"context"
	"strings"
)

// StatusTransportRequested is the order status that opens a dispatch cycle.
const StatusTransportRequested = "transport_requested"

type actionFunc func(context.Context, Event) error

type actionFactory struct {
	byStatus map[string]actionFunc
}

func newActionFactory(onTransportRequested actionFunc) *actionFactory {
	return &actionFactory{
		byStatus: map[string]actionFunc{
			StatusTransportRequested: onTransportRequested,
		},
	}
}

func (f *actionFactory) get(status string) (actionFunc, bool) {
	status = strings.ToLower(strings.TrimSpace(status))
	fn, ok := f.byStatus[status]
	return fn, ok
}
