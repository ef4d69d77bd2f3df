package domain

import "slices"

// InvoiceStatus is the lifecycle state of an invoice.
type InvoiceStatus string

const (
	InvoiceStatusDraft   InvoiceStatus = "draft"
	InvoiceStatusSent    InvoiceStatus = "sent"
	InvoiceStatusViewed  InvoiceStatus = "viewed"
	InvoiceStatusPaid    InvoiceStatus = "paid"
	InvoiceStatusOverdue InvoiceStatus = "overdue"
)

// InvoiceStatuses lists every status in lifecycle order.
var InvoiceStatuses = []InvoiceStatus{
	InvoiceStatusDraft, InvoiceStatusSent, InvoiceStatusViewed, InvoiceStatusPaid, InvoiceStatusOverdue,
}

// Valid reports whether s is a known status.
func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceStatusDraft, InvoiceStatusSent, InvoiceStatusViewed, InvoiceStatusPaid, InvoiceStatusOverdue:
		return true
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s InvoiceStatus) Terminal() bool {
	return s == InvoiceStatusPaid
}

// InvoiceEvent triggers a status transition.
type InvoiceEvent string

const (
	EventSend    InvoiceEvent = "send"
	EventView    InvoiceEvent = "view"
	EventPay     InvoiceEvent = "pay"
	EventOverdue InvoiceEvent = "overdue"
)

type transition struct {
	from []InvoiceStatus
	to   InvoiceStatus
}

// transitions is the complete table of legal moves. Paid appears in no from list.
var transitions = map[InvoiceEvent]transition{
	EventSend:    {from: []InvoiceStatus{InvoiceStatusDraft}, to: InvoiceStatusSent},
	EventView:    {from: []InvoiceStatus{InvoiceStatusSent}, to: InvoiceStatusViewed},
	EventPay:     {from: []InvoiceStatus{InvoiceStatusSent, InvoiceStatusViewed, InvoiceStatusOverdue}, to: InvoiceStatusPaid},
	EventOverdue: {from: []InvoiceStatus{InvoiceStatusSent, InvoiceStatusViewed}, to: InvoiceStatusOverdue},
}

// EditableStatuses are the statuses in which items and dates may change.
var EditableStatuses = []InvoiceStatus{InvoiceStatusDraft, InvoiceStatusSent}

// TransitionFrom returns the statuses an event may fire from and its target.
// The returned slice is a copy.
func TransitionFrom(event InvoiceEvent) ([]InvoiceStatus, InvoiceStatus) {
	t, ok := transitions[event]
	if !ok {
		return nil, ""
	}
	return slices.Clone(t.from), t.to
}

// NextStatus returns the status reached by firing event from current.
func NextStatus(current InvoiceStatus, event InvoiceEvent) (InvoiceStatus, error) {
	t, ok := transitions[event]
	if !ok {
		return "", InvalidState("invoice.transition", "unknown invoice event: "+string(event))
	}
	if !slices.Contains(t.from, current) {
		return "", InvalidState("invoice.transition",
			"cannot "+string(event)+" an invoice in "+string(current)+" status")
	}
	return t.to, nil
}

// CanTransition reports whether event is legal from current.
func CanTransition(current InvoiceStatus, event InvoiceEvent) bool {
	_, err := NextStatus(current, event)
	return err == nil
}
