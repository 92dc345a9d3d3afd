package domain

// TicketEvent names an input to the lifecycle state machine.
type TicketEvent string

const (
	EventAssign      TicketEvent = "assign"
	EventStart       TicketEvent = "start"
	EventAwaitClient TicketEvent = "await_client"
	EventResume      TicketEvent = "resume"
	EventResolve     TicketEvent = "resolve"
	EventClose       TicketEvent = "close"
	EventReopen      TicketEvent = "reopen"
	EventEscalate    TicketEvent = "escalate"
)

var transitions = map[TicketStatus]map[TicketEvent]TicketStatus{
	TicketStatusOpen: {
		EventAssign:   TicketStatusAssigned,
		EventEscalate: TicketStatusEscalated,
	},
	TicketStatusAssigned: {
		EventStart:       TicketStatusInProgress,
		EventAwaitClient: TicketStatusPendingClient,
		EventResolve:     TicketStatusResolved,
		EventEscalate:    TicketStatusEscalated,
	},
	TicketStatusInProgress: {
		EventAwaitClient: TicketStatusPendingClient,
		EventResolve:     TicketStatusResolved,
		EventEscalate:    TicketStatusEscalated,
	},
	TicketStatusPendingClient: {
		EventResume:   TicketStatusInProgress,
		EventResolve:  TicketStatusResolved,
		EventClose:    TicketStatusClosed,
		EventEscalate: TicketStatusEscalated,
	},
	TicketStatusEscalated: {
		EventAssign:  TicketStatusAssigned,
		EventStart:   TicketStatusInProgress,
		EventResolve: TicketStatusResolved,
	},
	TicketStatusResolved: {
		EventClose:  TicketStatusClosed,
		EventReopen: TicketStatusInProgress,
	},
	TicketStatusClosed: {},
}

// NextStatus returns the status reached by applying event to from. Events
// not listed for a status are rejected.
func NextStatus(from TicketStatus, event TicketEvent) (TicketStatus, bool) {
	next, ok := transitions[from][event]
	return next, ok
}

// Valid reports whether e is a known event.
func (e TicketEvent) Valid() bool {
	switch e {
	case EventAssign, EventStart, EventAwaitClient, EventResume, EventResolve,
		EventClose, EventReopen, EventEscalate:
		return true
	}
	return false
}

// CallerEvent is true for events a caller may request on the status
// endpoint. Assign and escalate go through their own components.
func (e TicketEvent) CallerEvent() bool {
	return e.Valid() && e != EventAssign && e != EventEscalate
}
