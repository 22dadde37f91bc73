package orders

import (
	"strings"
	"time"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusShipped   Status = "SHIPPED"
	StatusDelivered Status = "DELIVERED"
	StatusReturned  Status = "RETURNED"
)

var validNext = map[Status]map[Status]bool{
	StatusPending:   {StatusConfirmed: true, StatusShipped: true, StatusDelivered: true, StatusReturned: true},
	StatusConfirmed: {StatusPending: true, StatusShipped: true, StatusDelivered: true, StatusReturned: true},
	StatusShipped:   {StatusDelivered: true, StatusReturned: true},
	StatusDelivered: {StatusReturned: true},
	StatusReturned:  {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

func ParseStatus(s string) (Status, bool) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	_, ok := validNext[st]
	return st, ok
}

type PaymentMethod string

const (
	PaymentCOD       PaymentMethod = "COD"
	PaymentBaridiMob PaymentMethod = "BARIDIMOB"
)

func (m PaymentMethod) Valid() bool { return m == PaymentCOD || m == PaymentBaridiMob }

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "PENDING"
	PaymentPaid    PaymentStatus = "PAID"
)

func (s PaymentStatus) Valid() bool { return s == PaymentPending || s == PaymentPaid }

// Patch is an admin edit of an order. Nil fields are left untouched.
type Patch struct {
	Status           *Status        `json:"status"`
	PaymentStatus    *PaymentStatus `json:"payment_status"`
	PaymentReference *string        `json:"payment_reference"`
}

func (p Patch) Empty() bool {
	return p.Status == nil && p.PaymentStatus == nil && p.PaymentReference == nil
}

// State is the part of an order a Patch acts on.
type State struct {
	Status           Status
	Method           PaymentMethod
	PaymentStatus    PaymentStatus
	PaymentReference string
	PaidAt           *time.Time
	Restocked        bool
}

// Change is the outcome of applying a Patch to a State.
type Change struct {
	From          Status
	Next          State
	StatusChanged bool
	Restock       bool
}

// Plan applies p to cur. COD payments follow the delivery status and cannot
// be edited by hand; a status equal to the current one is a no-op.
func Plan(cur State, p Patch, now time.Time) (Change, error) {
	next := cur
	ch := Change{From: cur.Status}

	if cur.Method == PaymentCOD && (p.PaymentStatus != nil || p.PaymentReference != nil) {
		return Change{}, ErrPaymentLocked
	}

	if p.Status != nil && *p.Status != cur.Status {
		if !CanTransition(cur.Status, *p.Status) {
			return Change{}, &TransitionError{From: cur.Status, To: *p.Status}
		}
		next.Status = *p.Status
		ch.StatusChanged = true
	}

	if p.PaymentStatus != nil {
		if !p.PaymentStatus.Valid() {
			return Change{}, ErrInvalidInput
		}
		next.PaymentStatus = *p.PaymentStatus
	}
	if p.PaymentReference != nil {
		next.PaymentReference = strings.TrimSpace(*p.PaymentReference)
	}

	if cur.Method == PaymentCOD && ch.StatusChanged && next.Status == StatusDelivered {
		next.PaymentStatus = PaymentPaid
	}

	switch {
	case next.PaymentStatus == PaymentPaid && cur.PaymentStatus != PaymentPaid:
		t := now.UTC()
		next.PaidAt = &t
	case next.PaymentStatus == PaymentPending:
		next.PaidAt = nil
	}

	if ch.StatusChanged && next.Status == StatusReturned && !cur.Restocked {
		ch.Restock = true
		next.Restocked = true
	}

	ch.Next = next
	return ch, nil
}
