package order

// Status is an order's position in its lifecycle.
type Status string

const (
	StatusPending        Status = "pending"
	StatusPreparing      Status = "preparing"
	StatusOutForDelivery Status = "out-for-delivery"
	StatusDelivered      Status = "delivered"
	StatusCancelled      Status = "cancelled"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{StatusPending, StatusPreparing, StatusOutForDelivery, StatusDelivered, StatusCancelled}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// CanTransition reports whether an order of type t may move from one status
// to another. Only delivery orders go out for delivery.
func CanTransition(t Type, from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusPreparing || to == StatusCancelled
	case StatusPreparing:
		switch to {
		case StatusOutForDelivery:
			return t == TypeDelivery
		case StatusDelivered, StatusCancelled:
			return true
		}
	case StatusOutForDelivery:
		return to == StatusDelivered
	}
	return false
}
