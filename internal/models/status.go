package models

// OrderStatus is a step of the order lifecycle
type OrderStatus string

// Order statuses
const (
	OrderStatusNew       OrderStatus = "NEW"
	OrderStatusCreated   OrderStatus = "CREATED"
	OrderStatusHandling  OrderStatus = "HANDLING"
	OrderStatusCompleted OrderStatus = "COMPLETED"
	OrderStatusCanceled  OrderStatus = "CANCELED"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusNew:      {OrderStatusCreated, OrderStatusCanceled},
	OrderStatusCreated:  {OrderStatusHandling, OrderStatusCanceled},
	OrderStatusHandling: {OrderStatusCompleted, OrderStatusCanceled},
}

// Valid reports whether s is a known status
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusNew, OrderStatusCreated, OrderStatusHandling,
		OrderStatusCompleted, OrderStatusCanceled:
		return true
	}
	return false
}

// CanTransitionTo reports whether the lifecycle allows moving from s to next
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions exist
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCanceled
}

// Editable reports whether the client may still change the order
func (s OrderStatus) Editable() bool {
	return s == OrderStatusNew
}

func (s OrderStatus) String() string {
	return string(s)
}
