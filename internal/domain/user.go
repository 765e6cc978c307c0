package domain

import "time"

// User is a Telegram customer seen by the bot.
type User struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
	CreatedAt time.Time
}

// DisplayName prefers @username and falls back to the full name.
func (u User) DisplayName() string {
	if u.Username != "" {
		return "@" + u.Username
	}
	name := u.FirstName
	if u.LastName != "" {
		if name != "" {
			name += " "
		}
		name += u.LastName
	}
	return name
}

// Ticket is a support ticket opened for a paid order.
type Ticket struct {
	ID        int64
	UserID    int64
	OrderID   int64
	Status    string
	CreatedAt time.Time
}

// TicketOpen is the status of a freshly created ticket.
const TicketOpen = "open"

// DeliveryKind distinguishes pickup-point delivery from courier delivery.
type DeliveryKind string

const (
	DeliveryPickup  DeliveryKind = "pickup"
	DeliveryCourier DeliveryKind = "courier"
)

// DeliveryAddress is the user's saved shipping preference. Last write wins.
type DeliveryAddress struct {
	Kind        DeliveryKind `json:"kind"`
	City        string       `json:"city"`
	PickupPoint string       `json:"pickup_point,omitempty"`
	Street      string       `json:"street,omitempty"`
	UpdatedAt   time.Time    `json:"-"`
}

// Summary renders the address in one line for operator notices.
func (a DeliveryAddress) Summary() string {
	switch a.Kind {
	case DeliveryPickup:
		return "ПВЗ: " + a.City + ", " + a.PickupPoint
	case DeliveryCourier:
		return "Курьер: " + a.City + ", " + a.Street
	}
	return a.City
}
