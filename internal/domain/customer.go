package domain

// Customer is the identified shopper. ID is zero until the record has been
// assigned one by registration or returned by a lookup.
type Customer struct {
	ID          int64  `json:"id,omitempty"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Address     string `json:"address"`
	City        string `json:"city"`
	Points      int    `json:"points"`
	OrdersCount int    `json:"orders_count"`
}

// Registration carries the fields a new customer provides at checkout.
type Registration struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"required"`
	Phone   string `json:"phone" validate:"required"`
	Address string `json:"address" validate:"required"`
	City    string `json:"city" validate:"required"`
}
