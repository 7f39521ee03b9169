package domain

// CartLineItem is one cart row. Name and Price are captured when the product is
// added and never re-read from the catalog.
type CartLineItem struct {
	ID       int64         `json:"id"`
	Name     LocalizedText `json:"name"`
	Price    Money         `json:"price"`
	Quantity int           `json:"quantity"`
	Image    string        `json:"image"`
}

// Total returns unit price times quantity.
func (i CartLineItem) Total() Money {
	return i.Price.Mul(i.Quantity)
}

type CartSnapshot struct {
	Items     []CartLineItem `json:"items"`
	ItemCount int            `json:"item_count"`
	Subtotal  Money          `json:"subtotal"`
}
