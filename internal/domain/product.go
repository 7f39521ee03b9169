package domain

type Category string

const (
	CategoryPaper          Category = "paper"
	CategoryPens           Category = "pens"
	CategoryFiling         Category = "filing"
	CategoryOfficeSupplies Category = "office-supplies"
	CategoryPrinting       Category = "printing"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryPaper, CategoryPens, CategoryFiling, CategoryOfficeSupplies, CategoryPrinting:
		return true
	}
	return false
}

type Product struct {
	ID          int64         `json:"id"`
	Name        LocalizedText `json:"name"`
	Description LocalizedText `json:"description"`
	Price       Money         `json:"price"`
	Category    Category      `json:"category"`
	Image       string        `json:"image"`
	Stock       int           `json:"stock"`
	IsFeatured  bool          `json:"is_featured"`
}

// InStock reports whether at least one unit is available.
func (p Product) InStock() bool {
	return p.Stock > 0
}

// LineItem snapshots the product into a cart line of the given quantity.
func (p Product) LineItem(quantity int) CartLineItem {
	return CartLineItem{
		ID:       p.ID,
		Name:     p.Name,
		Price:    p.Price,
		Quantity: quantity,
		Image:    p.Image,
	}
}
