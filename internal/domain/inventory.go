package domain

// StockLevel is the warehouse ledger for one product: units free to sell and
// units held by placed orders that are not yet confirmed.
type StockLevel struct {
	ProductID int64 `json:"product_id"`
	Available int   `json:"available"`
	Reserved  int   `json:"reserved"`
}
