package model

// All lists every persisted model, in migration order.
func All() []any {
	return []any{
		&Branch{},
		&Product{},
		&Order{},
		&OrderItem{},
		&PaymentTransaction{},
		&Sale{},
		&StockEntry{},
		&StockMovement{},
		&DeadLetter{},
	}
}
