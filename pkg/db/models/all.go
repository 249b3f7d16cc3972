package models

// All lists every persisted model. The sqlite dev mode auto-migrates them.
func All() []any {
	return []any{
		&User{},
		&FoodListing{},
		&OrderItem{},
		&RiderIndex{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}
