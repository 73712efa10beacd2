package models

// All returns every model managed by AutoMigrate, in dependency order.
func All() []interface{} {
	return []interface{}{&Client{}, &Operator{}, &Order{}}
}
