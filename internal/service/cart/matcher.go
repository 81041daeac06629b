package cart

import "cart-engine/internal/domain"

// Matcher selects line items. Operations taking a Matcher act on the first
// matching line in creation order.
type Matcher func(domain.LineItem) bool

func ByID(lineID string) Matcher {
	return func(l domain.LineItem) bool { return l.ID == lineID }
}

func ByProduct(productID string) Matcher {
	return func(l domain.LineItem) bool { return l.ProductID == productID }
}

// ByKey matches the line with the given identity key.
func ByKey(productID string, attrs domain.Attributes) Matcher {
	key := domain.KeyOf(productID, attrs)
	return func(l domain.LineItem) bool { return l.Key() == key }
}
