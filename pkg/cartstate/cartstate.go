// Package cartstate implements a pure shopping cart model. Operations return
// a new cart and never mutate the input, so callers can keep snapshots for
// undo or optimistic UI updates.
package cartstate

import "math"

// Item is one product entry in the cart. Stock, when known, caps the
// quantity a caller can set.
type Item struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Image     string  `json:"image"`
	UnitPrice float64 `json:"unit_price"`
	Quantity  int     `json:"quantity"`
	Stock     int     `json:"stock,omitempty"`
}

func (i Item) capped() Item {
	if i.Stock > 0 && i.Quantity > i.Stock {
		i.Quantity = i.Stock
	}
	return i
}

// ShippingAddress is the delivery destination entered at checkout.
type ShippingAddress struct {
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// Cart is a client-side cart. The zero value is an empty cart.
type Cart struct {
	Items         []Item          `json:"items"`
	Shipping      ShippingAddress `json:"shipping"`
	PaymentMethod string          `json:"payment_method"`
}

func (c Cart) cloneItems() []Item {
	items := make([]Item, len(c.Items))
	copy(items, c.Items)
	return items
}

// AddItem adds the item to the cart. Adding a product already present
// replaces its entry, matching the behavior of re-adding from a product page.
func (c Cart) AddItem(item Item) Cart {
	if item.ProductID == "" || item.Quantity <= 0 {
		return c
	}
	item = item.capped()
	items := c.cloneItems()
	for i, existing := range items {
		if existing.ProductID == item.ProductID {
			items[i] = item
			c.Items = items
			return c
		}
	}
	c.Items = append(items, item)
	return c
}

// SetQuantity changes the quantity of a cart entry. A quantity of zero or
// less removes the entry.
func (c Cart) SetQuantity(productID string, quantity int) Cart {
	if quantity <= 0 {
		return c.RemoveItem(productID)
	}
	items := c.cloneItems()
	for i := range items {
		if items[i].ProductID == productID {
			items[i].Quantity = quantity
			items[i] = items[i].capped()
		}
	}
	c.Items = items
	return c
}

// RemoveItem drops a product from the cart. Removing an absent product is a
// no-op.
func (c Cart) RemoveItem(productID string) Cart {
	items := make([]Item, 0, len(c.Items))
	for _, item := range c.Items {
		if item.ProductID != productID {
			items = append(items, item)
		}
	}
	c.Items = items
	return c
}

// SetShipping records the shipping address.
func (c Cart) SetShipping(addr ShippingAddress) Cart {
	c.Items = c.cloneItems()
	c.Shipping = addr
	return c
}

// SetPaymentMethod records the chosen payment method.
func (c Cart) SetPaymentMethod(method string) Cart {
	c.Items = c.cloneItems()
	c.PaymentMethod = method
	return c
}

// Clear empties the cart but keeps the shipping address and payment method,
// so a follow-up order does not re-enter them.
func (c Cart) Clear() Cart {
	c.Items = nil
	return c
}

// Subtotal is the cart item total rounded to cents.
func (c Cart) Subtotal() float64 {
	var total float64
	for _, item := range c.Items {
		total += item.UnitPrice * float64(item.Quantity)
	}
	return math.Round(total*100) / 100
}

// Count is the total number of units in the cart.
func (c Cart) Count() int {
	var n int
	for _, item := range c.Items {
		n += item.Quantity
	}
	return n
}
