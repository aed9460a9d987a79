package cartstate

import "testing"

func TestAddItemReplacesExisting(t *testing.T) {
	cart := Cart{}.
		AddItem(Item{ProductID: "p1", Name: "Widget", UnitPrice: 10, Quantity: 1}).
		AddItem(Item{ProductID: "p2", Name: "Gadget", UnitPrice: 5, Quantity: 2})

	if len(cart.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(cart.Items))
	}

	cart = cart.AddItem(Item{ProductID: "p1", Name: "Widget", UnitPrice: 10, Quantity: 4})
	if len(cart.Items) != 2 {
		t.Fatalf("re-adding must replace, got %d items", len(cart.Items))
	}
	if cart.Items[0].Quantity != 4 {
		t.Fatalf("expected replaced quantity 4, got %d", cart.Items[0].Quantity)
	}
}

func TestAddItemIgnoresInvalid(t *testing.T) {
	cart := Cart{}.
		AddItem(Item{ProductID: "", Quantity: 1}).
		AddItem(Item{ProductID: "p1", Quantity: 0})
	if len(cart.Items) != 0 {
		t.Fatalf("invalid items must be ignored, got %d", len(cart.Items))
	}
}

func TestSetQuantity(t *testing.T) {
	cart := Cart{}.AddItem(Item{ProductID: "p1", UnitPrice: 10, Quantity: 1})

	cart = cart.SetQuantity("p1", 3)
	if cart.Items[0].Quantity != 3 {
		t.Fatalf("expected quantity 3, got %d", cart.Items[0].Quantity)
	}

	cart = cart.SetQuantity("p1", 0)
	if len(cart.Items) != 0 {
		t.Fatal("zero quantity must remove the item")
	}
}

func TestRemoveItem(t *testing.T) {
	cart := Cart{}.
		AddItem(Item{ProductID: "p1", Quantity: 1}).
		AddItem(Item{ProductID: "p2", Quantity: 1})

	cart = cart.RemoveItem("p1")
	if len(cart.Items) != 1 || cart.Items[0].ProductID != "p2" {
		t.Fatalf("unexpected items after removal: %+v", cart.Items)
	}

	cart = cart.RemoveItem("ghost")
	if len(cart.Items) != 1 {
		t.Fatal("removing an absent product must be a no-op")
	}
}

func TestOperationsDoNotMutateInput(t *testing.T) {
	original := Cart{}.AddItem(Item{ProductID: "p1", UnitPrice: 10, Quantity: 1})

	_ = original.SetQuantity("p1", 5)
	_ = original.RemoveItem("p1")
	_ = original.Clear()

	if len(original.Items) != 1 || original.Items[0].Quantity != 1 {
		t.Fatalf("input cart was mutated: %+v", original.Items)
	}
}

func TestClearKeepsCheckoutDetails(t *testing.T) {
	cart := Cart{}.
		AddItem(Item{ProductID: "p1", Quantity: 1}).
		SetShipping(ShippingAddress{Address: "1 Main St", City: "Springfield"}).
		SetPaymentMethod("paypal").
		Clear()

	if len(cart.Items) != 0 {
		t.Fatal("clear must empty the items")
	}
	if cart.Shipping.City != "Springfield" || cart.PaymentMethod != "paypal" {
		t.Fatalf("checkout details must survive clear: %+v", cart)
	}
}

func TestQuantityCappedAtStock(t *testing.T) {
	cart := Cart{}.AddItem(Item{ProductID: "p1", UnitPrice: 10, Quantity: 9, Stock: 3})
	if cart.Items[0].Quantity != 3 {
		t.Fatalf("expected quantity capped at stock, got %d", cart.Items[0].Quantity)
	}

	cart = cart.SetQuantity("p1", 7)
	if cart.Items[0].Quantity != 3 {
		t.Fatalf("expected set quantity capped at stock, got %d", cart.Items[0].Quantity)
	}
}

func TestSubtotalAndCount(t *testing.T) {
	cart := Cart{}.
		AddItem(Item{ProductID: "p1", UnitPrice: 19.99, Quantity: 2}).
		AddItem(Item{ProductID: "p2", UnitPrice: 0.1, Quantity: 3})

	if got := cart.Subtotal(); got != 40.28 {
		t.Fatalf("expected subtotal 40.28, got %v", got)
	}
	if got := cart.Count(); got != 5 {
		t.Fatalf("expected count 5, got %d", got)
	}
}
