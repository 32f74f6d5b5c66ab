package order

import "testing"

func TestBookApplyGet(t *testing.T) {
	b := NewBook()
	o := Order{ClientOrderID: "c1", Symbol: "BTCUSDT", Status: StatusNew, UpdateTime: 10}
	if !b.Apply(o) {
		t.Fatalf("expected apply")
	}
	got, ok := b.Get("c1")
	if !ok || got.Symbol != "BTCUSDT" {
		t.Fatalf("get failed: %+v %v", got, ok)
	}
	if len(b.Active()) != 1 {
		t.Fatalf("expected 1 active order")
	}
}

func TestBookIgnoresStaleSnapshots(t *testing.T) {
	b := NewBook()
	b.Apply(Order{ClientOrderID: "c1", Status: StatusPartiallyFilled, UpdateTime: 20})
	if b.Apply(Order{ClientOrderID: "c1", Status: StatusNew, UpdateTime: 10}) {
		t.Fatalf("older snapshot should be ignored")
	}
	b.Apply(Order{ClientOrderID: "c1", Status: StatusCanceled, UpdateTime: 30})
	if b.Apply(Order{ClientOrderID: "c1", Status: StatusNew, UpdateTime: 30}) {
		t.Fatalf("terminal order must not go back to live")
	}
	got, _ := b.Get("c1")
	if got.Status != StatusCanceled {
		t.Fatalf("expected CANCELED, got %s", got.Status)
	}
	if len(b.Active()) != 0 {
		t.Fatalf("expected no active orders")
	}
	if b.Apply(Order{Status: StatusNew}) {
		t.Fatalf("snapshot without clientOrderId should be ignored")
	}
}
