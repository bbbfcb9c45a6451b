package catalog

import (
	"testing"

	"github.com/numgate/numgate/internal/config"
)

func TestNewFiltersAndOrders(t *testing.T) {
	c := New([]config.CatalogEntry{
		{Code: "philippines_51", Service: "grab", Country: "philippines", Price: 52},
		{Code: "india_115", Service: "wa", Country: "india", Price: 103},
		{Code: "", Service: "noname", Country: "x", Price: 10},      // dropped: no code
		{Code: "bad_price", Service: "y", Country: "x", Price: -1},  // dropped: negative
		{Code: "india_115", Service: "dup", Country: "x", Price: 1}, // dropped: duplicate
	})

	list := c.List()
	if len(list) != 2 {
		t.Fatalf("List() len = %d, want 2", len(list))
	}
	if list[0].Code != "india_115" || list[1].Code != "philippines_51" {
		t.Fatalf("order = %q, %q", list[0].Code, list[1].Code)
	}

	e, ok := c.Lookup("india_115")
	if !ok {
		t.Fatal("Lookup(india_115) missed")
	}
	if e.Price != 103 || e.Service != "wa" {
		t.Fatalf("first entry wins: got %+v", e)
	}

	if _, ok := c.Lookup("nope"); ok {
		t.Fatal("Lookup(nope) should miss")
	}
}

func TestListIsACopy(t *testing.T) {
	c := New([]config.CatalogEntry{{Code: "a", Price: 1}})
	list := c.List()
	list[0].Price = 999

	again := c.List()
	if again[0].Price != 1 {
		t.Fatalf("catalog mutated through List copy: %d", again[0].Price)
	}
}
