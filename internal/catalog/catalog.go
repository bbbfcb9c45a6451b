package catalog

import (
	"sort"

	"github.com/numgate/numgate/internal/config"
)

// Entry is one sellable number offer.
type Entry struct {
	Code    string `json:"code"`
	Service string `json:"service"`
	Country string `json:"country"`
	Price   int64  `json:"price"`
}

// Catalog is the immutable service/country/price table, loaded once from
// config at startup. No mutation after New.
type Catalog struct {
	byCode  map[string]Entry
	ordered []Entry
}

func New(entries []config.CatalogEntry) *Catalog {
	c := &Catalog{byCode: make(map[string]Entry, len(entries))}
	for _, e := range entries {
		if e.Code == "" || e.Price < 0 {
			continue
		}
		entry := Entry{Code: e.Code, Service: e.Service, Country: e.Country, Price: e.Price}
		if _, dup := c.byCode[e.Code]; dup {
			continue
		}
		c.byCode[e.Code] = entry
		c.ordered = append(c.ordered, entry)
	}
	sort.Slice(c.ordered, func(i, j int) bool { return c.ordered[i].Code < c.ordered[j].Code })
	return c
}

// Lookup resolves a catalog code to its entry.
func (c *Catalog) Lookup(code string) (Entry, bool) {
	e, ok := c.byCode[code]
	return e, ok
}

// List returns all entries ordered by code.
func (c *Catalog) List() []Entry {
	out := make([]Entry, len(c.ordered))
	copy(out, c.ordered)
	return out
}
