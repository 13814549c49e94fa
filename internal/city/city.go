package city

import (
	"fmt"
	"time"
)

const (
	// HomeName is the catalog name of the home city.
	HomeName = "日本"
	// HomeTimezone is the zone every offset is measured against.
	HomeTimezone = "Asia/Tokyo"
	// HomeCurrency denominates every rate.
	HomeCurrency = "JPY"
	// HomeLabel prefixes rendered offsets.
	HomeLabel = "JST"
)

// City is a fixed entry of the curated world-clock list.
type City struct {
	Name     string
	Timezone string
	Currency string
	// Top and Left are map coordinates in percent; presentation only.
	Top  int
	Left int
}

// IsHome reports whether the city trades in the home currency.
func (c City) IsHome() bool {
	return c.Currency == HomeCurrency
}

var curated = []City{
	{Name: "日本", Timezone: "Asia/Tokyo", Currency: "JPY", Top: 40, Left: 50},
	{Name: "中国", Timezone: "Asia/Shanghai", Currency: "CNY", Top: 24, Left: 43},
	{Name: "アメリカ", Timezone: "America/New_York", Currency: "USD", Top: 40, Left: 82},
	{Name: "トルコ", Timezone: "Europe/Istanbul", Currency: "TRY", Top: 53, Left: 33},
	{Name: "オーストラリア", Timezone: "Australia/Sydney", Currency: "AUD", Top: 74, Left: 58},
	{Name: "ロンドン", Timezone: "Europe/London", Currency: "GBP", Top: 16, Left: 12},
	{Name: "ユーロ圏", Timezone: "Europe/Brussels", Currency: "EUR", Top: 30, Left: 22},
}

// Catalog is an immutable, ordered city list.
type Catalog struct {
	cities []City
	byName map[string]int
}

// Default returns the curated catalog.
func Default() *Catalog {
	cat, err := NewCatalog(curated)
	if err != nil {
		panic("curated city list invalid: " + err.Error())
	}
	return cat
}

// NewCatalog validates the cities and builds a catalog. Every timezone must
// load and names must be unique.
func NewCatalog(cities []City) (*Catalog, error) {
	if len(cities) == 0 {
		return nil, fmt.Errorf("city catalog is empty")
	}

	cat := &Catalog{
		cities: make([]City, len(cities)),
		byName: make(map[string]int, len(cities)),
	}
	copy(cat.cities, cities)

	for i, c := range cat.cities {
		if c.Name == "" {
			return nil, fmt.Errorf("city #%d has no name", i)
		}
		if c.Currency == "" {
			return nil, fmt.Errorf("city %s has no currency", c.Name)
		}
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			return nil, fmt.Errorf("city %s: invalid timezone %q: %w", c.Name, c.Timezone, err)
		}
		if _, dup := cat.byName[c.Name]; dup {
			return nil, fmt.Errorf("duplicate city name %s", c.Name)
		}
		cat.byName[c.Name] = i
	}
	return cat, nil
}

// All returns the cities in catalog order.
func (c *Catalog) All() []City {
	out := make([]City, len(c.cities))
	copy(out, c.cities)
	return out
}

// Lookup finds a city by name.
func (c *Catalog) Lookup(name string) (City, bool) {
	idx, ok := c.byName[name]
	if !ok {
		return City{}, false
	}
	return c.cities[idx], true
}

// First returns the first catalog entry, used as a fallback selection.
func (c *Catalog) First() City {
	return c.cities[0]
}

// Currencies returns the distinct currencies in first-seen order.
func (c *Catalog) Currencies() []string {
	seen := make(map[string]struct{}, len(c.cities))
	out := make([]string, 0, len(c.cities))
	for _, city := range c.cities {
		if _, ok := seen[city.Currency]; ok {
			continue
		}
		seen[city.Currency] = struct{}{}
		out = append(out, city.Currency)
	}
	return out
}
