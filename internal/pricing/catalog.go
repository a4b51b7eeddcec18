package pricing

import (
	"errors"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

var ErrPackNotFound = errors.New("pack not found")

// Pack models a purchasable SKU in the store.
type Pack struct {
	ID          string `yaml:"id" json:"id"`                     // SKU id, e.g., "6480"
	Name        string `yaml:"name" json:"name"`                 // display name, e.g., "6480 Pack"
	Tokens      int    `yaml:"tokens" json:"tokens"`             // base units granted
	BonusTokens int    `yaml:"bonus_tokens" json:"bonusTokens"`  // permanent extra units (non-first-time)
	FirstTimeX2 bool   `yaml:"first_time_x2" json:"firstTimeX2"` // first purchase doubles base Tokens (not BonusTokens)
	PriceCents  int    `yaml:"price_cents" json:"priceCents"`    // price in minor units
}

// Granted returns the units one purchase credits.
func (p Pack) Granted(firstTime bool) int {
	if p.FirstTimeX2 && firstTime {
		return p.Tokens*2 + p.BonusTokens
	}
	return p.Tokens + p.BonusTokens
}

// Catalog is a regional product catalog for one currency.
type Catalog struct {
	TokenName string `yaml:"token_name"` // e.g., "Stellar Jade"
	// TokenCurrency is the ledger currency packs credit, e.g., "gem".
	TokenCurrency string `yaml:"token_currency"`
	Currency      string `yaml:"currency"` // ISO code of the real-money price, e.g., "CAD"
	// If prices are pre-tax, TaxRate is applied on subtotal to compute total.
	TaxRate float64 `yaml:"tax_rate"`
	Packs   []Pack  `yaml:"packs"`
}

// Pack looks up a SKU.
func (c Catalog) Pack(id string) (Pack, error) {
	for _, p := range c.Packs {
		if p.ID == id {
			return p, nil
		}
	}
	return Pack{}, fmt.Errorf("%w: %s", ErrPackNotFound, id)
}

// LoadCatalog reads a YAML catalog. A missing file yields an empty catalog.
func LoadCatalog(path string) (Catalog, error) {
	var cat Catalog
	if path == "" {
		return cat, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cat, nil
		}
		return cat, err
	}
	if err := yaml.Unmarshal(b, &cat); err != nil {
		return Catalog{}, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	for i, p := range cat.Packs {
		if p.ID == "" || p.Tokens <= 0 || p.PriceCents < 0 {
			return Catalog{}, fmt.Errorf("catalog %s: pack[%d] invalid", path, i)
		}
	}
	return cat, nil
}

// FirstTimeState describes per-pack first-time eligibility.
type FirstTimeState map[string]bool // packID -> true if first-time x2 is still available

// Plan summarizes a purchase plan.
type Plan struct {
	Purchases   []Purchase `json:"purchases"`
	SubCents    int        `json:"subCents"` // subtotal before tax
	TaxCents    int        `json:"taxCents"`
	TotalCents  int        `json:"totalCents"`
	TotalTokens int        `json:"totalTokens"`
	Currency    string     `json:"currency"`
}

// Purchase is one line item in the plan.
type Purchase struct {
	PackID     string `json:"packId"`
	Name       string `json:"name"`
	Qty        int    `json:"qty"`
	UnitPrice  int    `json:"unitPrice"`  // cents
	UnitTokens int    `json:"unitTokens"` // units received per unit in this plan (x2/bonus applied)
	Subtotal   int    `json:"subtotal"`   // cents
}

// applyTax computes tax and total given a subtotal and a tax rate.
func applyTax(sub int, taxRate float64) (tax int, total int) {
	if taxRate <= 0 {
		return 0, sub
	}
	t := int(math.Round(float64(sub) * taxRate))
	return t, sub + t
}
