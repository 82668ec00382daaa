// Package currency implements the display contract for stored amounts.
// Amounts are always persisted as integers: minor units for most currencies,
// whole units for the zero-decimal set. Display conversion divides minor-unit
// amounts by 100; zero-decimal amounts pass through unchanged.
package currency

import (
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// defaultZeroDecimal lists the currencies stored (and displayed) in whole
// units. Extendable via a rules file, never shrinkable: the storage contract
// for these codes is already whole-unit.
var defaultZeroDecimal = []string{
	"IDR", "JPY", "KRW", "VND", "CLP", "PYG", "UGX", "XAF", "XOF",
}

var minorUnitDivisor = decimal.NewFromInt(100)

// Table answers zero-decimal lookups and converts stored amounts to display
// values. Safe for concurrent readers after construction.
type Table struct {
	zeroDecimal map[string]struct{}
}

// rulesFile is the on-disk YAML shape for zero-decimal overrides.
type rulesFile struct {
	ZeroDecimal []string `yaml:"zero_decimal"`
}

// NewTable builds a table with the default zero-decimal set.
func NewTable() *Table {
	t := &Table{zeroDecimal: make(map[string]struct{}, len(defaultZeroDecimal))}
	for _, code := range defaultZeroDecimal {
		t.zeroDecimal[code] = struct{}{}
	}
	return t
}

// LoadTable builds a table from the defaults plus the zero-decimal codes in
// the given YAML rules file. An empty path or missing file yields the
// defaults; a malformed file is an error.
func LoadTable(path string) (*Table, error) {
	t := NewTable()
	if path == "" {
		return t, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return t, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading currency rules %s: %w", path, err)
	}

	var rules rulesFile
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("parsing currency rules %s: %w", path, err)
	}

	for _, code := range rules.ZeroDecimal {
		code = strings.ToUpper(strings.TrimSpace(code))
		if code == "" {
			continue
		}
		t.zeroDecimal[code] = struct{}{}
	}
	return t, nil
}

// IsZeroDecimal reports whether the code is stored in whole units.
func (t *Table) IsZeroDecimal(code string) bool {
	_, ok := t.zeroDecimal[strings.ToUpper(code)]
	return ok
}

// DisplayValue converts a stored integer amount to its display value.
func (t *Table) DisplayValue(amount int64, code string) decimal.Decimal {
	d := decimal.NewFromInt(amount)
	if t.IsZeroDecimal(code) {
		return d
	}
	return d.Div(minorUnitDivisor)
}

// Format renders a stored amount with its currency code, e.g. "IDR 1715000"
// or "USD 17.50".
func (t *Table) Format(amount int64, code string) string {
	v := t.DisplayValue(amount, code)
	if t.IsZeroDecimal(code) {
		return fmt.Sprintf("%s %s", strings.ToUpper(code), v.StringFixed(0))
	}
	return fmt.Sprintf("%s %s", strings.ToUpper(code), v.StringFixed(2))
}
