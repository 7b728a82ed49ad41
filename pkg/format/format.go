package format

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	apperrors "github.com/Rohianon/folio/pkg/errors"
)

// Missing is shown wherever an optional value is absent.
const Missing = "—"

const DefaultCurrency = money.INR

var (
	mu       sync.RWMutex
	currency = money.GetCurrency(DefaultCurrency)
)

// SetCurrency selects the display currency by ISO code. It is called once
// at startup from the display.currency setting.
func SetCurrency(code string) error {
	c := money.GetCurrency(strings.ToUpper(strings.TrimSpace(code)))
	if c == nil {
		return apperrors.ErrValidation.WithMessage(fmt.Sprintf("unknown currency %q", code))
	}

	mu.Lock()
	currency = c
	mu.Unlock()
	return nil
}

// CurrencyCode returns the active display currency.
func CurrencyCode() string {
	mu.RLock()
	defer mu.RUnlock()
	return currency.Code
}

func amount(v float64) *money.Money {
	mu.RLock()
	c := currency
	mu.RUnlock()

	minor := decimal.NewFromFloat(v).Round(int32(c.Fraction)).Shift(int32(c.Fraction)).IntPart()
	return money.New(minor, c.Code)
}

// Currency formats v with the currency symbol and thousands grouping,
// e.g. ₹1,234.56.
func Currency(v float64) string {
	m := amount(v)
	if m.IsNegative() {
		return "-" + m.Absolute().Display()
	}
	return m.Display()
}

// SignedCurrency always shows a sign: +₹150.00, -₹50.00. Zero is unsigned.
func SignedCurrency(v float64) string {
	m := amount(v)
	switch {
	case m.IsPositive():
		return "+" + m.Display()
	case m.IsNegative():
		return "-" + m.Absolute().Display()
	default:
		return m.Display()
	}
}

func round2(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(2)
}

// Percent formats v (already a percentage) with two places: 7.50%.
func Percent(v float64) string {
	return round2(v).StringFixed(2) + "%"
}

// SignedPercent is Percent with an explicit plus sign for positive values.
func SignedPercent(v float64) string {
	d := round2(v)
	if d.IsPositive() {
		return "+" + d.StringFixed(2) + "%"
	}
	return d.StringFixed(2) + "%"
}

// Ratio formats a 0..1 fraction as a percentage, e.g. 0.235 → 23.50%.
func Ratio(v float64) string {
	return Percent(v * 100)
}

// Volume abbreviates traded volume: 1.2M, 3.4K, 950.
func Volume(n *int64) string {
	if n == nil {
		return Missing
	}

	v := *n
	abs := v
	if abs < 0 {
		abs = -abs
	}

	switch {
	case abs >= 1_000_000:
		return decimal.New(v, -6).StringFixed(1) + "M"
	case abs >= 1_000:
		return decimal.New(v, -3).StringFixed(1) + "K"
	default:
		return fmt.Sprintf("%d", v)
	}
}

// OptionalFloat formats p to places decimals, or Missing when nil.
func OptionalFloat(p *float64, places int) string {
	if p == nil {
		return Missing
	}
	return decimal.NewFromFloat(*p).StringFixed(int32(places))
}

// Score formats a 0..100 score without decimals.
func Score(v float64) string {
	return decimal.NewFromFloat(v).Round(0).String()
}

// Clock formats a timestamp for status lines; the zero time is Missing.
func Clock(t time.Time) string {
	if t.IsZero() {
		return Missing
	}
	return t.Local().Format("15:04:05")
}
