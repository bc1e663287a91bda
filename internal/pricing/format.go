package pricing

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrUnsupportedLocale is returned for locales or currencies without a format.
var ErrUnsupportedLocale = errors.New("unsupported locale or currency")

type localeFormat struct {
	decimalSep  string
	groupSep    string
	symbolFirst bool
	symbolSpace bool
}

var locales = map[string]localeFormat{
	"de-DE": {decimalSep: ",", groupSep: ".", symbolFirst: false, symbolSpace: true},
	"de-AT": {decimalSep: ",", groupSep: ".", symbolFirst: true, symbolSpace: true},
	"en-US": {decimalSep: ".", groupSep: ",", symbolFirst: true},
	"en-GB": {decimalSep: ".", groupSep: ",", symbolFirst: true},
}

var currencySymbols = map[string]string{
	"EUR": "€",
	"USD": "$",
	"GBP": "£",
	"CHF": "CHF",
}

// Formatter renders amounts the way shoppers of a locale expect them.
type Formatter struct {
	locale string
	symbol string
	format localeFormat
}

// NewFormatter builds a Formatter for a BCP 47 locale and ISO 4217 currency.
func NewFormatter(locale, currency string) (Formatter, error) {
	lf, ok := locales[locale]
	if !ok {
		return Formatter{}, fmt.Errorf("%w: locale %q", ErrUnsupportedLocale, locale)
	}
	symbol, ok := currencySymbols[strings.ToUpper(currency)]
	if !ok {
		return Formatter{}, fmt.Errorf("%w: currency %q", ErrUnsupportedLocale, currency)
	}
	return Formatter{locale: locale, symbol: symbol, format: lf}, nil
}

// Locale returns the formatter's locale tag.
func (f Formatter) Locale() string {
	return f.locale
}

// Format renders amount rounded to two places, e.g. "1.234,56 €" for de-DE.
func (f Formatter) Format(amount decimal.Decimal) string {
	fixed := amount.StringFixed(currencyPlaces)
	negative := strings.HasPrefix(fixed, "-")
	fixed = strings.TrimPrefix(fixed, "-")

	intPart, fracPart, _ := strings.Cut(fixed, ".")
	number := groupThousands(intPart, f.format.groupSep) + f.format.decimalSep + fracPart

	sep := ""
	if f.format.symbolSpace {
		sep = " "
	}

	var out string
	if f.format.symbolFirst {
		out = f.symbol + sep + number
	} else {
		out = number + sep + f.symbol
	}
	if negative && !amount.IsZero() {
		out = "-" + out
	}
	return out
}

// FormattedTotals is Totals rendered for display.
type FormattedTotals struct {
	SubTotal    string `json:"subTotal"`
	ExtrasTotal string `json:"extrasTotal"`
	GrandTotal  string `json:"grandTotal"`
}

// FormatTotals renders all three totals.
func (f Formatter) FormatTotals(t Totals) FormattedTotals {
	return FormattedTotals{
		SubTotal:    f.Format(t.SubTotal),
		ExtrasTotal: f.Format(t.ExtrasTotal),
		GrandTotal:  f.Format(t.GrandTotal),
	}
}

func groupThousands(digits, sep string) string {
	if len(digits) <= 3 || sep == "" {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteString(sep)
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
