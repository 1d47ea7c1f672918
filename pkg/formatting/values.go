// Package formatting provides human-readable formatting and parsing utilities
// for contract values (currency, dates, FTE, grouped numbers) and byte sizes.
package formatting

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// CurrencySymbol prefixes every formatted currency value.
const CurrencySymbol = "$"

var isoDatePattern = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})(?:[T ].*)?$`)

// FormatCurrency rounds v to the nearest whole unit and renders it with
// thousands separators and the currency symbol. Values that cannot be read
// as a number, including nil, render as "$0".
func FormatCurrency(v any) string {
	f, ok := ToFloat(v)
	if !ok {
		return CurrencySymbol + "0"
	}

	rounded := math.Round(f)
	sign := ""
	if rounded < 0 {
		sign = "-"
		rounded = -rounded
	}

	return sign + CurrencySymbol + group(strconv.FormatFloat(rounded, 'f', 0, 64))
}

// FormatDate converts an ISO date (YYYY-MM-DD, optionally followed by a time
// component) to MM/DD/YYYY. Any other input is returned unchanged.
func FormatDate(v any) string {
	if t, ok := v.(time.Time); ok {
		return t.Format("01/02/2006")
	}

	s := Stringify(v)
	m := isoDatePattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return s
	}
	return fmt.Sprintf("%s/%s/%s", m[2], m[3], m[1])
}

// FormatFTE renders v as a fixed two-decimal number.
// Non-numeric input is returned as its plain string form.
func FormatFTE(v any) string {
	f, ok := ToFloat(v)
	if !ok {
		return Stringify(v)
	}
	return strconv.FormatFloat(f, 'f', 2, 64)
}

// FormatNumber renders v with thousands separators and at most three
// fraction digits. Non-numeric input is returned as its plain string form.
func FormatNumber(v any) string {
	f, ok := ToFloat(v)
	if !ok {
		return Stringify(v)
	}

	f = math.Round(f*1000) / 1000
	s := strconv.FormatFloat(math.Abs(f), 'f', -1, 64)

	whole, frac, hasFrac := strings.Cut(s, ".")
	out := group(whole)
	if hasFrac {
		out += "." + frac
	}
	if f < 0 {
		out = "-" + out
	}
	return out
}

// Stringify renders a scalar as plain text. Nil becomes the empty string,
// never "null" or "<nil>".
func Stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case bool:
		return strconv.FormatBool(x)
	case json.Number:
		return x.String()
	case time.Time:
		return x.Format(time.DateOnly)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

// ToFloat reads v as a number. Strings are accepted when they parse after
// removing surrounding whitespace, the currency symbol, and group separators.
func ToFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, !math.IsNaN(x) && !math.IsInf(x, 0)
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case int32:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case string:
		s := strings.TrimSpace(x)
		s = strings.ReplaceAll(s, ",", "")
		s = strings.Replace(s, CurrencySymbol, "", 1)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// IsBlank reports whether v carries no printable value.
func IsBlank(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	default:
		return false
	}
}

func group(digits string) string {
	if len(digits) <= 3 {
		return digits
	}

	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
