// Package money は最小通貨単位の整数金額と表示用文字列の相互変換を行う。
package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// MaxAmount は受け付ける最大金額（最小通貨単位）。
const MaxAmount int64 = 100_000_000_00

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrPrecision     = errors.New("too many decimal places")
)

// zeroDecimal は補助単位を持たない通貨。
var zeroDecimal = map[string]bool{
	"jpy": true,
	"krw": true,
	"vnd": true,
	"clp": true,
}

var symbols = map[string]string{
	"usd": "$",
	"eur": "€",
	"gbp": "£",
	"jpy": "¥",
}

// Exponent は通貨の小数桁数を返す。
func Exponent(currency string) int32 {
	if zeroDecimal[strings.ToLower(currency)] {
		return 0
	}
	return 2
}

// Format は最小通貨単位の金額を "$12.99" のような表示用文字列に変換する。
// 記号が未登録の通貨は "CHF 12.99" のように通貨コードを前置する。
func Format(amount int64, currency string) string {
	value := FormatPlain(amount, currency)

	if symbol, ok := symbols[strings.ToLower(currency)]; ok {
		if strings.HasPrefix(value, "-") {
			return "-" + symbol + value[1:]
		}
		return symbol + value
	}
	return strings.ToUpper(currency) + " " + value
}

// FormatPlain は記号を付けずに主単位の数値として表す（"12.99"）。入力フォームの初期値に使う。
func FormatPlain(amount int64, currency string) string {
	exp := Exponent(currency)
	return decimal.New(amount, -exp).StringFixed(exp)
}

// Parse は "12.99" のような主単位の文字列を最小通貨単位の整数に変換する。
// 負数、通貨の小数桁数を超える精度、MaxAmountを超える値はエラーとなる。
func Parse(s, currency string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("%w: negative", ErrInvalidAmount)
	}

	exp := Exponent(currency)
	if d.Exponent() < -exp {
		return 0, ErrPrecision
	}

	minor := d.Shift(exp)
	if minor.GreaterThan(decimal.NewFromInt(MaxAmount)) {
		return 0, fmt.Errorf("%w: exceeds maximum", ErrInvalidAmount)
	}
	return minor.IntPart(), nil
}
