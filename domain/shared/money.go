package shared

import (
	"math"

	"github.com/shopspring/decimal"
)

// moneyScale is the number of fractional digits every Money keeps.
const moneyScale = 2

// Money 值对象 - 非负金额，精确到两位小数
// 构造时按"四舍五入、远离零"规则取整，之后所有运算都返回新值
type Money struct {
	amount decimal.Decimal
}

// Zero is the additive identity.
var Zero = Money{amount: decimal.Zero}

// NewMoney creates Money from a float, rounding to two fractional digits.
// NaN, infinities and negative amounts are rejected.
func NewMoney(amount float64) (Money, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return Money{}, NewValidationError("money", "amount", "money amount must be a finite number")
	}
	return NewMoneyFromDecimal(decimal.NewFromFloat(amount))
}

// NewMoneyFromDecimal creates Money from an exact decimal value.
func NewMoneyFromDecimal(amount decimal.Decimal) (Money, error) {
	if amount.IsNegative() {
		return Money{}, NewValidationError("money", "amount", "money amount cannot be negative")
	}
	return Money{amount: amount.Round(moneyScale)}, nil
}

// NewMoneyFromString parses a decimal literal such as "10.99".
func NewMoneyFromString(amount string) (Money, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, NewValidationError("money", "amount", "money amount is not a valid number: "+amount)
	}
	return NewMoneyFromDecimal(d)
}

// MustMoney is NewMoney for literals known to be valid. It panics otherwise.
func MustMoney(amount float64) Money {
	m, err := NewMoney(amount)
	if err != nil {
		panic(err)
	}
	return m
}

func (m Money) Amount() decimal.Decimal { return m.amount }

// Float64 returns the nearest float, used for wire payloads.
func (m Money) Float64() float64 { return m.amount.InexactFloat64() }

func (m Money) String() string { return m.amount.StringFixed(moneyScale) }

func (m Money) IsZero() bool { return m.amount.IsZero() }

func (m Money) Add(other Money) Money {
	return Money{amount: m.amount.Add(other.amount).Round(moneyScale)}
}

// Subtract fails when the result would be negative.
func (m Money) Subtract(other Money) (Money, error) {
	return NewMoneyFromDecimal(m.amount.Sub(other.amount))
}

// Multiply fails on a negative factor.
func (m Money) Multiply(factor int) (Money, error) {
	if factor < 0 {
		return Money{}, NewValidationError("money", "factor", "money factor cannot be negative")
	}
	return Money{amount: m.amount.Mul(decimal.NewFromInt(int64(factor))).Round(moneyScale)}, nil
}

func (m Money) Equals(other Money) bool      { return m.amount.Equal(other.amount) }
func (m Money) GreaterThan(other Money) bool { return m.amount.GreaterThan(other.amount) }
func (m Money) LessThan(other Money) bool    { return m.amount.LessThan(other.amount) }
