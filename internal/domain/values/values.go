// Package values provides the fixed-point value objects shared across the
// execution engine: money, quantity, symbols and the identifiers that name
// orders, fills and brokers. None of these types carry behavior beyond
// validation and arithmetic — they exist so the rest of the domain never
// touches a bare float64 or string where a mistake would be silent.
package values

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrNonPositive = errors.New("value must be strictly positive")
	ErrNegative = errors.New("value must not be negative")
	ErrEmptySymbol = errors.New("symbol must not be empty")
	ErrInvalidSide = errors.New("side must be Buy or Sell")
)

// Money wraps a shopspring/decimal.Decimal so prices, notionals and P&L
// never round-trip through float64. Never construct Money from a float
// literal outside tests; parse it from a string or another Decimal.
type Money struct {
	d decimal.Decimal
}

func NewMoney(d decimal.Decimal) Money { return Money{d: d} }

func MoneyFromString(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("parse money %q: %w", s, err)
	}
	return Money{d: d}, nil
}

func MustMoney(s string) Money {
	m, err := MoneyFromString(s)
	if err != nil {
		panic(err)
	}
	return m
}

func ZeroMoney() Money { return Money{d: decimal.Zero} }

func (m Money) Decimal() decimal.Decimal { return m.d }
func (m Money) IsPositive() bool { return m.d.IsPositive() }
func (m Money) IsZero() bool { return m.d.IsZero() }
func (m Money) Add(o Money) Money { return Money{d: m.d.Add(o.d)} }
func (m Money) Sub(o Money) Money { return Money{d: m.d.Sub(o.d)} }
func (m Money) Mul(o Money) Money { return Money{d: m.d.Mul(o.d)} }
func (m Money) Cmp(o Money) int { return m.d.Cmp(o.d) }
func (m Money) GreaterThan(o Money) bool { return m.d.GreaterThan(o.d) }
func (m Money) LessThan(o Money) bool { return m.d.LessThan(o.d) }
func (m Money) Round(places int32) Money { return Money{d: m.d.Round(places)} }
func (m Money) String() string { return m.d.String() }

func (m Money) MarshalJSON() ([]byte, error) { return m.d.MarshalJSON() }
func (m *Money) UnmarshalJSON(b []byte) error { return m.d.UnmarshalJSON(b) }

// Quantity is a non-negative decimal count of units/shares/contracts.
type Quantity struct {
	d decimal.Decimal
}

func NewQuantity(d decimal.Decimal) (Quantity, error) {
	if d.IsNegative() {
		return Quantity{}, ErrNegative
	}
	return Quantity{d: d}, nil
}

func QuantityFromString(s string) (Quantity, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Quantity{}, fmt.Errorf("parse quantity %q: %w", s, err)
	}
	return NewQuantity(d)
}

func MustQuantity(s string) Quantity {
	q, err := QuantityFromString(s)
	if err != nil {
		panic(err)
	}
	return q
}

func ZeroQuantity() Quantity { return Quantity{d: decimal.Zero} }

func (q Quantity) Decimal() decimal.Decimal { return q.d }
func (q Quantity) IsZero() bool { return q.d.IsZero() }
func (q Quantity) IsPositive() bool { return q.d.IsPositive() }
func (q Quantity) Add(o Quantity) Quantity { return Quantity{d: q.d.Add(o.d)} }
func (q Quantity) Sub(o Quantity) Quantity { return Quantity{d: q.d.Sub(o.d)} }
func (q Quantity) Cmp(o Quantity) int { return q.d.Cmp(o.d) }
func (q Quantity) GreaterThan(o Quantity) bool { return q.d.GreaterThan(o.d) }
func (q Quantity) LessThan(o Quantity) bool { return q.d.LessThan(o.d) }
func (q Quantity) String() string { return q.d.String() }

func (q Quantity) MarshalJSON() ([]byte, error) { return q.d.MarshalJSON() }
func (q *Quantity) UnmarshalJSON(b []byte) error { return q.d.UnmarshalJSON(b) }

// Symbol identifies a tradeable instrument. Stored upper-cased and trimmed
// so map lookups and broker comparisons never diverge over casing.
type Symbol string

func NewSymbol(raw string) (Symbol, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(raw))
	if trimmed == "" {
		return "", ErrEmptySymbol
	}
	return Symbol(trimmed), nil
}

func (s Symbol) String() string { return string(s) }

// Side is the direction of an order.
type Side string

const (
	Buy Side = "Buy"
	Sell Side = "Sell"
)

func (s Side) Valid() bool { return s == Buy || s == Sell }

func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// OrderId is the engine-assigned, stable, never-reused identifier for an
// Order aggregate. Generated once at creation; reconstitution reuses the
// persisted value rather than minting a new one.
type OrderId string

func NewOrderId() OrderId { return OrderId(uuid.New().String()) }

func (id OrderId) String() string { return string(id) }
func (id OrderId) IsEmpty() bool { return id == "" }

// BrokerId is the broker-assigned order identifier, only known once the
// broker has acknowledged the order (Accepted).
type BrokerId string

func (id BrokerId) String() string { return string(id) }
func (id BrokerId) IsEmpty() bool { return id == "" }

// FillId uniquely identifies a single fill report within an order's
// lifetime. Duplicated fill IDs on the same order are a protocol error the
// broker adapter should have already deduplicated; the aggregate does not
// re-check it beyond the FIX quantity invariant.
type FillId string

func NewFillId() FillId { return FillId(uuid.New().String()) }

func (id FillId) String() string { return string(id) }

// Timestamp wraps time.Time in UTC, the only timezone the engine reasons
// about internally; conversion to local time, if ever needed, happens at
// the presentation boundary.
type Timestamp struct {
	t time.Time
}

func NewTimestamp(t time.Time) Timestamp { return Timestamp{t: t.UTC()} }

func (ts Timestamp) Time() time.Time { return ts.t }
func (ts Timestamp) IsZero() bool { return ts.t.IsZero() }
func (ts Timestamp) Before(o Timestamp) bool { return ts.t.Before(o.t) }
func (ts Timestamp) Sub(o Timestamp) time.Duration { return ts.t.Sub(o.t) }
func (ts Timestamp) String() string { return ts.t.Format(time.RFC3339Nano) }
