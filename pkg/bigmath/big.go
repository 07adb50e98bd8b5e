package bigmath

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"math/big"
)

// Big wraps math/big.Int so monetary amounts (native smallest units, unsigned)
// can live in gorm columns and JSON payloads as exact decimal strings.
// The zero value behaves as 0.
type Big struct {
	i big.Int
}

func New(i *big.Int) Big {
	var b Big
	if i != nil {
		b.i.Set(i)
	}
	return b
}

func NewUint64(v uint64) Big {
	var b Big
	b.i.SetUint64(v)
	return b
}

// FromString parses a base-10 unsigned integer string.
func FromString(s string) (Big, error) {
	var b Big
	if s == "" {
		return b, errors.New("bigmath: empty amount")
	}
	i, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return b, fmt.Errorf("bigmath: invalid amount %q", s)
	}
	if i.Sign() < 0 {
		return b, fmt.Errorf("bigmath: negative amount %q", s)
	}
	b.i.Set(i)
	return b, nil
}

// Int returns a copy; callers never alias the stored value.
func (b *Big) Int() *big.Int { return new(big.Int).Set(&b.i) }

func (b *Big) Set(i *big.Int) {
	if i == nil {
		b.i.SetInt64(0)
		return
	}
	b.i.Set(i)
}

func (b *Big) Sign() int          { return b.i.Sign() }
func (b *Big) Cmp(o *big.Int) int { return b.i.Cmp(o) }
func (b Big) String() string      { return b.i.String() }

// --- database/sql + gorm plumbing ---

// Stored as a decimal string; varchar(78) fits any 256-bit value.
func (Big) GormDataType() string { return "varchar(78)" }

func (b Big) Value() (driver.Value, error) { return b.i.String(), nil }

func (b *Big) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		b.i.SetInt64(0)
		return nil
	case []byte:
		return b.scanString(string(v))
	case string:
		return b.scanString(v)
	case int64:
		b.i.SetInt64(v)
		return nil
	default:
		return fmt.Errorf("bigmath: cannot scan %T", src)
	}
}

func (b *Big) scanString(s string) error {
	if s == "" {
		b.i.SetInt64(0)
		return nil
	}
	if _, ok := b.i.SetString(s, 10); !ok {
		return fmt.Errorf("bigmath: invalid stored amount %q", s)
	}
	return nil
}

// --- JSON: amounts travel as decimal strings, never floats ---

func (b Big) MarshalJSON() ([]byte, error) {
	return []byte(`"` + b.i.String() + `"`), nil
}

func (b *Big) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	parsed, err := FromString(s)
	if err != nil {
		return err
	}
	b.i.Set(&parsed.i)
	return nil
}
