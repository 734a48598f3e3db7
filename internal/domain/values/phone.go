package values

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// PhoneNumber represents a normalized caller identity value object.
// Numbers are stored in E.164-style canonical form (+1234567890).
type PhoneNumber struct {
	number string
}

// NormalizePhone converts a raw phone string from either tracking system
// into canonical international form. The lead source reports bare 10- and
// 11-digit US numbers while the routing platform already uses +-prefixed
// identifiers, so both must collapse to the same key before any comparison.
//
// Rules, in order:
//   - already +-prefixed: passed through unchanged
//   - 11 digits starting with 1: "+" prefix
//   - 10 digits: "+1" prefix
//   - any other non-empty digit string: bare "+" prefix
//   - empty or no digits at all: not normalizable
func NormalizePhone(raw string) (PhoneNumber, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return PhoneNumber{}, false
	}

	if strings.HasPrefix(trimmed, "+") {
		return PhoneNumber{number: trimmed}, true
	}

	digits := digitsOnly(trimmed)
	if digits == "" {
		return PhoneNumber{}, false
	}

	switch {
	case len(digits) == 11 && digits[0] == '1':
		return PhoneNumber{number: "+" + digits}, true
	case len(digits) == 10:
		return PhoneNumber{number: "+1" + digits}, true
	default:
		return PhoneNumber{number: "+" + digits}, true
	}
}

// MustNormalizePhone normalizes and panics on failure (for constants/tests)
func MustNormalizePhone(raw string) PhoneNumber {
	p, ok := NormalizePhone(raw)
	if !ok {
		panic(fmt.Sprintf("unnormalizable phone number: %q", raw))
	}
	return p
}

// String returns the canonical form.
func (p PhoneNumber) String() string {
	return p.number
}

// E164 returns the canonical form (alias for String)
func (p PhoneNumber) E164() string {
	return p.number
}

// IsEmpty checks if the phone number is empty
func (p PhoneNumber) IsEmpty() bool {
	return p.number == ""
}

// Equal checks if two PhoneNumber values are equal
func (p PhoneNumber) Equal(other PhoneNumber) bool {
	return p.number == other.number
}

// MarshalJSON implements JSON marshaling
func (p PhoneNumber) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.number)
}

// UnmarshalJSON implements JSON unmarshaling
func (p *PhoneNumber) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == "" {
		*p = PhoneNumber{}
		return nil
	}
	phone, ok := NormalizePhone(raw)
	if !ok {
		return fmt.Errorf("unnormalizable phone number: %q", raw)
	}
	*p = phone
	return nil
}

// Value implements driver.Valuer for database storage
func (p PhoneNumber) Value() (driver.Value, error) {
	if p.number == "" {
		return nil, nil
	}
	return p.number, nil
}

// Scan implements sql.Scanner for database retrieval
func (p *PhoneNumber) Scan(value interface{}) error {
	if value == nil {
		*p = PhoneNumber{}
		return nil
	}

	var str string
	switch v := value.(type) {
	case string:
		str = v
	case []byte:
		str = string(v)
	default:
		return fmt.Errorf("cannot scan %T into PhoneNumber", value)
	}

	if str == "" {
		*p = PhoneNumber{}
		return nil
	}

	phone, ok := NormalizePhone(str)
	if !ok {
		return fmt.Errorf("unnormalizable phone number in database: %q", str)
	}
	*p = phone
	return nil
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
