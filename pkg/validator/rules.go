package validator

import (
	"fmt"
	"net/mail"
	"regexp"
	"slices"
	"strings"

	"golang.org/x/text/currency"
)

var (
	phoneRegex     = regexp.MustCompile(`^\+?[1-9]\d{6,14}$`)
	hexStringRegex = regexp.MustCompile(`^[0-9A-Fa-f]+$`)
)

func Required(field, value string) Rule {
	return Rule{
		Check: func() bool { return strings.TrimSpace(value) != "" },
		Error: ValidationError{Field: field, Message: "field is required"},
	}
}

func MaxLen(field, value string, limit int) Rule {
	return Rule{
		Check: func() bool { return len(value) <= limit },
		Error: ValidationError{Field: field, Message: fmt.Sprintf("must be at most %d characters long", limit)},
	}
}

// Email accepts a bare address whose domain has at least one dot.
func Email(field, value string) Rule {
	return Rule{
		Check: func() bool {
			addr, err := mail.ParseAddress(value)
			if err != nil || addr.Address != strings.TrimSpace(value) {
				return false
			}
			local, domain, ok := strings.Cut(addr.Address, "@")
			if !ok || local == "" {
				return false
			}
			for part := range strings.SplitSeq(domain, ".") {
				if part == "" {
					return false
				}
			}
			return strings.Contains(domain, ".")
		},
		Error: ValidationError{Field: field, Message: "must be a valid email address"},
	}
}

// Phone accepts E.164-like numbers; spaces and dashes are ignored.
func Phone(field, value string) Rule {
	return Rule{
		Check: func() bool {
			cleaned := strings.NewReplacer(" ", "", "-", "").Replace(value)
			return phoneRegex.MatchString(cleaned)
		},
		Error: ValidationError{Field: field, Message: "must be a valid phone number in international format"},
	}
}

// Currency accepts ISO 4217 codes known to x/text.
func Currency(field, value string) Rule {
	return Rule{
		Check: func() bool {
			if len(value) != 3 {
				return false
			}
			_, err := currency.ParseISO(value)
			return err == nil
		},
		Error: ValidationError{Field: field, Message: "must be a valid ISO 4217 currency code"},
	}
}

func Positive[T ~int | ~int32 | ~int64 | ~float64](field string, value T) Rule {
	return Rule{
		Check: func() bool { return value > 0 },
		Error: ValidationError{Field: field, Message: "must be greater than zero"},
	}
}

// HexString checks a hex digest. length <= 0 accepts any length.
func HexString(field, value string, length int) Rule {
	return Rule{
		Check: func() bool {
			if length > 0 && len(value) != length {
				return false
			}
			return hexStringRegex.MatchString(value)
		},
		Error: ValidationError{Field: field, Message: "must be a hexadecimal digest"},
	}
}

func OneOf[T comparable](field string, value T, allowed ...T) Rule {
	return Rule{
		Check: func() bool { return slices.Contains(allowed, value) },
		Error: ValidationError{Field: field, Message: fmt.Sprintf("must be one of %v", allowed)},
	}
}
