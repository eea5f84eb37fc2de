package domain

import (
	"fmt"
	"regexp"
)

var (
	placeIDRegex  = regexp.MustCompile(`^\d+$`)
	placeURLRegex = regexp.MustCompile(`/games/(\d+)`)
)

// Username length bounds per product kind (gamepass target names are capped
// at 20 by the supplier).
const (
	usernameMin         = 3
	usernameMaxGamepass = 20
	usernameMaxVip      = 50
)

// ValidateOrderKind checks the product type tag.
func ValidateOrderKind(kind OrderKind) error {
	if kind != OrderKindGamepass && kind != OrderKindVipServer {
		return fmt.Errorf("unknown order kind: %s", kind)
	}
	return nil
}

// ValidateUsername checks the target account name against the length bounds
// for the product kind.
func ValidateUsername(kind OrderKind, username string) error {
	max := usernameMaxGamepass
	if kind == OrderKindVipServer {
		max = usernameMaxVip
	}
	if len(username) < usernameMin || len(username) > max {
		return fmt.Errorf("username must be %d to %d characters for %s", usernameMin, max, kind)
	}
	return nil
}

// ValidateOrderAmount checks the requested unit amount against settings bounds.
func ValidateOrderAmount(amount int64, s Settings) error {
	if amount < s.MinOrderAmount || amount > s.MaxOrderAmount {
		return fmt.Errorf("amount must be between %d and %d", s.MinOrderAmount, s.MaxOrderAmount)
	}
	return nil
}

// NormalizePlaceID accepts either a bare numeric place id or a game URL
// containing one, and returns the numeric id.
func NormalizePlaceID(raw string) (string, error) {
	if m := placeURLRegex.FindStringSubmatch(raw); m != nil {
		raw = m[1]
	}
	if !placeIDRegex.MatchString(raw) {
		return "", fmt.Errorf("place id must be numeric")
	}
	return raw, nil
}

// ValidatePositiveAmount checks that an amount is positive (in kopecks).
func ValidatePositiveAmount(amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("amount must be positive, got %d", amount)
	}
	return nil
}
