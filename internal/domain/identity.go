package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidRecord is returned for a shop with no primary id, external id or
// display name.
var ErrInvalidRecord = errors.New("shop record has no resolvable identity")

// IdentityKind says which source field an Identity came from.
type IdentityKind int

const (
	IdentityUnknown IdentityKind = iota
	IdentityPrimary
	IdentityExternal
	IdentityNameFallback
)

func (k IdentityKind) String() string {
	switch k {
	case IdentityPrimary:
		return "id"
	case IdentityExternal:
		return "ext"
	case IdentityNameFallback:
		return "name"
	default:
		return "unknown"
	}
}

// Identity is exactly one of Primary(id), External(id) or NameFallback(text).
type Identity struct {
	Kind  IdentityKind
	Value string
}

// Key renders the identity as a kind-prefixed key, or "" for the zero value.
func (i Identity) Key() string {
	if i.Kind == IdentityUnknown || i.Value == "" {
		return ""
	}
	return i.Kind.String() + ":" + i.Value
}

// ResolveIdentity picks the primary id, then the external id, then the
// trimmed display name.
func ResolveIdentity(shop ShopRecord) (Identity, error) {
	if id := strings.TrimSpace(shop.PrimaryID); id != "" {
		return Identity{Kind: IdentityPrimary, Value: id}, nil
	}
	if id := strings.TrimSpace(shop.ExternalID); id != "" {
		return Identity{Kind: IdentityExternal, Value: id}, nil
	}
	if name := strings.TrimSpace(shop.DisplayName); name != "" {
		return Identity{Kind: IdentityNameFallback, Value: name}, nil
	}
	return Identity{}, ErrInvalidRecord
}

// ResolveKey returns the identity key for shop, or "" if it has none.
func ResolveKey(shop ShopRecord) string {
	id, err := ResolveIdentity(shop)
	if err != nil {
		return ""
	}
	return id.Key()
}

// ValidateShop checks a record is fit to enter the ranking pipeline.
func ValidateShop(shop ShopRecord) error {
	if _, err := ResolveIdentity(shop); err != nil {
		return fmt.Errorf("shop %q: %w", shop.DisplayName, err)
	}
	return nil
}
