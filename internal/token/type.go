package token

import (
	"fmt"
	"strings"
)

// Type identifies what kind of entity a token stands in for.
type Type string

const (
	TypeStudent    Type = "STUDENT"
	TypeTeacher    Type = "TEACHER"
	TypeCourse     Type = "COURSE"
	TypeSection    Type = "SECTION"
	TypeAssignment Type = "ASSIGNMENT"
)

// Status is the lifecycle state of a token row.
type Status string

const (
	StatusActive  Status = "ACTIVE"
	StatusExpired Status = "EXPIRED"
	StatusRevoked Status = "REVOKED"
	StatusRotated Status = "ROTATED"
)

// prefixes is the fixed bijection between token value prefixes and types.
var prefixes = map[string]Type{
	"STU": TypeStudent,
	"TCH": TypeTeacher,
	"CRS": TypeCourse,
	"SEC": TypeSection,
	"ASN": TypeAssignment,
}

// Prefix returns the 3-character value prefix for the type.
func (t Type) Prefix() string {
	for p, typ := range prefixes {
		if typ == t {
			return p
		}
	}
	return ""
}

// EntityType returns the denormalized entity type string stored alongside tokens.
// It is the type name itself; kept as a separate accessor so callers don't
// depend on that coincidence.
func (t Type) EntityType() string {
	return string(t)
}

// Valid reports whether t is one of the known token types.
func (t Type) Valid() bool {
	return t.Prefix() != ""
}

// TypeFromPrefix maps a value prefix (e.g. "STU") back to its type.
// Comparison is case-insensitive. Returns ErrUnknownTokenType for anything else.
func TypeFromPrefix(prefix string) (Type, error) {
	if t, ok := prefixes[strings.ToUpper(prefix)]; ok {
		return t, nil
	}
	return "", fmt.Errorf("%w: prefix %q", ErrUnknownTokenType, prefix)
}

// TypeFromEntityType maps an entity type string (e.g. "STUDENT") back to its type.
func TypeFromEntityType(entityType string) (Type, error) {
	t := Type(strings.ToUpper(entityType))
	if !t.Valid() {
		return "", fmt.Errorf("%w: entity type %q", ErrUnknownTokenType, entityType)
	}
	return t, nil
}
