// Package id defines TypeID-based identity types for all Prepaid entities.
//
// Every entity in Prepaid uses a single ID struct with a prefix that
// identifies the entity type. IDs are K-sortable (UUIDv7-based), globally
// unique, and URL-safe in the format "prefix_suffix".
package id

import (
	"database/sql/driver"
	"fmt"

	"go.jetify.com/typeid/v2"
)

// Prefix identifies the entity type encoded in a TypeID.
type Prefix string

// Prefix constants for all Prepaid entity types.
const (
	PrefixVoucher  Prefix = "vch"  // Prepaid voucher
	PrefixTemplate Prefix = "vtpl" // Voucher template
	PrefixLogEntry Prefix = "txl"  // Transaction log entry
	PrefixPackage  Prefix = "pkg"  // Service package
	PrefixLineItem Prefix = "pli"  // Package line item
	PrefixService  Prefix = "svc"  // Service reference
	PrefixMember   Prefix = "mem"  // Member reference
	PrefixTransfer Prefix = "trf"  // Staged transfer item
	PrefixTempKey  Prefix = "tmp"  // Client-side correlation key
)

// ID is the primary identifier type for all Prepaid entities.
// It wraps a TypeID providing a prefix-qualified, globally unique,
// sortable, URL-safe identifier in the format "prefix_suffix".
//
//nolint:recvcheck // Value receivers for read-only methods, pointer receivers for UnmarshalText/Scan.
type ID struct {
	inner typeid.TypeID
	valid bool
}

// Nil is the zero-value ID.
var Nil ID

// New generates a new globally unique ID with the given prefix.
// It panics if prefix is not a valid TypeID prefix (programming error).
func New(prefix Prefix) ID {
	tid, err := typeid.Generate(string(prefix))
	if err != nil {
		panic(fmt.Sprintf("id: invalid prefix %q: %v", prefix, err))
	}

	return ID{inner: tid, valid: true}
}

// Parse parses a TypeID string (e.g., "vch_01h2xcejqtf2nbrexx3vqjhp41")
// into an ID. Returns an error if the string is not valid.
func Parse(s string) (ID, error) {
	if s == "" {
		return Nil, fmt.Errorf("id: parse %q: empty string", s)
	}

	tid, err := typeid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("id: parse %q: %w", s, err)
	}

	return ID{inner: tid, valid: true}, nil
}

// ParseWithPrefix parses a TypeID string and validates that its prefix
// matches the expected value.
func ParseWithPrefix(s string, expected Prefix) (ID, error) {
	parsed, err := Parse(s)
	if err != nil {
		return Nil, err
	}

	if parsed.Prefix() != expected {
		return Nil, fmt.Errorf("id: expected prefix %q, got %q", expected, parsed.Prefix())
	}

	return parsed, nil
}

// MustParse is like Parse but panics on error. Use for hardcoded ID values.
func MustParse(s string) ID {
	parsed, err := Parse(s)
	if err != nil {
		panic(fmt.Sprintf("id: must parse %q: %v", s, err))
	}

	return parsed
}

// MustParseWithPrefix is like ParseWithPrefix but panics on error.
func MustParseWithPrefix(s string, expected Prefix) ID {
	parsed, err := ParseWithPrefix(s, expected)
	if err != nil {
		panic(fmt.Sprintf("id: must parse with prefix %q: %v", expected, err))
	}

	return parsed
}

// ──────────────────────────────────────────────────
// Type aliases per entity
// ──────────────────────────────────────────────────

// VoucherID is a type-safe identifier for vouchers (prefix: "vch").
type VoucherID = ID

// TemplateID is a type-safe identifier for voucher templates (prefix: "vtpl").
type TemplateID = ID

// LogEntryID is a type-safe identifier for transaction log entries (prefix: "txl").
type LogEntryID = ID

// PackageID is a type-safe identifier for packages (prefix: "pkg").
type PackageID = ID

// LineItemID is a type-safe identifier for package line items (prefix: "pli").
type LineItemID = ID

// ServiceID is a type-safe identifier for services (prefix: "svc").
type ServiceID = ID

// MemberID is a type-safe identifier for members (prefix: "mem").
type MemberID = ID

// TransferID is a type-safe identifier for staged transfer items (prefix: "trf").
type TransferID = ID

// AnyID is a type alias that accepts any valid prefix.
type AnyID = ID

// ──────────────────────────────────────────────────
// Convenience constructors
// ──────────────────────────────────────────────────

// NewVoucherID generates a new unique voucher ID.
func NewVoucherID() ID { return New(PrefixVoucher) }

// NewTemplateID generates a new unique template ID.
func NewTemplateID() ID { return New(PrefixTemplate) }

// NewLogEntryID generates a new unique log entry ID.
func NewLogEntryID() ID { return New(PrefixLogEntry) }

// NewPackageID generates a new unique package ID.
func NewPackageID() ID { return New(PrefixPackage) }

// NewLineItemID generates a new unique line item ID.
func NewLineItemID() ID { return New(PrefixLineItem) }

// NewServiceID generates a new unique service ID.
func NewServiceID() ID { return New(PrefixService) }

// NewMemberID generates a new unique member ID.
func NewMemberID() ID { return New(PrefixMember) }

// NewTransferID generates a new unique transfer item ID.
func NewTransferID() ID { return New(PrefixTransfer) }

// NewTempKey generates a new client-side correlation key. Temp keys tag
// to-be-created packages so that staged transfers can reference a destination
// before the server has assigned it a real ID.
func NewTempKey() string { return New(PrefixTempKey).String() }

// ──────────────────────────────────────────────────
// Convenience parsers
// ──────────────────────────────────────────────────

// ParseVoucherID parses a string and validates the "vch" prefix.
func ParseVoucherID(s string) (ID, error) { return ParseWithPrefix(s, PrefixVoucher) }

// ParseTemplateID parses a string and validates the "vtpl" prefix.
func ParseTemplateID(s string) (ID, error) { return ParseWithPrefix(s, PrefixTemplate) }

// ParseLogEntryID parses a string and validates the "txl" prefix.
func ParseLogEntryID(s string) (ID, error) { return ParseWithPrefix(s, PrefixLogEntry) }

// ParsePackageID parses a string and validates the "pkg" prefix.
func ParsePackageID(s string) (ID, error) { return ParseWithPrefix(s, PrefixPackage) }

// ParseLineItemID parses a string and validates the "pli" prefix.
func ParseLineItemID(s string) (ID, error) { return ParseWithPrefix(s, PrefixLineItem) }

// ParseServiceID parses a string and validates the "svc" prefix.
func ParseServiceID(s string) (ID, error) { return ParseWithPrefix(s, PrefixService) }

// ParseMemberID parses a string and validates the "mem" prefix.
func ParseMemberID(s string) (ID, error) { return ParseWithPrefix(s, PrefixMember) }

// ParseTransferID parses a string and validates the "trf" prefix.
func ParseTransferID(s string) (ID, error) { return ParseWithPrefix(s, PrefixTransfer) }

// ParseAny parses a string into an ID without type checking the prefix.
func ParseAny(s string) (ID, error) { return Parse(s) }

// IsTempKey reports whether s is a client-side correlation key rather than
// a server-assigned entity ID.
func IsTempKey(s string) bool {
	parsed, err := Parse(s)
	if err != nil {
		return false
	}

	return parsed.Prefix() == PrefixTempKey
}

// ──────────────────────────────────────────────────
// ID methods
// ──────────────────────────────────────────────────

// String returns the full TypeID string representation (prefix_suffix).
// Returns an empty string for the Nil ID.
func (i ID) String() string {
	if !i.valid {
		return ""
	}

	return i.inner.String()
}

// Prefix returns the prefix component of this ID.
func (i ID) Prefix() Prefix {
	if !i.valid {
		return ""
	}

	return Prefix(i.inner.Prefix())
}

// IsNil reports whether this ID is the zero value.
func (i ID) IsNil() bool {
	return !i.valid
}

// MarshalText implements encoding.TextMarshaler.
func (i ID) MarshalText() ([]byte, error) {
	if !i.valid {
		return []byte{}, nil
	}

	return []byte(i.inner.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *ID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*i = Nil

		return nil
	}

	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}

	*i = parsed

	return nil
}

// Value implements driver.Valuer for database storage.
// Returns nil for the Nil ID so that optional foreign key columns store NULL.
func (i ID) Value() (driver.Value, error) {
	if !i.valid {
		return nil, nil //nolint:nilnil // nil is the canonical NULL for driver.Valuer
	}

	return i.inner.String(), nil
}

// Scan implements sql.Scanner for database retrieval.
func (i *ID) Scan(src any) error {
	if src == nil {
		*i = Nil

		return nil
	}

	switch v := src.(type) {
	case string:
		if v == "" {
			*i = Nil

			return nil
		}

		return i.UnmarshalText([]byte(v))
	case []byte:
		if len(v) == 0 {
			*i = Nil

			return nil
		}

		return i.UnmarshalText(v)
	default:
		return fmt.Errorf("id: cannot scan %T into ID", src)
	}
}
