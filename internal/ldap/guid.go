package ldap

import (
	"fmt"

	"github.com/go-ldap/ldap/v3"
	"github.com/google/uuid"
)

// GUIDBytesLength is the size of a binary GUID attribute value.
const GUIDBytesLength = 16

// DecodeGUID converts an Active Directory GUID value to a UUID.
// Active Directory uses mixed-endian encoding:
// - First 4 bytes (Data1): little-endian
// - Next 2 bytes (Data2): little-endian
// - Next 2 bytes (Data3): little-endian
// - Last 8 bytes (Data4): big-endian
func DecodeGUID(raw []byte) (uuid.UUID, error) {
	if len(raw) != GUIDBytesLength {
		return uuid.Nil, fmt.Errorf("invalid GUID byte length: expected %d, got %d", GUIDBytesLength, len(raw))
	}

	var id uuid.UUID

	// Data1 (bytes 0-3): reverse byte order (from little-endian)
	id[0], id[1], id[2], id[3] = raw[3], raw[2], raw[1], raw[0]
	// Data2 (bytes 4-5)
	id[4], id[5] = raw[5], raw[4]
	// Data3 (bytes 6-7)
	id[6], id[7] = raw[7], raw[6]
	// Data4 (bytes 8-15): keep original order (big-endian)
	copy(id[8:], raw[8:])

	return id, nil
}

// ExtractGUID decodes a binary GUID attribute from an entry. A missing
// attribute yields uuid.Nil without error.
func ExtractGUID(entry *ldap.Entry, attribute string) (uuid.UUID, error) {
	if entry == nil {
		return uuid.Nil, fmt.Errorf("LDAP entry cannot be nil")
	}

	raw := entry.GetRawAttributeValue(attribute)
	if len(raw) == 0 {
		return uuid.Nil, nil
	}

	id, err := DecodeGUID(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s on %s: %w", attribute, entry.DN, err)
	}
	return id, nil
}
