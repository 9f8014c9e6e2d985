package schema

import (
	"encoding/hex"
	"fmt"
)

// Syntax names reported for attribute definitions.
const (
	SyntaxCaseExactString     = "CaseExactString"
	SyntaxCaseIgnoreString    = "CaseIgnoreString"
	SyntaxNumericString       = "NumericString"
	SyntaxDirectoryString     = "DirectoryString"
	SyntaxOctetString         = "OctetString"
	SyntaxSecurityDescriptor  = "SecurityDescriptor"
	SyntaxInt                 = "Int"
	SyntaxInt64               = "Int64"
	SyntaxBool                = "Bool"
	SyntaxOid                 = "Oid"
	SyntaxGeneralizedTime     = "GeneralizedTime"
	SyntaxUtcTime             = "UtcTime"
	SyntaxDN                  = "DN"
	SyntaxDNWithBinary        = "DNWithBinary"
	SyntaxDNWithString        = "DNWithString"
	SyntaxEnumeration         = "Enumeration"
	SyntaxIA5String           = "IA5String"
	SyntaxPrintableString     = "PrintableString"
	SyntaxSid                 = "Sid"
	SyntaxAccessPointDN       = "AccessPointDN"
	SyntaxORName              = "ORName"
	SyntaxPresentationAddress = "PresentationAddress"
	SyntaxReplicaLink         = "ReplicaLink"
)

// oMObjectClass values that disambiguate object(127) syntaxes.
const (
	omClassDNWithBinary  = "2a864886f7140101010b"
	omClassDNWithString  = "2a864886f7140101010c"
	omClassORName        = "56060102050b1d"
	omClassAccessPointDN = "2b0c0287731c00853e"
)

type syntaxKey struct {
	attributeSyntax string
	omSyntax        int
}

var syntaxTable = map[syntaxKey]string{
	{"2.5.5.1", 127}:  SyntaxDN,
	{"2.5.5.2", 6}:    SyntaxOid,
	{"2.5.5.3", 27}:   SyntaxCaseExactString,
	{"2.5.5.4", 20}:   SyntaxCaseIgnoreString,
	{"2.5.5.5", 19}:   SyntaxPrintableString,
	{"2.5.5.5", 22}:   SyntaxIA5String,
	{"2.5.5.6", 18}:   SyntaxNumericString,
	{"2.5.5.8", 1}:    SyntaxBool,
	{"2.5.5.9", 2}:    SyntaxInt,
	{"2.5.5.9", 10}:   SyntaxEnumeration,
	{"2.5.5.10", 4}:   SyntaxOctetString,
	{"2.5.5.10", 127}: SyntaxReplicaLink,
	{"2.5.5.11", 23}:  SyntaxGeneralizedTime,
	{"2.5.5.11", 24}:  SyntaxUtcTime,
	{"2.5.5.12", 64}:  SyntaxDirectoryString,
	{"2.5.5.13", 127}: SyntaxPresentationAddress,
	{"2.5.5.15", 66}:  SyntaxSecurityDescriptor,
	{"2.5.5.16", 65}:  SyntaxInt64,
	{"2.5.5.17", 4}:   SyntaxSid,
}

// SyntaxName maps attributeSyntax, oMSyntax and, for object syntaxes,
// oMObjectClass to a syntax name. Unrecognised combinations render as
// Unknown(<attributeSyntax>/<oMSyntax>).
func SyntaxName(attributeSyntax string, omSyntax int, omObjectClass []byte) string {
	class := hex.EncodeToString(omObjectClass)

	switch attributeSyntax {
	case "2.5.5.7":
		if omSyntax == 127 {
			switch class {
			case omClassDNWithBinary:
				return SyntaxDNWithBinary
			case omClassORName:
				return SyntaxORName
			}
		}
	case "2.5.5.14":
		if omSyntax == 127 {
			switch class {
			case omClassDNWithString:
				return SyntaxDNWithString
			case omClassAccessPointDN:
				return SyntaxAccessPointDN
			}
		}
	default:
		if name, ok := syntaxTable[syntaxKey{attributeSyntax, omSyntax}]; ok {
			return name
		}
	}

	return fmt.Sprintf("Unknown(%s/%d)", attributeSyntax, omSyntax)
}
