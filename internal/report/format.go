package report

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
)

// Format is an output representation of a report.
type Format int

const (
	FormatHTMLFile Format = iota
	FormatHTMLClipboard
	FormatXMLFile
	FormatCSVFile
)

var formatNames = []string{"HTMLFile", "HTMLClipboard", "XMLFile", "CSVFile"}

// FormatNames returns the accepted format names.
func FormatNames() []string {
	return append([]string(nil), formatNames...)
}

// ParseFormat matches a format name case-insensitively.
func ParseFormat(s string) (Format, error) {
	value := strings.TrimSpace(s)
	for i, name := range formatNames {
		if strings.EqualFold(value, name) {
			return Format(i), nil
		}
	}
	return 0, fmt.Errorf("unknown report type %q, must be one of: %s", s, strings.Join(formatNames, ", "))
}

func (f Format) String() string {
	if f < 0 || int(f) >= len(formatNames) {
		return fmt.Sprintf("Format(%d)", int(f))
	}
	return formatNames[f]
}

// Extension returns the file extension written for f, or "" for formats
// that do not produce a file.
func (f Format) Extension() string {
	switch f {
	case FormatHTMLFile:
		return ".html"
	case FormatXMLFile:
		return ".xml"
	case FormatCSVFile:
		return ".csv"
	default:
		return ""
	}
}

// WritesFile reports whether f produces a file on disk.
func (f Format) WritesFile() bool {
	return f.Extension() != ""
}

// Encoding is the character encoding of written report files.
type Encoding string

const (
	EncodingUTF8    Encoding = "utf8"
	EncodingUTF8BOM Encoding = "utf8bom"
	EncodingUnicode Encoding = "unicode"
)

// ParseEncoding matches an encoding name case-insensitively.
func ParseEncoding(s string) (Encoding, error) {
	switch e := Encoding(strings.ToLower(strings.TrimSpace(s))); e {
	case "":
		return EncodingUTF8, nil
	case EncodingUTF8, EncodingUTF8BOM, EncodingUnicode:
		return e, nil
	default:
		return "", fmt.Errorf("unknown encoding %q, must be one of: utf8, utf8bom, unicode", s)
	}
}

// encoding returns the text encoding, or nil for plain UTF-8.
func (e Encoding) encoding() encoding.Encoding {
	switch e {
	case EncodingUTF8BOM:
		return unicode.UTF8BOM
	case EncodingUnicode:
		return unicode.UTF16(unicode.LittleEndian, unicode.UseBOM)
	default:
		return nil
	}
}

// charset is the name declared in XML and HTML documents.
func (e Encoding) charset() string {
	if e == EncodingUnicode {
		return "utf-16"
	}
	return "utf-8"
}
