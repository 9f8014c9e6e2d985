package report

import (
	"encoding/xml"
	"fmt"
	"io"
)

type xmlObjects struct {
	XMLName xml.Name    `xml:"Objects"`
	Objects []xmlObject `xml:"Object"`
}

type xmlObject struct {
	Properties []xmlProperty `xml:"Property"`
}

type xmlProperty struct {
	Name  string `xml:"Name,attr"`
	Value string `xml:",chardata"`
}

// WriteXML writes records as an Objects/Object/Property document.
func WriteXML(w io.Writer, rep Report, enc Encoding) error {
	header := rep.header()
	doc := xmlObjects{Objects: make([]xmlObject, 0, len(rep.Records))}
	for _, r := range rep.Records {
		cells := r.Cells()
		obj := xmlObject{Properties: make([]xmlProperty, len(header))}
		for i, name := range header {
			obj.Properties[i] = xmlProperty{Name: name, Value: cells[i]}
		}
		doc.Objects = append(doc.Objects, obj)
	}

	if _, err := fmt.Fprintf(w, "<?xml version=\"1.0\" encoding=\"%s\"?>\n", enc.charset()); err != nil {
		return fmt.Errorf("failed to write XML declaration: %w", err)
	}

	encoder := xml.NewEncoder(w)
	encoder.Indent("", "  ")
	if err := encoder.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode XML: %w", err)
	}
	if _, err := io.WriteString(w, "\n"); err != nil {
		return fmt.Errorf("failed to write XML: %w", err)
	}
	return nil
}
