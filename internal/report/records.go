package report

import (
	"slices"
	"strconv"
	"strings"

	"github.com/isometry/ad-schema-reporter/internal/schema"
)

// Record is one row of a report.
type Record interface {
	// Key is the value records are sorted by.
	Key() string
	// Header returns the column names, in column order.
	Header() []string
	// Cells returns the rendered values, aligned with Header.
	Cells() []string
}

// AttributeColumns is the column order of attribute reports.
var AttributeColumns = []string{
	"Name",
	"CommonName",
	"OID",
	"Syntax",
	"Mandatory",
	"Constructed",
	"IsSingleValued",
	"IsInAnr",
	"RangeLower",
	"RangeUpper",
	"Link",
	"LinkId",
}

// ClassColumns is the column order of class-list reports.
var ClassColumns = []string{"Name", "CommonName", "SubClassOf"}

// AttributeRecord is the displayed projection of a class property.
type AttributeRecord struct {
	Name           string
	CommonName     string
	OID            string
	Syntax         string
	Mandatory      bool
	Constructed    bool
	IsSingleValued bool
	IsInAnr        bool
	RangeLower     *int
	RangeUpper     *int
	Link           string
	LinkID         *int
}

// ProjectAttribute narrows a property to the displayed fields.
func ProjectAttribute(p schema.Property) AttributeRecord {
	record := AttributeRecord{
		Mandatory:   p.Mandatory,
		Constructed: p.Constructed,
	}
	if p.Attribute == nil {
		return record
	}

	record.Name = p.Name
	record.CommonName = p.CommonName
	record.OID = p.OID
	record.Syntax = p.Syntax
	record.IsSingleValued = p.IsSingleValued
	record.IsInAnr = p.IsInAnr
	record.RangeLower = copyInt(p.RangeLower)
	record.RangeUpper = copyInt(p.RangeUpper)
	record.Link = p.Link
	record.LinkID = copyInt(p.LinkID)
	return record
}

func (r AttributeRecord) Key() string { return r.Name }

func (r AttributeRecord) Header() []string { return AttributeColumns }

func (r AttributeRecord) Cells() []string {
	return []string{
		r.Name,
		r.CommonName,
		r.OID,
		r.Syntax,
		formatBool(r.Mandatory),
		formatBool(r.Constructed),
		formatBool(r.IsSingleValued),
		formatBool(r.IsInAnr),
		formatInt(r.RangeLower),
		formatInt(r.RangeUpper),
		r.Link,
		formatInt(r.LinkID),
	}
}

// ClassRecord is the displayed projection of a schema class.
type ClassRecord struct {
	Name       string
	CommonName string
	SubClassOf string
}

// ProjectClass narrows a class to the displayed fields.
func ProjectClass(c *schema.Class) ClassRecord {
	if c == nil {
		return ClassRecord{}
	}
	return ClassRecord{
		Name:       c.Name,
		CommonName: c.CommonName,
		SubClassOf: c.SubClassOf,
	}
}

func (r ClassRecord) Key() string { return r.Name }

func (r ClassRecord) Header() []string { return ClassColumns }

func (r ClassRecord) Cells() []string {
	return []string{r.Name, r.CommonName, r.SubClassOf}
}

// SortRecords orders records by Key using ordinal comparison. The sort is
// stable.
func SortRecords(records []Record) {
	slices.SortStableFunc(records, func(a, b Record) int {
		return strings.Compare(a.Key(), b.Key())
	})
}

func formatBool(v bool) string {
	if v {
		return "True"
	}
	return "False"
}

func formatInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
