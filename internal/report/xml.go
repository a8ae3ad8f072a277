// =============================================================================
// Concourse - XML Report Writer
// =============================================================================
//
// OUTPUT STRUCTURE:
//   <?xml version="1.0" encoding="UTF-8"?>
//   <settlement project="trip" run="..." solver="greedy" generated="...">
//     <balances>
//       <balance participant="A" status="receives">60.00</balance>
//       ...
//     </balances>
//     <transactions count="2" volume="60.00">
//       <transaction n="1">
//         <payer>B</payer>
//         <payee>A</payee>
//         <amount>30.00</amount>
//       </transaction>
//       ...
//     </transactions>
//     <bills>
//       <bill id="dinner" total="90.00">
//         <part participant="A" share="0.3333" paid="90.00" owed="30.00" net="60.00"/>
//       </bill>
//     </bills>
//   </settlement>
//
// The element tree is written by hand rather than with xml.MarshalIndent so
// the attribute order and empty-element form stay fixed.
//
// =============================================================================

package report

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"sort"
	"strconv"
	"time"
)

// XMLOptions contains options for XML generation.
type XMLOptions struct {
	// Indent is the string used for indentation.
	// Default: "  " (two spaces)
	Indent string

	// IncludeXMLDeclaration adds <?xml version="1.0" encoding="UTF-8"?>.
	// Default: true
	IncludeXMLDeclaration bool

	// XMLVersion is the XML version in the declaration.
	// Default: "1.0"
	XMLVersion string

	// Encoding is the encoding in the declaration.
	// Default: "UTF-8"
	Encoding string

	// RootAttributes are extra attributes for the root element, written in
	// key order after the built-in ones.
	RootAttributes map[string]string
}

// DefaultXMLOptions returns the default XML options.
func DefaultXMLOptions() XMLOptions {
	return XMLOptions{
		Indent:                "  ",
		IncludeXMLDeclaration: true,
		XMLVersion:            "1.0",
		Encoding:              "UTF-8",
		RootAttributes:        make(map[string]string),
	}
}

// XMLElement represents a generic XML element.
type XMLElement struct {
	XMLName    xml.Name
	Attributes []xml.Attr
	Value      string
	Children   []XMLElement
}

// RenderXML renders r with custom options.
func RenderXML(r *Report, options XMLOptions) ([]byte, error) {
	return renderXML(r, options)
}

func renderXML(r *Report, options XMLOptions) ([]byte, error) {
	var buffer bytes.Buffer

	if options.IncludeXMLDeclaration {
		buffer.WriteString(fmt.Sprintf("<?xml version=\"%s\" encoding=\"%s\"?>\n",
			options.XMLVersion, options.Encoding))
	}

	writeElement(&buffer, buildDocument(r, options), options.Indent, 0)

	return buffer.Bytes(), nil
}

func buildDocument(r *Report, options XMLOptions) XMLElement {
	root := XMLElement{
		XMLName: xml.Name{Local: "settlement"},
		Attributes: []xml.Attr{
			attr("project", r.Project),
			attr("run", r.RunID),
			attr("solver", string(r.Solver)),
			attr("generated", r.GeneratedAt.Format(time.RFC3339)),
		},
	}

	keys := make([]string, 0, len(options.RootAttributes))
	for key := range options.RootAttributes {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		root.Attributes = append(root.Attributes, attr(key, options.RootAttributes[key]))
	}

	balances := XMLElement{XMLName: xml.Name{Local: "balances"}}
	for _, line := range r.Balances() {
		balances.Children = append(balances.Children, XMLElement{
			XMLName:    xml.Name{Local: "balance"},
			Attributes: []xml.Attr{attr("participant", string(line.Participant)), attr("status", line.Status)},
			Value:      line.Amount,
		})
	}

	transactions := XMLElement{
		XMLName: xml.Name{Local: "transactions"},
		Attributes: []xml.Attr{
			attr("count", strconv.Itoa(len(r.Settlement))),
			attr("volume", r.Volume()),
		},
	}
	for i, t := range r.Settlement {
		transactions.Children = append(transactions.Children, XMLElement{
			XMLName:    xml.Name{Local: "transaction"},
			Attributes: []xml.Attr{attr("n", strconv.Itoa(i+1))},
			Children: []XMLElement{
				createSimpleElement("payer", string(t.Payer)),
				createSimpleElement("payee", string(t.Payee)),
				createSimpleElement("amount", t.Amount.Format(r.Precision)),
			},
		})
	}

	bills := XMLElement{XMLName: xml.Name{Local: "bills"}}
	for _, b := range r.Bills {
		bill := XMLElement{
			XMLName:    xml.Name{Local: "bill"},
			Attributes: []xml.Attr{attr("id", b.BillID), attr("total", b.Total.Format(r.Precision))},
		}
		for _, row := range b.Rows {
			bill.Children = append(bill.Children, XMLElement{
				XMLName: xml.Name{Local: "part"},
				Attributes: []xml.Attr{
					attr("participant", string(row.Participant)),
					attr("share", row.Share.String()),
					attr("paid", row.Paid.Format(r.Precision)),
					attr("owed", row.Owed.Format(r.Precision)),
					attr("net", row.Net.Format(r.Precision)),
				},
			})
		}
		bills.Children = append(bills.Children, bill)
	}

	root.Children = []XMLElement{balances, transactions, bills}
	return root
}

func attr(name, value string) xml.Attr {
	return xml.Attr{Name: xml.Name{Local: name}, Value: value}
}

// createSimpleElement creates an element with only a text value.
func createSimpleElement(name, value string) XMLElement {
	return XMLElement{
		XMLName: xml.Name{Local: name},
		Value:   value,
	}
}

// writeElement writes an element and its children at the given depth.
// Elements with neither value nor children are self-closing.
func writeElement(buffer *bytes.Buffer, element XMLElement, indent string, level int) {
	for i := 0; i < level; i++ {
		buffer.WriteString(indent)
	}

	buffer.WriteString("<")
	buffer.WriteString(element.XMLName.Local)

	for _, a := range element.Attributes {
		buffer.WriteString(fmt.Sprintf(" %s=\"%s\"", a.Name.Local, escapeXML(a.Value)))
	}

	if len(element.Children) == 0 && element.Value == "" {
		buffer.WriteString("/>\n")
		return
	}

	buffer.WriteString(">")

	if element.Value != "" {
		buffer.WriteString(escapeXML(element.Value))
	} else {
		buffer.WriteString("\n")

		for _, child := range element.Children {
			writeElement(buffer, child, indent, level+1)
		}

		for i := 0; i < level; i++ {
			buffer.WriteString(indent)
		}
	}

	buffer.WriteString("</")
	buffer.WriteString(element.XMLName.Local)
	buffer.WriteString(">\n")
}

// escapeXML escapes special characters for XML text and attributes.
func escapeXML(s string) string {
	var buffer bytes.Buffer

	for _, r := range s {
		switch r {
		case '&':
			buffer.WriteString("&amp;")
		case '<':
			buffer.WriteString("&lt;")
		case '>':
			buffer.WriteString("&gt;")
		case '"':
			buffer.WriteString("&quot;")
		case '\'':
			buffer.WriteString("&apos;")
		default:
			buffer.WriteRune(r)
		}
	}

	return buffer.String()
}
