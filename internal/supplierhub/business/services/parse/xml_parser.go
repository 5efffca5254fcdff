package parse

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/antchfx/xmlquery"
)

// XmlParser selects item nodes with the source's XPath expression. Each
// node's child elements become field→string entries, repeated tags
// become ordered string lists and attributes are prefixed with "@".
type XmlParser struct{}

func (p *XmlParser) Parse(body []byte, hints Hints) (*Stream, error) {
	xpath := strings.TrimSpace(hints.ItemXPath)
	if xpath == "" {
		return nil, fmt.Errorf("%w: item xpath is required", ErrInvalidXPath)
	}

	doc, err := xmlquery.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, &ParseError{Format: "xml", Details: err.Error(), Err: err}
	}

	nodes, err := xmlquery.QueryAll(doc, xpath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidXPath, xpath, err)
	}

	items := make([]Record, 0, len(nodes))
	for _, node := range nodes {
		items = append(items, nodeToRecord(node))
	}
	return NewSliceStream(items), nil
}

func nodeToRecord(node *xmlquery.Node) Record {
	rec := Record{}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		if child.Type != xmlquery.ElementNode {
			continue
		}
		name := child.Data
		value := strings.TrimSpace(child.InnerText())
		if existing, ok := rec[name]; ok {
			switch prev := existing.(type) {
			case []string:
				rec[name] = append(prev, value)
			case string:
				rec[name] = []string{prev, value}
			}
		} else {
			rec[name] = value
		}
	}
	for _, attr := range node.Attr {
		rec["@"+attr.Name.Local] = attr.Value
	}
	if len(rec) == 0 {
		if text := strings.TrimSpace(node.InnerText()); text != "" {
			rec["_text"] = text
		}
	}
	return rec
}
