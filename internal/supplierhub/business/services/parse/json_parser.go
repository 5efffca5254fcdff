package parse

import (
	"encoding/json"
	"fmt"
	"strings"
)

// JsonParser extracts the item array at the configured dotted path. With
// no path configured it tries a handful of conventional wrapper keys,
// then the root itself. A bare scalar root becomes a single-element
// sequence.
type JsonParser struct{}

// wrapperKeys are conventional envelope keys suppliers put item arrays
// under when no explicit items path is configured.
var wrapperKeys = []string{"items", "products", "data", "rows"}

func (p *JsonParser) Parse(body []byte, hints Hints) (*Stream, error) {
	var root interface{}
	if err := json.Unmarshal(body, &root); err != nil {
		return nil, &ParseError{Format: "json", Err: err}
	}

	var items interface{}
	if path := strings.TrimSpace(hints.ItemsPath); path != "" {
		found, ok := traversePath(root, path)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingItemsPath, path)
		}
		items = found
	} else {
		items = autodetectItems(root)
	}

	return NewSliceStream(toRecords(items)), nil
}

func autodetectItems(root interface{}) interface{} {
	if obj, ok := root.(map[string]interface{}); ok {
		for _, k := range wrapperKeys {
			if arr, ok := obj[k].([]interface{}); ok {
				return arr
			}
		}
	}
	return root
}

func toRecords(items interface{}) []Record {
	switch v := items.(type) {
	case []interface{}:
		out := make([]Record, 0, len(v))
		for _, item := range v {
			out = append(out, toRecord(item))
		}
		return out
	case nil:
		return nil
	default:
		return []Record{toRecord(v)}
	}
}

func toRecord(item interface{}) Record {
	if obj, ok := item.(map[string]interface{}); ok {
		return obj
	}
	return Record{"value": item}
}

func traversePath(data interface{}, path string) (interface{}, bool) {
	cur := data
	for _, part := range strings.Split(path, ".") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		obj, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		cur, ok = obj[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}
