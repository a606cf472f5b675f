package schema

import (
	"encoding/json"
	"fmt"
	"strings"
)

// orderedObject is a JSON object that remembers key insertion order. The
// object-to-array repair depends on that order: entries must land in the array
// in the order the model emitted them, which map[string]interface{} discards.
type orderedObject struct {
	keys   []string
	values map[string]interface{}
}

func newOrderedObject() *orderedObject {
	return &orderedObject{values: make(map[string]interface{})}
}

func (o *orderedObject) set(key string, value interface{}) {
	if _, exists := o.values[key]; !exists {
		o.keys = append(o.keys, key)
	}
	o.values[key] = value
}

func (o *orderedObject) get(key string) (interface{}, bool) {
	v, ok := o.values[key]
	return v, ok
}

// parseOrdered decodes a JSON document into nested orderedObject, []interface{}
// and scalar values.
func parseOrdered(data string) (interface{}, error) {
	dec := json.NewDecoder(strings.NewReader(data))
	value, err := decodeValue(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err == nil {
		return nil, fmt.Errorf("trailing content after JSON value")
	}
	return value, nil
}

func decodeValue(dec *json.Decoder) (interface{}, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return decodeObject(dec)
		case '[':
			return decodeArray(dec)
		default:
			return nil, fmt.Errorf("unexpected delimiter %q", t)
		}
	default:
		// string, float64, bool or nil
		return tok, nil
	}
}

func decodeObject(dec *json.Decoder) (*orderedObject, error) {
	obj := newOrderedObject()
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("object key is not a string: %v", keyTok)
		}
		value, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		obj.set(key, value)
	}
	if _, err := dec.Token(); err != nil { // consume '}'
		return nil, err
	}
	return obj, nil
}

func decodeArray(dec *json.Decoder) ([]interface{}, error) {
	arr := []interface{}{}
	for dec.More() {
		value, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		arr = append(arr, value)
	}
	if _, err := dec.Token(); err != nil { // consume ']'
		return nil, err
	}
	return arr, nil
}

// toPlain converts an ordered structure into plain maps and slices, the shape
// schema validation and callers expect.
func toPlain(value interface{}) interface{} {
	switch v := value.(type) {
	case *orderedObject:
		out := make(map[string]interface{}, len(v.keys))
		for _, key := range v.keys {
			out[key] = toPlain(v.values[key])
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = toPlain(item)
		}
		return out
	default:
		return v
	}
}
