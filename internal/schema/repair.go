package schema

// identifyingFieldCandidates are checked in order against an array item
// schema's properties; the first match is the field a stray map key is
// injected under during object-to-array repair.
var identifyingFieldCandidates = []string{"name", "path", "id", "key"}

// Repair applies the object-to-array pass against the target schema: for each
// array-typed field holding a non-array object, entries are converted to an
// array in key insertion order. Object entries missing the item schema's
// identifying field get the map key injected as that field's value.
// String-array fields holding an object-of-strings are flattened to the
// string values, dropping non-string members. The pass recurses into nested
// objects and array items and is a no-op on already-array-shaped data.
func Repair(value interface{}, schemaMap map[string]interface{}) interface{} {
	return repairValue(value, schemaMap)
}

func repairValue(value interface{}, s map[string]interface{}) interface{} {
	if s == nil {
		return value
	}

	switch schemaType(s) {
	case "array":
		items := subSchema(s, "items")
		if obj, ok := value.(*orderedObject); ok {
			return objectToArray(obj, items)
		}
		if arr, ok := value.([]interface{}); ok {
			for i, item := range arr {
				arr[i] = repairValue(item, items)
			}
			return arr
		}
		return value
	case "object":
		obj, ok := value.(*orderedObject)
		if !ok {
			return value
		}
		props, _ := s["properties"].(map[string]interface{})
		for _, key := range obj.keys {
			propSchema := subSchemaFrom(props, key)
			obj.values[key] = repairValue(obj.values[key], propSchema)
		}
		return obj
	default:
		return value
	}
}

// objectToArray converts an object-shaped collection into the array the
// schema expects, preserving key insertion order.
func objectToArray(obj *orderedObject, items map[string]interface{}) []interface{} {
	itemType := schemaType(items)
	arr := make([]interface{}, 0, len(obj.keys))

	if itemType == "string" {
		for _, key := range obj.keys {
			if s, ok := obj.values[key].(string); ok {
				arr = append(arr, s)
			}
		}
		return arr
	}

	idField := identifyingField(items)
	for _, key := range obj.keys {
		entry := obj.values[key]
		if entryObj, ok := entry.(*orderedObject); ok {
			if idField != "" {
				if _, has := entryObj.get(idField); !has {
					entryObj.set(idField, key)
				}
			}
			entry = repairValue(entryObj, items)
		}
		arr = append(arr, entry)
	}
	return arr
}

// identifyingField picks the item schema property a stray map key maps to
func identifyingField(items map[string]interface{}) string {
	if items == nil {
		return ""
	}
	props, ok := items["properties"].(map[string]interface{})
	if !ok {
		return ""
	}
	for _, candidate := range identifyingFieldCandidates {
		if _, ok := props[candidate]; ok {
			return candidate
		}
	}
	return ""
}

func schemaType(s map[string]interface{}) string {
	if s == nil {
		return ""
	}
	t, _ := s["type"].(string)
	return t
}

func subSchema(s map[string]interface{}, key string) map[string]interface{} {
	if s == nil {
		return nil
	}
	sub, _ := s[key].(map[string]interface{})
	return sub
}

func subSchemaFrom(props map[string]interface{}, key string) map[string]interface{} {
	if props == nil {
		return nil
	}
	sub, _ := props[key].(map[string]interface{})
	return sub
}
