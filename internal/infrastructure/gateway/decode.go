package gateway

import (
	"bytes"
	"encoding/json"
)

// decodeList accepts a bare JSON array or an object carrying the array under
// key or under "data".
func decodeList(raw json.RawMessage, out any, key string) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if trimmed[0] == '[' {
		return json.Unmarshal(trimmed, out)
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return err
	}
	for _, k := range []string{key, "data"} {
		if inner, ok := envelope[k]; ok {
			return decodeList(inner, out, key)
		}
	}
	return nil
}

// decodeOne accepts a bare object or one wrapped under key or "data".
func decodeOne(raw json.RawMessage, out any, key string) error {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return err
	}
	for _, k := range []string{key, "data"} {
		inner := bytes.TrimSpace(envelope[k])
		if len(inner) > 0 && inner[0] == '{' {
			return json.Unmarshal(inner, out)
		}
	}
	return json.Unmarshal(raw, out)
}
