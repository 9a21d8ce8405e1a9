package docpipe

import (
	"bytes"
	"encoding/json"
)

// ParseJSON decodes any JSON document. Numbers are kept as json.Number so
// callers decide how to interpret them.
func ParseJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}
