package rpc

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Params holds the positional parameters of a call.
type Params []json.RawMessage

// parseParams accepts an array, null or nothing.
func parseParams(raw json.RawMessage) (Params, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	var p Params
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, InvalidParams("params must be an array")
	}

	return p, nil
}

// Len returns the number of parameters.
func (p Params) Len() int {
	return len(p)
}

// Has reports whether the parameter at i is present and not null.
func (p Params) Has(i int) bool {
	return i < len(p) && !bytes.Equal(bytes.TrimSpace(p[i]), []byte("null"))
}

// Decode unmarshals the required parameter at i into v.
func (p Params) Decode(i int, v any) error {
	if !p.Has(i) {
		return InvalidParams("missing parameter %d", i)
	}

	if err := json.Unmarshal(p[i], v); err != nil {
		return InvalidParams("parameter %d: %s", i, err)
	}

	return nil
}

// String returns the required string parameter at i.
func (p Params) String(i int) (string, error) {
	var s string
	if err := p.Decode(i, &s); err != nil {
		return "", err
	}

	return s, nil
}

// OptionalString returns the string parameter at i or def when absent.
func (p Params) OptionalString(i int, def string) (string, error) {
	if !p.Has(i) {
		return def, nil
	}

	return p.String(i)
}

// Uint64 returns the required unsigned parameter at i. Legacy clients send
// numbers either bare or quoted.
func (p Params) Uint64(i int) (uint64, error) {
	if !p.Has(i) {
		return 0, InvalidParams("missing parameter %d", i)
	}

	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(p[i]))
	dec.UseNumber()
	if err := dec.Decode(&n); err != nil {
		var s string
		if json.Unmarshal(p[i], &s) != nil {
			return 0, InvalidParams("parameter %d: not a number", i)
		}
		n = json.Number(s)
	}

	v, err := strconv.ParseUint(n.String(), 10, 64)
	if err != nil {
		return 0, InvalidParams("parameter %d: %q is not an unsigned integer", i, n.String())
	}

	return v, nil
}

// Int returns the integer parameter at i or def when absent.
func (p Params) Int(i int, def int) (int, error) {
	if !p.Has(i) {
		return def, nil
	}

	v, err := p.Uint64(i)
	if err != nil {
		return 0, err
	}

	return int(v), nil
}
