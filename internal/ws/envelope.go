package ws

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Envelope is a loosely-typed signaling frame. Clients attach arbitrary
// fields (SDP blobs, ICE candidates, timestamps) that the server must relay
// untouched, so frames are decoded into a map and re-serialized after
// stamping rather than forced through fixed structs.
type Envelope map[string]any

// errNotObject marks payloads that parsed as valid JSON but are not objects.
// They are reported as processing errors, not as undecodable input.
var errNotObject = errors.New("payload must be a JSON object")

func decodeEnvelope(raw []byte) (Envelope, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("unexpected data after JSON payload")
	}

	obj, ok := v.(map[string]any)
	if !ok {
		return nil, errNotObject
	}
	return Envelope(obj), nil
}

// Type returns the frame's "type" field, or "" when missing or not a string.
func (e Envelope) Type() string {
	t, _ := e["type"].(string)
	return t
}

// truthy reports whether a field is present and truthy: absent fields, null,
// false, zero numbers, empty strings, and empty collections all count as
// unset. Clients routinely send `"to": 0` or `"groupId": ""` for "no target".
func (e Envelope) truthy(key string) bool {
	v, ok := e[key]
	return ok && truthy(v)
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case json.Number:
		f, err := x.Float64()
		return err != nil || f != 0
	case []any:
		return len(x) > 0
	case map[string]any:
		return len(x) > 0
	default:
		return true
	}
}

// coerceID converts a relayed field into a user or group ID. Numbers are
// truncated toward zero; strings are trimmed and must be integral. Anything
// else is a client error.
func coerceID(v any) (int64, error) {
	switch x := v.(type) {
	case json.Number:
		if n, err := strconv.ParseInt(x.String(), 10, 64); err == nil {
			return n, nil
		}
		f, err := x.Float64()
		if err != nil {
			return 0, fmt.Errorf("not an integer: %v", x)
		}
		return int64(f), nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("not an integer: %q", x)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("not an integer: %v", v)
	}
}

// targetUserID extracts the unicast target from "to", falling back to
// "targetUserId". A falsy value in both means the frame has no target. The
// coerced value may still be 0 (e.g. the string "0"), which is a valid
// target.
func (e Envelope) targetUserID() (int64, bool, error) {
	raw, ok := e.firstTruthy("to", "targetUserId")
	if !ok {
		return 0, false, nil
	}
	n, err := coerceID(raw)
	if err != nil {
		return 0, true, fmt.Errorf("Invalid target user_id: %v", fieldText(raw))
	}
	return n, true, nil
}

// groupID extracts the "groupId" field. Falsy or zero values mean the frame
// is not group-addressed.
func (e Envelope) groupID() (int64, bool, error) {
	raw, ok := e["groupId"]
	if !ok || !truthy(raw) {
		return 0, false, nil
	}
	n, err := coerceID(raw)
	if err != nil {
		return 0, true, fmt.Errorf("Invalid groupId: %v", fieldText(raw))
	}
	if n == 0 {
		return 0, false, nil
	}
	return n, true, nil
}

func (e Envelope) firstTruthy(keys ...string) (any, bool) {
	for _, key := range keys {
		if v, ok := e[key]; ok && truthy(v) {
			return v, true
		}
	}
	return nil, false
}

// fieldText renders a field value for error messages the way clients sent it.
func fieldText(v any) string {
	switch x := v.(type) {
	case json.Number:
		return x.String()
	case string:
		return x
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprintf("%v", x)
		}
		return string(b)
	}
}
