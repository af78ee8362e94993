package ws

import (
	"encoding/json"
	"testing"
)

func TestDecodeEnvelope(t *testing.T) {
	testCases := []struct {
		name      string
		raw       string
		wantErr   bool
		notObject bool
	}{
		{name: "object", raw: `{"type":"join"}`},
		{name: "empty_object", raw: `{}`},
		{name: "syntax_error", raw: `{nope`, wantErr: true},
		{name: "truncated", raw: `{"type":`, wantErr: true},
		{name: "trailing_data", raw: `{"a":1} {"b":2}`, wantErr: true},
		{name: "string_payload", raw: `"hello"`, wantErr: true, notObject: true},
		{name: "array_payload", raw: `[1,2,3]`, wantErr: true, notObject: true},
		{name: "number_payload", raw: `42`, wantErr: true, notObject: true},
		{name: "null_payload", raw: `null`, wantErr: true, notObject: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := decodeEnvelope([]byte(tc.raw))
			if (err != nil) != tc.wantErr {
				t.Fatalf("decodeEnvelope(%q) error = %v, wantErr %v", tc.raw, err, tc.wantErr)
			}
			if tc.notObject && err != errNotObject {
				t.Fatalf("decodeEnvelope(%q) error = %v, want errNotObject", tc.raw, err)
			}
			if !tc.notObject && err == errNotObject {
				t.Fatalf("decodeEnvelope(%q) returned errNotObject for malformed input", tc.raw)
			}
		})
	}
}

func TestTruthy(t *testing.T) {
	testCases := []struct {
		name string
		v    any
		want bool
	}{
		{name: "nil", v: nil, want: false},
		{name: "false", v: false, want: false},
		{name: "true", v: true, want: true},
		{name: "empty_string", v: "", want: false},
		{name: "string", v: "x", want: true},
		{name: "zero_number", v: json.Number("0"), want: false},
		{name: "zero_float", v: json.Number("0.0"), want: false},
		{name: "number", v: json.Number("7"), want: true},
		{name: "negative_number", v: json.Number("-1"), want: true},
		{name: "empty_list", v: []any{}, want: false},
		{name: "list", v: []any{1}, want: true},
		{name: "empty_map", v: map[string]any{}, want: false},
		{name: "map", v: map[string]any{"a": 1}, want: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := truthy(tc.v); got != tc.want {
				t.Fatalf("truthy(%#v) = %v, want %v", tc.v, got, tc.want)
			}
		})
	}
}

func TestCoerceID(t *testing.T) {
	testCases := []struct {
		name    string
		v       any
		want    int64
		wantErr bool
	}{
		{name: "integer_number", v: json.Number("7"), want: 7},
		{name: "float_truncates", v: json.Number("7.9"), want: 7},
		{name: "negative_float_truncates", v: json.Number("-7.9"), want: -7},
		{name: "numeric_string", v: "7", want: 7},
		{name: "padded_string", v: " 8 ", want: 8},
		{name: "zero_string", v: "0", want: 0},
		{name: "garbage_string", v: "abc", wantErr: true},
		{name: "float_string", v: "7.5", wantErr: true},
		{name: "bool", v: true, wantErr: true},
		{name: "list", v: []any{1}, wantErr: true},
		{name: "map", v: map[string]any{}, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := coerceID(tc.v)
			if (err != nil) != tc.wantErr {
				t.Fatalf("coerceID(%#v) error = %v, wantErr %v", tc.v, err, tc.wantErr)
			}
			if !tc.wantErr && got != tc.want {
				t.Fatalf("coerceID(%#v) = %d, want %d", tc.v, got, tc.want)
			}
		})
	}
}

func TestTargetUserID(t *testing.T) {
	testCases := []struct {
		name      string
		env       Envelope
		want      int64
		wantFound bool
		wantErr   bool
	}{
		{name: "to", env: Envelope{"to": json.Number("2")}, want: 2, wantFound: true},
		{name: "target_user_id_fallback", env: Envelope{"targetUserId": json.Number("3")}, want: 3, wantFound: true},
		{name: "to_wins_over_fallback", env: Envelope{"to": json.Number("2"), "targetUserId": json.Number("3")}, want: 2, wantFound: true},
		{name: "falsy_to_falls_through", env: Envelope{"to": json.Number("0"), "targetUserId": json.Number("3")}, want: 3, wantFound: true},
		{name: "string_zero_is_valid_target", env: Envelope{"to": "0"}, want: 0, wantFound: true},
		{name: "absent", env: Envelope{}, wantFound: false},
		{name: "both_falsy", env: Envelope{"to": json.Number("0"), "targetUserId": ""}, wantFound: false},
		{name: "garbage", env: Envelope{"to": "abc"}, wantFound: true, wantErr: true},
		{name: "bool_target", env: Envelope{"to": true}, wantFound: true, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, found, err := tc.env.targetUserID()
			if (err != nil) != tc.wantErr {
				t.Fatalf("targetUserID() error = %v, wantErr %v", err, tc.wantErr)
			}
			if found != tc.wantFound {
				t.Fatalf("targetUserID() found = %v, want %v", found, tc.wantFound)
			}
			if !tc.wantErr && found && got != tc.want {
				t.Fatalf("targetUserID() = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestGroupID(t *testing.T) {
	testCases := []struct {
		name      string
		env       Envelope
		want      int64
		wantFound bool
		wantErr   bool
	}{
		{name: "number", env: Envelope{"groupId": json.Number("7")}, want: 7, wantFound: true},
		{name: "numeric_string", env: Envelope{"groupId": "7"}, want: 7, wantFound: true},
		{name: "absent", env: Envelope{}, wantFound: false},
		{name: "null", env: Envelope{"groupId": nil}, wantFound: false},
		{name: "zero_number_means_absent", env: Envelope{"groupId": json.Number("0")}, wantFound: false},
		{name: "string_zero_parses_to_absent", env: Envelope{"groupId": "0"}, wantFound: false},
		{name: "empty_string", env: Envelope{"groupId": ""}, wantFound: false},
		{name: "garbage", env: Envelope{"groupId": "abc"}, wantFound: true, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, found, err := tc.env.groupID()
			if (err != nil) != tc.wantErr {
				t.Fatalf("groupID() error = %v, wantErr %v", err, tc.wantErr)
			}
			if found != tc.wantFound {
				t.Fatalf("groupID() found = %v, want %v", found, tc.wantFound)
			}
			if !tc.wantErr && found && got != tc.want {
				t.Fatalf("groupID() = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestEnvelopeType(t *testing.T) {
	if got := (Envelope{"type": "join"}).Type(); got != "join" {
		t.Fatalf("Type() = %q, want %q", got, "join")
	}
	if got := (Envelope{}).Type(); got != "" {
		t.Fatalf("Type() = %q, want empty", got)
	}
	if got := (Envelope{"type": json.Number("1")}).Type(); got != "" {
		t.Fatalf("Type() = %q, want empty for non-string type", got)
	}
}
