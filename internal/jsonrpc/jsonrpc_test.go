package jsonrpc

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestRequestIDRoundTrip(t *testing.T) {
	// String and numeric ids must come back byte for byte.
	for _, raw := range []string{
		`{"jsonrpc":"2.0","method":"node.count","id":"a-b-c"}`,
		`{"jsonrpc":"2.0","method":"node.count","id":42}`,
	} {
		var req Request
		if err := json.Unmarshal([]byte(raw), &req); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if !req.Valid() {
			t.Fatalf("Valid() = false for %s", raw)
		}
		resp, err := NewResponse(req.ID, 7)
		if err != nil {
			t.Fatalf("NewResponse: %v", err)
		}
		out, err := json.Marshal(resp)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		var echo Response
		if err := json.Unmarshal(out, &echo); err != nil {
			t.Fatalf("unmarshal response: %v", err)
		}
		if string(echo.ID) != string(req.ID) {
			t.Errorf("id = %s, want %s", echo.ID, req.ID)
		}
	}
}

func TestRequestValid(t *testing.T) {
	cases := []struct {
		raw  string
		want bool
	}{
		{`{"jsonrpc":"2.0","method":"m","id":1}`, true},
		{`{"jsonrpc":"1.0","method":"m","id":1}`, false},
		{`{"jsonrpc":"2.0","id":1}`, false},
	}
	for _, c := range cases {
		var req Request
		if err := json.Unmarshal([]byte(c.raw), &req); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if got := req.Valid(); got != c.want {
			t.Errorf("Valid(%s) = %v, want %v", c.raw, got, c.want)
		}
	}
}

func TestUnmarshalParams(t *testing.T) {
	type params struct {
		Query string `json:"query"`
	}

	// Absent, null and empty containers all mean "no parameters".
	for _, raw := range []string{"", "null", "[]", "{}"} {
		req := Request{Params: json.RawMessage(raw)}
		var p params
		if err := req.UnmarshalParams(&p); err != nil {
			t.Errorf("UnmarshalParams(%q) error = %v", raw, err)
		}
		if p.Query != "" {
			t.Errorf("UnmarshalParams(%q) set query %q", raw, p.Query)
		}
	}

	req := Request{Params: json.RawMessage(`{"query":"多摩市"}`)}
	var p params
	if err := req.UnmarshalParams(&p); err != nil {
		t.Fatalf("UnmarshalParams: %v", err)
	}
	if p.Query != "多摩市" {
		t.Errorf("query = %q, want 多摩市", p.Query)
	}

	req.Params = json.RawMessage(`[1,2]`)
	if err := req.UnmarshalParams(&p); !errors.Is(err, ErrInvalidParams) {
		t.Errorf("UnmarshalParams(array) error = %v, want ErrInvalidParams", err)
	}
}

func TestErrorResponse(t *testing.T) {
	resp := NewError(json.RawMessage(`"x"`), CodeMethodNotFound, "no such method")
	if resp.Error == nil || resp.Error.Code != CodeMethodNotFound {
		t.Fatalf("error member = %+v", resp.Error)
	}
	if resp.Result != nil {
		t.Error("error response carries a result")
	}
	if got := resp.Error.Error(); got != "jsonrpc error -32601: no such method" {
		t.Errorf("Error() = %q", got)
	}
}
