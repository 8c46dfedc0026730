package tool

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestDecodeResult(t *testing.T) {
	res, err := DecodeResult([]byte(`{"success":true,"message":"done","output_path":"/tmp/out.jpg","ratio":0.42}`))
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success || res.Message != "done" {
		t.Fatalf("unexpected: %#v", res)
	}
	if res.Payload["output_path"] != "/tmp/out.jpg" || res.Payload["ratio"] != 0.42 {
		t.Fatalf("payload: %#v", res.Payload)
	}
	if _, ok := res.Payload["success"]; ok {
		t.Fatal("success leaked into payload")
	}
}

func TestDecodeResult_ToolFailureIsWellFormed(t *testing.T) {
	res, err := DecodeResult([]byte(`{"success":false,"message":"compression failed: invalid image"}`))
	if err != nil {
		t.Fatal(err)
	}
	if res.Success {
		t.Fatal("expected success=false")
	}
	if res.Message == "" || res.Payload != nil {
		t.Fatalf("unexpected: %#v", res)
	}
}

func TestDecodeResult_NonStringMessageStaysInPayload(t *testing.T) {
	res, err := DecodeResult([]byte(`{"success":true,"message":42}`))
	if err != nil {
		t.Fatal(err)
	}
	if res.Message != "" {
		t.Fatalf("message: %q", res.Message)
	}
	if res.Payload["message"] != float64(42) {
		t.Fatalf("non-string message dropped: %#v", res.Payload)
	}
	b, err := json.Marshal(res)
	if err != nil {
		t.Fatal(err)
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatal(err)
	}
	if out["message"] != float64(42) {
		t.Fatalf("message lost on re-encode: %#v", out)
	}
}

func TestDecodeResult_ProtocolViolations(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"not json", "Traceback (most recent call last): ..."},
		{"truncated", `{"success":true,"open_por`},
		{"array", `[{"success":true}]`},
		{"missing success", `{"message":"ok"}`},
		{"non-bool success", `{"success":"yes"}`},
	}
	for _, c := range cases {
		if _, err := DecodeResult([]byte(c.raw)); err == nil {
			t.Fatalf("%s: expected decode error", c.name)
		}
	}
}

func TestResultJSONRoundTrip(t *testing.T) {
	in := Result{
		Success: true,
		Message: "scanned",
		Payload: map[string]any{"open_ports": []any{}, "total_scanned": float64(100)},
	}
	b, err := json.Marshal(in)
	if err != nil {
		t.Fatal(err)
	}
	var out Result
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Fatalf("round trip mismatch:\n in=%#v\nout=%#v", in, out)
	}
}

func TestParseConvention(t *testing.T) {
	if _, err := ParseConvention("stdin-json"); err != nil {
		t.Fatal(err)
	}
	if _, err := ParseConvention("cli-args"); err != nil {
		t.Fatal(err)
	}
	if _, err := ParseConvention(""); err == nil {
		t.Fatal("empty convention must not be guessed")
	}
	if _, err := ParseConvention("stdin"); err == nil {
		t.Fatal("unknown convention must be rejected")
	}
}
