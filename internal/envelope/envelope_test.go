package envelope

import (
	"errors"
	"testing"
)

func TestDecodeMFACode(t *testing.T) {
	env, err := Decode([]byte(`{"code":"mfa_code","payload":{"mfa_code":{"code":"482193"}}}`))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	code, ok := env.MFACodeValue()
	if !ok {
		t.Fatal("MFACodeValue() ok = false; want true")
	}
	if code != "482193" {
		t.Fatalf("MFACodeValue() = %q; want %q", code, "482193")
	}
}

func TestDecodeRejects(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr error
		wantTag string
	}{
		{name: "invalid json", data: `{"code":`, wantErr: ErrMalformed},
		{name: "not an object", data: `"mfa_code"`, wantErr: ErrMalformed},
		{name: "missing tag", data: `{"payload":{"mfa_code":{"code":"1"}}}`, wantErr: ErrMalformed},
		{name: "unknown tag", data: `{"code":"other_code","payload":{}}`, wantErr: ErrUnknownCode, wantTag: "other_code"},
		{name: "unknown tag without payload", data: `{"code":"ping"}`, wantErr: ErrUnknownCode, wantTag: "ping"},
		{name: "missing payload", data: `{"code":"mfa_code"}`, wantErr: ErrMalformed, wantTag: TagMFACode},
		{name: "null payload", data: `{"code":"mfa_code","payload":null}`, wantErr: ErrMalformed, wantTag: TagMFACode},
		{name: "missing mfa_code", data: `{"code":"mfa_code","payload":{}}`, wantErr: ErrMalformed, wantTag: TagMFACode},
		{name: "empty code", data: `{"code":"mfa_code","payload":{"mfa_code":{"code":""}}}`, wantErr: ErrMalformed, wantTag: TagMFACode},
		{name: "wrong type", data: `{"code":"mfa_code","payload":{"mfa_code":{"code":482193}}}`, wantErr: ErrMalformed, wantTag: TagMFACode},
		{name: "payload not an object", data: `{"code":"mfa_code","payload":"482193"}`, wantErr: ErrMalformed, wantTag: TagMFACode},
		{name: "unknown tag with string payload", data: `{"code":"other_code","payload":"hello"}`, wantErr: ErrUnknownCode, wantTag: "other_code"},
		{name: "unknown tag with foreign payload", data: `{"code":"other_code","payload":{"mfa_code":"abc"}}`, wantErr: ErrUnknownCode, wantTag: "other_code"},
		{name: "unknown tag with array payload", data: `{"code":"other_code","payload":[1,2]}`, wantErr: ErrUnknownCode, wantTag: "other_code"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := Decode([]byte(tt.data))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Decode() error = %v; want %v", err, tt.wantErr)
			}
			if env.Code != tt.wantTag {
				t.Fatalf("Decode() tag = %q; want %q", env.Code, tt.wantTag)
			}
		})
	}
}

func TestEncodeMatchesWireShape(t *testing.T) {
	b, err := Encode(NewMFACode("482193"))
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	want := `{"code":"mfa_code","payload":{"mfa_code":{"code":"482193"}}}`
	if string(b) != want {
		t.Fatalf("Encode() = %s; want %s", b, want)
	}
}

func TestMFACodeValueOnForeignTag(t *testing.T) {
	env := NewMFACode("1234")
	env.Code = "other_code"
	if _, ok := env.MFACodeValue(); ok {
		t.Fatal("MFACodeValue() ok = true for foreign tag; want false")
	}
}
