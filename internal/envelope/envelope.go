package envelope

import (
	"encoding/json"
	"errors"
	"fmt"
)

// TagMFACode is the only dispatch tag the relay acts on.
const TagMFACode = "mfa_code"

var (
	ErrMalformed   = errors.New("malformed envelope")
	ErrUnknownCode = errors.New("unknown message code")
)

// Envelope is the frame exchanged between the code source, the relay and the
// page. Code is the dispatch tag, not the MFA code itself.
type Envelope struct {
	Code    string   `json:"code"`
	Payload *Payload `json:"payload,omitempty"`
}

type Payload struct {
	MFACode *MFACode `json:"mfa_code,omitempty"`
}

type MFACode struct {
	Code string `json:"code"`
}

// NewMFACode builds a well-formed mfa_code envelope.
func NewMFACode(code string) Envelope {
	return Envelope{
		Code: TagMFACode,
		Payload: &Payload{
			MFACode: &MFACode{Code: code},
		},
	}
}

// MFACodeValue returns the carried code when the envelope is a complete
// mfa_code message.
func (e Envelope) MFACodeValue() (string, bool) {
	if e.Code != TagMFACode || e.Payload == nil || e.Payload.MFACode == nil {
		return "", false
	}
	if e.Payload.MFACode.Code == "" {
		return "", false
	}
	return e.Payload.MFACode.Code, true
}

// Decode parses and validates a frame. The tag is read first and only an
// mfa_code payload is parsed, so a foreign tag with any payload shape reports
// ErrUnknownCode. For an unhandled tag the returned envelope still carries the
// tag so callers can log it.
func Decode(data []byte) (Envelope, error) {
	var frame struct {
		Code    string          `json:"code"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &frame); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	env := Envelope{Code: frame.Code}
	if env.Code == "" {
		return env, fmt.Errorf("%w: missing code tag", ErrMalformed)
	}
	if env.Code != TagMFACode {
		return env, fmt.Errorf("%w: %q", ErrUnknownCode, env.Code)
	}
	if len(frame.Payload) > 0 {
		if err := json.Unmarshal(frame.Payload, &env.Payload); err != nil {
			return env, fmt.Errorf("%w: payload: %v", ErrMalformed, err)
		}
	}
	if _, ok := env.MFACodeValue(); !ok {
		return env, fmt.Errorf("%w: missing payload.mfa_code.code", ErrMalformed)
	}
	return env, nil
}

// Encode marshals the envelope for the wire.
func Encode(env Envelope) ([]byte, error) {
	b, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	return b, nil
}
