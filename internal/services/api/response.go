package api

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Kind tags the shape of a normalized response body.
type Kind int

const (
	// KindEmpty is an empty or whitespace-only body.
	KindEmpty Kind = iota
	// KindEnvelope is a JSON body read as an envelope.
	KindEnvelope
	// KindMalformed is a body that is not JSON.
	KindMalformed
)

func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindEnvelope:
		return "envelope"
	case KindMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Envelope is the wrapper the remote API puts around payloads.
type Envelope struct {
	OK      *bool           `json:"ok,omitempty"`
	Code    json.RawMessage `json:"code,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
}

// HasCode reports whether the envelope carried a code field.
func (e Envelope) HasCode() bool {
	return len(e.Code) > 0 && !bytes.Equal(e.Code, []byte("null"))
}

// CodeString returns the code without JSON quoting.
func (e Envelope) CodeString() string {
	if !e.HasCode() {
		return ""
	}
	var s string
	if err := json.Unmarshal(e.Code, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(string(e.Code))
}

// Succeeded is true when ok is true or code is zero. An envelope carrying
// neither counts as success.
func (e Envelope) Succeeded() bool {
	if e.OK != nil && *e.OK {
		return true
	}
	if e.HasCode() && e.CodeString() == "0" {
		return true
	}
	return e.OK == nil && !e.HasCode()
}

// Response is a normalized remote response.
type Response struct {
	Envelope Envelope
	Raw      []byte
	Kind     Kind
	Status   int
}

// Sentinel reports whether the body carried no usable payload.
func (r Response) Sentinel() bool {
	return r.Kind != KindEnvelope
}

// Normalize classifies a response body. It never fails.
func Normalize(status int, body []byte) Response {
	trimmed := bytes.TrimSpace(body)
	resp := Response{Status: status, Raw: trimmed}

	if len(trimmed) == 0 {
		resp.Kind = KindEmpty
		return resp
	}
	if !json.Valid(trimmed) {
		resp.Kind = KindMalformed
		return resp
	}

	resp.Kind = KindEnvelope

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil || fields == nil {
		resp.Envelope = Envelope{Data: trimmed}
		return resp
	}

	if len(fields) == 1 {
		if v, ok := fields["success"]; ok && isNull(v) {
			t := true
			resp.Envelope = Envelope{OK: &t}
			return resp
		}
	}

	_, hasCode := fields["code"]
	_, hasMessage := fields["message"]
	_, hasOK := fields["ok"]
	_, hasData := fields["data"]
	if !hasCode && !hasMessage && !hasOK && !hasData {
		resp.Envelope = Envelope{Data: trimmed}
		return resp
	}

	resp.Envelope = Envelope{
		Code:    fields["code"],
		Data:    fields["data"],
		Message: rawText(fields["message"]),
	}
	if hasOK && !isNull(fields["ok"]) {
		var ok bool
		if err := json.Unmarshal(fields["ok"], &ok); err == nil {
			resp.Envelope.OK = &ok
		}
	}
	return resp
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func rawText(raw json.RawMessage) string {
	if isNull(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
