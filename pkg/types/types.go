package types

import (
	"bytes"
	"encoding/json"
	"errors"
)

// ErrInvalidJSON is returned by Parse when the body is not valid JSON.
var ErrInvalidJSON = errors.New("invalid JSON payload")

// ParseError reports a body that is not valid JSON. It matches ErrInvalidJSON
// under errors.Is.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return ErrInvalidJSON.Error() + ": " + e.Err.Error()
}

func (e *ParseError) Unwrap() []error {
	return []error{ErrInvalidJSON, e.Err}
}

// Field is one optional JSON scalar taken from an alert payload.
// The zero value is an absent field. JSON null is also treated as absent.
type Field struct {
	raw json.RawMessage
}

// UnmarshalJSON records the raw value. It never fails.
func (f *Field) UnmarshalJSON(b []byte) error {
	f.set(b)
	return nil
}

func (f *Field) set(b json.RawMessage) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		f.raw = nil
		return
	}
	f.raw = append(f.raw[:0], b...)
}

// Present reports whether the field was set to a non-null value.
func (f Field) Present() bool {
	return len(f.raw) > 0
}

// String renders the value as text: strings unquoted, numbers and booleans as
// their JSON literal, objects and arrays as compact JSON. Absent fields
// render as "".
func (f Field) String() string {
	if !f.Present() {
		return ""
	}
	switch f.raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(f.raw, &s); err == nil {
			return s
		}
	case '{', '[':
		var buf bytes.Buffer
		if err := json.Compact(&buf, f.raw); err == nil {
			return buf.String()
		}
	}
	return string(f.raw)
}

// Or returns the text form of the field, or def when it is absent.
func (f Field) Or(def string) string {
	if !f.Present() {
		return def
	}
	return f.String()
}

// Endpoint is the source or destination half of a connection.
type Endpoint struct {
	IP      Field
	PortNum Field
}

// UnmarshalJSON decodes an endpoint object. Any non-object value yields an
// empty Endpoint.
func (e *Endpoint) UnmarshalJSON(b []byte) error {
	*e = Endpoint{}
	m, ok := decodeObject(b)
	if !ok {
		return nil
	}
	e.IP.set(m["ip"])
	e.PortNum.set(m["port_num"])
	return nil
}

// Rule is one violated-policy entry.
type Rule struct {
	ID       Field
	Message  Field
	Severity Field
}

// UnmarshalJSON decodes a rule object. Any non-object value yields a rule
// with every field absent.
func (r *Rule) UnmarshalJSON(b []byte) error {
	*r = Rule{}
	m, ok := decodeObject(b)
	if !ok {
		return nil
	}
	r.ID.set(m["id"])
	r.Message.set(m["message"])
	r.Severity.set(m["severity"])
	return nil
}

// Rules is the record's rule list. A non-array value decodes as empty.
type Rules []Rule

// UnmarshalJSON decodes a JSON array of rules, keeping input order.
func (rs *Rules) UnmarshalJSON(b []byte) error {
	*rs = nil
	b = bytes.TrimSpace(b)
	if len(b) == 0 || b[0] != '[' {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(b, &items); err != nil {
		return nil
	}
	out := make(Rules, len(items))
	for i, item := range items {
		_ = out[i].UnmarshalJSON(item)
	}
	*rs = out
	return nil
}

// Record is the nested object that carries the alert's substantive fields.
type Record struct {
	Timestamp   Field
	RequestID   Field
	Msg         Field
	Source      Endpoint
	Destination Endpoint
	Path        Field
	Rules       Rules
}

// UnmarshalJSON decodes the record object. Keys are matched exactly.
// Any non-object value yields an empty Record.
func (r *Record) UnmarshalJSON(b []byte) error {
	*r = Record{}
	m, ok := decodeObject(b)
	if !ok {
		return nil
	}
	r.Timestamp.set(m["@timestamp"])
	r.RequestID.set(m["request_id"])
	r.Msg.set(m["msg"])
	r.Path.set(m["path"])
	_ = r.Source.UnmarshalJSON(m["source"])
	_ = r.Destination.UnmarshalJSON(m["destination"])
	_ = r.Rules.UnmarshalJSON(m["rules"])
	return nil
}

// AlertPayload is a parsed inbound alert. It keeps the original bytes so the
// payload can be re-serialized with its key order and number literals intact.
type AlertPayload struct {
	Record Record
	raw    []byte
}

// Parse decodes body as an alert payload. Any valid JSON value is accepted;
// only a body that is not JSON at all returns a *ParseError.
func Parse(body []byte) (*AlertPayload, error) {
	var probe json.RawMessage
	if err := json.Unmarshal(body, &probe); err != nil {
		return nil, &ParseError{Err: err}
	}

	p := &AlertPayload{raw: append([]byte(nil), bytes.TrimSpace(body)...)}
	if m, ok := decodeObject(p.raw); ok {
		_ = p.Record.UnmarshalJSON(m["record"])
	}
	return p, nil
}

// Raw returns the payload bytes as received, minus surrounding whitespace.
func (p *AlertPayload) Raw() []byte {
	return p.raw
}

// Indent returns the payload re-serialized with the given indent string.
func (p *AlertPayload) Indent(indent string) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, p.raw, "", indent); err != nil {
		// Parse already validated raw; this only guards a zero AlertPayload.
		return string(p.raw)
	}
	return buf.String()
}

// OutboundMessage is the body posted to a text-style chat webhook.
type OutboundMessage struct {
	Text string `json:"text"`
}

// decodeObject splits a JSON object into its raw members. ok is false when b
// is empty or not an object.
func decodeObject(b []byte) (map[string]json.RawMessage, bool) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || b[0] != '{' {
		return nil, false
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, false
	}
	return m, true
}
