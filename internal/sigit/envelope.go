package sigit

import (
	"encoding/json"
	"fmt"
)

// resultOK is the vendor's success code. Anything else is a
// data-absent signal, not a transport error.
const resultOK = "000"

// RequestHeader is the header block of every vendor request envelope.
type RequestHeader struct {
	LoggedUser string `json:"logged_user"`
	UserToken  string `json:"user_token"`
}

// RequestEnvelope wraps every vendor request body.
type RequestEnvelope struct {
	Header RequestHeader `json:"header"`
	Body   interface{}   `json:"body,omitempty"`
}

// SearchParameter is one entry of the parameters_list filter block.
type SearchParameter struct {
	ParameterName   string   `json:"parameter_name"`
	ParameterValues []string `json:"parameter_values"`
}

// ResponseHeader is the header block of every vendor response.
type ResponseHeader struct {
	ResultCode    string `json:"result_code"`
	ResultMessage string `json:"result_message"`
	UserToken     string `json:"user_token"`
}

// BodyKind discriminates the three shapes the vendor "body" key takes.
type BodyKind int

const (
	BodyAbsent BodyKind = iota
	BodyObject
	BodyList
)

// Body is the vendor response body as an explicit discriminated value.
// Callers ask for the shape they expect instead of probing raw JSON.
type Body struct {
	kind BodyKind
	obj  map[string]interface{}
	list []map[string]interface{}
}

// Kind reports which shape the body carried.
func (b Body) Kind() BodyKind { return b.kind }

// Object returns the body as a dict. ok is false for any other shape.
func (b Body) Object() (map[string]interface{}, bool) {
	return b.obj, b.kind == BodyObject
}

// List returns the body as a list of dicts. ok is false for any other
// shape.
func (b Body) List() ([]map[string]interface{}, bool) {
	return b.list, b.kind == BodyList
}

// Envelope is one parsed vendor response.
type Envelope struct {
	Header ResponseHeader
	Body   Body
}

// OK reports whether the vendor considered the request successful.
func (e Envelope) OK() bool { return e.Header.ResultCode == resultOK }

// parseEnvelope decodes a raw vendor response. The body key may be a
// dict, a list of dicts, or absent; anything else is malformed.
func parseEnvelope(data []byte) (Envelope, error) {
	var raw struct {
		Header ResponseHeader  `json:"header"`
		Body   json.RawMessage `json:"body"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrTransientAPI, err)
	}

	env := Envelope{Header: raw.Header}
	if len(raw.Body) == 0 || string(raw.Body) == "null" {
		env.Body = Body{kind: BodyAbsent}
		return env, nil
	}

	switch raw.Body[0] {
	case '{':
		var obj map[string]interface{}
		if err := json.Unmarshal(raw.Body, &obj); err != nil {
			return Envelope{}, fmt.Errorf("%w: body object: %v", ErrMalformedResponse, err)
		}
		env.Body = Body{kind: BodyObject, obj: obj}
	case '[':
		var list []map[string]interface{}
		if err := json.Unmarshal(raw.Body, &list); err != nil {
			return Envelope{}, fmt.Errorf("%w: body list: %v", ErrMalformedResponse, err)
		}
		env.Body = Body{kind: BodyList, list: list}
	default:
		return Envelope{}, fmt.Errorf("%w: body is neither object nor list", ErrMalformedResponse)
	}
	return env, nil
}
