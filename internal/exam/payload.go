package exam

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var ErrInvalidPayload = errors.New("invalid answer payload")

// Payload is the student's response to one question. The concrete variant is
// fixed by the question type; see DecodePayload.
type Payload interface {
	Kind() string
	isPayload()
}

// Selection holds chosen option ids (mcq_single, mcq_multi).
type Selection struct {
	OptionIDs []string
}

// Boolean is a true/false answer.
type Boolean struct {
	Value bool
}

// Number keeps the submitted text; it is parsed at grading time so that a
// malformed number grades as incorrect instead of failing the save.
type Number struct {
	Raw string
}

// Text is a free-text answer (short_text).
type Text struct {
	Value string
}

const (
	KindSelection = "selection"
	KindBoolean   = "boolean"
	KindNumber    = "number"
	KindText      = "text"
)

func (Selection) Kind() string { return KindSelection }
func (Boolean) Kind() string   { return KindBoolean }
func (Number) Kind() string    { return KindNumber }
func (Text) Kind() string      { return KindText }

func (Selection) isPayload() {}
func (Boolean) isPayload()   {}
func (Number) isPayload()    {}
func (Text) isPayload()      {}

// Float parses the raw number. Surrounding spaces and trailing units
// ("11 cm") are tolerated.
func (n Number) Float() (float64, bool) {
	return ParseFloatLoose(n.Raw)
}

func (s Selection) MarshalJSON() ([]byte, error) {
	ids := s.OptionIDs
	if ids == nil {
		ids = []string{}
	}
	return json.Marshal(struct {
		Selected []string `json:"selected"`
	}{ids})
}

func (b Boolean) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Value bool `json:"value"`
	}{b.Value})
}

func (n Number) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Number string `json:"number"`
	}{n.Raw})
}

func (t Text) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Text string `json:"text"`
	}{t.Value})
}

// PayloadKindFor names the payload variant a question type accepts.
func PayloadKindFor(t QuestionType) string {
	switch t {
	case TypeMCQSingle, TypeMCQMulti:
		return KindSelection
	case TypeTrueFalse:
		return KindBoolean
	case TypeNumeric:
		return KindNumber
	case TypeShortText:
		return KindText
	}
	return ""
}

// DecodePayload maps a client body onto the variant for question type t.
// Bodies that do not fit the type are rejected with ErrInvalidPayload.
func DecodePayload(t QuestionType, raw json.RawMessage) (Payload, error) {
	var body map[string]json.RawMessage
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	switch t {
	case TypeMCQSingle, TypeMCQMulti:
		v, ok := body["selected"]
		if !ok {
			return nil, fmt.Errorf("%w: %s expects \"selected\"", ErrInvalidPayload, t)
		}
		ids, err := decodeSelected(v)
		if err != nil {
			return nil, err
		}
		return Selection{OptionIDs: ids}, nil
	case TypeTrueFalse:
		v, ok := body["value"]
		if !ok {
			return nil, fmt.Errorf("%w: true_false expects \"value\"", ErrInvalidPayload)
		}
		var b bool
		if err := json.Unmarshal(v, &b); err != nil {
			return nil, fmt.Errorf("%w: value must be a boolean", ErrInvalidPayload)
		}
		return Boolean{Value: b}, nil
	case TypeNumeric:
		v, ok := body["number"]
		if !ok {
			return nil, fmt.Errorf("%w: numeric expects \"number\"", ErrInvalidPayload)
		}
		raw, err := decodeNumberText(v)
		if err != nil {
			return nil, err
		}
		return Number{Raw: raw}, nil
	case TypeShortText:
		v, ok := body["text"]
		if !ok {
			return nil, fmt.Errorf("%w: short_text expects \"text\"", ErrInvalidPayload)
		}
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return nil, fmt.Errorf("%w: text must be a string", ErrInvalidPayload)
		}
		return Text{Value: s}, nil
	}
	return nil, fmt.Errorf("%w: unknown question type %q", ErrInvalidPayload, t)
}

// Fits reports whether p is the variant question type t accepts.
func Fits(t QuestionType, p Payload) bool {
	return p != nil && p.Kind() == PayloadKindFor(t)
}

func decodeSelected(v json.RawMessage) ([]string, error) {
	v = bytes.TrimSpace(v)
	if bytes.Equal(v, []byte("null")) {
		return nil, nil
	}
	var one string
	if err := json.Unmarshal(v, &one); err == nil {
		if one == "" {
			return nil, nil
		}
		return []string{one}, nil
	}
	var many []string
	if err := json.Unmarshal(v, &many); err != nil {
		return nil, fmt.Errorf("%w: selected must be an option id or a list of ids", ErrInvalidPayload)
	}
	out := make([]string, 0, len(many))
	for _, id := range many {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out, nil
}

func decodeNumberText(v json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s, nil
	}
	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(v))
	dec.UseNumber()
	if err := dec.Decode(&n); err != nil {
		return "", fmt.Errorf("%w: number must be a number or numeric text", ErrInvalidPayload)
	}
	return n.String(), nil
}

// stored form: {"kind": "...", "data": <body>}
type storedPayload struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// EncodePayload serializes p for storage, tagging it with its kind.
func EncodePayload(p Payload) (string, error) {
	if p == nil {
		return "", fmt.Errorf("%w: empty payload", ErrInvalidPayload)
	}
	data, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	buf, err := json.Marshal(storedPayload{Kind: p.Kind(), Data: data})
	if err != nil {
		return "", err
	}
	return string(buf), nil
}

// ParsePayload is the inverse of EncodePayload.
func ParsePayload(s string) (Payload, error) {
	var sp storedPayload
	if err := json.Unmarshal([]byte(s), &sp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	switch sp.Kind {
	case KindSelection:
		return DecodePayload(TypeMCQMulti, sp.Data)
	case KindBoolean:
		return DecodePayload(TypeTrueFalse, sp.Data)
	case KindNumber:
		return DecodePayload(TypeNumeric, sp.Data)
	case KindText:
		return DecodePayload(TypeShortText, sp.Data)
	}
	return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidPayload, sp.Kind)
}

// ParseFloatLoose accepts "3.14", " 3.14 " and "3.14 cm".
func ParseFloatLoose(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v, finite(v)
	}
	if sp := strings.Fields(s); len(sp) > 0 {
		if v, err := strconv.ParseFloat(sp[0], 64); err == nil {
			return v, finite(v)
		}
	}
	return 0, false
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
