package txbuilder

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Output is one recipient in an explanation.
type Output struct {
	Address string `json:"address"`
	Amount  string `json:"amount"`
	Token   string `json:"token,omitempty"`
}

// Explanation is a human-auditable summary. DisplayOrder is fixed per chain and
// JSON output follows it exactly.
type Explanation struct {
	DisplayOrder []string
	Fields       map[string]any
}

func NewExplanation(order []string) *Explanation {
	return &Explanation{
		DisplayOrder: append([]string(nil), order...),
		Fields:       make(map[string]any, len(order)),
	}
}

func (e *Explanation) Set(name string, v any) *Explanation {
	e.Fields[name] = v
	return e
}

func (e *Explanation) Get(name string) any { return e.Fields[name] }

func (e *Explanation) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range e.DisplayOrder {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(e.Fields[name])
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s: %w", name, err)
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
