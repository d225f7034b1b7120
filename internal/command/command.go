package command

import (
	"encoding/json"
	"fmt"
	"maps"
)

// Command is the outbound document sent to a node.
type Command struct {
	// Op is the operation name.
	Op string `json:"op"`

	// OpValue maps parameter names to numeric values.
	OpValue map[string]float64 `json:"op_value"`
}

// New creates a command for op carrying a copy of params.
// A nil params map produces an empty op_value object.
func New(op string, params map[string]float64) Command {
	values := make(map[string]float64, len(params))
	maps.Copy(values, params)
	return Command{Op: op, OpValue: values}
}

// Encode serialises the command to its wire form.
func (c Command) Encode() ([]byte, error) {
	if c.Op == "" {
		return nil, fmt.Errorf("%w: empty op", ErrInvalidCommand)
	}
	if c.OpValue == nil {
		c.OpValue = map[string]float64{}
	}
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encoding command %q: %w", c.Op, err)
	}
	return data, nil
}
