package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Keys written by a register message in addition to its state entries.
const (
	KeyID           = "id"
	KeyPositionType = "position_type"
	KeyPosition     = "position"
)

// Message is a decoded inbound state message: *StateChange or *Register.
type Message interface {
	// Kind names the message shape ("state_change" or "register").
	Kind() string
}

// StateChange updates existing keys.
//
// Wire form: {"state_change": {"battery": "80"}}
type StateChange struct {
	Values map[string]string
}

// Kind implements Message.
func (*StateChange) Kind() string { return "state_change" }

// Register announces a node and its full state.
//
// Wire form: {"id": "n1", "position_type": 1, "position": [1.0, 2.0], "state": {"mode": "idle"}}
type Register struct {
	ID           string
	PositionType int64
	Position     []float64
	State        map[string]string
}

// Kind implements Message.
func (*Register) Kind() string { return "register" }

// FormattedPosition concatenates the position values, each in its shortest
// decimal form without separators: [1.0, 2.5] becomes "12.5".
func (r *Register) FormattedPosition() string {
	var b strings.Builder
	for _, v := range r.Position {
		b.WriteString(strconv.FormatFloat(v, 'f', -1, 64))
	}
	return b.String()
}

// Values returns every key the register message writes. State entries are
// applied last and win over the fixed keys.
func (r *Register) Values() map[string]string {
	values := make(map[string]string, len(r.State)+3)
	values[KeyID] = r.ID
	values[KeyPositionType] = strconv.FormatInt(r.PositionType, 10)
	values[KeyPosition] = r.FormattedPosition()
	for k, v := range r.State {
		values[k] = v
	}
	return values
}

// stateChangeWire mirrors StateChange with presence detection.
type stateChangeWire struct {
	StateChange *map[string]string `json:"state_change"`
}

// registerWire mirrors Register with presence detection.
type registerWire struct {
	ID           *string            `json:"id"`
	PositionType *int64             `json:"position_type"`
	Position     *[]float64         `json:"position"`
	State        *map[string]string `json:"state"`
}

// decoder tries one message shape.
type decoder struct {
	name   string
	decode func([]byte) (Message, error)
}

// decoders lists the known shapes in the order they are tried.
var decoders = []decoder{
	{name: "state_change", decode: decodeStateChange},
	{name: "register", decode: decodeRegister},
}

// Decode parses payload as the first known shape it satisfies.
//
// Returns:
//   - Message: *StateChange or *Register
//   - error: wraps ErrUnknownMessage and every per-shape failure
func Decode(payload []byte) (Message, error) {
	errs := make([]error, 0, len(decoders))
	for _, d := range decoders {
		msg, err := d.decode(payload)
		if err == nil {
			return msg, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", d.name, err))
	}
	return nil, fmt.Errorf("%w: %w", ErrUnknownMessage, errors.Join(errs...))
}

func decodeStateChange(payload []byte) (Message, error) {
	var w stateChangeWire
	if err := json.Unmarshal(payload, &w); err != nil {
		return nil, err
	}
	if w.StateChange == nil || *w.StateChange == nil {
		return nil, fmt.Errorf("%w: state_change", errMissingField)
	}
	return &StateChange{Values: *w.StateChange}, nil
}

func decodeRegister(payload []byte) (Message, error) {
	var w registerWire
	if err := json.Unmarshal(payload, &w); err != nil {
		return nil, err
	}

	var missing []string
	if w.ID == nil {
		missing = append(missing, "id")
	}
	if w.PositionType == nil {
		missing = append(missing, "position_type")
	}
	if w.Position == nil || *w.Position == nil {
		missing = append(missing, "position")
	}
	if w.State == nil || *w.State == nil {
		missing = append(missing, "state")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", errMissingField, strings.Join(missing, ", "))
	}

	return &Register{
		ID:           *w.ID,
		PositionType: *w.PositionType,
		Position:     *w.Position,
		State:        *w.State,
	}, nil
}
