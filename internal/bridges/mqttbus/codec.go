package mqttbus

import (
	"encoding/json"
	"fmt"
	"time"
)

// payload is the JSON wire shape of one point message. Timestamp is
// epoch seconds; zero means the sender attached none and the receive
// time is used instead.
type payload struct {
	Value     any     `json:"value"`
	Timestamp float64 `json:"timestamp,omitempty"`
}

// encodePayload serializes a point value for publishing.
func encodePayload(value any, ts time.Time) ([]byte, error) {
	p := payload{Value: value}
	if !ts.IsZero() {
		p.Timestamp = float64(ts.UnixNano()) / float64(time.Second)
	}

	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return data, nil
}

// decodePayload parses a bus message. The returned timestamp is zero
// when the message carried none.
func decodePayload(data []byte) (any, time.Time, error) {
	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, time.Time{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if p.Value == nil {
		return nil, time.Time{}, fmt.Errorf("%w: missing value field", ErrInvalidPayload)
	}

	var ts time.Time
	if p.Timestamp != 0 {
		ts = time.Unix(0, int64(p.Timestamp*float64(time.Second)))
	}
	return p.Value, ts, nil
}

// asFloat extracts a numeric sample for subscription fan-out. JSON
// numbers always decode as float64; everything else is not a sample.
func asFloat(value any) (float64, bool) {
	f, ok := value.(float64)
	return f, ok
}
