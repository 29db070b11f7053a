package store

import (
	"encoding/json"
	"fmt"
	"time"
)

// Normalize validates the timestamps embedded in a payload.
//
// The payload is expected to be a JSON mapping from channel name to a
// reading object carrying at least a "value" and a "timestamp" field.
// Every reading whose "timestamp" is a string in TimeLayout is
// re-parsed and re-rendered with that same layout. The transformation
// is a no-op on well-formed input; its purpose is to catch readings
// whose timestamps do not match the expected format.
//
// Normalize never fails hard: any error at any level (payload is not a
// JSON object, a reading is not an object, a timestamp is not a string
// or does not match the layout) returns the original text untouched
// together with the error. When no reading carries a timestamp the
// original text is also returned as-is.
func Normalize(payload string) (string, error) {
	var readings map[string]map[string]any
	if err := json.Unmarshal([]byte(payload), &readings); err != nil {
		return payload, fmt.Errorf("payload is not a channel mapping: %w", err)
	}

	changed := false
	for channel, reading := range readings {
		raw, ok := reading["timestamp"]
		if !ok {
			continue
		}

		ts, ok := raw.(string)
		if !ok {
			return payload, fmt.Errorf("channel %q: timestamp is not a string", channel)
		}

		parsed, err := time.Parse(TimeLayout, ts)
		if err != nil {
			return payload, fmt.Errorf("channel %q: %w", channel, err)
		}

		reading["timestamp"] = parsed.Format(TimeLayout)
		changed = true
	}

	if !changed {
		return payload, nil
	}

	out, err := json.Marshal(readings)
	if err != nil {
		return payload, fmt.Errorf("re-encoding payload: %w", err)
	}

	return string(out), nil
}
