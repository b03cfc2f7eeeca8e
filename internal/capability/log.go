package capability

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

// LoggedObservation is one line of the append-only observation log.
type LoggedObservation struct {
	Capability string `json:"capability"`
	Observation
}

// AppendObservation appends one observation to the JSON-lines log at path,
// creating the file on first use.
func AppendObservation(path, capability string, obs Observation) error {
	if path == "" {
		return fmt.Errorf("observation log path required")
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open observation log: %w", err)
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(LoggedObservation{Capability: capability, Observation: obs}); err != nil {
		return fmt.Errorf("append observation: %w", err)
	}
	return nil
}

// LoadObservations replays the observation log at path into the tracker and
// returns the number of observations loaded. A missing file is an empty log.
func LoadObservations(path string, tracker *Tracker) (int, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("open observation log: %w", err)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	count := 0
	for {
		var entry LoggedObservation
		if err := dec.Decode(&entry); err == io.EOF {
			break
		} else if err != nil {
			return count, fmt.Errorf("decode observation log: %w", err)
		}
		tracker.Record(entry.Capability, entry.Observation)
		count++
	}
	return count, nil
}
