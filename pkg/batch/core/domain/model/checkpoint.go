package model

import (
	"encoding/json"
	"fmt"
)

// Checkpoint is the state carried from one execution of a lineage to the next.
type Checkpoint struct {
	SourceLocator SourceLocator `json:"sourceLocator"`
	Offset        int           `json:"offset"`
}

// Validate reports whether the checkpoint can start an execution.
func (c Checkpoint) Validate() error {
	if c.SourceLocator.Key == "" {
		return fmt.Errorf("checkpoint has no source key")
	}
	if c.Offset < 0 {
		return fmt.Errorf("checkpoint offset %d is negative", c.Offset)
	}
	return nil
}

// MarshalCheckpoint encodes a checkpoint as its JSON dispatch payload.
func MarshalCheckpoint(c Checkpoint) ([]byte, error) {
	return json.Marshal(c)
}

// UnmarshalCheckpoint decodes and validates a JSON dispatch payload.
func UnmarshalCheckpoint(payload []byte) (Checkpoint, error) {
	var c Checkpoint
	if err := json.Unmarshal(payload, &c); err != nil {
		return Checkpoint{}, fmt.Errorf("decode checkpoint: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Checkpoint{}, err
	}
	return c, nil
}
