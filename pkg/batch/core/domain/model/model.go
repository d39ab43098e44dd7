// Package model defines the domain types of a recipient import: the job and its checkpoint,
// the recipient entities it produces, and the terminal status report.
package model

const (
	// MaxChunkSize is the largest number of recipients handed to one persistence call.
	// It is a limit of the downstream write capability; configured chunk sizes may only be smaller.
	MaxChunkSize = 25
	// DefaultExecutionThresholdMs is the remaining time below which an execution checkpoints
	// instead of starting another chunk. It covers one re-dispatch round trip plus margin.
	DefaultExecutionThresholdMs int64 = 60000
)
