package client

// ExecutionState is the lifecycle position of an Execution.
type ExecutionState int

const (
	// Prepared indicates SetQuery returned and nothing ran yet.
	Prepared ExecutionState = iota
	// Serialized indicates the query was encoded.
	Serialized
	// Queued indicates the encoded query was appended to the open batch.
	Queued
	// Dispatched indicates a remote call is in flight or a reader is open.
	Dispatched
	// Completed indicates the remote call returned successfully.
	Completed
	// Failed indicates encoding or the remote call failed.
	Failed
)

// String returns the string representation of the state.
func (s ExecutionState) String() string {
	switch s {
	case Prepared:
		return "PREPARED"
	case Serialized:
		return "SERIALIZED"
	case Queued:
		return "QUEUED"
	case Dispatched:
		return "DISPATCHED"
	case Completed:
		return "COMPLETED"
	case Failed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}
