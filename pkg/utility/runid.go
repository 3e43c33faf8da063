package utility

import "github.com/google/uuid"

// RunID tags every artifact and store row produced by one pipeline run.
type RunID = uuid.UUID

// NewRunID returns a time-ordered (version 7) id. Ids from one process
// compare in creation order.
func NewRunID() RunID {
	return uuid.Must(uuid.NewV7())
}
