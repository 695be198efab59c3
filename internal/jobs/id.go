// Package jobs provides run identity helpers. Every pipeline invocation gets
// a run id that is attached to log lines and metric properties so one run's
// events can be correlated across CloudWatch.
package jobs

import (
	"github.com/google/uuid"
)

// NewRunID creates a new unique run id with a "run-" prefix.
func NewRunID() string {
	return "run-" + uuid.NewString()
}
