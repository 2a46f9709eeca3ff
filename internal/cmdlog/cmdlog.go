// Package cmdlog wraps CLI command bodies with run and error accounting.
package cmdlog

import (
	"tweetsched/internal/logging"
	"tweetsched/internal/metrics"
)

// Run executes f under the command name cmd. Failures are counted and
// logged with the error; the error is returned unchanged.
func Run(cmd string, f func() error) error {
	metrics.IncCommandRun(cmd)
	err := f()
	if err != nil {
		metrics.IncCommandError(cmd)
		logging.Error(cmd+"_error", map[string]any{"error": err.Error()})
	} else {
		logging.Debug(cmd+"_ok", nil)
	}
	return err
}
