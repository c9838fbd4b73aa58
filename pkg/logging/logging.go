// Package logging provides the klog-based logging helpers shared by every
// component. It never introduces its own levels or sinks; it only adds the
// tool-call timing convention used by the agent and tool executors.
package logging

import (
	"time"

	"k8s.io/klog/v2"
)

// ToolStart logs the start of a tool invocation and returns a timestamp to
// pass to ToolSuccess or ToolError.
func ToolStart(toolName string, params ...interface{}) time.Time {
	start := time.Now()
	if len(params) > 0 {
		klog.V(1).Infof("tool call: %s - %v", toolName, params)
	} else {
		klog.V(1).Infof("tool call: %s", toolName)
	}
	return start
}

// ToolSuccess logs a successful tool invocation.
func ToolSuccess(toolName string, start time.Time) {
	klog.V(1).Infof("tool call: %s completed in %v", toolName, time.Since(start))
}

// ToolError logs a failed tool invocation.
func ToolError(toolName string, start time.Time, err error) {
	klog.Errorf("tool call: %s failed after %v: %v", toolName, time.Since(start), err)
}

// Turn logs an agent driver turn transition.
func Turn(runID string, turn int, state string) {
	klog.V(0).Infof("agent[%s] turn %d: %s", runID, turn, state)
}
