package tools

import "time"

// metricsSink is the narrow subset of supervisor.MetricsSink the tool
// handlers emit to directly.
type metricsSink interface {
	IncMessage(msgType string)
	IncCheckpoint(role string)
	ObserveHeartbeatInterval(role string, d time.Duration)
}
