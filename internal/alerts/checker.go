package alerts

import (
	"fmt"
	"time"

	"github.com/dennisdiepolder/callbridge/internal/types"
)

// Thresholds configures when an alert fires
type Thresholds struct {
	OfferUnanswered time.Duration // agent stuck in offered
	QueueWait       time.Duration // supplier waiting in queue
}

// Apply evaluates every rule against a snapshot in place and returns the
// number of alerts raised. Alerts never change matching state.
func Apply(snap *types.Snapshot, th Thresholds) int {
	return CheckAgentAlerts(snap.Agents, snap.Timestamp, th) + CheckQueueAlerts(snap.Queue, th)
}

// CheckAgentAlerts evaluates agent rules, mutating each agent's Alerts field in place
func CheckAgentAlerts(agents []types.AgentInfo, now time.Time, th Thresholds) int {
	raised := 0
	for i := range agents {
		agents[i].Alerts = nil

		if agents[i].State != types.AgentOffered || th.OfferUnanswered <= 0 {
			continue
		}
		dur := now.Sub(agents[i].StateStart)
		if dur > th.OfferUnanswered {
			agents[i].Alerts = append(agents[i].Alerts, types.Alert{
				Rule:     "offer_unanswered",
				Severity: types.SeverityWarning,
				Message:  fmt.Sprintf("Offer unanswered for %s", formatDuration(dur)),
			})
			raised++
		}
	}
	return raised
}

// CheckQueueAlerts evaluates queue rules on entries in place
func CheckQueueAlerts(queue []types.QueueEntry, th Thresholds) int {
	raised := 0
	for i := range queue {
		queue[i].Alerts = nil

		if th.QueueWait <= 0 {
			continue
		}
		dur := time.Duration(queue[i].WaitSecs * float64(time.Second))
		if dur > th.QueueWait {
			queue[i].Alerts = append(queue[i].Alerts, types.Alert{
				Rule:     "queue_wait_long",
				Severity: types.SeverityCritical,
				Message:  fmt.Sprintf("Waiting for %s", formatDuration(dur)),
			})
			raised++
		}
	}
	return raised
}

func formatDuration(d time.Duration) string {
	mins := int(d.Minutes())
	secs := int(d.Seconds()) % 60
	if mins >= 60 {
		hours := mins / 60
		mins = mins % 60
		return fmt.Sprintf("%dh%dm", hours, mins)
	}
	return fmt.Sprintf("%dm%ds", mins, secs)
}
