package metrics

import (
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/dennisdiepolder/callbridge/internal/types"
)

// Metrics holds all application metrics
type Metrics struct {
	mu sync.RWMutex

	// Event metrics
	eventsByName          map[string]int64
	EventsReceivedTotal   int64
	EventProcessingErrors int64

	// WebSocket metrics
	WebSocketConnectionsTotal    int64
	WebSocketDisconnectionsTotal int64
	NotificationsSentTotal       int64
	NotificationsDroppedTotal    int64
	SlowClientsEvictedTotal      int64
	activeConnections            int64

	// Sampler metrics
	SampleCyclesTotal  int64
	InvariantFailures  int64
	lastSampleDuration time.Duration

	// Engine state, refreshed by the sampler
	agentsByState   map[types.AgentState]int
	totalAgents     int
	queueDepth      int
	activePairs     int
	longestWaitSecs float64
	serviceLevel    float64
	totals          types.EngineTotals

	// HTTP metrics
	httpRequestsTotal    map[string]map[int]int64 // endpoint -> status -> count
	httpRequestDurations map[string][]float64     // endpoint -> durations

	// Timing
	startTime time.Time
}

// Global metrics instance
var instance *Metrics
var once sync.Once

// Get returns the singleton metrics instance
func Get() *Metrics {
	once.Do(func() {
		instance = newMetrics()
	})
	return instance
}

func newMetrics() *Metrics {
	return &Metrics{
		eventsByName:         make(map[string]int64),
		agentsByState:        make(map[types.AgentState]int),
		httpRequestsTotal:    make(map[string]map[int]int64),
		httpRequestDurations: make(map[string][]float64),
		serviceLevel:         100,
		startTime:            time.Now(),
	}
}

// RecordEvent counts one inbound event by name
func (m *Metrics) RecordEvent(event string) {
	m.mu.Lock()
	m.EventsReceivedTotal++
	m.eventsByName[event]++
	m.mu.Unlock()
}

// RecordEventError counts an inbound frame that could not be decoded or dispatched
func (m *Metrics) RecordEventError() {
	m.mu.Lock()
	m.EventProcessingErrors++
	m.mu.Unlock()
}

// RecordWebSocketConnect increments connection counters
func (m *Metrics) RecordWebSocketConnect() {
	m.mu.Lock()
	m.WebSocketConnectionsTotal++
	m.activeConnections++
	m.mu.Unlock()
}

// RecordWebSocketDisconnect increments disconnection counter
func (m *Metrics) RecordWebSocketDisconnect() {
	m.mu.Lock()
	m.WebSocketDisconnectionsTotal++
	m.activeConnections--
	m.mu.Unlock()
}

// RecordNotificationSent counts a notification handed to a client's send buffer
func (m *Metrics) RecordNotificationSent() {
	m.mu.Lock()
	m.NotificationsSentTotal++
	m.mu.Unlock()
}

// RecordNotificationDropped counts a notification whose target was gone or full
func (m *Metrics) RecordNotificationDropped() {
	m.mu.Lock()
	m.NotificationsDroppedTotal++
	m.mu.Unlock()
}

// RecordSlowClientEvicted counts a client closed for a full send buffer
func (m *Metrics) RecordSlowClientEvicted() {
	m.mu.Lock()
	m.SlowClientsEvictedTotal++
	m.mu.Unlock()
}

// RecordSampleCycle records one sampler pass
func (m *Metrics) RecordSampleCycle(duration time.Duration) {
	m.mu.Lock()
	m.SampleCyclesTotal++
	m.lastSampleDuration = duration
	m.mu.Unlock()
}

// RecordInvariantFailure counts a sampler pass that found inconsistent state
func (m *Metrics) RecordInvariantFailure() {
	m.mu.Lock()
	m.InvariantFailures++
	m.mu.Unlock()
}

// UpdateEngineStats refreshes the engine gauges from a snapshot
func (m *Metrics) UpdateEngineStats(snap types.Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.agentsByState = snap.AgentsByState()
	m.totalAgents = len(snap.Agents)
	m.queueDepth = len(snap.Queue)
	m.activePairs = len(snap.Pairings) / 2
	m.longestWaitSecs = snap.LongestWaitSecs
	m.serviceLevel = snap.ServiceLevel.CurrentSL
	m.totals = snap.Totals
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(endpoint string, statusCode int, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.httpRequestsTotal[endpoint] == nil {
		m.httpRequestsTotal[endpoint] = make(map[int]int64)
	}
	m.httpRequestsTotal[endpoint][statusCode]++

	// Keep last 100 durations
	if len(m.httpRequestDurations[endpoint]) >= 100 {
		m.httpRequestDurations[endpoint] = m.httpRequestDurations[endpoint][1:]
	}
	m.httpRequestDurations[endpoint] = append(m.httpRequestDurations[endpoint], duration.Seconds())
}

// GetActiveConnections returns current WebSocket connections
func (m *Metrics) GetActiveConnections() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeConnections
}

// EventCount returns how many events with the given name were received
func (m *Metrics) EventCount(event string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.eventsByName[event]
}

// Handler returns an HTTP handler for the /metrics endpoint
func (m *Metrics) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m.mu.RLock()
		defer m.mu.RUnlock()

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		write := func(name string, value interface{}, labels ...string) {
			labelStr := ""
			if len(labels) > 0 {
				labelStr = "{"
				for i := 0; i < len(labels); i += 2 {
					if i > 0 {
						labelStr += ","
					}
					labelStr += labels[i] + "=\"" + labels[i+1] + "\""
				}
				labelStr += "}"
			}

			switch v := value.(type) {
			case int:
				w.Write([]byte(name + labelStr + " " + strconv.Itoa(v) + "\n"))
			case int64:
				w.Write([]byte(name + labelStr + " " + strconv.FormatInt(v, 10) + "\n"))
			case float64:
				w.Write([]byte(name + labelStr + " " + strconv.FormatFloat(v, 'f', 6, 64) + "\n"))
			}
		}

		write("callbridge_uptime_seconds", time.Since(m.startTime).Seconds())

		// Events
		write("callbridge_events_received_total", m.EventsReceivedTotal)
		write("callbridge_event_errors_total", m.EventProcessingErrors)
		for _, name := range sortedKeys(m.eventsByName) {
			write("callbridge_events_total", m.eventsByName[name], "event", name)
		}

		// WebSocket
		write("callbridge_websocket_connections_total", m.WebSocketConnectionsTotal)
		write("callbridge_websocket_disconnections_total", m.WebSocketDisconnectionsTotal)
		write("callbridge_websocket_active_connections", m.activeConnections)
		write("callbridge_notifications_sent_total", m.NotificationsSentTotal)
		write("callbridge_notifications_dropped_total", m.NotificationsDroppedTotal)
		write("callbridge_slow_clients_evicted_total", m.SlowClientsEvictedTotal)

		// Sampler
		write("callbridge_sample_cycles_total", m.SampleCyclesTotal)
		write("callbridge_sample_duration_seconds", m.lastSampleDuration.Seconds())
		write("callbridge_invariant_failures_total", m.InvariantFailures)

		// Engine
		write("callbridge_agents_total", m.totalAgents)
		for state, count := range m.agentsByState {
			write("callbridge_agents_by_state", count, "state", string(state))
		}
		write("callbridge_queue_depth", m.queueDepth)
		write("callbridge_active_pairs", m.activePairs)
		write("callbridge_queue_longest_wait_seconds", m.longestWaitSecs)
		write("callbridge_service_level_percent", m.serviceLevel)
		write("callbridge_offers_total", m.totals.Offers)
		write("callbridge_accepts_total", m.totals.Accepts)
		write("callbridge_rejects_total", m.totals.Rejects)
		write("callbridge_requeues_total", m.totals.Requeues)
		write("callbridge_promotions_total", m.totals.Promotions)
		write("callbridge_reassignments_total", m.totals.Reassignments)
		write("callbridge_calls_ended_total", m.totals.CallsEnded)

		// HTTP
		for endpoint, statusCodes := range m.httpRequestsTotal {
			for status, count := range statusCodes {
				write("callbridge_http_requests_total", count, "endpoint", endpoint, "status", strconv.Itoa(status))
			}
		}
	}
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
