package observability

import (
	"sort"
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu              sync.Mutex
	requestCount    map[string]int64
	errorCount      map[string]int64
	transitionCount map[string]int64
	secondaryFails  map[string]int64
	retryCount      map[string]int64
	latencyTotal    time.Duration
}

// Snapshot is a point-in-time copy of every counter.
type Snapshot struct {
	Requests              map[string]int64 `json:"requests"`
	Errors                map[string]int64 `json:"errors"`
	Transitions           map[string]int64 `json:"transitions"`
	SecondaryWriteFailure map[string]int64 `json:"secondary_write_failures"`
	// TransitionRetries counts lost compare-and-set races per entity kind.
	TransitionRetries map[string]int64 `json:"transition_retries"`
	AvgLatencyMillis  float64          `json:"avg_latency_ms"`
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount:    make(map[string]int64),
		errorCount:      make(map[string]int64),
		transitionCount: make(map[string]int64),
		secondaryFails:  make(map[string]int64),
		retryCount:      make(map[string]int64),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
	m.latencyTotal += duration
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// RecordTransition counts a transition outcome; outcome is "ok" or an error code.
func (m *Metrics) RecordTransition(kind, target, outcome string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitionCount[kind+"|"+target+"|"+outcome]++
}

// RecordSecondaryWriteFailure counts a failed mirror write per channel.
func (m *Metrics) RecordSecondaryWriteFailure(channel string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.secondaryFails[channel]++
}

// RecordTransitionRetry counts one lost conditional update for kind.
func (m *Metrics) RecordTransitionRetry(kind string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retryCount[kind]++
}

// Snapshot copies the counters.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var total int64
	for _, n := range m.requestCount {
		total += n
	}
	snap := Snapshot{
		Requests:              copyCounts(m.requestCount),
		Errors:                copyCounts(m.errorCount),
		Transitions:           copyCounts(m.transitionCount),
		SecondaryWriteFailure: copyCounts(m.secondaryFails),
		TransitionRetries:     copyCounts(m.retryCount),
	}
	if total > 0 {
		snap.AvgLatencyMillis = float64(m.latencyTotal.Milliseconds()) / float64(total)
	}
	return snap
}

// TransitionKeys lists recorded transition keys in sorted order.
func (s Snapshot) TransitionKeys() []string {
	keys := make([]string, 0, len(s.Transitions))
	for k := range s.Transitions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func copyCounts(in map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
