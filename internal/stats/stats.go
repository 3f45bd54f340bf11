package stats

import (
	"encoding/json"
	"expvar"
	"net/http"
	"time"
)

// Metric names registered by the realtime core.
const (
	ActiveConnections    = "ActiveConnections"
	ActiveRooms          = "ActiveRooms"
	StrokesRelayed       = "StrokesRelayed"
	CursorUpdatesRelayed = "CursorUpdatesRelayed"
	CommandsPersisted    = "CommandsPersisted"
	PersistFailures      = "PersistFailures"
)

type StatsProvider interface {
	Incr(name string)
	Decr(name string)
	RegisterMetric(name string)
	Run()
}

// counterDelta is one pending adjustment to a named counter.
type counterDelta struct {
	name  string
	value int
}

// BoardStats collects the whiteboard counters in an expvar map and
// serves them as JSON. Adjustments funnel through a buffered channel
// and are applied by a single goroutine, so the hot relay path never
// contends on the map.
type BoardStats struct {
	vars      *expvar.Map
	deltaChan chan counterDelta
}

// NewBoardStats creates the collector and mounts its metrics endpoint
// on mux.
func NewBoardStats(mux *http.ServeMux) *BoardStats {
	bs := &BoardStats{
		vars:      expvar.NewMap("whiteboard-stats"),
		deltaChan: make(chan counterDelta, 512),
	}
	bs.registerUptime()
	mux.Handle("GET /debug/vars", http.HandlerFunc(bs.metricsHandler))

	return bs
}

func (bs *BoardStats) metricsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")

	metrics := make(map[string]any)
	bs.vars.Do(func(kv expvar.KeyValue) {
		var value any
		json.Unmarshal([]byte(kv.Value.String()), &value)
		metrics[kv.Key] = value
	})

	json.NewEncoder(w).Encode(metrics)
}

func (bs *BoardStats) registerUptime() {
	started := time.Now()
	bs.vars.Set("Uptime", expvar.Func(func() any {
		return time.Since(started).Milliseconds()
	}))
}

func (bs *BoardStats) applyDeltas() {
	for delta := range bs.deltaChan {
		counter := bs.vars.Get(delta.name)
		if counter == nil {
			panic("metric not found: " + delta.name)
		}

		counter.(*expvar.Int).Add(int64(delta.value))
	}
}

func (bs *BoardStats) Incr(name string) {
	bs.deltaChan <- counterDelta{name: name, value: 1}
}

func (bs *BoardStats) Decr(name string) {
	bs.deltaChan <- counterDelta{name: name, value: -1}
}

func (bs *BoardStats) RegisterMetric(name string) {
	bs.vars.Set(name, expvar.NewInt(name))
}

func (bs *BoardStats) Run() {
	go bs.applyDeltas()
}

func (bs *BoardStats) Stop() {
	close(bs.deltaChan)
}
