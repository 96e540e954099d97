package stats

import (
	"encoding/json"
	"expvar"
	"net/http"
	"sync"
	"time"
)

const (
	NumActiveSessions  = "NumActiveSessions"
	NumOnlineUsers     = "NumOnlineUsers"
	NumEventsPublished = "NumEventsPublished"
	NumEventsDropped   = "NumEventsDropped"
)

type StatsProvider interface {
	Incr(name string)
	Decr(name string)
	RegisterMetric(name string)
	Run()
}

// StatsUpdater serializes counter updates through a single goroutine and
// exposes them as JSON on /debug/vars.
type StatsUpdater struct {
	vars       *expvar.Map
	updateChan chan *metricsUpdateReq
	stopOnce   sync.Once
}

type metricsUpdateReq struct {
	name  string
	value int64
}

var (
	varsOnce sync.Once
	varsMap  *expvar.Map
)

// expvar panics on duplicate names, so the map is published once per process.
func harmonyVars() *expvar.Map {
	varsOnce.Do(func() {
		varsMap = expvar.NewMap("harmony-stats")
	})
	return varsMap
}

func (su *StatsUpdater) expvarHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	data := make(map[string]any)
	su.vars.Do(func(kv expvar.KeyValue) {
		var value any
		if err := json.Unmarshal([]byte(kv.Value.String()), &value); err == nil {
			data[kv.Key] = value
		}
	})

	json.NewEncoder(w).Encode(data)
}

func NewStatsUpdater(mux *http.ServeMux) *StatsUpdater {
	su := &StatsUpdater{
		vars:       harmonyVars(),
		updateChan: make(chan *metricsUpdateReq, 512),
	}
	mux.Handle("GET /debug/vars", http.HandlerFunc(su.expvarHandler))

	startTime := time.Now()
	su.vars.Set("Uptime", expvar.Func(func() any {
		return time.Since(startTime).Milliseconds()
	}))

	return su
}

func (su *StatsUpdater) updateMetrics() {
	for req := range su.updateChan {
		if metric, ok := su.vars.Get(req.name).(*expvar.Int); ok {
			metric.Add(req.value)
		}
	}
}

func (su *StatsUpdater) Incr(name string) {
	su.update(name, 1)
}

func (su *StatsUpdater) Decr(name string) {
	su.update(name, -1)
}

func (su *StatsUpdater) update(name string, value int64) {
	select {
	case su.updateChan <- &metricsUpdateReq{name: name, value: value}:
	default:
		// counters are advisory; never stall a caller on a full queue
	}
}

func (su *StatsUpdater) RegisterMetric(name string) {
	su.vars.Set(name, new(expvar.Int))
}

func (su *StatsUpdater) Run() {
	go su.updateMetrics()
}

func (su *StatsUpdater) Stop() {
	su.stopOnce.Do(func() {
		close(su.updateChan)
	})
}
