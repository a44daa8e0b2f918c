package stats

import (
	"encoding/json"
	"expvar"
	"net/http"
	"sync"
	"time"
)

const (
	NumActiveConnections = "NumActiveConnections"
	NumActiveRooms       = "NumActiveRooms"
	NumSignalsRelayed    = "NumSignalsRelayed"
	NumSignalsDropped    = "NumSignalsDropped"
	NumRoomsReaped       = "NumRoomsReaped"
)

type StatsProvider interface {
	Incr(name string)
	Decr(name string)
	RegisterMetric(name string)
}

type StatsUpdater struct {
	vars       *expvar.Map
	updateChan chan *metricsUpdateReq
	stop       chan struct{}
	stopOnce   sync.Once
}

type metricsUpdateReq struct {
	name  string
	value int
}

func (su *StatsUpdater) expvarHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	expvarData := make(map[string]any)
	su.vars.Do(func(kv expvar.KeyValue) {
		var value any
		json.Unmarshal([]byte(kv.Value.String()), &value)
		expvarData[kv.Key] = value
	})

	json.NewEncoder(w).Encode(expvarData)
}

// NewStatsUpdater creates a new stats updater instance.
func NewStatsUpdater() *StatsUpdater {
	su := &StatsUpdater{
		updateChan: make(chan *metricsUpdateReq, 512),
		stop:       make(chan struct{}),
		vars:       new(expvar.Map).Init(),
	}
	su.initializeMetrics()

	return su
}

// Handler serves the current metric values as a JSON object.
func (su *StatsUpdater) Handler() http.Handler {
	return http.HandlerFunc(su.expvarHandler)
}

func (su *StatsUpdater) initializeMetrics() {
	startTime := time.Now()
	su.vars.Set("Uptime", expvar.Func(func() any {
		return time.Since(startTime).Milliseconds()
	}))
}

func (su *StatsUpdater) updateMetrics() {
	for {
		select {
		case req := <-su.updateChan:
			su.apply(req)
		case <-su.stop:
			return
		}
	}
}

// Incr and Decr never block the caller. When the queue is full the update
// is applied in place so gauges stay balanced.
func (su *StatsUpdater) Incr(name string) {
	su.enqueue(&metricsUpdateReq{name: name, value: 1})
}

func (su *StatsUpdater) Decr(name string) {
	su.enqueue(&metricsUpdateReq{name: name, value: -1})
}

func (su *StatsUpdater) enqueue(req *metricsUpdateReq) {
	select {
	case su.updateChan <- req:
	default:
		su.apply(req)
	}
}

func (su *StatsUpdater) apply(req *metricsUpdateReq) {
	if metric, ok := su.vars.Get(req.name).(*expvar.Int); ok {
		metric.Add(int64(req.value))
	}
}

func (su *StatsUpdater) RegisterMetric(name string) {
	su.vars.Set(name, new(expvar.Int))
}

// Value returns the current value of an integer metric.
func (su *StatsUpdater) Value(name string) int64 {
	if metric, ok := su.vars.Get(name).(*expvar.Int); ok {
		return metric.Value()
	}
	return 0
}

func (su *StatsUpdater) Run() {
	go su.updateMetrics()
}

func (su *StatsUpdater) Stop() {
	su.stopOnce.Do(func() {
		close(su.stop)
	})
}
