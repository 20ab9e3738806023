package prom

import (
	"fmt"
	"sync"

	xhttp "github.com/nimasrn/farm-ledger/pkg/http"
	"github.com/nimasrn/farm-ledger/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

const (
	SystemLedger = "ledger"
	SystemEvents = "events"
)

const (
	MetricTransactionsCreated = "transactions_created_total"
	MetricTransactionsDeleted = "transactions_deleted_total"
	MetricSerialsRenumbered   = "serials_renumbered_rows"
	MetricSerialRepairs       = "serial_repairs_total"
	MetricLockWait            = "scope_lock_wait_seconds"

	MetricEventsPublished  = "published_total"
	MetricEventsProcessed  = "processed_total"
	MetricEventProcessTime = "process_duration_seconds"
)

const (
	TypeCounter      = "counter"
	TypeCounterVec   = "counterVec"
	TypeHistogram    = "histogram"
	TypeHistogramVec = "histogramVec"
	TypeGaugeVec     = "gaugeVec"
)

var lockCreateMetricLock = &sync.Mutex{}
var namespace = "none"

var MetricSystemEnabled = false

var MetricCollectionCounters = make(map[string]prometheus.Counter)
var MetricCollectionCounterVec = make(map[string]*prometheus.CounterVec)
var MetricCollectionGaugeVec = make(map[string]*prometheus.GaugeVec)
var MetricCollectionHistogram = make(map[string]prometheus.Histogram)
var MetricCollectionHistogramVec = make(map[string]*prometheus.HistogramVec)

var defaultLabels prometheus.Labels

var renumberBuckets = []float64{0, 1, 2, 5, 10, 25, 50, 100, 250}

// Create registers every metric the binaries record. Calling it again is a no-op.
func Create(host string, env string, nameSpace string) error {
	if MetricSystemEnabled {
		return nil
	}
	defaultLabels = prometheus.Labels{"env": env, "instance": host}
	if nameSpace != "" {
		namespace = nameSpace
	}
	MetricSystemEnabled = true

	var err error
	hasError := func(e error) {
		if err == nil && e != nil {
			err = e
		}
	}

	hasError(createCounterVec(SystemLedger, MetricTransactionsCreated, []string{"expense_type"}))
	hasError(createCounter(SystemLedger, MetricTransactionsDeleted))
	hasError(createHistogram(SystemLedger, MetricSerialsRenumbered, renumberBuckets))
	hasError(createCounterVec(SystemLedger, MetricSerialRepairs, []string{"source"}))
	hasError(createHistogram(SystemLedger, MetricLockWait, prometheus.DefBuckets))

	hasError(createCounterVec(SystemEvents, MetricEventsPublished, []string{"sink", "status"}))
	hasError(createCounterVec(SystemEvents, MetricEventsProcessed, []string{"type", "status"}))
	hasError(createHistogramVec(SystemEvents, MetricEventProcessTime, []string{"type"}))

	return err
}

func CreateMetric(metricType, metricSubsystem, metricName string, labelsValues ...string) error {
	switch metricType {
	case TypeCounter:
		return createCounter(metricSubsystem, metricName)
	case TypeCounterVec:
		return createCounterVec(metricSubsystem, metricName, labelsValues)
	case TypeHistogram:
		return createHistogram(metricSubsystem, metricName, prometheus.DefBuckets)
	case TypeHistogramVec:
		return createHistogramVec(metricSubsystem, metricName, labelsValues)
	case TypeGaugeVec:
		return createGaugeVec(metricSubsystem, metricName, labelsValues)
	}
	return fmt.Errorf("metric type %s is not defined", metricType)
}

// ListenAndServer blocks serving the default registry at url.
func ListenAndServer(addr string, url string) {
	hh := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
	s := xhttp.NewServer(xhttp.DefaultServerOption)
	s.GET(url, hh)
	logger.Info("[metrics-server] listening...", "addr", addr, "url", url)
	if err := s.ListenAndServe(addr); err != nil {
		logger.Error("[metrics-server] http listen error", "error", err)
	}
}

func opts(subsystem, name string) prometheus.Opts {
	return prometheus.Opts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		Help:        subsystem + " " + name,
		ConstLabels: defaultLabels,
	}
}

func createCounter(subsystem, name string) error {
	lockCreateMetricLock.Lock()
	defer lockCreateMetricLock.Unlock()
	c := prometheus.NewCounter(prometheus.CounterOpts(opts(subsystem, name)))
	MetricCollectionCounters[subsystem+name] = c
	return register(c)
}

func createCounterVec(subsystem, name string, labels []string) error {
	lockCreateMetricLock.Lock()
	defer lockCreateMetricLock.Unlock()
	c := prometheus.NewCounterVec(prometheus.CounterOpts(opts(subsystem, name)), labels)
	MetricCollectionCounterVec[subsystem+name] = c
	return register(c)
}

func createHistogram(subsystem, name string, buckets []float64) error {
	lockCreateMetricLock.Lock()
	defer lockCreateMetricLock.Unlock()
	o := opts(subsystem, name)
	h := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace:   o.Namespace,
		Subsystem:   o.Subsystem,
		Name:        o.Name,
		Help:        o.Help,
		ConstLabels: o.ConstLabels,
		Buckets:     buckets,
	})
	MetricCollectionHistogram[subsystem+name] = h
	return register(h)
}

func createHistogramVec(subsystem, name string, labels []string) error {
	lockCreateMetricLock.Lock()
	defer lockCreateMetricLock.Unlock()
	o := opts(subsystem, name)
	h := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   o.Namespace,
		Subsystem:   o.Subsystem,
		Name:        o.Name,
		Help:        o.Help,
		ConstLabels: o.ConstLabels,
	}, labels)
	MetricCollectionHistogramVec[subsystem+name] = h
	return register(h)
}

func createGaugeVec(subsystem, name string, labels []string) error {
	lockCreateMetricLock.Lock()
	defer lockCreateMetricLock.Unlock()
	g := prometheus.NewGaugeVec(prometheus.GaugeOpts(opts(subsystem, name)), labels)
	MetricCollectionGaugeVec[subsystem+name] = g
	return register(g)
}

func register(c prometheus.Collector) error {
	return prometheus.Register(c)
}

func AddCounter(subsystem, name string, number float64) {
	if !MetricSystemEnabled {
		return
	}
	if v, ok := MetricCollectionCounters[subsystem+name]; ok {
		v.Add(number)
		return
	}
	logger.Warn("[metrics-server] counter not found", "subsystem", subsystem, "name", name)
}

func IncCounter(subsystem, name string) {
	AddCounter(subsystem, name, 1)
}

func AddCounterVec(subsystem, name string, num float64, labelValues ...string) {
	if !MetricSystemEnabled {
		return
	}
	if v, ok := MetricCollectionCounterVec[subsystem+name]; ok {
		v.WithLabelValues(labelValues...).Add(num)
		return
	}
	logger.Warn("[metrics-server] counter vec not found", "subsystem", subsystem, "name", name)
}

func IncCounterVec(subsystem, name string, labelValues ...string) {
	AddCounterVec(subsystem, name, 1, labelValues...)
}

func AddGaugeVec(subsystem, name string, num float64, labelValues ...string) {
	if !MetricSystemEnabled {
		return
	}
	if v, ok := MetricCollectionGaugeVec[subsystem+name]; ok {
		v.WithLabelValues(labelValues...).Add(num)
		return
	}
	logger.Warn("[metrics-server] gauge not found", "subsystem", subsystem, "name", name)
}

func AddHistogram(subsystem, name string, number float64) {
	if !MetricSystemEnabled {
		return
	}
	if v, ok := MetricCollectionHistogram[subsystem+name]; ok {
		v.Observe(number)
		return
	}
	logger.Warn("[metrics-server] histogram not found", "subsystem", subsystem, "name", name)
}

func AddHistogramVec(subsystem, name string, number float64, labelValues ...string) {
	if !MetricSystemEnabled {
		return
	}
	if v, ok := MetricCollectionHistogramVec[subsystem+name]; ok {
		v.WithLabelValues(labelValues...).Observe(number)
		return
	}
	logger.Warn("[metrics-server] histogram vec not found", "subsystem", subsystem, "name", name)
}

// Ledger helpers.

func TransactionCreated(expenseType string) {
	IncCounterVec(SystemLedger, MetricTransactionsCreated, expenseType)
}

func TransactionDeleted(renumbered int) {
	IncCounter(SystemLedger, MetricTransactionsDeleted)
	AddHistogram(SystemLedger, MetricSerialsRenumbered, float64(renumbered))
}

func SerialRepair(source string) {
	IncCounterVec(SystemLedger, MetricSerialRepairs, source)
}

func ScopeLockWait(seconds float64) {
	AddHistogram(SystemLedger, MetricLockWait, seconds)
}

// Event helpers.

func EventPublished(sink string, ok bool) {
	IncCounterVec(SystemEvents, MetricEventsPublished, sink, status(ok))
}

func EventProcessed(eventType string, ok bool, seconds float64) {
	IncCounterVec(SystemEvents, MetricEventsProcessed, eventType, status(ok))
	AddHistogramVec(SystemEvents, MetricEventProcessTime, seconds, eventType)
}

func status(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
