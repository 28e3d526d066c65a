package otel

import (
	"context"
	"errors"
	"fmt"

	goScrypt "github.com/MrEthical07/goScrypt"
	"github.com/MrEthical07/goScrypt/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Instrument names.
const (
	OperationsName    = "goscrypt.operations"
	EventsName        = "goscrypt.events"
	KDFBucketName     = "goscrypt.kdf.duration.bucket"
	KDFCountName      = "goscrypt.kdf.duration.count"
	AuditDroppedName  = "goscrypt.audit.dropped"
	DefaultLogNName   = "goscrypt.default.log_n"
	DefaultMemoryName = "goscrypt.default.memory"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

type metricsSource interface {
	MetricsSnapshot() goScrypt.MetricsSnapshot
	AuditDropped() uint64
}

type reportSource interface {
	SecurityReport() goScrypt.SecurityReport
}

// point is one counter data point with its precomputed attribute set.
type point struct {
	id    goScrypt.MetricID
	attrs metric.ObserveOption
}

// OTelExporter publishes engine metrics through asynchronous OTel instruments.
// Hash and verify outcomes share one counter keyed by "operation" and
// "outcome"; latency buckets share one gauge keyed by "operation" and "le".
type OTelExporter struct {
	source       metricsSource
	report       reportSource
	registration metric.Registration

	operations metric.Int64ObservableCounter
	events     metric.Int64ObservableCounter
	opPoints   []point
	evPoints   []point

	kdfBuckets metric.Int64ObservableGauge
	kdfCount   metric.Int64ObservableGauge

	auditDropped metric.Int64ObservableCounter
	defaultLogN  metric.Int64ObservableGauge
	defaultMem   metric.Int64ObservableGauge
}

// NewOTelExporter registers instruments on meter that read from engine on
// every collection.
func NewOTelExporter(meter metric.Meter, engine *goScrypt.Engine) (*OTelExporter, error) {
	return NewOTelExporterFromSource(meter, engine)
}

// NewOTelExporterFromSource is NewOTelExporter for any snapshot source. Cost
// gauges are registered only when source also provides a SecurityReport.
func NewOTelExporterFromSource(meter metric.Meter, source metricsSource) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &OTelExporter{source: source}
	e.report, _ = source.(reportSource)

	for _, def := range internaldefs.OperationDefs {
		e.opPoints = append(e.opPoints, point{id: def.ID, attrs: metric.WithAttributes(
			attribute.String(internaldefs.LabelOperation, def.Operation),
			attribute.String(internaldefs.LabelOutcome, def.Outcome),
		)})
	}
	for _, def := range internaldefs.EventDefs {
		e.evPoints = append(e.evPoints, point{id: def.ID, attrs: metric.WithAttributes(
			attribute.String(internaldefs.LabelEvent, def.Event),
		)})
	}

	if err := e.createInstruments(meter); err != nil {
		return nil, err
	}

	observables := []metric.Observable{e.operations, e.events, e.kdfBuckets, e.kdfCount, e.auditDropped}
	if e.report != nil {
		observables = append(observables, e.defaultLogN, e.defaultMem)
	}

	registration, err := meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	e.registration = registration

	return e, nil
}

func (e *OTelExporter) createInstruments(meter metric.Meter) error {
	var err error

	if e.operations, err = meter.Int64ObservableCounter(OperationsName,
		metric.WithDescription(internaldefs.OperationsHelp),
		metric.WithUnit("{call}"),
	); err != nil {
		return fmt.Errorf("create %s: %w", OperationsName, err)
	}
	if e.events, err = meter.Int64ObservableCounter(EventsName,
		metric.WithDescription(internaldefs.EventsHelp),
	); err != nil {
		return fmt.Errorf("create %s: %w", EventsName, err)
	}
	if e.kdfBuckets, err = meter.Int64ObservableGauge(KDFBucketName,
		metric.WithDescription("Cumulative count of scrypt derivations at or below the le bound in seconds."),
	); err != nil {
		return fmt.Errorf("create %s: %w", KDFBucketName, err)
	}
	if e.kdfCount, err = meter.Int64ObservableGauge(KDFCountName,
		metric.WithDescription("Total scrypt derivations observed by the latency histogram."),
	); err != nil {
		return fmt.Errorf("create %s: %w", KDFCountName, err)
	}
	if e.auditDropped, err = meter.Int64ObservableCounter(AuditDroppedName,
		metric.WithDescription(internaldefs.AuditDroppedHelp),
	); err != nil {
		return fmt.Errorf("create %s: %w", AuditDroppedName, err)
	}

	if e.report == nil {
		return nil
	}
	if e.defaultLogN, err = meter.Int64ObservableGauge(DefaultLogNName,
		metric.WithDescription(internaldefs.DefaultLogNHelp),
	); err != nil {
		return fmt.Errorf("create %s: %w", DefaultLogNName, err)
	}
	if e.defaultMem, err = meter.Int64ObservableGauge(DefaultMemoryName,
		metric.WithDescription(internaldefs.DefaultMemHelp),
		metric.WithUnit("By"),
	); err != nil {
		return fmt.Errorf("create %s: %w", DefaultMemoryName, err)
	}
	return nil
}

func (e *OTelExporter) observe(_ context.Context, o metric.Observer) error {
	snapshot := e.source.MetricsSnapshot()

	for _, p := range e.opPoints {
		o.ObserveInt64(e.operations, int64(snapshot.Counters[p.id]), p.attrs)
	}
	for _, p := range e.evPoints {
		o.ObserveInt64(e.events, int64(snapshot.Counters[p.id]), p.attrs)
	}

	for _, def := range internaldefs.HistogramDefs {
		raw, ok := snapshot.Histograms[def.ID]
		if !ok {
			continue
		}
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(raw))
		op := attribute.String(internaldefs.LabelOperation, def.Operation)
		for i, le := range internaldefs.HistogramBounds {
			o.ObserveInt64(e.kdfBuckets, int64(cumulative[i]), metric.WithAttributes(op, attribute.String(internaldefs.LabelLE, le)))
		}
		o.ObserveInt64(e.kdfCount, int64(cumulative[len(cumulative)-1]), metric.WithAttributes(op))
	}

	o.ObserveInt64(e.auditDropped, int64(e.source.AuditDropped()))

	if e.report != nil {
		r := e.report.SecurityReport()
		o.ObserveInt64(e.defaultLogN, int64(r.Defaults.LogN))
		o.ObserveInt64(e.defaultMem, int64(r.DefaultMemory))
	}
	return nil
}

// Close unregisters the collection callback.
func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
