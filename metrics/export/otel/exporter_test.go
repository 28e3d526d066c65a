package otel

import (
	"context"
	"sync"
	"testing"

	goScrypt "github.com/MrEthical07/goScrypt"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type fakeSource struct {
	mu       sync.RWMutex
	snapshot goScrypt.MetricsSnapshot
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() goScrypt.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := goScrypt.MetricsSnapshot{
		Counters:   make(map[goScrypt.MetricID]uint64, len(f.snapshot.Counters)),
		Histograms: make(map[goScrypt.MetricID][]uint64, len(f.snapshot.Histograms)),
	}
	for k, v := range f.snapshot.Counters {
		out.Counters[k] = v
	}
	for k, buckets := range f.snapshot.Histograms {
		out.Histograms[k] = append([]uint64(nil), buckets...)
	}
	return out
}

func (f *fakeSource) AuditDropped() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dropped
}

func newReader() (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()
	return reader, sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	return rm
}

// value returns the data point of the named instrument whose attribute set
// equals kvs.
func value(rm metricdata.ResourceMetrics, name string, kvs ...attribute.KeyValue) (int64, bool) {
	want := attribute.NewSet(kvs...)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			var points []metricdata.DataPoint[int64]
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				points = data.DataPoints
			case metricdata.Gauge[int64]:
				points = data.DataPoints
			}
			for _, dp := range points {
				if dp.Attributes.Equals(&want) {
					return dp.Value, true
				}
			}
		}
	}
	return 0, false
}

func TestExporterRegistersAndCollects(t *testing.T) {
	reader, provider := newReader()

	src := &fakeSource{
		snapshot: goScrypt.MetricsSnapshot{
			Counters: map[goScrypt.MetricID]uint64{
				goScrypt.MetricVerifySuccess:  3,
				goScrypt.MetricVerifyMismatch: 2,
				goScrypt.MetricSaltGenerated:  7,
			},
			Histograms: map[goScrypt.MetricID][]uint64{
				goScrypt.MetricVerifyLatency: {1, 1, 1, 1, 1, 1, 1, 1},
			},
		},
		dropped: 1,
	}

	exp, err := NewOTelExporterFromSource(provider.Meter("goscrypt-test"), src)
	if err != nil {
		t.Fatalf("NewOTelExporterFromSource failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	rm := collect(t, reader)

	verify := attribute.String("operation", "verify")
	checks := []struct {
		name  string
		attrs []attribute.KeyValue
		want  int64
	}{
		{OperationsName, []attribute.KeyValue{verify, attribute.String("outcome", "success")}, 3},
		{OperationsName, []attribute.KeyValue{verify, attribute.String("outcome", "mismatch")}, 2},
		{OperationsName, []attribute.KeyValue{attribute.String("operation", "hash_raw"), attribute.String("outcome", "success")}, 0},
		{EventsName, []attribute.KeyValue{attribute.String("event", "salt_generated")}, 7},
		{AuditDroppedName, nil, 1},
		{KDFBucketName, []attribute.KeyValue{verify, attribute.String("le", "0.1")}, 4},
		{KDFBucketName, []attribute.KeyValue{verify, attribute.String("le", "+Inf")}, 8},
		{KDFCountName, []attribute.KeyValue{verify}, 8},
	}
	for _, c := range checks {
		got, ok := value(rm, c.name, c.attrs...)
		if !ok {
			t.Fatalf("%s%v not collected", c.name, c.attrs)
		}
		if got != c.want {
			t.Fatalf("%s%v = %d, want %d", c.name, c.attrs, got, c.want)
		}
	}

	if _, ok := value(rm, KDFCountName, attribute.String("operation", "hash")); ok {
		t.Fatal("histograms absent from the snapshot must not be observed")
	}
	if _, ok := value(rm, DefaultLogNName); ok {
		t.Fatal("plain sources must not register cost gauges")
	}
}

func TestExporterEngineCostGauges(t *testing.T) {
	reader, provider := newReader()

	engine, err := goScrypt.New().WithMetricsEnabled(true).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	exp, err := NewOTelExporter(provider.Meter("goscrypt-test"), engine)
	if err != nil {
		t.Fatalf("NewOTelExporter failed: %v", err)
	}
	defer exp.Close()

	if _, err := engine.DeriveKey(context.Background(), []byte("pw"), goScrypt.WithLogN(4)); err != nil {
		t.Fatalf("DeriveKey error: %v", err)
	}

	rm := collect(t, reader)

	if got, ok := value(rm, DefaultLogNName); !ok || got != 15 {
		t.Fatalf("expected default ln gauge 15, got %d (found=%v)", got, ok)
	}
	if got, ok := value(rm, DefaultMemoryName); !ok || got != 33555456 {
		t.Fatalf("expected default memory gauge, got %d (found=%v)", got, ok)
	}
	got, ok := value(rm, OperationsName, attribute.String("operation", "hash_raw"), attribute.String("outcome", "success"))
	if !ok || got != 1 {
		t.Fatalf("expected one raw hash, got %d (found=%v)", got, ok)
	}
}

func TestExporterRejectsNilArguments(t *testing.T) {
	_, provider := newReader()
	meter := provider.Meter("goscrypt-test")

	if _, err := NewOTelExporterFromSource(meter, nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource, got %v", err)
	}
	if _, err := NewOTelExporterFromSource(nil, &fakeSource{}); err != ErrNilMeter {
		t.Fatalf("expected ErrNilMeter, got %v", err)
	}
}

func TestExporterConcurrentCollectNoPanic(t *testing.T) {
	reader, provider := newReader()

	src := &fakeSource{
		snapshot: goScrypt.MetricsSnapshot{
			Counters: map[goScrypt.MetricID]uint64{
				goScrypt.MetricHashSuccess: 1,
			},
			Histograms: map[goScrypt.MetricID][]uint64{
				goScrypt.MetricHashLatency: {1, 0, 0, 0, 0, 0, 0, 0},
			},
		},
	}

	exp, err := NewOTelExporterFromSource(provider.Meter("goscrypt-test"), src)
	if err != nil {
		t.Fatalf("NewOTelExporterFromSource failed: %v", err)
	}
	defer exp.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.snapshot.Counters[goScrypt.MetricHashSuccess] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}
