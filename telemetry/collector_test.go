package telemetry

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeProvider struct {
	calls atomic.Int32
}

func (f *fakeProvider) RegistryStats() (int, int) {
	f.calls.Add(1)
	return 2, 5
}

type recordingGauge struct {
	NoopStat
	last atomic.Int64
}

func (g *recordingGauge) Set(v float64) { g.last.Store(int64(v)) }

func TestMetricsCollector(t *testing.T) {
	gauge := &recordingGauge{}
	saved := RegistryEntries
	RegistryEntries = gauge
	defer func() { RegistryEntries = saved }()

	provider := &fakeProvider{}
	mc := NewMetricsCollector(provider, 5*time.Millisecond)
	mc.Start()

	assert.Eventually(t, func() bool { return provider.calls.Load() >= 2 }, time.Second, time.Millisecond)
	mc.Stop()
	mc.Stop()

	assert.Equal(t, int64(5), gauge.last.Load())
}

func TestNoopMetricsWithoutRegistry(t *testing.T) {
	assert.Nil(t, GetMetricsHandler())

	c := NewCounter("unused_total", "unused")
	assert.IsType(t, NoopStat{}, c)
	c.Inc()

	v := NewCounterVec("unused_vec_total", "unused", []string{"result"})
	v.With("success").Add(2)
}
