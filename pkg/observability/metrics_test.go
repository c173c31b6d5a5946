package observability

import (
	"sync"
	"testing"
	"time"
)

var (
	sharedMetricsOnce sync.Once
	sharedMetricsVal  *Metrics
)

// sharedMetrics returns one Metrics for the whole test binary:
// NewMetrics registers its collectors with Prometheus's global
// registry, so a second call in the same process panics.
func sharedMetrics() *Metrics {
	sharedMetricsOnce.Do(func() { sharedMetricsVal = NewMetrics() })
	return sharedMetricsVal
}

func TestMetrics(t *testing.T) {
	m := sharedMetrics()

	t.Run("NewMetrics", func(t *testing.T) {
		if m == nil {
			t.Fatal("NewMetrics returned nil")
		}
		if m.BuildDuration == nil {
			t.Error("BuildDuration not initialized")
		}
		if m.SearchLatency == nil {
			t.Error("SearchLatency not initialized")
		}
		if m.CacheHits == nil {
			t.Error("CacheHits not initialized")
		}
		if m.PQTrainingDuration == nil {
			t.Error("PQTrainingDuration not initialized")
		}
	})

	t.Run("RecordBuild", func(t *testing.T) {
		m.RecordBuild(500*time.Millisecond, 1000)
		m.RecordBuild(5*time.Second, 50000)
	})

	t.Run("RecordEntryRecompute", func(t *testing.T) {
		for i := 0; i < 5; i++ {
			m.RecordEntryRecompute()
		}
	})

	t.Run("UpdateGraphSize", func(t *testing.T) {
		m.UpdateGraphSize(1000)
		m.UpdateGraphSize(2000)
	})

	t.Run("UpdateGraphMeanDegree", func(t *testing.T) {
		m.UpdateGraphMeanDegree(48.5)
	})

	t.Run("RecordSearch", func(t *testing.T) {
		m.RecordSearch(2*time.Millisecond, 10, 120)
		m.RecordSearch(5*time.Millisecond, 25, 300)

		for i := 1; i <= 100; i += 10 {
			m.RecordSearch(time.Millisecond*time.Duration(i), i, i*10)
		}
	})

	t.Run("RecordRecall", func(t *testing.T) {
		m.RecordRecall(0.92)
		m.RecordRecall(0.98)
	})

	t.Run("RecordCacheHit", func(t *testing.T) {
		for i := 0; i < 100; i++ {
			m.RecordCacheHit()
		}
	})

	t.Run("RecordCacheMiss", func(t *testing.T) {
		for i := 0; i < 50; i++ {
			m.RecordCacheMiss()
		}
	})

	t.Run("UpdateCacheSize", func(t *testing.T) {
		m.UpdateCacheSize(100)
		m.UpdateCacheSize(4096)
	})

	t.Run("RecordPQTraining", func(t *testing.T) {
		m.RecordPQTraining(2*time.Second, 8)
		m.RecordPQTraining(10*time.Second, 16)
	})
}

func TestConcurrentMetricUpdates(t *testing.T) {
	m := sharedMetrics()
	done := make(chan bool, 10)

	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 10; j++ {
				m.RecordCacheHit()
				m.UpdateGraphSize(j)
			}
			done <- true
		}()
	}

	for i := 0; i < 10; i++ {
		<-done
	}
}

func BenchmarkRecordSearch(b *testing.B) {
	b.Skip("Skipping benchmark due to global metric registry conflicts")
}

func BenchmarkUpdateGraphSize(b *testing.B) {
	b.Skip("Skipping benchmark due to global metric registry conflicts")
}
