package metrics

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Counters(t *testing.T) {
	r := NewRegistry()

	r.IncrementCounter(PostsWritten, nil, "Posts written")
	r.AddToCounter(PostsWritten, 4, nil, "Posts written")
	r.IncrementCounter(HTTPRequests, map[string]string{"status": "200", "method": "GET"}, "")

	assert.Equal(t, 5.0, r.Counter(PostsWritten, nil))
	assert.Equal(t, 1.0, r.Counter(HTTPRequests, map[string]string{"method": "GET", "status": "200"}))
	assert.Zero(t, r.Counter("missing", nil))

	s := r.Snapshot()
	require.Contains(t, s.Counters, "http_requests_total_method:GET_status:200")
	assert.Equal(t, Counter, s.Counters[PostsWritten].Type)
	assert.Equal(t, "Posts written", s.Counters[PostsWritten].Description)
}

func TestRegistry_Timers(t *testing.T) {
	r := NewRegistry()
	labels := map[string]string{"stage": "assemble"}

	for i := 1; i <= 20; i++ {
		r.RecordTimer(StageDuration, time.Duration(i)*time.Millisecond, labels)
	}

	timer := r.Snapshot().Timers["stage_duration_stage:assemble"]
	assert.Equal(t, int64(20), timer.Count)
	assert.InDelta(t, 1.0, timer.Min, 0.001)
	assert.InDelta(t, 20.0, timer.Max, 0.001)
	assert.InDelta(t, 10.5, timer.Average, 0.001)
	assert.InDelta(t, 20.0, timer.P95, 0.001)
	assert.Equal(t, "assemble", timer.Labels["stage"])
}

func TestRegistry_Time(t *testing.T) {
	r := NewRegistry()
	stop := r.Time(StageDuration, nil)
	d := stop()
	assert.GreaterOrEqual(t, d, time.Duration(0))
	assert.Equal(t, int64(1), r.Snapshot().Timers[StageDuration].Count)
}

func TestRegistry_Gauges(t *testing.T) {
	r := NewRegistry()
	r.SetGauge(MediaBytes, 100, nil, "")
	r.SetGauge(MediaBytes, 250, nil, "")

	g := r.Snapshot().Gauges[MediaBytes]
	assert.Equal(t, 250.0, g.Value)
	assert.Equal(t, Gauge, g.Type)
}

func TestRegistry_SnapshotIsCopy(t *testing.T) {
	r := NewRegistry()
	r.IncrementCounter(PostsWritten, nil, "")
	s := r.Snapshot()
	r.IncrementCounter(PostsWritten, nil, "")

	assert.Equal(t, 1.0, s.Counters[PostsWritten].Value)
	assert.Equal(t, 2.0, r.Counter(PostsWritten, nil))

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"posts_written_total"`)
}

func TestRegistry_Concurrent(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.IncrementCounter(HTTPRequests, nil, "")
			r.RecordTimer(HTTPDuration, time.Millisecond, nil)
			_ = r.Snapshot()
		}()
	}
	wg.Wait()
	assert.Equal(t, 50.0, r.Counter(HTTPRequests, nil))
}

func TestMetricKey(t *testing.T) {
	assert.Equal(t, "n", metricKey("n", nil))
	assert.Equal(t, "n_a:1_b:2", metricKey("n", map[string]string{"b": "2", "a": "1"}))
}
