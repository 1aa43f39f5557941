package metrics

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/veriflow-ai/veriflow/types"
)

var collectorNamespaceSeq uint64

func nextTestNamespace() string {
	seq := atomic.AddUint64(&collectorNamespaceSeq, 1)
	return fmt.Sprintf("test_%d", seq)
}

// =============================================================================
// 🧪 Collector 测试
// =============================================================================

func TestNewCollector(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	assert.NotNil(t, collector)
	assert.NotNil(t, collector.httpRequestsTotal)
	assert.NotNil(t, collector.workflowsTotal)
	assert.NotNil(t, collector.agentInvocationsTotal)
	assert.NotNil(t, collector.verificationsTotal)
	assert.NotNil(t, collector.alertsTotal)
}

func TestNewCollector_NilLogger(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), nil)
	assert.NotNil(t, collector)
}

func TestCollector_RecordHTTPRequest(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordHTTPRequest("GET", "/api/v1/verify", 200, 100*time.Millisecond, 1024, 2048)

	count := testutil.CollectAndCount(collector.httpRequestsTotal)
	assert.Greater(t, count, 0)

	// 再记录一次相同的请求
	collector.RecordHTTPRequest("GET", "/api/v1/verify", 200, 50*time.Millisecond, 512, 1024)

	newCount := testutil.CollectAndCount(collector.httpRequestsTotal)
	assert.GreaterOrEqual(t, newCount, count)
}

func TestCollector_RecordWorkflow(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordWorkflow(types.WorkflowCompleted, 2*time.Second, 3)
	collector.RecordWorkflow(types.WorkflowFailed, 500*time.Millisecond, 2)

	count := testutil.CollectAndCount(collector.workflowsTotal)
	assert.Equal(t, 2, count) // completed + failed 两个 label 组合

	value := testutil.ToFloat64(collector.workflowsTotal.WithLabelValues(string(types.WorkflowCompleted)))
	assert.Equal(t, 1.0, value)
}

func TestCollector_ActiveWorkflowsGauge(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.WorkflowStarted()
	collector.WorkflowStarted()
	assert.Equal(t, 2.0, testutil.ToFloat64(collector.activeWorkflows))

	collector.WorkflowFinished()
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.activeWorkflows))
}

func TestCollector_RecordAgentInvocation(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordAgentInvocation("fact-check", true, 800*time.Millisecond)
	collector.RecordAgentInvocation("fact-check", false, 5*time.Second)

	success := testutil.ToFloat64(collector.agentInvocationsTotal.WithLabelValues("fact-check", "success"))
	failure := testutil.ToFloat64(collector.agentInvocationsTotal.WithLabelValues("fact-check", "failure"))
	assert.Equal(t, 1.0, success)
	assert.Equal(t, 1.0, failure)
}

func TestCollector_SetAgentHealthScore(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.SetAgentHealthScore("content-analysis", 0.93)
	collector.SetAgentHealthScore("content-analysis", 0.74)

	value := testutil.ToFloat64(collector.agentHealthScore.WithLabelValues("content-analysis"))
	assert.Equal(t, 0.74, value)
}

func TestCollector_RecordVerification(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordVerification(types.VerdictVerifiedTrue, types.CertaintyHigh, 3*time.Second)

	count := testutil.CollectAndCount(collector.verificationsTotal)
	assert.Greater(t, count, 0)

	value := testutil.ToFloat64(collector.verificationsTotal.WithLabelValues(
		string(types.VerdictVerifiedTrue), string(types.CertaintyHigh)))
	assert.Equal(t, 1.0, value)
}

func TestCollector_RecordCacheOperation(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordCacheHit("decision")
	collector.RecordCacheMiss("decision")
	collector.RecordCacheMiss("decision")

	hits := testutil.ToFloat64(collector.cacheHits.WithLabelValues("decision"))
	misses := testutil.ToFloat64(collector.cacheMisses.WithLabelValues("decision"))
	assert.Equal(t, 1.0, hits)
	assert.Equal(t, 2.0, misses)
}

func TestCollector_RecordAlert(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordAlert(types.AlertAvailability, types.SeverityCritical)

	value := testutil.ToFloat64(collector.alertsTotal.WithLabelValues(
		string(types.AlertAvailability), string(types.SeverityCritical)))
	assert.Equal(t, 1.0, value)
}

func TestCollector_ConcurrentRecording(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func() {
			collector.RecordHTTPRequest("POST", "/api/v1/verify", 200, 100*time.Millisecond, 1024, 2048)
			collector.RecordWorkflow(types.WorkflowCompleted, time.Second, 3)
			collector.RecordAgentInvocation("fact-check", true, 300*time.Millisecond)
			collector.RecordCacheHit("decision")
			done <- true
		}()
	}

	for i := 0; i < 10; i++ {
		<-done
	}

	assert.Equal(t, 10.0, testutil.ToFloat64(collector.httpRequestsTotal.WithLabelValues("POST", "/api/v1/verify", "2xx")))
	assert.Equal(t, 10.0, testutil.ToFloat64(collector.workflowsTotal.WithLabelValues(string(types.WorkflowCompleted))))
	assert.Equal(t, 10.0, testutil.ToFloat64(collector.cacheHits.WithLabelValues("decision")))
}

func TestStatusCode(t *testing.T) {
	assert.Equal(t, "2xx", statusCode(204))
	assert.Equal(t, "3xx", statusCode(301))
	assert.Equal(t, "4xx", statusCode(418))
	assert.Equal(t, "5xx", statusCode(503))
	assert.Equal(t, "unknown", statusCode(42))
}
