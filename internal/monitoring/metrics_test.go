package monitoring

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	m := New(true, "gold_monthly_rollup")
	assert.NotNil(t, m)
	assert.True(t, m.enabled)

	m2 := New(false, "gold_monthly_rollup")
	assert.NotNil(t, m2)
	assert.False(t, m2.enabled)
}

func TestRecordRun(t *testing.T) {
	RunsTotal.Reset()
	RunDuration.Reset()

	m := New(true, "gold_monthly_rollup")
	m.RecordRun("succeeded", 42*time.Second)
	m.RecordRun("failed", time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(RunsTotal.WithLabelValues("gold_monthly_rollup", "succeeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(RunsTotal.WithLabelValues("gold_monthly_rollup", "failed")))
	assert.Greater(t, testutil.CollectAndCount(RunDuration), 0)
}

func TestRecordRunDisabled(t *testing.T) {
	RunsTotal.Reset()

	m := New(false, "gold_monthly_rollup")
	m.RecordRun("succeeded", time.Second)

	assert.Equal(t, 0, testutil.CollectAndCount(RunsTotal))
}

func TestRecordUnit(t *testing.T) {
	UnitsTotal.Reset()
	UnitDuration.Reset()

	m := New(true, "gold_monthly_rollup")
	m.RecordUnit("monthly_sales", "succeeded", 3*time.Second)
	m.RecordUnit("monthly_sales", "succeeded", 5*time.Second)
	m.RecordUnit("monthly_sales", "failed", time.Second)
	m.RecordUnit("monthly_sales", "skipped", 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(UnitsTotal.WithLabelValues("gold_monthly_rollup", "succeeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(UnitsTotal.WithLabelValues("gold_monthly_rollup", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(UnitsTotal.WithLabelValues("gold_monthly_rollup", "skipped")))
}

func TestRecordStageAndRetry(t *testing.T) {
	StageDuration.Reset()
	RetryAttemptsTotal.Reset()

	m := New(true, "gold_monthly_rollup")
	m.RecordStage("product_performance", 7*time.Second)
	m.RecordRetry("aggregate 2010-12")
	m.RecordRetry("aggregate 2010-12")

	assert.Greater(t, testutil.CollectAndCount(StageDuration), 0)
	assert.Equal(t, 2.0, testutil.ToFloat64(RetryAttemptsTotal.WithLabelValues("gold_monthly_rollup", "aggregate 2010-12")))
}

func TestSetPendingUnits(t *testing.T) {
	PendingUnits.Reset()

	m := New(true, "gold_monthly_rollup")
	m.SetPendingUnits(12)
	assert.Equal(t, 12.0, testutil.ToFloat64(PendingUnits.WithLabelValues("gold_monthly_rollup")))

	m.SetPendingUnits(0)
	assert.Equal(t, 0.0, testutil.ToFloat64(PendingUnits.WithLabelValues("gold_monthly_rollup")))
}
