package notify

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordDelivery(t *testing.T) {
	before := testutil.ToFloat64(deliveriesTotal.WithLabelValues("feishu", "failed"))

	RecordDelivery("feishu", false, 3, 200*time.Millisecond)

	assert.Equal(t, before+1, testutil.ToFloat64(deliveriesTotal.WithLabelValues("feishu", "failed")))
}

func TestRecordMessage(t *testing.T) {
	before := testutil.ToFloat64(messagesTotal.WithLabelValues("invalid"))
	RecordMessage("invalid")
	assert.Equal(t, before+1, testutil.ToFloat64(messagesTotal.WithLabelValues("invalid")))
}

func TestRecordCircuitBreakerOpen(t *testing.T) {
	before := testutil.ToFloat64(circuitBreakerOpenTotal.WithLabelValues("dingtalk"))
	RecordCircuitBreakerOpen("dingtalk")
	assert.Equal(t, before+1, testutil.ToFloat64(circuitBreakerOpenTotal.WithLabelValues("dingtalk")))
}

func TestRecordHistoryWriteFailure(t *testing.T) {
	before := testutil.ToFloat64(historyWriteFailures)
	RecordHistoryWriteFailure()
	assert.Equal(t, before+1, testutil.ToFloat64(historyWriteFailures))
}

func TestSetChannelsEnabled(t *testing.T) {
	SetChannelsEnabled(7)
	assert.Equal(t, float64(7), testutil.ToFloat64(channelsEnabled))
}
