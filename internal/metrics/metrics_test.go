package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterTwice(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, Register(reg))
	require.NoError(t, Register(reg))
}

func TestObserveAssignment(t *testing.T) {
	before := testutil.ToFloat64(assignmentsTotal.WithLabelValues(OutcomeExisting))
	ObserveAssignment(true, nil)
	assert.Equal(t, before+1, testutil.ToFloat64(assignmentsTotal.WithLabelValues(OutcomeExisting)))

	before = testutil.ToFloat64(assignmentsTotal.WithLabelValues(OutcomeError))
	ObserveAssignment(true, errors.New("not running"))
	assert.Equal(t, before+1, testutil.ToFloat64(assignmentsTotal.WithLabelValues(OutcomeError)))
}

func TestObserveSendCycle(t *testing.T) {
	ok := testutil.ToFloat64(messagesTotal.WithLabelValues(OutcomeSuccess))
	failed := testutil.ToFloat64(messagesTotal.WithLabelValues(OutcomeError))

	ObserveSendCycle(2*time.Second, 7, 3)

	assert.Equal(t, ok+7, testutil.ToFloat64(messagesTotal.WithLabelValues(OutcomeSuccess)))
	assert.Equal(t, failed+3, testutil.ToFloat64(messagesTotal.WithLabelValues(OutcomeError)))
}

func TestIncTracking(t *testing.T) {
	before := testutil.ToFloat64(trackingMessagesTotal.WithLabelValues("consume", OutcomeSuccess))
	IncTracking("consume", nil)
	assert.Equal(t, before+1, testutil.ToFloat64(trackingMessagesTotal.WithLabelValues("consume", OutcomeSuccess)))
}
