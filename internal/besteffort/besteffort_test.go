package besteffort

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/weiwangfds/datashare/internal/metrics"
)

func TestRunSwallowsErrors(t *testing.T) {
	before := testutil.ToFloat64(metrics.BestEffortFailures.WithLabelValues("test_error"))

	ok := Run(context.Background(), "test_error", logrus.Fields{"dataset_id": "x"}, func(context.Context) error {
		return errors.New("audit table locked")
	})

	assert.False(t, ok)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.BestEffortFailures.WithLabelValues("test_error")))
}

func TestRunRecoversPanics(t *testing.T) {
	before := testutil.ToFloat64(metrics.BestEffortFailures.WithLabelValues("test_panic"))

	assert.NotPanics(t, func() {
		ok := Run(context.Background(), "test_panic", nil, func(context.Context) error {
			panic("nil map")
		})
		assert.False(t, ok)
	})
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.BestEffortFailures.WithLabelValues("test_panic")))
}

func TestRunSuccess(t *testing.T) {
	called := false
	ok := Run(context.Background(), "test_ok", nil, func(context.Context) error {
		called = true
		return nil
	})
	assert.True(t, ok)
	assert.True(t, called)
}
