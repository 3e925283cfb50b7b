package telemetry

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/sqlsrv-go/query"
	"github.com/satishbabariya/sqlsrv-go/query/executor"
)

func TestMetrics_Rewrites(t *testing.T) {
	m := New()
	m.RewriteObserved(false)
	m.RewriteObserved(false)
	m.RewriteObserved(true)
	m.RewritePromoted()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.rewritesTotal.WithLabelValues("full")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rewritesTotal.WithLabelValues("cache")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.promotionsTotal))
}

func TestMetrics_Executions(t *testing.T) {
	m := New()
	m.ExecutionObserved(executor.ReturnAffected, time.Millisecond, nil)
	m.ExecutionObserved(executor.ReturnAffected, time.Millisecond,
		&query.IntegrityConstraintViolationError{Diagnostic: query.Diagnostic{SQLState: "23000"}})
	m.ExecutionObserved(executor.ReturnStatement, time.Millisecond, errors.New("boom"))
	m.TransactionPoisoned(query.Diagnostic{SQLState: "40001", Number: 1205})
	m.TransactionPoisoned(query.Diagnostic{})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.executionsTotal.WithLabelValues("affected", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.executionsTotal.WithLabelValues("affected", "integrity")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.executionsTotal.WithLabelValues("statement", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.poisonedTotal.WithLabelValues("40001")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.poisonedTotal.WithLabelValues("unknown")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.executionDuration))
}

func TestStatus(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{&query.DoomedTransactionError{Op: "execute"}, "doomed"},
		{&query.ExecutionError{Diagnostic: query.Diagnostic{SQLState: "42S02"}}, "not_found"},
		{&query.ExecutionError{Diagnostic: query.Diagnostic{SQLState: "HY000"}}, "error"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, status(tt.err))
	}
}

func TestHandler(t *testing.T) {
	m := New(WithNamespace("test"), WithRuntimeCollectors())
	m.RewritePromoted()

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.True(t, strings.Contains(string(body), "test_rewrite_promotions_total 1"))
	assert.Contains(t, string(body), "go_goroutines")
}
