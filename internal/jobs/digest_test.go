package jobs

import (
	"context"
	"errors"
	"testing"

	"hokenhub/internal/logger"
	"hokenhub/internal/metrics"
	"hokenhub/internal/service"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDigest struct {
	res   *service.DigestResult
	err   error
	calls int
}

func (s *stubDigest) SendWeeklyDigest(context.Context) (*service.DigestResult, error) {
	s.calls++
	return s.res, s.err
}

func TestNewScheduler_InvalidSchedule(t *testing.T) {
	_, err := NewScheduler("every tuesday", &stubDigest{}, logger.Discard())
	assert.Error(t, err)
}

func TestRunDigest_RecordsOutcome(t *testing.T) {
	tests := []struct {
		name   string
		stub   *stubDigest
		result string
	}{
		{"success", &stubDigest{res: &service.DigestResult{Recipients: 2, Plans: 10}}, "success"},
		{"partial", &stubDigest{res: &service.DigestResult{Recipients: 1}, err: errors.New("one bounce")}, "partial"},
		{"failed", &stubDigest{err: errors.New("db down")}, "failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewScheduler("0 7 * * 1", tt.stub, logger.Discard())
			require.NoError(t, err)

			before := testutil.ToFloat64(metrics.DigestRuns.WithLabelValues(tt.result))
			s.RunDigest()
			assert.Equal(t, 1, tt.stub.calls)
			assert.Equal(t, before+1, testutil.ToFloat64(metrics.DigestRuns.WithLabelValues(tt.result)))
		})
	}
}

func TestScheduler_StartStop(t *testing.T) {
	s, err := NewScheduler("@every 1h", &stubDigest{}, logger.Discard())
	require.NoError(t, err)
	s.Start()
	s.Stop(context.Background())
}
