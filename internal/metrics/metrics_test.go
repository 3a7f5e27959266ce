package metrics_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/twinlabs/twinlink/internal/metrics"
)

func TestObserveVerification(t *testing.T) {
	m := metrics.NewWith(prometheus.NewPedanticRegistry())

	m.ObserveVerification("CREDENTIAL_CHAIN", "VERIFIED", 120*time.Millisecond)
	m.ObserveVerification("CREDENTIAL_CHAIN", "VERIFIED", 80*time.Millisecond)
	m.ObserveVerification("DOMAIN_PROOF", "NOT_VERIFIED", 40*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Verifications.WithLabelValues("CREDENTIAL_CHAIN", "VERIFIED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Verifications.WithLabelValues("DOMAIN_PROOF", "NOT_VERIFIED")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.Duration))
}

func TestAttestationFailure(t *testing.T) {
	m := metrics.NewWith(prometheus.NewPedanticRegistry())

	m.AttestationFailure("mint")
	m.AttestationFailure("mint")
	m.AttestationFailure("transfer")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.AttestationFailures.WithLabelValues("mint")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AttestationFailures.WithLabelValues("transfer")))
}

func TestNilMetricsRecordNothing(t *testing.T) {
	var m *metrics.Metrics

	assert.NotPanics(t, func() {
		m.ObserveVerification("CREDENTIAL_CHAIN", "ERROR", time.Second)
		m.AttestationFailure("create")
	})
}
