package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	m := New()
	m.Registration("created")
	m.Registration("created")
	m.Login("unknown_email")
	m.StatusUpdate("accepted")
	m.APILogin("ok")
	m.ObserveHTTP("POST", "/ngo/register", 201, 10*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.registrations.WithLabelValues("created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.logins.WithLabelValues("unknown_email")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.statusUpdates.WithLabelValues("accepted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.apiLogins.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("POST", "/ngo/register", "201")))
}
