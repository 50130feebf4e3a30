package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploads_Observe(t *testing.T) {
	reg := prometheus.NewRegistry()
	u, err := NewUploads(reg)
	require.NoError(t, err)

	u.Observe("raw", "ok", 100)
	u.Observe("raw", "ok", 50)
	u.Observe("multipart", "client_error", 999)

	assert.Equal(t, float64(2), testutil.ToFloat64(u.total.WithLabelValues("raw", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(u.total.WithLabelValues("multipart", "client_error")))
	assert.Equal(t, float64(150), testutil.ToFloat64(u.bytes.WithLabelValues("raw")))
	assert.Equal(t, float64(0), testutil.ToFloat64(u.bytes.WithLabelValues("multipart")))
	assert.Equal(t, 1, testutil.CollectAndCount(u.size))
}

func TestUploads_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewUploads(reg)
	require.NoError(t, err)
	_, err = NewUploads(reg)
	assert.Error(t, err)
}

func TestUploads_NilIsNoop(t *testing.T) {
	var u *Uploads
	assert.NotPanics(t, func() { u.Observe("raw", "ok", 1) })
}
