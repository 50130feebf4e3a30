package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Uploads records upload outcomes. A nil *Uploads is valid and records nothing.
type Uploads struct {
	total *prometheus.CounterVec
	bytes *prometheus.CounterVec
	size  prometheus.Histogram
}

// NewUploads registers the upload collectors on reg.
func NewUploads(reg prometheus.Registerer) (*Uploads, error) {
	u := &Uploads{
		total: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "uploads_total",
				Help: "Upload attempts by protocol and result.",
			},
			[]string{"protocol", "result"},
		),
		bytes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "upload_bytes_total",
				Help: "Bytes persisted by successful uploads.",
			},
			[]string{"protocol"},
		),
		size: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "upload_size_bytes",
				Help:    "Size of successfully stored files.",
				Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
			},
		),
	}
	for _, c := range []prometheus.Collector{u.total, u.bytes, u.size} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return u, nil
}

// Observe records one finished upload. size is ignored unless result is "ok".
func (u *Uploads) Observe(protocol, result string, size int64) {
	if u == nil {
		return
	}
	u.total.WithLabelValues(protocol, result).Inc()
	if result == "ok" {
		u.bytes.WithLabelValues(protocol).Add(float64(size))
		u.size.Observe(float64(size))
	}
}
