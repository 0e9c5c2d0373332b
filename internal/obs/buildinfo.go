package obs

import (
	"runtime"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// BuildInfo identifies the running binary.
type BuildInfo struct {
	Service string
	Version string
	Commit  string
	Env     string
}

var (
	buildInfoOnce sync.Once

	buildInfoGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "plantilla_build_info",
			Help: "Service, version and environment of the running binary, constant 1.",
		},
		[]string{"service", "version", "commit", "env", "go_version"},
	)
)

// InitBuildInfo publishes plantilla_build_info. Only the latest labels are kept.
func InitBuildInfo(info BuildInfo) {
	buildInfoOnce.Do(func() {
		prometheus.MustRegister(buildInfoGauge)
	})
	if info.Env == "" {
		info.Env = "development"
	}
	buildInfoGauge.Reset()
	buildInfoGauge.WithLabelValues(info.Service, info.Version, info.Commit, info.Env, runtime.Version()).Set(1)
}
