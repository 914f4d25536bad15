package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storkagent_cache_hits_total",
		Help: "Cache hits by tier (memory/disk).",
	}, []string{"tier"})

	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storkagent_cache_misses_total",
		Help: "Cache lookups that found no fresh entry.",
	})
)
