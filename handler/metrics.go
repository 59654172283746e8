package handler

import (
	"route-planner/algo"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	searchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "route_planner_searches_total",
		Help: "Path searches by outcome (found, no_path, invalid, cache_hit).",
	}, []string{"outcome"})

	searchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "route_planner_search_duration_seconds",
		Help:    "A* search latency, excluding cache hits.",
		Buckets: prometheus.ExponentialBuckets(0.00005, 4, 10),
	})

	closedNodes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "route_planner_search_closed_nodes",
		Help:    "Closed set size at the end of each search.",
		Buckets: prometheus.ExponentialBuckets(1, 4, 10),
	})

	mapLoadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "route_planner_map_loads_total",
		Help: "Map loads by source and result.",
	}, []string{"source", "result"})

	mapPoints = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "route_planner_map_points",
		Help: "Points in the loaded map.",
	})

	mapRoutes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "route_planner_map_routes",
		Help: "Routes in the loaded map.",
	})
)

func observeMap(p *algo.Planner) {
	mapPoints.Set(float64(p.PointCount()))
	mapRoutes.Set(float64(p.RouteCount()))
}
