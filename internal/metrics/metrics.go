package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RowsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collisionwx_rows_ingested_total",
			Help: "Rows upserted by the CSV loaders",
		},
		[]string{"loader", "outcome"},
	)

	RowsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collisionwx_rows_skipped_total",
			Help: "Loader rows skipped, by reason",
		},
		[]string{"loader", "reason"},
	)

	CityWeatherBuilds = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collisionwx_city_weather_builds_total",
			Help: "City daily weather rows written by the aggregator",
		},
		[]string{"outcome"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collisionwx_http_requests_total",
			Help: "HTTP requests served, by route and status class",
		},
		[]string{"route", "status"},
	)
)
