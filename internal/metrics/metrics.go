// Package metrics содержит Prometheus-метрики экономики форума и HTTP-слоя.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Значения метки result.
const (
	ResultSuccess           = "success"
	ResultFailed            = "failed"
	ResultOutOfStock        = "out_of_stock"
	ResultInsufficientFunds = "insufficient_funds"
	ResultNotFound          = "not_found"
)

var (
	// Registry хранит коллекторы приложения.
	Registry = prometheus.NewRegistry()

	purchases = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "forum",
			Subsystem: "economy",
			Name:      "purchases_total",
			Help:      "Total number of marketplace purchase attempts.",
		},
		[]string{"result"},
	)

	rewards = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "forum",
			Subsystem: "economy",
			Name:      "rewards_total",
			Help:      "Total number of dispatched participation rewards.",
		},
		[]string{"reason", "result"},
	)

	coinsAwarded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "forum",
			Subsystem: "economy",
			Name:      "coins_awarded_total",
			Help:      "Total number of coins credited as rewards.",
		},
		[]string{"reason"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "forum",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "forum",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		},
		[]string{"method", "route"},
	)
)

func init() {
	Registry.MustRegister(
		purchases,
		rewards,
		coinsAwarded,
		httpRequests,
		httpDuration,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler отдаёт зарегистрированные метрики в формате Prometheus.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordPurchase учитывает попытку покупки с указанным исходом.
func RecordPurchase(result string) {
	purchases.WithLabelValues(result).Inc()
}

// RecordReward учитывает начисление награды. Монеты считаются только для успешных начислений.
func RecordReward(reason, result string, amount int64) {
	rewards.WithLabelValues(reason, result).Inc()
	if result == ResultSuccess && amount > 0 {
		coinsAwarded.WithLabelValues(reason).Add(float64(amount))
	}
}

// InstrumentHandler собирает метрики запросов, используя шаблон маршрута chi в качестве метки.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
