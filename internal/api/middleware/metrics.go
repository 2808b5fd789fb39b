// metrics.go — Prometheus HTTP метрики Formly.
// Регистрирует метрики: fy_http_requests_total, fy_http_request_duration_seconds.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP метрики
var (
	// httpRequestsTotal — общее количество HTTP-запросов.
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fy_http_requests_total",
			Help: "Общее количество HTTP-запросов к Formly",
		},
		[]string{"method", "path", "status"},
	)

	// httpRequestDuration — гистограмма длительности HTTP-запросов.
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fy_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов к Formly в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// MetricsMiddleware возвращает HTTP middleware для сбора Prometheus метрик.
// Записывает количество запросов и длительность для каждого endpoint.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Нормализуем путь для лейблов метрик
			// (слои и числовые id заменяются шаблонами против роста кардинальности)
			normalizedPath := normalizePath(r.URL.Path)

			wrapped := newMetricsResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(wrapped.statusCode)

			httpRequestsTotal.WithLabelValues(r.Method, normalizedPath, status).Inc()
			httpRequestDuration.WithLabelValues(r.Method, normalizedPath).Observe(duration)
		})
	}
}

// metricsResponseWriter — обёртка для перехвата статус-кода.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newMetricsResponseWriter(w http.ResponseWriter) *metricsResponseWriter {
	return &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *metricsResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Unwrap позволяет http.ResponseController получить доступ к оригинальному ResponseWriter.
func (rw *metricsResponseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// normalizePath заменяет slug арендатора и числовые id на шаблоны.
// /site/survey-2026/admin/api/responses → /site/{slug}/admin/api/responses
// /f/survey-2026 → /f/{slug}
// /form/12/delete/7 → /form/{id}/delete/{id}
func normalizePath(path string) string {
	// Статические пути — возвращаем как есть
	switch path {
	case "/", "/login", "/register", "/logout",
		"/index", "/create_form", "/create_form/new",
		"/_health", "/health/live", "/health/ready", "/metrics":
		return path
	}

	parts := strings.Split(path, "/")
	for i, p := range parts {
		if p == "" {
			continue
		}
		// Сегмент после /site/, /f/ или /create_form/site/ — slug
		if i > 0 && (parts[i-1] == "site" || parts[i-1] == "f") {
			parts[i] = "{slug}"
			continue
		}
		if isNumeric(p) {
			parts[i] = "{id}"
			continue
		}
		// Имя файла в /uploads/{filename}
		if i > 0 && parts[i-1] == "uploads" {
			parts[i] = "{filename}"
		}
	}
	return strings.Join(parts, "/")
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
