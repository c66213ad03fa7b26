// Package metrics 提供价格缓存服务的 Prometheus 指标与 /metrics 暴露
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wyfcoding/pricecache/pkg/logger"
)

const namespace = "pricecache"

// Metrics 指标集合
type Metrics struct {
	// HTTP 请求计数（method, path, status）
	HTTPRequestsTotal *prometheus.CounterVec
	// HTTP 请求耗时
	HTTPRequestDuration *prometheus.HistogramVec

	// 成功写入的报价数（source: http, kafka）
	PricesPublished *prometheus.CounterVec
	// 校验失败的报价数
	PricesRejected *prometheus.CounterVec
	// 窗口已满且日期过旧被丢弃的报价数
	PricesDropped prometheus.Counter

	// 准入的交易日数
	DaysAdmitted prometheus.Counter
	// 淘汰的交易日数
	DaysEvicted prometheus.Counter
	// 当前驻留的交易日数
	DaysResident prometheus.Gauge

	// 写入死信队列的消息数
	DeadLetters prometheus.Counter
}

// New 创建指标实例
func New(serviceName string) *Metrics {
	constLabels := prometheus.Labels{"service": serviceName}
	return &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "http_requests_total",
			Help:        "Total HTTP requests",
			ConstLabels: constLabels,
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "http_request_duration_seconds",
			Help:        "HTTP request duration in seconds",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: constLabels,
		}, []string{"method", "path"}),

		PricesPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "prices_published_total",
			Help:        "Prices accepted by the cache",
			ConstLabels: constLabels,
		}, []string{"source"}),
		PricesRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "prices_rejected_total",
			Help:        "Prices rejected by validation",
			ConstLabels: constLabels,
		}, []string{"source"}),
		PricesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "prices_dropped_total",
			Help:        "Prices dropped because their date is older than the retained window",
			ConstLabels: constLabels,
		}),

		DaysAdmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "days_admitted_total",
			Help:        "Trading days admitted into the window",
			ConstLabels: constLabels,
		}),
		DaysEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "days_evicted_total",
			Help:        "Trading days evicted from the window",
			ConstLabels: constLabels,
		}),
		DaysResident: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "days_resident",
			Help:        "Trading days currently held",
			ConstLabels: constLabels,
		}),

		DeadLetters: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "dead_letters_total",
			Help:        "Feed messages routed to the dead-letter topic",
			ConstLabels: constLabels,
		}),
	}
}

// Register 注册所有指标
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.PricesPublished,
		m.PricesRejected,
		m.PricesDropped,
		m.DaysAdmitted,
		m.DaysEvicted,
		m.DaysResident,
		m.DeadLetters,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			logger.Error(context.Background(), "Failed to register metric", "error", err)
			return err
		}
	}
	return nil
}

// RecordHTTPRequest 记录 HTTP 请求
func (m *Metrics) RecordHTTPRequest(method, path string, statusCode int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// Server Prometheus HTTP 服务
type Server struct {
	srv *http.Server
}

// NewServer 创建指标服务
func NewServer(addr, path string, gatherer prometheus.Gatherer) *Server {
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return &Server{srv: &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}}
}

// Start 阻塞直到服务关闭
func (s *Server) Start() error {
	logger.Info(context.Background(), "Starting Prometheus HTTP server", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown 优雅关闭
func (s *Server) Shutdown(ctx context.Context) error { return s.srv.Shutdown(ctx) }
