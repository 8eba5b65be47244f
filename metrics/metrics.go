package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "photoserver_http_requests_total",
		Help: "HTTP requests by route and status.",
	}, []string{"method", "route", "status"})

	HTTPDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "photoserver_http_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	// RefPhotoLookups counts reference photo checks by outcome (healthy, recovered, missing)
	RefPhotoLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "photoserver_refphoto_lookups_total",
		Help: "Reference photo availability checks and fetches by outcome.",
	}, []string{"op", "result"})

	MLRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "photoserver_ml_requests_total",
		Help: "Requests to the face matching service by operation and outcome.",
	}, []string{"op", "outcome"})

	// FaceMatches counts find-my-photos answers by result (matched, no_match, unparsed)
	FaceMatches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "photoserver_face_match_results_total",
		Help: "Find-my-photos answers from the face matching service by result.",
	}, []string{"result"})

	StorageOps = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "photoserver_storage_operations_total",
		Help: "Object store operations by operation and outcome.",
	}, []string{"op", "outcome"})
)

func init() {
	prometheus.MustRegister(HTTPRequests, HTTPDuration, RefPhotoLookups, MLRequests, FaceMatches, StorageOps)
}

func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		HTTPDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
