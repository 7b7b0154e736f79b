package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics serves the Prometheus registry: the tokenization counters plus the
// default Go runtime and process collectors.
func Metrics() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
