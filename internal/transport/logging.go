package transport

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// loggingRoundTripper logs one line per attempt. Bodies and headers are never logged.
type loggingRoundTripper struct {
	next http.RoundTripper
	log  *zap.Logger
}

func (rt *loggingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := rt.next.RoundTrip(req)

	fields := []zap.Field{
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Duration("dur", time.Since(start)),
		zap.String("req_id", req.Header.Get(headerReqID)),
	}
	if err != nil {
		rt.log.Info("http", append(fields, zap.Error(err))...)
		return nil, err
	}
	rt.log.Info("http", append(fields, zap.Int("status", resp.StatusCode))...)
	return resp, nil
}
