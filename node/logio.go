package node

import (
	"go.uber.org/zap"

	"github.com/fzft/go-coro-httpd/httpd"
	"github.com/fzft/go-coro-httpd/log"
)

// logEvent writes the access or error line for an engine Log request.
func logEvent(clientAddr string, ev httpd.Log) {
	switch e := ev.(type) {
	case httpd.LogRequest:
		log.Logger.Info("request",
			zap.String("client", clientAddr),
			zap.String("method", e.Request.Method),
			zap.String("path", e.Request.Path),
			zap.Stringer("version", e.Request.Version))
	case httpd.LogError:
		log.Logger.Warn("request failed",
			zap.String("client", clientAddr),
			zap.Int("code", e.Error.Code),
			zap.String("message", e.Error.Message),
			zap.String("method", e.Error.Method))
	}
}
