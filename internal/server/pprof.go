package server

import (
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// StartPprofServer exposes the pprof handlers on their own port. Keep it
// off the public listener; reach it via SSH tunnel.
func StartPprofServer(addr string, logger *zap.Logger) {
	router := gin.New()
	pprof.Register(router)

	go func() {
		logger.Info("Starting pprof server", zap.String("addr", addr))
		if err := router.Run(addr); err != nil {
			logger.Fatal("Failed to start pprof server", zap.Error(err))
		}
	}()
}
