package utils

import (
	"net/http"
	_ "net/http/pprof"

	"go.uber.org/zap"
)

// EnablePPROF serves the pprof handlers on addr in the background. Threads
// started by scripts show up in the goroutine profile.
func EnablePPROF(addr string, logger *zap.Logger) {
	logger.Debug("serving pprof", zap.String("addr", addr))
	go func() {
		if err := http.ListenAndServe(addr, nil); err != nil {
			logger.Error("unable to serve pprof", zap.String("addr", addr), zap.Error(err))
		}
	}()
}
