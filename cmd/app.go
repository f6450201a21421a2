package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"order-service/api"
	"order-service/config"
	"order-service/infrastructure/messaging"
	"order-service/infrastructure/persistence/mysql"
	"order-service/infrastructure/resilience/circuitbreaker"
	"order-service/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// App 应用程序
type App struct {
	config   *config.Config
	log      *zap.Logger
	router   *api.Router
	server   *http.Server
	gateway  *messaging.Gateway
	breakers *circuitbreaker.Registry
	db       *gorm.DB
}

// Run serves HTTP until ctx is done or SIGINT/SIGTERM arrives, then shuts down.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("HTTP server listening", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		a.log.Info("Shutting down")
	case serveErr = <-errCh:
		if serveErr != nil {
			serveErr = fmt.Errorf("http server: %w", serveErr)
		}
	}

	return errors.Join(serveErr, a.Shutdown(context.Background()))
}

// Shutdown stops the HTTP server, then closes the broker and the database.
func (a *App) Shutdown(ctx context.Context) error {
	timeout := a.config.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var errs []error
	if err := a.server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if err := a.gateway.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close broker: %w", err))
	}
	if a.db != nil {
		if err := mysql.Close(a.db); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}
	_ = logger.Sync()

	a.log.Info("Server stopped")
	return errors.Join(errs...)
}

// Handler 返回 gin 引擎（用于测试）
func (a *App) Handler() *gin.Engine {
	return a.router.GetEngine()
}

func (a *App) Breakers() *circuitbreaker.Registry {
	return a.breakers
}
