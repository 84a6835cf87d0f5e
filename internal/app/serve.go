package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/paiban/nurseshift/pkg/logger"
)

// Serve 启动 HTTP 服务，ctx 结束后在 10 秒内优雅关闭
func (a *App) Serve(ctx context.Context) error {
	cfg := a.Config
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      a.Handler().Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.Scheduler.GenerateTimeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Int("port", cfg.App.Port).
			Str("version", cfg.App.Version).
			Str("env", cfg.App.Env).
			Str("storage", cfg.Storage.Driver).
			Msg("服务器启动")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("服务器启动失败: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("正在关闭服务器...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("服务器关闭失败: %w", err)
	}
	logger.Info().Msg("服务器已关闭")
	return nil
}

// MigrateIfNeeded postgres 驱动下执行内嵌迁移
func (a *App) MigrateIfNeeded(ctx context.Context) ([]string, error) {
	if a.DB == nil {
		return nil, nil
	}
	applied, err := a.DB.Migrate(ctx)
	if err != nil {
		return nil, err
	}
	for _, name := range applied {
		logger.Info().Str("migration", name).Msg("已执行迁移")
	}
	return applied, nil
}
