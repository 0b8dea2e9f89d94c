package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"dogovor/internal/browse"
)

// NewRouter собирает маршруты. gatherer == nil — без /metrics.
func NewRouter(svc *browse.Service, log *zap.Logger, gatherer prometheus.Gatherer) *gin.Engine {
	if log == nil {
		log = zap.NewNop()
	}
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(log))

	r.GET("/healthz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := svc.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "down", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/meta", MetaListHandler(svc))
		apiGroup.GET("/meta/:entity", MetaEntityHandler(svc, log))

		apiGroup.GET("/reports", ReportListHandler(svc))
		apiGroup.POST("/reports/:key", ReportRunHandler(svc, log))
		apiGroup.POST("/reports/:key/_build", ReportBuildHandler(svc, log))

		apiGroup.POST("/contracts/_with_stages", ContractWithStagesHandler(svc, log))

		apiGroup.GET("/admin/cache", AdminCacheHandler(svc))
		apiGroup.POST("/admin/cache/_invalidate", AdminInvalidateHandler(svc, log))

		// служебные маршруты сущности — раньше :id
		apiGroup.GET("/entities/:entity/_columns", ColumnsHandler(svc, log))
		apiGroup.GET("/entities/:entity/_lookup/:field", LookupHandler(svc, log))
		apiGroup.GET("/entities/:entity/_resolve/:field/:code", ResolveHandler(svc, log))

		apiGroup.GET("/entities/:entity", ListHandler(svc, log))
		apiGroup.POST("/entities/:entity", CreateHandler(svc, log))
		apiGroup.GET("/entities/:entity/:id", GetOneHandler(svc, log))
		apiGroup.PUT("/entities/:entity/:id", UpdateHandler(svc, log))
		apiGroup.PATCH("/entities/:entity/:id", UpdateHandler(svc, log))
		apiGroup.DELETE("/entities/:entity/:id", DeleteHandler(svc, log))
	}
	return r
}

// RunServer слушает addr до отмены ctx, затем даёт запросам до 10 секунд на завершение
func RunServer(ctx context.Context, addr string, h http.Handler, log *zap.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info("http server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
