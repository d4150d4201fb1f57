package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yayasanmisboel/QRcodeSiswa/internal/auth"
	"github.com/yayasanmisboel/QRcodeSiswa/internal/config"
	"github.com/yayasanmisboel/QRcodeSiswa/internal/directory"
	"github.com/yayasanmisboel/QRcodeSiswa/internal/handler"
	"github.com/yayasanmisboel/QRcodeSiswa/internal/httpmiddleware"
	"github.com/yayasanmisboel/QRcodeSiswa/internal/ledger"
	"github.com/yayasanmisboel/QRcodeSiswa/internal/qr"
	"github.com/yayasanmisboel/QRcodeSiswa/internal/session"
	"github.com/yayasanmisboel/QRcodeSiswa/internal/storage"
)

func main() {
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}

func run(cfg config.App) error {
	store, healthy, closeStore, err := buildStore(cfg)
	if err != nil {
		return fmt.Errorf("storage init: %w", err)
	}
	defer closeStore()

	dir := directory.New(store)
	sessions := session.New(store)
	led := ledger.New(store)
	authSvc := auth.New(dir, sessions)

	h := handler.New(authSvc, dir, sessions, led, qr.NewPNGEncoder())

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/api/healthz", "/metrics"},
	}))
	r.Use(cors.New(corsConfig(cfg.CORSOrigins)))
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewRateLimiter(cfg.RateLimitPerMin).Middleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", func(c *gin.Context) {
		status := http.StatusOK
		ok := healthy(c.Request.Context())
		if !ok {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "storage": ok, "backend": cfg.StorageBackend})
	})

	h.Mount(r)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("starting server on :%s (storage=%s)", cfg.HTTPPort, cfg.StorageBackend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server forced shutdown: %v", err)
	}
	log.Println("server exited")
	return nil
}

// buildStore selects the storage backend from config and returns the store,
// a health probe and a close func.
func buildStore(cfg config.App) (storage.Store, func(context.Context) bool, func(), error) {
	alwaysHealthy := func(context.Context) bool { return true }
	noop := func() {}

	switch cfg.StorageBackend {
	case "memory":
		return storage.NewMemory(), alwaysHealthy, noop, nil
	case "file":
		st, err := storage.NewFile(cfg.DataDir)
		if err != nil {
			return nil, nil, nil, err
		}
		return st, alwaysHealthy, noop, nil
	case "redis":
		st := storage.NewRedis(cfg.RedisAddr)
		return st, st.Healthy, noop, nil
	case "postgres":
		st, err := storage.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, err
		}
		return st, st.Healthy, func() { _ = st.Close() }, nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

func corsConfig(origins string) cors.Config {
	conf := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		AllowCredentials: true,
		MaxAge:           24 * time.Hour,
	}
	if origins == "" || origins == "*" {
		conf.AllowAllOrigins = true
		conf.AllowCredentials = false
	} else {
		conf.AllowOrigins = strings.Split(origins, ",")
	}
	return conf
}

// securityHeaders sets conservative browser-facing headers.
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		c.Next()
	}
}
