package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strconv"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"taskboard-api/api"
	"taskboard-api/storage"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}

	store, err := storage.Open(os.Getenv("DB_DRIVER"), os.Getenv("DB_DSN"))
	if err != nil {
		log.Fatalf("storage: %v", err)
	}

	var taskStore api.Storage = store
	if redisConn := os.Getenv("REDIS_CONNECTION_STRING"); redisConn != "" {
		redisOpts, err := redis.ParseURL(redisConn)
		if err != nil {
			log.Fatalf("invalid REDIS_CONNECTION_STRING: %v", err)
		}
		ttl := 5 * time.Minute
		if v := os.Getenv("CACHE_TTL"); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil || d <= 0 {
				log.Fatalf("invalid CACHE_TTL: %v", err)
			}
			ttl = d
		}
		taskStore = storage.NewCache(store, redis.NewClient(redisOpts), ttl)
	}

	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
	}))
	e.Use(api.RequestIDMiddleware())
	e.Use(api.GzipRequestMiddleware())
	e.Use(echoprometheus.NewMiddleware("taskboard"))
	e.GET("/metrics", echoprometheus.NewHandler())

	logger := log.New()
	api.Register(e, taskStore, logger)

	listenAddr := ":8080"
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		listenAddr = v
	}

	go func() {
		if err := e.Start(listenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server: %v", err)
		}
	}()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"http-server": func(ctx context.Context) error {
				return e.Shutdown(ctx)
			},
			"tracer-provider": func(ctx context.Context) error {
				return tp.Shutdown(ctx)
			},
		},
	)
	os.Exit(<-wait)
}
