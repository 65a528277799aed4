package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"sellerdash/internal/bootstrap"

	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env, err := bootstrap.Load(ctx, "devserver")
	if err != nil {
		log.Fatalf("devserver: %v", err)
	}
	defer func() { _ = env.Log.Sync() }()

	addr := os.Getenv("DEV_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	sub := os.Getenv("DEV_USER_SUB")
	if sub == "" {
		sub = "dev-user"
	}
	var origins []string
	if v := strings.TrimSpace(os.Getenv("DEV_CORS_ORIGINS")); v != "" {
		origins = strings.Split(v, ",")
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           env.App.Router(sub, origins),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdown)
	}()

	env.Log.Info("listening", zap.String("addr", addr), zap.String("sub", sub))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		env.Log.Fatal("server failed", zap.Error(err))
	}
}
