package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/pdfpilot/pdfpilot-backend/internal/app"
	"github.com/pdfpilot/pdfpilot-backend/internal/observability"
)

func main() {
	if err := godotenv.Load(); err != nil {
		// Absent .env is normal outside local dev.
		fmt.Println("No .env file loaded:", err)
	}

	a, err := app.New()
	if err != nil {
		fmt.Printf("Failed to start: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	shutdownTracing := observability.InitOTel(context.Background(), a.Log, observability.OtelConfig{
		ServiceName: "pdfpilot-backend",
		Environment: a.Cfg.Mode,
		Version:     os.Getenv("APP_VERSION"),
	})

	srv := &http.Server{
		Addr:    ":" + a.Cfg.Port,
		Handler: a.Router,
	}

	go func() {
		a.Log.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Log.Fatal("Server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	a.Log.Info("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		a.Log.Warn("Server shutdown failed", "error", err)
	}
	if shutdownTracing != nil {
		if err := shutdownTracing(ctx); err != nil {
			a.Log.Warn("Tracing shutdown failed", "error", err)
		}
	}
}
