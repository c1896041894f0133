package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gwi.com/notebook-console/internal/api"
	"gwi.com/notebook-console/internal/backend"
	"gwi.com/notebook-console/internal/cache"
	"gwi.com/notebook-console/internal/config"
	"gwi.com/notebook-console/internal/poller"
)

func main() {
	// Load configuration
	config.LoadConfig()

	// Setup logging
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if config.AppConfig.Debug() {
		log.Println("Service starting in DEBUG mode")
	}

	secureCookies := flag.Bool("secure-cookies", false, "Mark the session cookie Secure (serve behind TLS)")
	flag.Parse()

	// Backend client shared by the proxy, the actions and the poller
	client := backend.New(config.AppConfig.BackendURL, config.AppConfig.APIPrefix)
	client.HTTPClient.Timeout = config.AppConfig.ProxyTimeout

	views := cache.New(config.AppConfig.CacheSize, config.AppConfig.CacheTTL)

	watcher := poller.NewService(client, config.AppConfig.PollInterval)
	defer watcher.Close()

	// Initialize API Handler and Router
	apiHandler := api.NewAPIHandler(client, views, watcher, config.AppConfig.ProxyTimeout)
	apiHandler.SecureCookies = *secureCookies
	router := api.NewRouter(apiHandler)

	// Start HTTP server
	serverAddr := fmt.Sprintf(":%s", config.AppConfig.HTTPPort)

	srv := &http.Server{
		Addr:        serverAddr,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// no WriteTimeout: source watch sockets stay open
		IdleTimeout: 120 * time.Second,
	}

	// Graceful shutdown handling
	go func() {
		log.Printf("Proxying %s%s on %s. Press Ctrl+C to quit.", config.AppConfig.BackendURL, config.AppConfig.APIPrefix, serverAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v\n", serverAddr, err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting gracefully")
}
