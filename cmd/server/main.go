// Command server exposes validated spot prices over HTTP.
//
// Routes:
//
//	GET  /healthz                       liveness probe
//	GET  /api/price?symbol=BTCUSDT      quote for one symbol
//	GET  /api/quotes?symbols=A,B,C      quotes for several symbols
//	POST /api/quotes                    {"symbols": ["A", "B"]} for large lists
//
// Configuration comes from config.yaml and environment overrides; see
// internal/config.
package main

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	binancesdk "github.com/adshao/go-binance/v2"
	bybitsdk "github.com/hirokisan/bybit/v2"

	"pricefeed/internal/client"
	"pricefeed/internal/config"
	"pricefeed/internal/httpx"
	"pricefeed/internal/transport"
	binanceadapter "pricefeed/internal/transport/binance"
	bybitadapter "pricefeed/internal/transport/bybit"
	"pricefeed/internal/transport/coalesce"
	"pricefeed/internal/transport/httpsource"
	"pricefeed/internal/transport/throttle"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("warning: loading .env file: %v", err)
	}

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	tr, err := buildTransport(cfg)
	if err != nil {
		log.Fatalf("transport: %v", err)
	}
	if cfg.Throttle.Enabled {
		tr = throttle.New(tr, cfg.Throttle.RPS, cfg.Throttle.Burst)
	}
	if cfg.Coalesce {
		tr = coalesce.New(tr)
	}

	c := client.New(tr, client.WithLogger(logger))
	fetchCfg := client.Config{
		MaxRetries:           cfg.Fetch.MaxRetries,
		BackoffBase:          time.Duration(cfg.Fetch.BackoffBaseMs) * time.Millisecond,
		MaxBackoff:           time.Duration(cfg.Fetch.MaxBackoffSec) * time.Second,
		FailFastOnRateLimit:  cfg.Fetch.FailFastOnRateLimit,
		DefaultRateLimitWait: time.Duration(cfg.Fetch.RateLimitWaitSec) * time.Second,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/api/price", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		handleGetPrice(w, r, c, fetchCfg)
	})
	mux.HandleFunc("/api/quotes", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			handleGetQuotes(w, r, c, fetchCfg)
		case http.MethodPost:
			handlePostQuotes(w, r, c, fetchCfg)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           withJSONHeaders(withGzip(recoverPanic(limitBody(mux)))),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// A request may legitimately sit out a rate-limit wait before its
		// final attempt, so the write window must exceed requestBudget.
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("server listening on :%s (source=%s)", cfg.Server.Port, tr.Name())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server: %v", err)
		}
	}()

	// graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func handleGetPrice(w http.ResponseWriter, r *http.Request, c *client.Client, cfg client.Config) {
	symbol := strings.TrimSpace(r.URL.Query().Get("symbol"))
	if symbol == "" {
		http.Error(w, "missing symbol query param", http.StatusBadRequest)
		return
	}
	writePrice(w, r.Context(), c, cfg, symbol)
}

func handleGetQuotes(w http.ResponseWriter, r *http.Request, c *client.Client, cfg client.Config) {
	q := r.URL.Query().Get("symbols")
	if strings.TrimSpace(q) == "" {
		http.Error(w, "missing symbols query param", http.StatusBadRequest)
		return
	}
	symbols := splitCSV(q)
	if len(symbols) > 100 {
		http.Error(w, "too many symbols (max 100)", http.StatusBadRequest)
		return
	}
	writeQuotes(w, r.Context(), c, cfg, symbols)
}

type postBody struct {
	Symbols []string `json:"symbols"`
}

func handlePostQuotes(w http.ResponseWriter, r *http.Request, c *client.Client, cfg client.Config) {
	var b postBody
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&b); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if len(b.Symbols) == 0 {
		http.Error(w, "symbols cannot be empty", http.StatusBadRequest)
		return
	}
	if len(b.Symbols) > 100 {
		http.Error(w, "too many symbols (max 100)", http.StatusBadRequest)
		return
	}
	writeQuotes(w, r.Context(), c, cfg, b.Symbols)
}

func buildTransport(cfg config.Config) (transport.Transport, error) {
	switch strings.ToLower(cfg.Source) {
	case "http":
		if cfg.HTTP.Endpoint == "" {
			return nil, fmt.Errorf("http source requires an endpoint")
		}
		opts := []httpsource.Option{
			httpsource.WithHTTPClient(httpx.New(time.Duration(cfg.HTTP.RequestTimeoutSec) * time.Second)),
		}
		if cfg.HTTP.Path != "" {
			opts = append(opts, httpsource.WithPath(cfg.HTTP.Path))
		}
		if cfg.HTTP.SymbolParam != "" {
			opts = append(opts, httpsource.WithSymbolParam(cfg.HTTP.SymbolParam))
		}
		if cfg.HTTP.APIKey != "" {
			opts = append(opts, httpsource.WithQueryParam("api_key", cfg.HTTP.APIKey))
		}
		return httpsource.New(cfg.HTTP.Endpoint, opts...)

	case "binance":
		// Public price data needs no credentials.
		return binanceadapter.New(binancesdk.NewClient("", "")), nil

	case "bybit":
		return bybitadapter.New(bybitsdk.NewClient()), nil

	case "hyperliquid":
		return nil, fmt.Errorf("hyperliquid needs an SDK Info client; wire pricefeed/internal/transport/hyperliquid in code")

	default:
		return nil, fmt.Errorf("unknown source %q", cfg.Source)
	}
}

func withJSONHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		// Basic CORS for browser usage; adjust as needed.
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withGzip compresses response when client supports gzip.
func withGzip(next http.Handler) http.Handler {
	var gzPool = sync.Pool{New: func() any {
		// Prefer best speed to reduce CPU usage since payloads are JSON
		w, _ := gzip.NewWriterLevel(io.Discard, gzip.BestSpeed)
		return w
	}}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			next.ServeHTTP(w, r)
			return
		}
		gz := gzPool.Get().(*gzip.Writer)
		gz.Reset(w)
		defer func() {
			_ = gz.Close()
			gz.Reset(io.Discard)
			gzPool.Put(gz)
		}()
		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Add("Vary", "Accept-Encoding")
		gw := gzipResponseWriter{ResponseWriter: w, Writer: gz}
		next.ServeHTTP(gw, r)
	})
}

type gzipResponseWriter struct {
	http.ResponseWriter
	Writer io.Writer
}

func (g gzipResponseWriter) Write(b []byte) (int, error) {
	return g.Writer.Write(b)
}

// limitBody caps request body size to avoid memory abuse.
func limitBody(next http.Handler) http.Handler {
	const maxBody = 1 << 20 // 1MB
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxBody)
		}
		next.ServeHTTP(w, r)
	})
}

// recoverPanic protects handlers from panics.
func recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
