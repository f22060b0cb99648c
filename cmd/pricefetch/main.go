// Command pricefetch fetches validated spot prices for a set of symbols
// and prints them as JSON.
//
// Usage:
//
//	pricefetch --config config.yaml
//	pricefetch -source binance -symbols BTCUSDT,ETHUSDT
//	pricefetch -source http -endpoint http://quotes.internal:9000 -symbols BTC
//
// Exchange sources work without credentials for public quote data; the
// http source needs an endpoint (flag, HTTP_ENDPOINT, or config file).
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	binancesdk "github.com/adshao/go-binance/v2"
	bybitsdk "github.com/hirokisan/bybit/v2"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

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
	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("warning: loading .env file: %v", err)
	}

	var (
		configPath string
		source     string
		symbolsCSV string
		endpoint   string
		timeout    int
		maxRetries int
		failFast   bool
		debug      bool
	)
	flag.StringVar(&configPath, "config", getenv("CONFIG_FILE", ""), "path to config.yaml (optional)")
	flag.StringVar(&source, "source", "", "quote source: http, binance, bybit")
	flag.StringVar(&symbolsCSV, "symbols", "", "comma-separated symbols")
	flag.StringVar(&endpoint, "endpoint", "", "base URL for the http source")
	flag.IntVar(&timeout, "timeout", 0, "request timeout seconds")
	flag.IntVar(&maxRetries, "max-retries", -1, "additional attempts after the first")
	flag.BoolVar(&failFast, "fail-fast", false, "fail immediately on rate limits instead of waiting")
	flag.BoolVar(&debug, "debug", false, "verbose logging")
	flag.Parse()

	// Load config (optional) and merge with flags/env
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if source != "" {
		cfg.Source = source
	}
	if symbolsCSV != "" {
		cfg.Symbols = splitCSV(symbolsCSV)
	}
	if endpoint != "" {
		cfg.HTTP.Endpoint = endpoint
	}
	if timeout > 0 {
		cfg.HTTP.RequestTimeoutSec = timeout
	}
	if maxRetries >= 0 {
		cfg.Fetch.MaxRetries = maxRetries
	}
	if failFast {
		cfg.Fetch.FailFastOnRateLimit = true
	}
	if len(cfg.Symbols) == 0 {
		log.Fatal("no symbols provided")
	}

	logger, err := buildLogger(debug)
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	type row struct {
		Symbol     string     `json:"symbol"`
		Price      string     `json:"price,omitempty"`
		Source     string     `json:"source,omitempty"`
		ObservedAt *time.Time `json:"observed_at,omitempty"`
		Degraded   bool       `json:"degraded,omitempty"`
		Attempts   int        `json:"attempts"`
		Error      string     `json:"error,omitempty"`
	}
	rows := make([]row, len(cfg.Symbols))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, symbol := range cfg.Symbols {
		g.Go(func() error {
			res, err := c.Fetch(ctx, symbol, fetchCfg)
			if err != nil {
				r := row{Symbol: symbol, Error: err.Error()}
				var fe *client.Error
				if errors.As(err, &fe) {
					r.Attempts = fe.Attempts
				}
				rows[i] = r
				return nil
			}
			observed := res.Record.ObservedAt
			rows[i] = row{
				Symbol:     res.Record.Symbol,
				Price:      res.Record.Price.String(),
				Source:     res.Record.Source,
				ObservedAt: &observed,
				Degraded:   res.Degraded,
				Attempts:   res.Attempts,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Fatalf("fetch: %v", err)
	}

	var hasQuote bool
	for _, r := range rows {
		if r.Error == "" {
			hasQuote = true
			break
		}
	}
	if !hasQuote {
		log.Fatal("no quotes received")
	}

	out := struct {
		Quotes []row `json:"quotes"`
	}{Quotes: rows}
	b, _ := json.MarshalIndent(out, "", "  ")
	fmt.Println(string(b))
}

func buildLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
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

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
