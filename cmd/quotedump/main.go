// Command quotedump fetches raw source payloads for a list of symbols and
// writes them with the validator's verdict attached. It exists for debugging
// source behavior: when a fetch degrades or fails, this shows the bytes the
// source actually returned.
//
// Usage:
//
//	quotedump -symbols BTCUSDT,ETHUSDT -source binance
//	quotedump -symbols-file symbols.txt -source http -out dump.json
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"

	binancesdk "github.com/adshao/go-binance/v2"
	bybitsdk "github.com/hirokisan/bybit/v2"

	"pricefeed/internal/config"
	"pricefeed/internal/httpx"
	"pricefeed/internal/transport"
	binanceadapter "pricefeed/internal/transport/binance"
	bybitadapter "pricefeed/internal/transport/bybit"
	"pricefeed/internal/transport/httpsource"
	"pricefeed/internal/transport/throttle"
	"pricefeed/internal/validate"
)

type dumpEntry struct {
	Symbol        string          `json:"symbol"`
	Status        int             `json:"status,omitempty"`
	Body          json.RawMessage `json:"body,omitempty"`
	RawBody       string          `json:"raw_body,omitempty"`
	RetryAfterSec int             `json:"retry_after_sec,omitempty"`
	Price         string          `json:"price,omitempty"`
	Violation     string          `json:"violation,omitempty"`
	Error         string          `json:"error,omitempty"`
}

func main() {
	var (
		symbolsCSV  string
		symbolsFile string
		outPath     string
		cfgPath     string
		source      string
		concurrency int
		timeoutSec  int
		rps         float64
	)
	flag.StringVar(&symbolsCSV, "symbols", "", "comma-separated symbols")
	flag.StringVar(&symbolsFile, "symbols-file", "", "file with one symbol per line")
	flag.StringVar(&outPath, "out", "", "output JSON file path (default stdout)")
	flag.StringVar(&cfgPath, "config", "", "path to config.yaml (optional)")
	flag.StringVar(&source, "source", "", "override configured source (http, binance, bybit)")
	flag.IntVar(&concurrency, "concurrency", 4, "number of parallel requests")
	flag.IntVar(&timeoutSec, "timeout", 20, "per-request timeout seconds")
	flag.Float64Var(&rps, "rps", 0, "max requests per second (0 = unpaced)")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("warning: loading .env file: %v", err)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if source != "" {
		cfg.Source = source
	}

	symbols, err := collectSymbols(symbolsCSV, symbolsFile, cfg.Symbols)
	if err != nil {
		log.Fatalf("read symbols: %v", err)
	}
	if len(symbols) == 0 {
		log.Fatal("no symbols given (use -symbols or -symbols-file)")
	}
	log.Printf("symbols: %d", len(symbols))

	tr, err := buildTransport(cfg)
	if err != nil {
		log.Fatalf("transport: %v", err)
	}
	if rps > 0 {
		tr = throttle.New(tr, rps, 1)
	}

	out := os.Stdout
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			log.Fatalf("create out: %v", err)
		}
		defer f.Close()
		out = f
	}
	bw := bufio.NewWriterSize(out, 1<<20)
	defer bw.Flush()

	// Start JSON envelope
	fmt.Fprintf(bw, "{\"source\":%q,\"results\":[", tr.Name())
	first := true
	var writeMu sync.Mutex

	jobs := make(chan string, concurrency*2)
	wg := sync.WaitGroup{}

	worker := func() {
		defer wg.Done()
		for symbol := range jobs {
			ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutSec)*time.Second)
			entry := dump(ctx, tr, symbol)
			cancel()
			raw, err := json.Marshal(entry)
			if err != nil {
				log.Printf("marshal %s: %v", symbol, err)
				continue
			}
			writeMu.Lock()
			if !first {
				_, _ = bw.WriteString(",")
			} else {
				first = false
			}
			_, _ = bw.Write(raw)
			writeMu.Unlock()
		}
	}

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go worker()
	}

	for _, s := range symbols {
		jobs <- s
	}
	close(jobs)
	wg.Wait()

	// Close JSON envelope
	_, _ = bw.WriteString("]}\n")
	if err := bw.Flush(); err != nil {
		log.Fatalf("flush: %v", err)
	}
	if outPath != "" {
		log.Printf("done: wrote %s", outPath)
	}
}

// dump performs one raw fetch and records what came back. The validator runs
// only on 200 responses; other statuses are interesting as-is.
func dump(ctx context.Context, tr transport.Transport, symbol string) dumpEntry {
	entry := dumpEntry{Symbol: symbol}
	res, err := tr.RequestQuote(ctx, symbol)
	if err != nil {
		entry.Error = err.Error()
		return entry
	}
	entry.Status = res.StatusCode
	if json.Valid(res.Body) {
		entry.Body = json.RawMessage(res.Body)
	} else {
		entry.RawBody = string(res.Body)
	}
	if res.RateLimit != nil {
		entry.RetryAfterSec = int(res.RateLimit.RetryAfter / time.Second)
	}
	if res.StatusCode != http.StatusOK {
		return entry
	}
	price, verr := validate.Price(res.Body, symbol)
	if verr != nil {
		entry.Violation = verr.Error()
		return entry
	}
	entry.Price = price.String()
	return entry
}

func collectSymbols(csv, path string, fallback []string) ([]string, error) {
	var out []string
	if csv != "" {
		out = append(out, splitCSV(csv)...)
	}
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		sc := bufio.NewScanner(f)
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			out = append(out, line)
		}
		if err := sc.Err(); err != nil {
			return nil, err
		}
	}
	if len(out) == 0 {
		out = append(out, fallback...)
	}
	return out, nil
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
