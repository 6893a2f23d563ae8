// Команда loadtest гоняет параллельные кассы против одного товара и проверяет,
// что итоговый остаток сходится с числом успешных продаж.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/identity"
	"github.com/vladislavdragonenkov/pos/internal/version"
)

type config struct {
	baseURL       string
	total         int
	totalSet      bool
	duration      time.Duration
	terminals     int
	timeout       time.Duration
	productID     string
	quantity      int
	sellerID      string
	paymentMethod string
	jwtSecret     string
	jwtIssuer     string
	outputPath    string
}

func parseConfig(args []string, getenv func(string) string) (config, error) {
	var cfg config
	fs := flag.NewFlagSet("loadtest", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&cfg.baseURL, "addr", "http://localhost:8080", "POS HTTP API base URL")
	fs.IntVar(&cfg.total, "total", 200, "total sales to attempt in count mode; in duration mode only used when explicitly set")
	fs.DurationVar(&cfg.duration, "duration", 0, "optional time-based run duration (e.g. 30s, 5m)")
	fs.IntVar(&cfg.terminals, "terminals", 10, "number of concurrent terminals, each with its own session")
	fs.DurationVar(&cfg.timeout, "timeout", 5*time.Second, "per-request timeout")
	fs.StringVar(&cfg.productID, "product", "demo-espresso", "product every terminal sells")
	fs.IntVar(&cfg.quantity, "qty", 1, "units per sale")
	fs.StringVar(&cfg.sellerID, "seller", "demo-seller", "seller the terminals are bound to")
	fs.StringVar(&cfg.paymentMethod, "payment", string(domain.PaymentMethodCash), "payment method: cash | card | transfer")
	fs.StringVar(&cfg.jwtSecret, "jwt-secret", "", "HS256 secret for terminal tokens (fallback: POS_JWT_SECRET)")
	fs.StringVar(&cfg.jwtIssuer, "jwt-issuer", "pos", "token issuer")
	fs.StringVar(&cfg.outputPath, "output", "", "optional JSON report output file path")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "total" {
			cfg.totalSet = true
		}
	})

	cfg.baseURL = strings.TrimRight(strings.TrimSpace(cfg.baseURL), "/")
	if cfg.jwtSecret == "" {
		cfg.jwtSecret = getenv("POS_JWT_SECRET")
	}

	switch {
	case cfg.baseURL == "":
		return cfg, errors.New("addr is required")
	case cfg.duration < 0:
		return cfg, errors.New("duration must be >= 0")
	case cfg.duration == 0 && cfg.total <= 0:
		return cfg, errors.New("total must be > 0 when duration is not set")
	case cfg.duration > 0 && cfg.totalSet && cfg.total <= 0:
		return cfg, errors.New("total must be > 0 when explicitly set with duration")
	case cfg.terminals <= 0:
		return cfg, errors.New("terminals must be > 0")
	case cfg.timeout <= 0:
		return cfg, errors.New("timeout must be > 0")
	case strings.TrimSpace(cfg.productID) == "":
		return cfg, errors.New("product is required")
	case cfg.quantity <= 0:
		return cfg, errors.New("qty must be > 0")
	case strings.TrimSpace(cfg.sellerID) == "":
		return cfg, errors.New("seller is required")
	case cfg.jwtSecret == "":
		return cfg, errors.New("jwt-secret (or POS_JWT_SECRET) is required")
	}
	if _, err := domain.ParsePaymentMethod(cfg.paymentMethod); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func main() {
	cfg, err := parseConfig(os.Args[1:], os.Getenv)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(2)
	}

	result, err := run(context.Background(), cfg, http.DefaultClient)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "load test failed: %v\n", err)
		os.Exit(1)
	}

	printReport(os.Stdout, result, cfg)
	if cfg.outputPath != "" {
		if err := writeJSONReport(cfg.outputPath, result); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "failed to write report: %v\n", err)
			os.Exit(1)
		}
	}

	if result.Outcomes[outcomeFailed] > 0 || !result.StockConsistent {
		os.Exit(1)
	}
}

// run открывает сессии касс, прогоняет продажи и сверяет остаток.
func run(ctx context.Context, cfg config, client *http.Client) (report, error) {
	verifier, err := identity.NewVerifier(cfg.jwtSecret, cfg.jwtIssuer)
	if err != nil {
		return report{}, err
	}

	runID := uuid.NewString()[:8]
	col := newCollector()
	tills := make([]*till, cfg.terminals)
	for i := range tills {
		token, err := verifier.Issue(identity.Principal{
			UserID:   fmt.Sprintf("loadtest-%s-%d", runID, i),
			Role:     identity.RoleVendor,
			SellerID: cfg.sellerID,
		}, time.Hour)
		if err != nil {
			return report{}, fmt.Errorf("issue token: %w", err)
		}
		tills[i] = &till{
			baseURL:   cfg.baseURL,
			client:    client,
			token:     token,
			userAgent: version.UserAgent("loadtest"),
			timeout:   cfg.timeout,
			col:       col,
		}
		if err := tills[i].open(""); err != nil {
			return report{}, fmt.Errorf("terminal %d: %w", i, err)
		}
	}
	defer func() {
		for _, t := range tills {
			_, _, _ = t.call("CloseSession", http.MethodDelete, t.path(""), nil, nil)
		}
	}()

	initialStock, err := tills[0].stock(cfg.productID)
	if err != nil {
		return report{}, fmt.Errorf("read initial stock: %w", err)
	}

	var wg sync.WaitGroup
	jobs := make(chan int, cfg.terminals*2)
	startedAt := time.Now()
	for _, t := range tills {
		wg.Add(1)
		go func(t *till) {
			defer wg.Done()
			for id := range jobs {
				start := time.Now()
				result := t.sale(cfg, fmt.Sprintf("lt-%s-%d", runID, id))
				col.recordSale(result, time.Since(start))
			}
		}(t)
	}

	dispatchJobs(ctx, jobs, cfg)
	wg.Wait()
	duration := time.Since(startedAt)

	finalStock, err := tills[0].stock(cfg.productID)
	if err != nil {
		return report{}, fmt.Errorf("read final stock: %w", err)
	}

	result := col.buildReport(startedAt, duration)
	result.Terminals = cfg.terminals
	result.ProductID = cfg.productID
	result.InitialStock = initialStock
	result.FinalStock = finalStock
	result.ExpectedStock = initialStock - int(result.UnitsSold)
	// Неоткатившийся частичный расчёт оставляет списание без продажи: остаток не сойдётся.
	result.StockConsistent = finalStock == result.ExpectedStock
	return result, nil
}

func dispatchJobs(ctx context.Context, jobs chan<- int, cfg config) {
	defer close(jobs)

	var deadline <-chan time.Time
	if cfg.duration > 0 {
		timer := time.NewTimer(cfg.duration)
		defer timer.Stop()
		deadline = timer.C
	}

	for i := 0; ; i++ {
		if (cfg.duration <= 0 || cfg.totalSet) && i >= cfg.total {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-deadline:
			return
		case jobs <- i:
		}
	}
}
