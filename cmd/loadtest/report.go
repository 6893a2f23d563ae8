package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Исходы одной продажи.
const (
	outcomeSuccess    = "success"
	outcomeValidation = "validation"
	outcomePartial    = "partial"
	outcomeConflict   = "conflict"
	outcomeFailed     = "failed"
)

type latencySummary struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

type stepReport struct {
	Calls     int64            `json:"calls"`
	Success   int64            `json:"success"`
	Failed    int64            `json:"failed"`
	ErrorRate float64          `json:"error_rate"`
	Statuses  map[string]int64 `json:"statuses"`
	LatencyMs latencySummary   `json:"latency_ms"`
}

type report struct {
	StartedAt         time.Time             `json:"started_at"`
	DurationSeconds   float64               `json:"duration_seconds"`
	Terminals         int                   `json:"terminals"`
	ProductID         string                `json:"product_id"`
	Sales             int64                 `json:"sales"`
	Outcomes          map[string]int64      `json:"outcomes"`
	SalesPerSecond    float64               `json:"sales_per_second"`
	SaleLatencyMs     latencySummary        `json:"sale_latency_ms"`
	Steps             map[string]stepReport `json:"steps"`
	InitialStock      int                   `json:"initial_stock"`
	FinalStock        int                   `json:"final_stock"`
	ExpectedStock     int                   `json:"expected_stock"`
	StockConsistent   bool                  `json:"stock_consistent"`
	UnitsSold         int64                 `json:"units_sold"`
	UnreconciledSales int64                 `json:"unreconciled_sales"`
}

type stepStats struct {
	calls     int64
	success   int64
	failed    int64
	statuses  map[string]int64
	latencies []float64
}

type collector struct {
	mu           sync.Mutex
	steps        map[string]*stepStats
	outcomes     map[string]int64
	sales        []float64
	unitsSold    int64
	unreconciled int64
}

func newCollector() *collector {
	return &collector{
		steps:    make(map[string]*stepStats),
		outcomes: make(map[string]int64),
	}
}

// record учитывает HTTP-вызов шага; status 0 означает сетевую ошибку.
func (c *collector) record(step string, latency time.Duration, status int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats, ok := c.steps[step]
	if !ok {
		stats = &stepStats{statuses: make(map[string]int64)}
		c.steps[step] = stats
	}

	stats.calls++
	if status >= 200 && status < 300 {
		stats.success++
	} else {
		stats.failed++
	}
	stats.statuses[statusLabel(status)]++
	stats.latencies = append(stats.latencies, millis(latency))
}

func (c *collector) recordSale(result saleResult, latency time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outcomes[result.Outcome]++
	c.sales = append(c.sales, millis(latency))
	c.unitsSold += int64(result.Units)
	if !result.Reconciled {
		c.unreconciled++
	}
}

func (c *collector) buildReport(startedAt time.Time, duration time.Duration) report {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := report{
		StartedAt:         startedAt.UTC(),
		DurationSeconds:   duration.Seconds(),
		Sales:             int64(len(c.sales)),
		Outcomes:          make(map[string]int64, len(c.outcomes)),
		SaleLatencyMs:     buildLatencySummary(c.sales),
		Steps:             make(map[string]stepReport, len(c.steps)),
		UnitsSold:         c.unitsSold,
		UnreconciledSales: c.unreconciled,
	}
	for name, count := range c.outcomes {
		result.Outcomes[name] = count
	}
	if duration > 0 {
		result.SalesPerSecond = float64(result.Outcomes[outcomeSuccess]) / duration.Seconds()
	}

	for name, stats := range c.steps {
		statuses := make(map[string]int64, len(stats.statuses))
		for code, count := range stats.statuses {
			statuses[code] = count
		}
		result.Steps[name] = stepReport{
			Calls:     stats.calls,
			Success:   stats.success,
			Failed:    stats.failed,
			ErrorRate: ratio(stats.failed, stats.calls),
			Statuses:  statuses,
			LatencyMs: buildLatencySummary(stats.latencies),
		}
	}
	return result
}

func statusLabel(status int) string {
	if status == 0 {
		return "network_error"
	}
	return strconv.Itoa(status)
}

func millis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000.0
}

func writeJSONReport(path string, result report) error {
	cleanPath := filepath.Clean(path)
	if cleanPath == "." || cleanPath == string(filepath.Separator) {
		return errors.New("output path must point to a file")
	}
	if cleanPath == ".." || strings.HasPrefix(cleanPath, ".."+string(filepath.Separator)) {
		return fmt.Errorf("output path must be inside current directory: %s", path)
	}

	// #nosec G304 -- путь задаётся явно флагом -output.
	file, err := os.Create(cleanPath)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func printReport(w io.Writer, result report, cfg config) {
	_, _ = fmt.Fprintln(w, "Load test summary")
	_, _ = fmt.Fprintf(w, "target=%s product=%s terminals=%d run=%s\n",
		cfg.baseURL, cfg.productID, cfg.terminals, runTarget(cfg))
	_, _ = fmt.Fprintf(w, "sales=%d success=%d validation=%d partial=%d conflict=%d failed=%d\n",
		result.Sales,
		result.Outcomes[outcomeSuccess],
		result.Outcomes[outcomeValidation],
		result.Outcomes[outcomePartial],
		result.Outcomes[outcomeConflict],
		result.Outcomes[outcomeFailed],
	)
	_, _ = fmt.Fprintf(w, "duration=%.2fs sales_per_second=%.2f\n", result.DurationSeconds, result.SalesPerSecond)
	_, _ = fmt.Fprintf(w, "sale latency ms: min=%.2f avg=%.2f p50=%.2f p95=%.2f p99=%.2f max=%.2f\n",
		result.SaleLatencyMs.Min,
		result.SaleLatencyMs.Avg,
		result.SaleLatencyMs.P50,
		result.SaleLatencyMs.P95,
		result.SaleLatencyMs.P99,
		result.SaleLatencyMs.Max,
	)

	names := make([]string, 0, len(result.Steps))
	for name := range result.Steps {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		stats := result.Steps[name]
		_, _ = fmt.Fprintf(w, "%s: calls=%d success=%d failed=%d error_rate=%.4f p95=%.2fms\n",
			name, stats.Calls, stats.Success, stats.Failed, stats.ErrorRate, stats.LatencyMs.P95)
	}

	_, _ = fmt.Fprintf(w, "stock: initial=%d final=%d expected=%d units_sold=%d consistent=%t\n",
		result.InitialStock, result.FinalStock, result.ExpectedStock, result.UnitsSold, result.StockConsistent)
	if result.UnreconciledSales > 0 {
		_, _ = fmt.Fprintf(w, "WARNING: %d sales need manual reconciliation\n", result.UnreconciledSales)
	}
}

func runTarget(cfg config) string {
	if cfg.duration <= 0 {
		return fmt.Sprintf("count:%d", cfg.total)
	}
	if cfg.totalSet {
		return fmt.Sprintf("duration:%s,max-total:%d", cfg.duration, cfg.total)
	}
	return fmt.Sprintf("duration:%s", cfg.duration)
}

func buildLatencySummary(values []float64) latencySummary {
	if len(values) == 0 {
		return latencySummary{}
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	var sum float64
	for _, value := range sorted {
		sum += value
	}

	return latencySummary{
		Min: sorted[0],
		Max: sorted[len(sorted)-1],
		Avg: sum / float64(len(sorted)),
		P50: percentile(sorted, 50),
		P95: percentile(sorted, 95),
		P99: percentile(sorted, 99),
	}
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}

	rank := (p / 100.0) * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}

	weight := rank - float64(lower)
	return sorted[lower] + (sorted[upper]-sorted[lower])*weight
}

func ratio(part, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(part) / float64(total)
}
