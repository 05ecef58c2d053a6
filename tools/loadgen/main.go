// Command loadgen drives an `eric serve` instance with validate requests and
// reports throughput and latency.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/VanDung-dev/eric-go/bridge"
	"github.com/VanDung-dev/eric-go/document"
	"github.com/VanDung-dev/eric-go/logging"
	"github.com/VanDung-dev/eric-go/network"
)

// LoadConfig holds configuration for a load run.
type LoadConfig struct {
	Address         string
	Concurrency     int
	RequestCount    int
	Duration        time.Duration
	Timeout         time.Duration
	DocumentPath    string
	DatenartVersion string
	ReportFile      string
}

// LoadResult holds the results of a load run.
type LoadResult struct {
	TotalRequests  int64
	SuccessfulReqs int64
	RejectedReqs   int64
	FailedReqs     int64
	TotalDuration  time.Duration
	AvgLatency     time.Duration
	MinLatency     time.Duration
	MaxLatency     time.Duration
	RequestsPerSec float64
}

// counters are shared by all workers.
type counters struct {
	total, success, rejected, failed int64
	latencySum                       int64
	minLatency                       int64
	maxLatency                       int64
}

func main() {
	config := parseFlags()
	log := logging.New(logging.Options{Level: "info", Console: true, App: "loadgen"})

	xml := `<?xml version="1.0" encoding="UTF-8"?><Elster/>`
	if config.DocumentPath != "" {
		doc, err := document.Load(config.DocumentPath)
		if err != nil {
			log.Fatal().Err(err).Msg("load document")
		}
		xml = doc
	}

	fmt.Println("=== ERiC Service Load Test ===")
	fmt.Printf("Target: %s\n", config.Address)
	fmt.Printf("Concurrency: %d workers\n", config.Concurrency)
	fmt.Printf("Duration: %v\n", config.Duration)
	fmt.Println()

	result, err := runLoad(config, xml, log)
	if err != nil {
		log.Fatal().Err(err).Msg("load run failed")
	}
	printResults(result)

	if config.ReportFile != "" {
		saveReport(config, result, log)
	}
}

func parseFlags() LoadConfig {
	config := LoadConfig{}

	flag.StringVar(&config.Address, "addr", "tcp://127.0.0.1:5570", "eric service address")
	flag.IntVar(&config.Concurrency, "c", 4, "Number of concurrent workers")
	flag.IntVar(&config.RequestCount, "n", 0, "Total number of requests (0 = unlimited, use -d instead)")
	flag.DurationVar(&config.Duration, "d", 30*time.Second, "Duration of test")
	flag.DurationVar(&config.Timeout, "timeout", 30*time.Second, "Per-request timeout")
	flag.StringVar(&config.DocumentPath, "doc", "", "XML document to validate (default: minimal document)")
	flag.StringVar(&config.DatenartVersion, "dav", "ESt_2020", "datenartVersion")
	flag.StringVar(&config.ReportFile, "o", "", "Output report file (JSON)")

	flag.Parse()

	return config
}

func runLoad(config LoadConfig, xml string, log zerolog.Logger) (LoadResult, error) {
	client, err := network.Dial(config.Address)
	if err != nil {
		return LoadResult{}, err
	}
	defer client.Close()

	c := &counters{minLatency: 1<<63 - 1}
	ctx, cancel := context.WithTimeout(context.Background(), config.Duration)
	defer cancel()

	var budget atomic.Int64
	budget.Store(int64(config.RequestCount))

	startTime := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ctx.Err() == nil {
				if config.RequestCount > 0 && budget.Add(-1) < 0 {
					return
				}
				c.record(sendRequest(ctx, client, config, xml))
			}
		}()
	}
	wg.Wait()

	duration := time.Since(startTime)
	total := atomic.LoadInt64(&c.total)
	success := atomic.LoadInt64(&c.success)

	var avgLatency time.Duration
	if success > 0 {
		avgLatency = time.Duration(atomic.LoadInt64(&c.latencySum) / success)
	}
	minLat := atomic.LoadInt64(&c.minLatency)
	if success == 0 {
		minLat = 0
	}
	log.Debug().Int64("total", total).Msg("load run finished")

	return LoadResult{
		TotalRequests:  total,
		SuccessfulReqs: success,
		RejectedReqs:   atomic.LoadInt64(&c.rejected),
		FailedReqs:     atomic.LoadInt64(&c.failed),
		TotalDuration:  duration,
		AvgLatency:     avgLatency,
		MinLatency:     time.Duration(minLat),
		MaxLatency:     time.Duration(atomic.LoadInt64(&c.maxLatency)),
		RequestsPerSec: float64(total) / duration.Seconds(),
	}, nil
}

type outcome struct {
	status  string
	latency time.Duration
}

func sendRequest(ctx context.Context, client *network.Client, config LoadConfig, xml string) outcome {
	reqCtx, cancel := context.WithTimeout(ctx, config.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := client.Validate(reqCtx, bridge.ValidateRequest{XML: xml, DatenartVersion: config.DatenartVersion})
	latency := time.Since(start)
	if err != nil {
		return outcome{status: network.StatusError, latency: latency}
	}
	return outcome{status: resp.Status, latency: latency}
}

func (c *counters) record(o outcome) {
	atomic.AddInt64(&c.total, 1)
	switch o.status {
	case network.StatusOK:
		atomic.AddInt64(&c.success, 1)
	case network.StatusRejected:
		atomic.AddInt64(&c.rejected, 1)
		return
	default:
		atomic.AddInt64(&c.failed, 1)
		// Small sleep on error to avoid hammering
		time.Sleep(10 * time.Millisecond)
		return
	}

	lat := int64(o.latency)
	atomic.AddInt64(&c.latencySum, lat)
	for {
		old := atomic.LoadInt64(&c.minLatency)
		if lat >= old || atomic.CompareAndSwapInt64(&c.minLatency, old, lat) {
			break
		}
	}
	for {
		old := atomic.LoadInt64(&c.maxLatency)
		if lat <= old || atomic.CompareAndSwapInt64(&c.maxLatency, old, lat) {
			break
		}
	}
}

func percent(n, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}

func printResults(result LoadResult) {
	fmt.Println("=== Results ===")
	fmt.Printf("Duration:        %v\n", result.TotalDuration.Round(time.Millisecond))
	fmt.Printf("Total Requests:  %d\n", result.TotalRequests)
	fmt.Printf("Successful:      %d (%.2f%%)\n", result.SuccessfulReqs, percent(result.SuccessfulReqs, result.TotalRequests))
	fmt.Printf("Rejected:        %d (%.2f%%)\n", result.RejectedReqs, percent(result.RejectedReqs, result.TotalRequests))
	fmt.Printf("Failed:          %d (%.2f%%)\n", result.FailedReqs, percent(result.FailedReqs, result.TotalRequests))
	fmt.Printf("Requests/sec:    %.2f\n", result.RequestsPerSec)
	fmt.Printf("Avg Latency:     %v\n", result.AvgLatency.Round(time.Microsecond))
	fmt.Printf("Min Latency:     %v\n", result.MinLatency.Round(time.Microsecond))
	fmt.Printf("Max Latency:     %v\n", result.MaxLatency.Round(time.Microsecond))
}

func saveReport(config LoadConfig, result LoadResult, log zerolog.Logger) {
	report := map[string]any{
		"config": map[string]any{
			"address":          config.Address,
			"concurrency":      config.Concurrency,
			"duration":         config.Duration.String(),
			"datenart_version": config.DatenartVersion,
		},
		"results": map[string]any{
			"total_requests":   result.TotalRequests,
			"successful":       result.SuccessfulReqs,
			"rejected":         result.RejectedReqs,
			"failed":           result.FailedReqs,
			"requests_per_sec": result.RequestsPerSec,
			"avg_latency_ms":   float64(result.AvgLatency.Microseconds()) / 1000,
			"min_latency_ms":   float64(result.MinLatency.Microseconds()) / 1000,
			"max_latency_ms":   float64(result.MaxLatency.Microseconds()) / 1000,
		},
		"timestamp": time.Now().Format(time.RFC3339),
	}

	data, _ := json.MarshalIndent(report, "", "  ")
	if err := os.WriteFile(config.ReportFile, data, 0o644); err != nil {
		log.Error().Err(err).Msg("failed to write report")
		return
	}
	fmt.Printf("Report saved to: %s\n", config.ReportFile)
}
