package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

type sendRequest struct {
	Tenant string `json:"tenant"`
	Secret string `json:"secret"`
	To     string `json:"to"`
	Msg    string `json:"msg"`
}

func main() {
	targetURL := flag.String("url", "http://localhost:8000/send-message", "Target URL of the relay")
	tenant := flag.String("tenant", "loadtest", "Tenant to send as")
	secret := flag.String("secret", "", "Tenant secret")
	to := flag.String("to", "", "Recipient phone number")
	concurrency := flag.Int("c", 4, "Number of concurrent workers")
	duration := flag.Duration("d", 30*time.Second, "Duration of the load test")
	rps := flag.Int("rps", 5, "Requests per second limit")
	flag.Parse()

	if *secret == "" || *to == "" {
		log.Fatal("-secret and -to are required")
	}

	log.Printf("Starting load test on %s", *targetURL)
	log.Printf("Concurrency: %d, Duration: %s, RPS: %d", *concurrency, *duration, *rps)

	var wg sync.WaitGroup
	var successCount, errorCount atomic.Int64
	var statusMu sync.Mutex
	statusCounts := make(map[int]int64)

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	limiter := rate.NewLimiter(rate.Limit(*rps), 1)

	for i := 0; i < *concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			client := &http.Client{
				Timeout: 35 * time.Second,
			}

			for {
				if err := limiter.Wait(ctx); err != nil {
					return
				}

				payload, _ := json.Marshal(sendRequest{
					Tenant: *tenant,
					Secret: *secret,
					To:     *to,
					Msg:    "load test " + uuid.NewString(),
				})

				req, err := http.NewRequestWithContext(ctx, http.MethodPost, *targetURL, bytes.NewReader(payload))
				if err != nil {
					continue // Should not happen
				}
				req.Header.Set("Content-Type", "application/json")

				resp, err := client.Do(req)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					errorCount.Add(1)
					continue
				}
				resp.Body.Close()

				statusMu.Lock()
				statusCounts[resp.StatusCode]++
				statusMu.Unlock()

				if resp.StatusCode == http.StatusOK {
					successCount.Add(1)
				} else {
					errorCount.Add(1)
				}
			}
		}(i)
	}

	wg.Wait()

	totalRequests := successCount.Load() + errorCount.Load()
	actualRPS := float64(totalRequests) / duration.Seconds()

	log.Println("Load test finished.")
	log.Printf("Total Requests: %d", totalRequests)
	log.Printf("Sent (200 OK): %d", successCount.Load())
	log.Printf("Errors: %d", errorCount.Load())
	for code, n := range statusCounts {
		log.Printf("  HTTP %d: %d", code, n)
	}
	log.Printf("Actual RPS: %.2f", actualRPS)
}
