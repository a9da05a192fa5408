package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/erain9/matchbook/pkg/backend/memory"
	"github.com/erain9/matchbook/pkg/core"
	"github.com/erain9/matchbook/pkg/engine"
	"github.com/erain9/matchbook/pkg/logging"
	"github.com/nikolaydubina/fpdecimal"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"golang.org/x/time/rate"
)

func main() {
	workers := pflag.Int("workers", 100, "Concurrent submitting goroutines")
	ordersPerWorker := pflag.Int("orders", 1000, "Orders per worker")
	maxRate := pflag.Float64("rate", 0, "Orders per second across all workers, 0 for unlimited")
	cancelRatio := pflag.Float64("cancel-ratio", 0.1, "Share of commands that cancel an earlier order")
	pflag.Parse()

	logging.Setup(logging.Config{Level: "info", Pretty: true, Output: os.Stderr})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	tradeLog := memory.NewTradeLog()
	eng := engine.New(core.NewOrderBook(), engine.DefaultConfig(),
		engine.WithSenders(tradeLog),
		engine.WithLogger(log.Logger),
	)
	if err := eng.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start engine")
	}

	var limiter *rate.Limiter
	if *maxRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(*maxRate), max(1, int(*maxRate/10)))
	}

	// latencies in microseconds, 1us to 10s at 3 significant figures
	var mu sync.Mutex
	hist := hdrhistogram.New(1, 10_000_000, 3)

	var nextID atomic.Uint64
	var rejected, failed atomic.Int64
	var wg sync.WaitGroup

	start := time.Now()
	log.Info().Int("workers", *workers).Int("orders_per_worker", *ordersPerWorker).Msg("Starting load test")

	for w := 0; w < *workers; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			r := rand.New(rand.NewSource(seed))
			local := hdrhistogram.New(1, 10_000_000, 3)

			for j := 0; j < *ordersPerWorker; j++ {
				if limiter != nil {
					if err := limiter.Wait(ctx); err != nil {
						break
					}
				}

				began := time.Now()
				var err error
				if issued := nextID.Load(); issued > 0 && r.Float64() < *cancelRatio {
					_, err = eng.Cancel(ctx, uint64(r.Int63n(int64(issued)))+1)
				} else {
					_, err = eng.Submit(ctx, randomOrder(r, nextID.Add(1)))
				}
				_ = local.RecordValue(time.Since(began).Microseconds())

				switch {
				case err == nil:
				case ctx.Err() != nil:
					return
				case isRejection(err):
					rejected.Add(1)
				default:
					failed.Add(1)
				}
			}

			mu.Lock()
			hist.Merge(local)
			mu.Unlock()
		}(time.Now().UnixNano() + int64(w))
	}

	wg.Wait()
	elapsed := time.Since(start)

	depth, _ := eng.Depth(context.Background(), 0)
	if err := eng.Stop(); err != nil {
		log.Warn().Err(err).Msg("Engine stop reported errors")
	}

	total := hist.TotalCount()
	fmt.Printf("Commands:   %d in %v (%.0f/s)\n", total, elapsed.Round(time.Millisecond), float64(total)/elapsed.Seconds())
	fmt.Printf("Trades:     %d\n", len(tradeLog.Trades()))
	fmt.Printf("Rejected:   %d\n", rejected.Load())
	fmt.Printf("Errors:     %d\n", failed.Load())
	fmt.Printf("Book:       %d bid levels, %d ask levels\n", len(depth.Bids), len(depth.Asks))
	fmt.Printf("Latency us: p50=%d p90=%d p99=%d p99.9=%d max=%d\n",
		hist.ValueAtQuantile(50), hist.ValueAtQuantile(90), hist.ValueAtQuantile(99),
		hist.ValueAtQuantile(99.9), hist.Max())

	if failed.Load() > 0 {
		os.Exit(1)
	}
}

// randomOrder quotes around 100 so both sides cross often
func randomOrder(r *rand.Rand, id uint64) *core.Order {
	side := core.Buy
	if r.Intn(2) == 0 {
		side = core.Sell
	}
	price := fpdecimal.FromFloat(99.0 + float64(r.Intn(21))*0.1)
	qty := uint32(1 + r.Intn(10))
	return core.NewLimitOrder(id, time.Now().UnixNano(), fmt.Sprintf("trader-%d", r.Intn(50)), side, price, qty)
}

func isRejection(err error) bool {
	return errors.Is(err, core.ErrInvalidOrder)
}
