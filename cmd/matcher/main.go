package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/erain9/matchbook/config"
	"github.com/erain9/matchbook/pkg/backend/redis"
	"github.com/erain9/matchbook/pkg/core"
	"github.com/erain9/matchbook/pkg/db/queue"
	"github.com/erain9/matchbook/pkg/engine"
	"github.com/erain9/matchbook/pkg/ingest"
	"github.com/erain9/matchbook/pkg/logging"
	"github.com/erain9/matchbook/pkg/messaging"
	"github.com/erain9/matchbook/pkg/messaging/kafka"
	"github.com/erain9/matchbook/pkg/otel"
	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stdin); err != nil {
		fmt.Fprintf(os.Stderr, "matcher: %v\n", err)
		os.Exit(1)
	}
}

// stats summarises a replay
type stats struct {
	Submitted int
	Rejected  int
	Canceled  int
	Trades    int
	Volume    uint64
}

func run(ctx context.Context, args []string, out io.Writer, in io.Reader) error {
	fs := pflag.NewFlagSet("matcher", pflag.ContinueOnError)
	config.RegisterFlags(fs)
	depth := fs.Int("depth", 10, "Levels per side to print after the replay, 0 for all")
	tail := fs.Bool("tail", false, "Consume done messages from Kafka and log them instead of replaying")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load("", fs)
	if err != nil {
		return err
	}

	logger := logging.Setup(logging.Config{
		Level:  cfg.Log.Level,
		Pretty: cfg.Log.Format == "pretty",
		Output: os.Stderr,
	})
	ctx = logger.WithContext(ctx)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Otel.Enabled {
		cleanup, err := otel.Init(otel.Config{
			ServiceName:      cfg.Otel.ServiceName,
			ServiceVersion:   cfg.Otel.ServiceVersion,
			Endpoint:         cfg.Otel.Endpoint,
			CollectorEnabled: true,
			RuntimeMetrics:   true,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
		}
		defer cleanup()
	}

	if *tail {
		return tailMessages(ctx, cfg, logger)
	}

	senders, err := buildSenders(ctx, cfg, logger)
	if err != nil {
		return err
	}

	eng := engine.New(core.NewOrderBook(),
		engine.Config{
			QueueSize:        cfg.Engine.QueueSize,
			PublishQueueSize: cfg.Engine.PublishQueueSize,
			RateLimit:        cfg.Engine.RateLimit,
			Burst:            cfg.Engine.Burst,
		},
		engine.WithSenders(senders...),
		engine.WithLogger(logger),
		engine.WithMetrics(otel.GetOrderBookMetrics()),
	)
	if err := eng.Start(ctx); err != nil {
		return err
	}

	start := time.Now()
	st, replayErr := replay(ctx, eng, cfg.Input, in)

	book, depthErr := eng.Depth(ctx, *depth)
	if err := eng.Stop(); err != nil {
		logger.Warn().Err(err).Msg("Failed to close senders")
	}
	if replayErr != nil {
		return replayErr
	}
	if depthErr != nil {
		return depthErr
	}

	if err := printBook(out, book); err != nil {
		return err
	}
	fmt.Fprintf(out, "\nProcessed %d orders (%d rejected, %d canceled) in %v\n",
		st.Submitted, st.Rejected, st.Canceled, time.Since(start).Round(time.Millisecond))
	fmt.Fprintf(out, "Total trades: %d, volume: %d\n", st.Trades, st.Volume)
	return nil
}

// source yields commands one at a time
type source interface {
	Next() (ingest.Command, error)
}

type sliceSource struct {
	cmds []ingest.Command
}

func (s *sliceSource) Next() (ingest.Command, error) {
	if len(s.cmds) == 0 {
		return ingest.Command{}, io.EOF
	}
	cmd := s.cmds[0]
	s.cmds = s.cmds[1:]
	return cmd, nil
}

func openSource(input config.InputConfig, stdin io.Reader) (source, func(), error) {
	if input.Format == config.InputYAML {
		if input.Path == "" {
			return nil, nil, errors.New("yaml input needs input.path")
		}
		cmds, err := ingest.LoadScenario(input.Path)
		if err != nil {
			return nil, nil, err
		}
		return &sliceSource{cmds: cmds}, func() {}, nil
	}

	r, closeFn := stdin, func() {}
	if input.Path != "" && input.Path != "-" {
		f, err := os.Open(input.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open input: %w", err)
		}
		r, closeFn = f, func() { _ = f.Close() }
	}

	cr, err := ingest.NewCSVReader(r)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return cr, closeFn, nil
}

func replay(ctx context.Context, eng *engine.Engine, input config.InputConfig, stdin io.Reader) (stats, error) {
	var st stats

	src, closeFn, err := openSource(input, stdin)
	if err != nil {
		return st, err
	}
	defer closeFn()

	for {
		cmd, err := src.Next()
		if err == io.EOF {
			return st, nil
		}
		if err != nil {
			return st, err
		}

		lineCtx := logging.WithRequestID(ctx, fmt.Sprintf("line-%d", cmd.Line))

		switch cmd.Action {
		case ingest.ActionCancel:
			ok, err := eng.Cancel(lineCtx, cmd.OrderID)
			if err != nil {
				return st, err
			}
			if ok {
				st.Canceled++
			}

		default:
			st.Submitted++
			done, err := eng.Submit(lineCtx, cmd.Order)
			if errors.Is(err, core.ErrInvalidOrder) {
				st.Rejected++
				logger := logging.FromContext(lineCtx)
				logger.Warn().Err(err).Msg("Order rejected")
				continue
			}
			if err != nil {
				return st, err
			}
			st.Trades += len(done.Trades)
			st.Volume += uint64(done.Processed)
		}
	}
}

func buildSenders(ctx context.Context, cfg *config.Config, logger zerolog.Logger) ([]messaging.MessageSender, error) {
	var senders []messaging.MessageSender

	if cfg.Kafka.Enabled {
		switch cfg.Kafka.Client {
		case config.KafkaClientSarama:
			pool, err := queue.NewSenderPool(cfg.Kafka.PoolSize, func() (messaging.MessageSender, error) {
				return queue.NewQueueMessageSender(cfg.Kafka.Brokers, cfg.Kafka.Topic)
			})
			if err != nil {
				return nil, err
			}
			senders = append(senders, pool)
		default:
			sender, err := kafka.NewKafkaMessageSender(cfg.Kafka.Brokers, cfg.Kafka.Topic)
			if err != nil {
				return nil, err
			}
			senders = append(senders, sender)
		}
		logger.Info().
			Str("client", cfg.Kafka.Client).
			Strs("brokers", cfg.Kafka.Brokers).
			Str("topic", cfg.Kafka.Topic).
			Msg("Publishing done messages to Kafka")
	}

	if cfg.Redis.Enabled {
		zapLogger, err := zap.NewProduction()
		if err != nil {
			return nil, err
		}
		store := redis.NewTradeStore(redis.NewClient(redis.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}), cfg.Redis.Prefix, zapLogger)
		if err := store.Ping(ctx); err != nil {
			for _, s := range senders {
				_ = s.Close()
			}
			return nil, fmt.Errorf("redis unavailable at %s: %w", cfg.Redis.Addr, err)
		}
		senders = append(senders, store)
		logger.Info().Str("addr", cfg.Redis.Addr).Str("prefix", cfg.Redis.Prefix).Msg("Recording trades in Redis")
	}

	return senders, nil
}

func tailMessages(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	if len(cfg.Kafka.Brokers) == 0 {
		return errors.New("tail needs kafka.brokers")
	}

	consumer, err := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.GroupID, logger)
	if err != nil {
		return err
	}
	defer consumer.Close()

	logger.Info().Str("topic", cfg.Kafka.Topic).Msg("Starting Kafka consumer")
	return consumer.ConsumeDoneMessages(ctx, func(msg *messaging.DoneMessage) error {
		logger.Info().
			Str("kind", msg.Kind).
			Uint64("order_id", msg.OrderID).
			Uint32("executed_qty", msg.ExecutedQty).
			Uint32("remaining_qty", msg.RemainingQty).
			Bool("stored", msg.Stored).
			Bool("canceled", msg.Canceled).
			Int("trades", len(msg.Trades)).
			Msg("Received done message")
		return nil
	})
}

func printBook(out io.Writer, depth core.Depth) error {
	cyan := color.New(color.FgCyan).SprintfFunc()
	red := color.New(color.FgRed).SprintfFunc()
	green := color.New(color.FgGreen).SprintfFunc()

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', tabwriter.AlignRight)

	fmt.Fprintf(w, "%15s|%15s|%15s|%s\n", cyan("Price"), cyan("Quantity"), cyan("Orders"), cyan("Side"))
	fmt.Fprintf(w, "%15s|%15s|%15s|%s\n", "---------------", "---------------", "---------------", "----")

	// asks print worst first so the spread sits in the middle
	for i := len(depth.Asks) - 1; i >= 0; i-- {
		level := depth.Asks[i]
		fmt.Fprintf(w, "%15s|%15d|%15d|%s\n", level.Price, level.Volume, level.OrderCount, red("ASK"))
	}

	fmt.Fprintf(w, "%15s|%15s|%15s|%s\n", "---------------", "---------------", "---------------", "----")

	for _, level := range depth.Bids {
		fmt.Fprintf(w, "%15s|%15d|%15d|%s\n", level.Price, level.Volume, level.OrderCount, green("BID"))
	}

	return w.Flush()
}
