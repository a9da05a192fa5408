package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/erain9/matchbook/pkg/core"
	"github.com/erain9/matchbook/pkg/logging"
	"github.com/erain9/matchbook/pkg/messaging"
	"github.com/erain9/matchbook/pkg/otel"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

var (
	// ErrEngineStopped is returned for commands issued after Stop
	ErrEngineStopped = errors.New("engine stopped")
	// ErrEngineNotStarted is returned for commands issued before Start
	ErrEngineNotStarted = errors.New("engine not started")
)

// Config tunes the engine's queues and intake rate
type Config struct {
	// QueueSize is the command channel buffer
	QueueSize int
	// PublishQueueSize is the outgoing message buffer
	PublishQueueSize int
	// RateLimit is commands per second; zero disables limiting
	RateLimit float64
	// Burst is the limiter bucket size
	Burst int
}

// DefaultConfig returns an unlimited engine with modest buffers
func DefaultConfig() Config {
	return Config{
		QueueSize:        1024,
		PublishQueueSize: 4096,
	}
}

// Option configures an Engine
type Option func(*Engine)

// WithSenders adds message senders; each message goes to all of them in order
func WithSenders(senders ...messaging.MessageSender) Option {
	return func(e *Engine) {
		e.senders = append(e.senders, senders...)
	}
}

// WithLogger sets the engine logger
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithMetrics sets where order book metrics are recorded
func WithMetrics(metrics *otel.OrderBookMetrics) Option {
	return func(e *Engine) {
		e.metrics = metrics
	}
}

type commandKind int

const (
	cmdSubmit commandKind = iota
	cmdCancel
	cmdDepth
)

// command states; whichever side moves a command out of cmdPending first
// decides whether it runs
const (
	cmdPending int32 = iota
	cmdClaimed
	cmdAbandoned
)

type command struct {
	ctx     context.Context
	kind    commandKind
	order   *core.Order
	orderID uint64
	levels  int
	reply   chan result
	state   *atomic.Int32
}

type result struct {
	done     *core.Done
	canceled bool
	depth    core.Depth
	err      error
}

// Engine serializes every call into one OrderBook through a single
// goroutine and publishes the outcome of each command.
type Engine struct {
	book    *core.OrderBook
	cfg     Config
	limiter *rate.Limiter
	senders []messaging.MessageSender
	logger  zerolog.Logger
	metrics *otel.OrderBookMetrics

	commands chan command
	outbox   chan *messaging.DoneMessage
	quit     chan struct{}
	loopDone chan struct{}

	mu      sync.Mutex
	started bool
	stopped bool
	pubWG   sync.WaitGroup
}

// New creates an engine around book. The engine must own the book; no
// other goroutine may touch it once Start is called.
func New(book *core.OrderBook, cfg Config, opts ...Option) *Engine {
	defaults := DefaultConfig()
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaults.QueueSize
	}
	if cfg.PublishQueueSize <= 0 {
		cfg.PublishQueueSize = defaults.PublishQueueSize
	}

	e := &Engine{
		book:     book,
		cfg:      cfg,
		logger:   log.Logger,
		commands: make(chan command, cfg.QueueSize),
		outbox:   make(chan *messaging.DoneMessage, cfg.PublishQueueSize),
		quit:     make(chan struct{}),
		loopDone: make(chan struct{}),
	}

	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = max(1, int(cfg.RateLimit))
		}
		e.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Start launches the dispatch and publisher goroutines. The engine stops
// when ctx is done or Stop is called.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopped {
		return ErrEngineStopped
	}
	if e.started {
		return nil
	}
	e.started = true

	go e.run()

	e.pubWG.Add(1)
	go e.publish()

	go func() {
		select {
		case <-ctx.Done():
			_ = e.Stop()
		case <-e.quit:
		}
	}()

	e.logger.Info().
		Int("queue_size", e.cfg.QueueSize).
		Float64("rate_limit", e.cfg.RateLimit).
		Int("senders", len(e.senders)).
		Msg("Matching engine started")
	return nil
}

// Stop drains outstanding messages, closes every sender and waits for
// the goroutines to exit. Commands still queued fail with ErrEngineStopped.
func (e *Engine) Stop() error {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return nil
	}
	e.stopped = true
	started := e.started
	close(e.quit)
	e.mu.Unlock()

	if started {
		<-e.loopDone
		close(e.outbox)
		e.pubWG.Wait()
	}

	var errs []error
	for _, s := range e.senders {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	e.logger.Info().Msg("Matching engine stopped")
	return errors.Join(errs...)
}

// Submit matches order and returns its execution summary
func (e *Engine) Submit(ctx context.Context, order *core.Order) (*core.Done, error) {
	res, err := e.do(ctx, command{kind: cmdSubmit, order: order})
	if err != nil {
		return nil, err
	}
	return res.done, res.err
}

// Cancel removes a resting order, reporting whether it was resting
func (e *Engine) Cancel(ctx context.Context, orderID uint64) (bool, error) {
	res, err := e.do(ctx, command{kind: cmdCancel, orderID: orderID})
	if err != nil {
		return false, err
	}
	return res.canceled, res.err
}

// Depth returns up to levels aggregated levels per side
func (e *Engine) Depth(ctx context.Context, levels int) (core.Depth, error) {
	res, err := e.do(ctx, command{kind: cmdDepth, levels: levels})
	if err != nil {
		return core.Depth{}, err
	}
	return res.depth, res.err
}

func (e *Engine) do(ctx context.Context, cmd command) (result, error) {
	e.mu.Lock()
	started, stopped := e.started, e.stopped
	e.mu.Unlock()
	if stopped {
		return result{}, ErrEngineStopped
	}
	if !started {
		return result{}, ErrEngineNotStarted
	}

	if e.limiter != nil && cmd.kind != cmdDepth {
		if err := e.limiter.Wait(ctx); err != nil {
			return result{}, fmt.Errorf("rate limit: %w", err)
		}
	}

	cmd.ctx = ctx
	cmd.reply = make(chan result, 1)
	cmd.state = new(atomic.Int32)

	select {
	case e.commands <- cmd:
	case <-ctx.Done():
		return result{}, ctx.Err()
	case <-e.quit:
		return result{}, ErrEngineStopped
	}

	select {
	case res := <-cmd.reply:
		return res, nil
	case <-ctx.Done():
		if cmd.state.CompareAndSwap(cmdPending, cmdAbandoned) {
			return result{}, ctx.Err()
		}
		// claimed commands always get a reply
		return <-cmd.reply, nil
	case <-e.loopDone:
		select {
		case res := <-cmd.reply:
			return res, nil
		default:
			return result{}, ErrEngineStopped
		}
	}
}

// run is the only goroutine that touches the book
func (e *Engine) run() {
	defer close(e.loopDone)

	for {
		select {
		case cmd := <-e.commands:
			if !cmd.state.CompareAndSwap(cmdPending, cmdClaimed) {
				continue
			}
			if err := cmd.ctx.Err(); err != nil {
				cmd.reply <- result{err: err}
				continue
			}
			cmd.reply <- e.handle(cmd)
		case <-e.quit:
			for {
				select {
				case cmd := <-e.commands:
					cmd.reply <- result{err: ErrEngineStopped}
				default:
					return
				}
			}
		}
	}
}

func (e *Engine) handle(cmd command) result {
	switch cmd.kind {
	case cmdSubmit:
		return e.handleSubmit(cmd)
	case cmdCancel:
		return e.handleCancel(cmd)
	case cmdDepth:
		return result{depth: e.book.Depth(cmd.levels)}
	default:
		return result{err: fmt.Errorf("unknown command %d", cmd.kind)}
	}
}

func (e *Engine) handleSubmit(cmd command) result {
	start := time.Now()

	logger := logging.Tag(cmd.ctx, e.logger)

	done, err := e.book.Process(cmd.ctx, cmd.order)
	if err != nil {
		e.metrics.RecordReject(cmd.ctx, rejectReason(err))
		logger.Debug().Err(err).Msg("Order rejected")
		return result{err: err}
	}

	e.metrics.RecordSubmit(cmd.ctx, len(done.Trades), done.Processed, done.Stored, time.Since(start))
	logger.Debug().
		Uint64("order_id", cmd.order.ID()).
		Str("side", cmd.order.Side().String()).
		Int("trades", len(done.Trades)).
		Uint32("left", done.Left).
		Msg("Order processed")

	e.enqueue(done.ToMessagingDoneMessage())
	return result{done: done}
}

func (e *Engine) handleCancel(cmd command) result {
	_, span := otel.StartOrderSpan(cmd.ctx, otel.SpanCancelOrder,
		attribute.Int64(otel.AttributeOrderID, int64(cmd.orderID)))
	defer span.End()

	order := e.book.GetOrder(cmd.orderID)
	canceled := e.book.Cancel(cmd.orderID)

	msg := messaging.NewCancelMessage(cmd.orderID, canceled)
	if order != nil {
		msg.Trader = order.Trader()
		msg.Side = order.Side().String()
		msg.Price = order.Price().String()
		msg.Quantity = order.OriginalQty()
		msg.ExecutedQty = order.FilledQty()
		msg.RemainingQty = order.Quantity()
	}

	otel.AddAttributes(span, attribute.Bool(otel.AttributeOrderCanceled, canceled))
	span.SetStatus(codes.Ok, "")
	e.metrics.RecordCancel(cmd.ctx, canceled)
	logger := logging.Tag(cmd.ctx, e.logger)
	logger.Debug().
		Uint64("order_id", cmd.orderID).
		Bool("canceled", canceled).
		Msg("Cancel processed")

	e.enqueue(msg)
	return result{canceled: canceled}
}

// enqueue hands a message to the publisher, blocking when it falls behind
func (e *Engine) enqueue(msg *messaging.DoneMessage) {
	if len(e.senders) == 0 || msg == nil {
		return
	}
	e.outbox <- msg
}

func (e *Engine) publish() {
	defer e.pubWG.Done()

	for msg := range e.outbox {
		ctx, span := otel.StartOrderSpan(context.Background(), otel.SpanPublishDone,
			attribute.Int64(otel.AttributeOrderID, int64(msg.OrderID)),
			attribute.String(otel.AttributeMessageKind, msg.Kind),
		)

		for _, s := range e.senders {
			if err := s.SendDoneMessage(ctx, msg); err != nil {
				span.RecordError(err, senderAttr(s))
				e.logger.Error().Err(err).
					Uint64("order_id", msg.OrderID).
					Str("message_id", msg.MessageID).
					Str("sender", fmt.Sprintf("%T", s)).
					Msg("Failed to publish done message")
			}
		}

		span.End()
	}
}

func senderAttr(s messaging.MessageSender) trace.EventOption {
	return trace.WithAttributes(attribute.String(otel.AttributeSender, fmt.Sprintf("%T", s)))
}

// rejectReason maps a rejection to a low-cardinality metric label
func rejectReason(err error) string {
	switch {
	case errors.Is(err, core.ErrInvalidQuantity):
		return "invalid_quantity"
	case errors.Is(err, core.ErrInvalidPrice):
		return "invalid_price"
	case errors.Is(err, core.ErrInvalidSide):
		return "invalid_side"
	case errors.Is(err, core.ErrOrderExists):
		return "order_exists"
	default:
		return "invalid_order"
	}
}
