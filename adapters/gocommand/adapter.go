package gocommand

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"
)

// ValidateMessageContract enforces Type() plus optional Validate() contract.
func ValidateMessageContract(msg any) error {
	if err := command.ValidateMessage(msg); err != nil {
		return err
	}
	m, ok := msg.(command.Message)
	if !ok {
		return fmt.Errorf("gocommand: message must implement Type() string")
	}
	if strings.TrimSpace(m.Type()) == "" {
		return fmt.Errorf("gocommand: message type is required")
	}
	return nil
}

// Bus owns a go-command registry and the dispatcher subscriptions made
// through it, so a whole handler set can be torn down with Close.
type Bus struct {
	registry *command.Registry

	mu            sync.Mutex
	subscriptions []commanddispatcher.Subscription
}

func NewBus(registry *command.Registry) *Bus {
	if registry == nil {
		registry = command.NewRegistry()
	}
	return &Bus{registry: registry}
}

func (b *Bus) Registry() *command.Registry {
	if b == nil {
		return nil
	}
	return b.registry
}

// AddQueueResolver mirrors registered handlers into a go-job queue registry
// under key, so queued messages resolve to the same handlers.
func (b *Bus) AddQueueResolver(key string, queueRegistry *jobqueuecommand.Registry) error {
	if b == nil || b.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	if queueRegistry == nil {
		return fmt.Errorf("gocommand: queue registry is required")
	}
	return b.registry.AddResolver(strings.TrimSpace(key), jobqueuecommand.QueueResolver(queueRegistry))
}

func (b *Bus) HasResolver(key string) bool {
	if b == nil || b.registry == nil {
		return false
	}
	return b.registry.HasResolver(strings.TrimSpace(key))
}

// Initialize runs the registry resolvers over every registered handler.
func (b *Bus) Initialize() error {
	if b == nil || b.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return b.registry.Initialize()
}

// Subscriptions returns how many dispatcher subscriptions are live.
func (b *Bus) Subscriptions() int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscriptions)
}

// Close unsubscribes every handler registered through the bus.
func (b *Bus) Close() {
	if b == nil {
		return
	}
	b.mu.Lock()
	subs := b.subscriptions
	b.subscriptions = nil
	b.mu.Unlock()
	for _, sub := range subs {
		if sub != nil {
			sub.Unsubscribe()
		}
	}
}

func (b *Bus) track(sub commanddispatcher.Subscription) {
	b.mu.Lock()
	b.subscriptions = append(b.subscriptions, sub)
	b.mu.Unlock()
}

// RegisterCommand subscribes cmd on the dispatcher and records it in the
// bus registry. The subscription is rolled back when registration fails.
func RegisterCommand[T any](bus *Bus, cmd command.Commander[T], runnerOpts ...runner.Option) error {
	if bus == nil || bus.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	if cmd == nil {
		return fmt.Errorf("gocommand: command is required")
	}
	sub := commanddispatcher.SubscribeCommand(cmd, runnerOpts...)
	if err := bus.registry.RegisterCommand(cmd); err != nil {
		if sub != nil {
			sub.Unsubscribe()
		}
		return err
	}
	bus.track(sub)
	return nil
}

// RegisterQuery is the query counterpart of RegisterCommand.
func RegisterQuery[T any, R any](bus *Bus, qry command.Querier[T, R], runnerOpts ...runner.Option) error {
	if bus == nil || bus.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	if qry == nil {
		return fmt.Errorf("gocommand: query is required")
	}
	sub := commanddispatcher.SubscribeQuery(qry, runnerOpts...)
	if err := bus.registry.RegisterCommand(qry); err != nil {
		if sub != nil {
			sub.Unsubscribe()
		}
		return err
	}
	bus.track(sub)
	return nil
}

func Dispatch[T any](ctx context.Context, msg T) error {
	if err := ValidateMessageContract(msg); err != nil {
		return err
	}
	return commanddispatcher.Dispatch(ctx, msg)
}

func Query[T any, R any](ctx context.Context, msg T) (R, error) {
	if err := ValidateMessageContract(msg); err != nil {
		var zero R
		return zero, err
	}
	return commanddispatcher.Query[T, R](ctx, msg)
}

// DispatchWithResult dispatches msg and returns the value the handler
// stored in the context result collector.
func DispatchWithResult[T any, R any](ctx context.Context, msg T) (R, error) {
	var zero R
	if ctx == nil {
		ctx = context.Background()
	}
	collector := command.NewResult[R]()
	if err := Dispatch(command.ContextWithResult(ctx, collector), msg); err != nil {
		return zero, err
	}
	value, ok := collector.Load()
	if !ok {
		return zero, fmt.Errorf("gocommand: %T produced no result", msg)
	}
	return value, nil
}
