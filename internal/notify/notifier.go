package notify

import (
	"context"

	"github.com/nerrad567/powertag-monitor/internal/alert"
)

// Notifier delivers one event to an external channel.
//
// Notify may block on the network; the Dispatcher calls it from its own
// goroutine with a bounded context.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, evt alert.Event) error
}

// Func adapts a function to the Notifier interface.
//
// Example:
//
//	notify.Func("alert-log", sqliteSink.RecordAlert)
func Func(name string, fn func(ctx context.Context, evt alert.Event) error) Notifier {
	return funcNotifier{name: name, fn: fn}
}

type funcNotifier struct {
	name string
	fn   func(ctx context.Context, evt alert.Event) error
}

func (f funcNotifier) Name() string { return f.name }

func (f funcNotifier) Notify(ctx context.Context, evt alert.Event) error {
	return f.fn(ctx, evt)
}
