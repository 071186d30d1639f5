// Package notify delivers alert and service events to operators.
//
// Notifiers:
//   - Webhook: Discord-compatible embed JSON over HTTP
//   - MQTTNotifier: JSON on powertag/alert/<tag> and powertag/event/<kind>
//   - NATSNotifier: JSON on <prefix>.alert.<tag> and <prefix>.event.<kind>
//   - Func: adapter, used for the SQLite alert log
//
// The Dispatcher owns a bounded queue and a single delivery goroutine. The
// sampler hands events to Dispatch and moves on; a slow or failing
// notifier can delay other notifications but never a sampling cycle.
//
// Usage:
//
//	d := notify.NewDispatcher(logger, notify.DispatcherOptions{QueueSize: 64},
//	    notify.NewWebhook(cfg.Notify.WebhookURL, "", 10*time.Second))
//	defer d.Close(ctx)
//
//	d.Dispatch(evt)
package notify
