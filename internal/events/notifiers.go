package events

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/noah-isme/loyalty-shop/internal/obs"
)

// LogNotifier writes every event as a structured log line.
type LogNotifier struct {
	Logger zerolog.Logger
}

// Notify implements Notifier.
func (n LogNotifier) Notify(_ context.Context, ev Event) error {
	n.Logger.Info().
		Str("event_id", ev.ID.String()).
		Str("topic", ev.Topic).
		RawJSON("payload", ev.Payload).
		Time("occurred_at", ev.OccurredAt).
		Msg("domain_event")
	return nil
}

// MetricsNotifier maps events onto the domain Prometheus collectors.
type MetricsNotifier struct{}

// Notify implements Notifier.
func (MetricsNotifier) Notify(_ context.Context, ev Event) error {
	switch ev.Topic {
	case TopicCartItemAdded:
		obs.ObserveCartAdd("added")
	case TopicCheckoutSucceeded:
		var p CheckoutSucceeded
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return err
		}
		obs.ObserveCheckout("succeeded")
		obs.ObserveCheckoutWarnings("invalid_product", len(p.InvalidProducts))
		obs.ObserveCheckoutWarnings("missing_category", len(p.MissingCategory))
		if points, err := strconv.ParseFloat(p.Points, 64); err == nil {
			obs.AddPointsEarned(points)
		}
	case TopicCheckoutFailed:
		obs.ObserveCheckout("failed")
	case TopicSessionLoggedIn:
		obs.ObserveSession("login", "ok")
	case TopicSessionLoggedOut:
		obs.ObserveSession("logout", "ok")
	}
	return nil
}
