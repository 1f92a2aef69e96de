package events

// Topic constants for domain events emitted by the shop.
const (
	TopicCartItemAdded     = "cart.item_added"
	TopicCheckoutSucceeded = "checkout.succeeded"
	TopicCheckoutFailed    = "checkout.failed"
	TopicSessionLoggedIn   = "session.logged_in"
	TopicSessionLoggedOut  = "session.logged_out"
)

// DefaultTopics returns the canonical list of topics.
func DefaultTopics() []string {
	return []string{
		TopicCartItemAdded,
		TopicCheckoutSucceeded,
		TopicCheckoutFailed,
		TopicSessionLoggedIn,
		TopicSessionLoggedOut,
	}
}
