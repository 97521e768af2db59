package core

// Client is one connected check-in channel participant as seen by the core
// layer. Events is drained by the transport's write loop.
type Client struct {
	ID       string
	UserID   int64
	Username string
	Events   chan *Event
}

// NewClient constructs a client with an initialized event channel.
func NewClient(id string, userID int64, username string) *Client {
	return &Client{
		ID:       id,
		UserID:   userID,
		Username: username,
		Events:   make(chan *Event, 16),
	}
}

// send delivers an event to the client without blocking. Slow consumers drop
// events rather than stalling the sender.
func (c *Client) send(event *Event) {
	select {
	case c.Events <- event:
	default:
		// Drop if slow consumer.
	}
}
