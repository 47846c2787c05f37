package subscription

import (
	"github.com/veritas-ledger/gateway/internal/blocks"
	"github.com/veritas-ledger/gateway/internal/events"
)

// MessageType discriminates the JSON messages exchanged on the streaming
// channels.
type MessageType string

const (
	// MessageTypeSubscriptionRequest is the client's opening message.
	MessageTypeSubscriptionRequest MessageType = "subscription_request"
	// MessageTypeSubscriptionAccepted confirms the handshake.
	MessageTypeSubscriptionAccepted MessageType = "subscription_accepted"
	// MessageTypeEvent delivers one event to the client.
	MessageTypeEvent MessageType = "event"
	// MessageTypeEventReceived acknowledges the in-flight event.
	MessageTypeEventReceived MessageType = "event_received"

	// MessageTypeBlockSubscriptionRequest opens a block stream; FromHeight
	// selects the first block to deliver.
	MessageTypeBlockSubscriptionRequest MessageType = "block_subscription_request"
	// MessageTypeBlockSubscriptionAccepted confirms the block handshake.
	MessageTypeBlockSubscriptionAccepted MessageType = "block_subscription_accepted"
	// MessageTypeBlock delivers one committed block to the client.
	MessageTypeBlock MessageType = "block"
	// MessageTypeBlockReceived acknowledges the in-flight block by height.
	MessageTypeBlockReceived MessageType = "block_received"
)

// Message is the wire format shared by the event and block channels. Fields
// beyond Type are populated per message type: Filter and FromHeight for the
// respective handshakes, Event and Block for deliveries, Sequence and Height
// for acknowledgments.
type Message struct {
	Type       MessageType    `json:"type"`
	Filter     *events.Filter `json:"filter,omitempty"`
	Event      *events.Event  `json:"event,omitempty"`
	Sequence   uint64         `json:"sequence,omitempty"`
	FromHeight uint64         `json:"from_height,omitempty"`
	Block      *blocks.Block  `json:"block,omitempty"`
	Height     uint64         `json:"height,omitempty"`
}
