package wshub

import "github.com/parleylabs/parley/internal/relay"

// Wire message types exchanged with platform clients
const (
	// Inbound
	MsgRegisterPlatform = "REGISTER_PLATFORM"
	MsgMessageExtracted = "MESSAGE_EXTRACTED"
	MsgHealthCheck      = "HEALTH_CHECK"
	MsgRequestStatus    = "REQUEST_STATUS"

	// Outbound
	MsgConnected          = "CONNECTED"
	MsgPlatformRegistered = "PLATFORM_REGISTERED"
	MsgMessageReceived    = "MESSAGE_RECEIVED"
	MsgStatus             = "STATUS"
)

// inboundMessage is the envelope platform clients send to the hub
type inboundMessage struct {
	Type     string `json:"type"`
	Platform string `json:"platform,omitempty"`
	Content  string `json:"content,omitempty"`
	// Timestamp is unix milliseconds of the extraction, 0 when unknown
	Timestamp int64           `json:"timestamp,omitempty"`
	Results   map[string]bool `json:"results,omitempty"`
}

// welcomeMessage is sent once on connect
type welcomeMessage struct {
	Type     string `json:"type"`
	ClientID int64  `json:"client_id"`
	Message  string `json:"message"`
}

// registeredMessage announces a platform registration to the other clients
type registeredMessage struct {
	Type     string         `json:"type"`
	ClientID int64          `json:"client_id"`
	Platform relay.Platform `json:"platform"`
}

// deliveryMessage carries a relayed message to the target platform client
type deliveryMessage struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// statusMessage answers a REQUEST_STATUS
type statusMessage struct {
	Type             string           `json:"type"`
	ConnectedClients int              `json:"connected_clients"`
	Platforms        []relay.Platform `json:"platforms"`
	Session          relay.Snapshot   `json:"session"`
}

// notificationMessage wraps a coordinator notification for broadcast
type notificationMessage struct {
	Type    string             `json:"type"`
	Payload relay.Notification `json:"payload"`
}
