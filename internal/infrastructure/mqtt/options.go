package mqtt

import (
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// Connection constants.
const (
	// defaultKeepAlive is the keepalive interval for the connection.
	defaultKeepAlive = 2 * time.Second

	// defaultConnectTimeout bounds the TCP/CONNECT handshake inside paho.
	defaultConnectTimeout = 10 * time.Second

	// defaultOperationTimeout is the maximum time to wait for a publish or
	// subscribe acknowledgement.
	defaultOperationTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is the time to wait for pending operations on disconnect.
	defaultDisconnectQuiesce = 250 // milliseconds

	// defaultSettleDelay gives a new connection's loop time to process the CONNACK.
	defaultSettleDelay = 100 * time.Millisecond

	// eventBuffer is the number of inbound events queued ahead of the poller.
	eventBuffer = 10
)

// buildClientOptions creates paho MQTT options for one connection.
//
// This configures:
//   - Broker URL from the parsed address
//   - Client ID (DefaultClientID when empty)
//   - Authentication credentials (if provided)
//   - Clean session mode and a 2s keepalive
//   - No auto-reconnect and no connect retry: a lost connection is final
func buildClientOptions(addr Address, creds Credentials, clientID string) *pahomqtt.ClientOptions {
	if clientID == "" {
		clientID = DefaultClientID
	}

	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(addr.BrokerURL())
	opts.SetClientID(clientID)

	if creds.Username != "" {
		opts.SetUsername(creds.Username)
		opts.SetPassword(creds.Password)
	}

	opts.SetCleanSession(true)
	opts.SetKeepAlive(defaultKeepAlive)
	opts.SetConnectTimeout(defaultConnectTimeout)

	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)

	// Deliver inbound messages in arrival order through the event loop.
	opts.SetOrderMatters(true)

	return opts
}
