package config

import (
	_ "embed"
	"net/netip"
	"strings"
	"time"
)

// Defaults for operational configuration.
// These can be overridden by placing a non-empty value in the corresponding .text file.
const (
	DefaultClientID        = "mr-mister"
	DefaultTopicPrefix     = "mr-mister"
	DefaultAnnounceTimeout = 10 * time.Second
)

// Environment-specific configuration (must be provided via embedded text files).
var (
	//go:embed broker.text
	brokerAddr string
)

// Optional overrides for defaults (empty file = use default).
var (
	//go:embed clientid.text
	clientIDOverride string

	//go:embed topic_prefix.text
	topicPrefixOverride string

	//go:embed announce_timeout.text
	announceTimeoutOverride string
)

// BrokerAddr returns the MQTT broker address from broker.text file.
// Format: "host:port" e.g., "192.168.1.100:1883"
func BrokerAddr() (netip.AddrPort, error) {
	return netip.ParseAddrPort(strings.TrimSpace(brokerAddr))
}

// ClientID returns the MQTT client ID from clientid.text file.
func ClientID() string {
	return orDefault(clientIDOverride, DefaultClientID)
}

// TopicPrefix returns the first topic level used for announcements.
func TopicPrefix() string {
	return orDefault(topicPrefixOverride, DefaultTopicPrefix)
}

// AnnounceTimeout bounds a whole announce session.
// Returns DefaultAnnounceTimeout unless overridden via announce_timeout.text.
func AnnounceTimeout() time.Duration {
	return parseDurationOr(announceTimeoutOverride, DefaultAnnounceTimeout)
}

func orDefault(override, def string) string {
	if v := strings.TrimSpace(override); v != "" {
		return v
	}
	return def
}

func parseDurationOr(override string, def time.Duration) time.Duration {
	if v := strings.TrimSpace(override); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return def
}
