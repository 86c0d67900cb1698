package config

import (
	"testing"
	"time"
)

func TestEmbeddedDefaults(t *testing.T) {
	addr, err := BrokerAddr()
	if err != nil {
		t.Fatalf("BrokerAddr: %v", err)
	}
	if addr.Port() != 1883 {
		t.Errorf("broker port = %d, want 1883", addr.Port())
	}
	if got := ClientID(); got != DefaultClientID {
		t.Errorf("ClientID() = %q, want %q", got, DefaultClientID)
	}
	if got := TopicPrefix(); got != DefaultTopicPrefix {
		t.Errorf("TopicPrefix() = %q, want %q", got, DefaultTopicPrefix)
	}
	if got := AnnounceTimeout(); got != DefaultAnnounceTimeout {
		t.Errorf("AnnounceTimeout() = %v, want %v", got, DefaultAnnounceTimeout)
	}
}

func TestOrDefault(t *testing.T) {
	tests := []struct {
		override string
		want     string
	}{
		{"", "def"},
		{"  \n", "def"},
		{"garden-1\n", "garden-1"},
		{"  yard ", "yard"},
	}
	for _, tt := range tests {
		if got := orDefault(tt.override, "def"); got != tt.want {
			t.Errorf("orDefault(%q) = %q, want %q", tt.override, got, tt.want)
		}
	}
}

func TestParseDurationOr(t *testing.T) {
	const def = 7 * time.Second
	tests := []struct {
		override string
		want     time.Duration
	}{
		{"", def},
		{"30s\n", 30 * time.Second},
		{"1m30s", 90 * time.Second},
		{"soon", def},
		{"-5s", def},
		{"0s", def},
	}
	for _, tt := range tests {
		if got := parseDurationOr(tt.override, def); got != tt.want {
			t.Errorf("parseDurationOr(%q) = %v, want %v", tt.override, got, tt.want)
		}
	}
}
