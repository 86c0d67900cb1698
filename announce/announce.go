// Package announce publishes the program identity to an MQTT broker so fleet
// tooling can see which build each controller runs.
package announce

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net"
	"os"
	"time"

	"github.com/bryscus/mr-mister/version"

	mqtt "github.com/soypat/natiu-mqtt"
)

const (
	defaultTimeout = 10 * time.Second
	mqttBufSize    = 512
	connectPoll    = 100 * time.Millisecond
)

// ErrConnectTimeout is returned when the broker does not acknowledge CONNECT in time.
var ErrConnectTimeout = errors.New("mqtt connect timeout")

// Retained QoS0 so late subscribers still see the last identity.
var pubFlags, _ = mqtt.NewPublishFlags(mqtt.QoS0, false, true)

// DialFunc opens the transport to the broker.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// Options configures a Publisher.
type Options struct {
	Broker   string // host:port
	ClientID string
	Topic    string        // defaults to Topic("mr-mister", ClientID)
	Timeout  time.Duration // whole session; defaults to 10s
	Dial     DialFunc      // defaults to net.Dialer.DialContext
}

// Publisher sends version announcements.
type Publisher struct {
	opts   Options
	logger *slog.Logger
}

// Topic returns the announcement topic for a client.
func Topic(prefix, clientID string) string {
	return prefix + "/" + clientID + "/version"
}

// Payload encodes info for the wire.
func Payload(info version.Info) ([]byte, error) {
	return json.Marshal(info)
}

// NewPublisher fills in defaults. A nil logger discards output.
func NewPublisher(opts Options, logger *slog.Logger) (*Publisher, error) {
	if opts.Broker == "" {
		return nil, errors.New("announce: broker address required")
	}
	if opts.ClientID == "" {
		return nil, errors.New("announce: client id required")
	}
	if opts.Topic == "" {
		opts.Topic = Topic("mr-mister", opts.ClientID)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Dial == nil {
		var d net.Dialer
		opts.Dial = d.DialContext
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Publisher{opts: opts, logger: logger}, nil
}

// Topic returns the topic this publisher writes to.
func (p *Publisher) Topic() string { return p.opts.Topic }

// Publish connects, publishes info and disconnects.
func (p *Publisher) Publish(ctx context.Context, info version.Info) error {
	payload, err := Payload(info)
	if err != nil {
		return fmt.Errorf("announce: encode: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.opts.Timeout)
	defer cancel()
	deadline, _ := ctx.Deadline()

	p.logger.Info("announce:dialing",
		slog.String("broker", p.opts.Broker),
		slog.String("clientid", p.opts.ClientID),
	)
	conn, err := p.opts.Dial(ctx, "tcp", p.opts.Broker)
	if err != nil {
		p.logger.Error("announce:dial-failed", slog.String("err", err.Error()))
		return fmt.Errorf("announce: dial: %w", err)
	}
	defer conn.Close()
	conn.SetDeadline(deadline)

	// Unblock pending reads and writes if the caller cancels early.
	stop := context.AfterFunc(ctx, func() { conn.SetDeadline(time.Now()) })
	defer stop()

	var userBuf [mqttBufSize]byte
	client := mqtt.NewClient(mqtt.ClientConfig{
		Decoder: mqtt.DecoderNoAlloc{UserBuffer: userBuf[:]},
		OnPub: func(mqtt.Header, mqtt.VariablesPublish, io.Reader) error {
			return nil
		},
	})

	var varconn mqtt.VariablesConnect
	varconn.SetDefaultMQTT([]byte(p.opts.ClientID))

	p.logger.Debug("announce:connecting")
	if err := client.StartConnect(conn, &varconn); err != nil {
		p.logger.Error("announce:start-connect-failed", slog.String("err", err.Error()))
		return fmt.Errorf("announce: connect: %w", err)
	}
	for !client.IsConnected() {
		if err := ctx.Err(); err != nil {
			return p.connectAborted(err)
		}
		err := client.HandleNext()
		if err == nil {
			continue
		}
		if !isTimeout(err) {
			// A refused CONNACK surfaces here as an mqtt.ConnectReturnCode.
			p.logger.Error("announce:connect-failed", slog.String("err", err.Error()))
			return fmt.Errorf("announce: connect: %w", err)
		}
		select {
		case <-ctx.Done():
			return p.connectAborted(ctx.Err())
		case <-time.After(connectPoll):
		}
	}
	p.logger.Debug("announce:connected")

	// QoS0 never puts the identifier on the wire but the client still validates it.
	pubVar := mqtt.VariablesPublish{
		TopicName:        []byte(p.opts.Topic),
		PacketIdentifier: uint16(rand.N(0xffff)) + 1,
	}
	if err := client.PublishPayload(pubFlags, pubVar, payload); err != nil {
		p.logger.Error("announce:publish-failed", slog.String("err", err.Error()))
		return fmt.Errorf("announce: publish: %w", err)
	}
	p.logger.Info("announce:published",
		slog.String("topic", p.opts.Topic),
		slog.String("version", info.Version),
		slog.Int("bytes", len(payload)),
	)

	if err := client.Disconnect(errors.New("announce complete")); err != nil {
		p.logger.Warn("announce:disconnect", slog.String("err", err.Error()))
	}
	return nil
}

func (p *Publisher) connectAborted(ctxErr error) error {
	if errors.Is(ctxErr, context.DeadlineExceeded) {
		p.logger.Error("announce:connect-timeout")
		return ErrConnectTimeout
	}
	p.logger.Warn("announce:connect-canceled")
	return fmt.Errorf("announce: connect: %w", ctxErr)
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.Is(err, os.ErrDeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout())
}
