// feed/mqtt.go
// Copyright(c) 2025 harborline contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package feed

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/harborline/harborline/log"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTStream receives JSON position reports published to an MQTT topic.
type MQTTStream struct {
	client mqtt.Client
	topic  string
	ch     chan []PositionReport
	lg     *log.Logger

	mu     sync.Mutex
	closed chan struct{}
}

func newMQTTStream(topic string, lg *log.Logger) *MQTTStream {
	return &MQTTStream{
		topic:  topic,
		ch:     make(chan []PositionReport, 64),
		closed: make(chan struct{}),
		lg:     lg,
	}
}

// DialMQTT returns a Dialer that connects to broker (e.g.
// "tcp://localhost:1883") and subscribes to topic.
func DialMQTT(broker, topic string, lg *log.Logger) Dialer {
	return func(ctx context.Context) (Stream, error) {
		s := newMQTTStream(topic, lg)

		opts := mqtt.NewClientOptions()
		opts.AddBroker(broker)
		opts.SetClientID(fmt.Sprintf("harborline-%d", time.Now().UnixNano()))
		opts.SetKeepAlive(60 * time.Second)
		opts.SetPingTimeout(10 * time.Second)
		opts.SetConnectTimeout(10 * time.Second)
		opts.SetAutoReconnect(true)
		opts.SetMaxReconnectInterval(30 * time.Second)
		opts.OnConnect = s.onConnect
		opts.OnConnectionLost = func(_ mqtt.Client, err error) {
			lg.Warn("mqtt connection lost; will auto-reconnect", slog.Any("error", err))
		}

		s.client = mqtt.NewClient(opts)
		tok := s.client.Connect()
		select {
		case <-tok.Done():
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if err := tok.Error(); err != nil {
			return nil, fmt.Errorf("%s: %w", broker, err)
		}
		return s, nil
	}
}

// onConnect (re)subscribes; it runs after every automatic reconnect too.
func (s *MQTTStream) onConnect(c mqtt.Client) {
	tok := c.Subscribe(s.topic, 0, s.onMessage)
	if !tok.WaitTimeout(5 * time.Second) {
		s.lg.Warn("mqtt subscribe timed out", slog.String("topic", s.topic))
		return
	}
	if err := tok.Error(); err != nil {
		s.lg.Warn("mqtt subscribe failed", slog.String("topic", s.topic), slog.Any("error", err))
		return
	}
	s.lg.Info("mqtt subscribed", slog.String("topic", s.topic))
}

func (s *MQTTStream) onMessage(_ mqtt.Client, msg mqtt.Message) {
	reports, err := DecodeFrame(EncodingJSON, msg.Payload())
	if err != nil {
		s.lg.Debug("bad mqtt payload", slog.String("topic", msg.Topic()), slog.Any("error", err))
		return
	}

	select {
	case s.ch <- reports:
	case <-s.closed:
	default:
		// Keep up with the latest data rather than blocking paho's
		// delivery goroutine.
		s.lg.Debug("mqtt queue full; dropping reports", slog.Int("count", len(reports)))
	}
}

func (s *MQTTStream) Next(ctx context.Context) ([]PositionReport, error) {
	select {
	case r := <-s.ch:
		return r, nil
	case <-s.closed:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *MQTTStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-s.closed:
		return nil
	default:
	}
	close(s.closed)
	if s.client != nil && s.client.IsConnected() {
		s.client.Disconnect(250)
	}
	return nil
}
