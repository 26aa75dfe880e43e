package main

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/nerrad567/remo-relay/internal/infrastructure/logging"
	"github.com/nerrad567/remo-relay/internal/infrastructure/mqtt"
	irsignal "github.com/nerrad567/remo-relay/internal/signal"
)

// sendCommandTimeout bounds a send triggered over MQTT.
const sendCommandTimeout = 15 * time.Second

// mqttClient is the part of *mqtt.Client the bridge uses.
type mqttClient interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
	PublishJSON(topic string, v any) error
	QoS() byte
}

// mqttBridge turns remorelay/command/send/{name} messages into sends and
// publishes each send outcome to remorelay/event/sent/{name}.
type mqttBridge struct {
	ctx     context.Context
	client  mqttClient
	signals *irsignal.Service
	log     *logging.Logger

	stopped atomic.Bool
}

func newMQTTBridge(ctx context.Context, client mqttClient, signals *irsignal.Service, log *logging.Logger) *mqttBridge {
	return &mqttBridge{
		ctx:     ctx,
		client:  client,
		signals: signals,
		log:     log,
	}
}

func (b *mqttBridge) start() error {
	if err := b.client.Subscribe(mqtt.Topics{}.AllSendCommands(), b.client.QoS(), b.handleSendCommand); err != nil {
		return fmt.Errorf("subscribing to send commands: %w", err)
	}
	b.signals.AddSendListener(b)
	return nil
}

// stop drops the command subscription and silences further send events.
// Sends already in flight finish normally.
func (b *mqttBridge) stop() {
	if !b.stopped.CompareAndSwap(false, true) {
		return
	}
	if err := b.client.Unsubscribe(mqtt.Topics{}.AllSendCommands()); err != nil {
		b.log.Warn("unsubscribing from send commands failed", "error", err)
	}
}

// handleSendCommand sends the signal named by the topic. The payload is
// ignored. Errors are logged by the MQTT client.
func (b *mqttBridge) handleSendCommand(topic string, _ []byte) error {
	name, ok := mqtt.SignalNameFromTopic(topic)
	if !ok {
		return fmt.Errorf("no signal name in topic %q", topic)
	}

	ctx, cancel := context.WithTimeout(b.ctx, sendCommandTimeout)
	defer cancel()

	if err := b.signals.Send(ctx, name); err != nil {
		return fmt.Errorf("mqtt send %q: %w", name, err)
	}
	return nil
}

// SignalSent publishes the outcome asynchronously so the sender is never
// held up by the broker.
func (b *mqttBridge) SignalSent(ev irsignal.SendEvent) {
	if b.stopped.Load() {
		return
	}
	topic := mqtt.Topics{}.SentEvent(ev.Name)
	summary := ev.Summary()
	go func() {
		if err := b.client.PublishJSON(topic, summary); err != nil {
			b.log.Warn("publishing send event failed", "topic", topic, "error", err)
		}
	}()
}
