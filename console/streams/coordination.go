// Package streams owns the console's live connections: the per-operator
// coordination feed over AMQP and the token price ticker over a websocket.
// Both are process-wide singletons with explicit lifecycle; teardown always
// unsubscribes before disconnecting so nothing dangles across a switch.
package streams

import (
	"fmt"
	"net"
	"strconv"
	"sync"

	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"
	"github.com/streadway/amqp"
	"github.com/swagftw/gi"

	"operator-console/goutils/settings"
)

const dialMaxRetries = 3

// CoordinationMessage is one push message from an operator's coordination
// topic, delivered in arrival order with no further guarantees.
type CoordinationMessage struct {
	OperatorID string
	Body       []byte
}

type CoordinationFeed struct {
	settingsObj *settings.SettingsObj

	mu         sync.Mutex
	conn       *amqp.Connection
	channel    *amqp.Channel
	queueName  string
	operatorID string
	done       chan struct{}
}

func InitCoordinationFeed(settingsObj *settings.SettingsObj) *CoordinationFeed {
	feed := &CoordinationFeed{settingsObj: settingsObj}

	if err := gi.Inject(feed); err != nil {
		log.WithError(err).Fatal("failed to inject coordination feed")
	}

	return feed
}

func (f *CoordinationFeed) dial() (*amqp.Connection, error) {
	streams := f.settingsObj.Streams

	url := fmt.Sprintf("amqp://%s:%s@%s/",
		streams.User,
		streams.Password,
		net.JoinHostPort(streams.Host, strconv.Itoa(streams.Port)))

	var conn *amqp.Connection

	err := backoff.Retry(func() error {
		var err error

		conn, err = amqp.Dial(url)
		if err != nil {
			log.WithError(err).Error("failed to dial coordination transport, retrying")

			return err
		}

		return nil
	}, backoff.WithMaxRetries(backoff.NewExponentialBackOff(), dialMaxRetries))

	if err != nil {
		return nil, err
	}

	return conn, nil
}

// Subscribe attaches to one operator's coordination topic. Any previous
// subscription is fully torn down first, at most one is active at a time.
func (f *CoordinationFeed) Subscribe(operatorID string, onMessage func(msg CoordinationMessage)) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.teardownLocked(); err != nil {
		return err
	}

	conn, err := f.dial()
	if err != nil {
		return err
	}

	channel, err := conn.Channel()
	if err != nil {
		log.WithError(err).Error("failed to open coordination channel")
		_ = conn.Close()

		return err
	}

	exchange := f.settingsObj.Streams.CoordinationExchange

	if err := channel.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		log.WithError(err).Error("failed to declare coordination exchange")
		_ = channel.Close()
		_ = conn.Close()

		return err
	}

	// exclusive auto-delete queue, the broker drops it on disconnect
	queue, err := channel.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		log.WithError(err).Error("failed to declare coordination queue")
		_ = channel.Close()
		_ = conn.Close()

		return err
	}

	routingKey := "operator." + operatorID

	if err := channel.QueueBind(queue.Name, routingKey, exchange, false, nil); err != nil {
		log.WithError(err).Error("failed to bind coordination queue")
		_ = channel.Close()
		_ = conn.Close()

		return err
	}

	deliveries, err := channel.Consume(queue.Name, "", true, true, false, false, nil)
	if err != nil {
		log.WithError(err).Error("failed to start coordination consumer")
		_ = channel.Close()
		_ = conn.Close()

		return err
	}

	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-done:
				return
			case delivery, ok := <-deliveries:
				if !ok {
					return
				}

				onMessage(CoordinationMessage{OperatorID: operatorID, Body: delivery.Body})
			}
		}
	}()

	f.conn = conn
	f.channel = channel
	f.queueName = queue.Name
	f.operatorID = operatorID
	f.done = done

	log.WithField("operator", operatorID).Info("coordination feed subscribed")

	return nil
}

// Teardown unsubscribes and disconnects, in that order. Safe to call when
// nothing is subscribed.
func (f *CoordinationFeed) Teardown() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.teardownLocked()
}

func (f *CoordinationFeed) teardownLocked() error {
	if f.conn == nil {
		return nil
	}

	close(f.done)

	if err := f.channel.Cancel("", false); err != nil && err != amqp.ErrClosed {
		log.WithError(err).Error("failed to cancel coordination consumer")
	}

	if err := f.channel.Close(); err != nil && err != amqp.ErrClosed {
		log.WithError(err).Error("failed to close coordination channel")
	}

	if err := f.conn.Close(); err != nil && err != amqp.ErrClosed {
		log.WithError(err).Error("failed to close coordination connection")
	}

	log.WithField("operator", f.operatorID).Info("coordination feed torn down")

	f.conn = nil
	f.channel = nil
	f.queueName = ""
	f.operatorID = ""
	f.done = nil

	return nil
}

// SubscribedOperator returns the operator currently attached, empty when
// idle.
func (f *CoordinationFeed) SubscribedOperator() string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.operatorID
}
