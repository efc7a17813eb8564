package rabbitmq

import (
	"context"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/glimte/svcbus-go/messaging"
)

// amqpChannel is the subset of *amqp.Channel used by sessions
type amqpChannel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// route is where a producer publishes
type route struct {
	exchange   string
	routingKey string
	persistent bool
}

// declareProducer declares what a producer to dest needs
func declareProducer(ch amqpChannel, dest messaging.Destination) (route, error) {
	if dest.Kind == messaging.Queue {
		if err := declareQueue(ch, dest.Name); err != nil {
			return route{}, err
		}
		return route{exchange: "", routingKey: dest.Name, persistent: true}, nil
	}

	if err := declareFanout(ch, dest.Name); err != nil {
		return route{}, err
	}
	return route{exchange: dest.Name}, nil
}

// declareConsumer declares what a consumer of dest needs and returns the
// queue to consume from. Topic consumers get a private queue bound to the
// fanout exchange.
func declareConsumer(ch amqpChannel, dest messaging.Destination) (string, error) {
	if dest.Kind == messaging.Queue {
		return dest.Name, declareQueue(ch, dest.Name)
	}

	if err := declareFanout(ch, dest.Name); err != nil {
		return "", err
	}

	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return "", &TopologyError{Component: "queue", Name: "subscriber of " + dest.Name, Op: "declare", Err: err, Timestamp: time.Now()}
	}
	if err := ch.QueueBind(q.Name, "", dest.Name, false, nil); err != nil {
		return "", &TopologyError{Component: "binding", Name: q.Name + "->" + dest.Name, Op: "bind", Err: err, Timestamp: time.Now()}
	}
	return q.Name, nil
}

func declareQueue(ch amqpChannel, name string) error {
	if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
		return &TopologyError{Component: "queue", Name: name, Op: "declare", Err: err, Timestamp: time.Now()}
	}
	return nil
}

func declareFanout(ch amqpChannel, name string) error {
	if err := ch.ExchangeDeclare(name, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		return &TopologyError{Component: "exchange", Name: name, Op: "declare", Err: err, Timestamp: time.Now()}
	}
	return nil
}
