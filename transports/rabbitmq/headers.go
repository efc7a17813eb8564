package rabbitmq

import (
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/glimte/svcbus-go/messaging"
)

const (
	contentTypeText   = "text/plain"
	contentTypeBinary = "application/octet-stream"
)

// headersFrom converts message properties to an AMQP header table, keeping
// each value's type
func headersFrom(props messaging.Properties) amqp.Table {
	names := props.Names()
	table := make(amqp.Table, len(names))
	for _, name := range names {
		v, _ := props.Get(name)
		switch v.Kind() {
		case messaging.KindInt:
			n, _ := v.Int()
			table[name] = n
		case messaging.KindLong:
			n, _ := v.Long()
			table[name] = n
		case messaging.KindDouble:
			f, _ := v.Double()
			table[name] = f
		case messaging.KindBool:
			b, _ := v.Bool()
			table[name] = b
		default:
			table[name] = v.String()
		}
	}
	return table
}

// applyHeaders copies an AMQP header table onto message properties. Values
// of types without a property counterpart are converted by AnyProperty.
func applyHeaders(table amqp.Table, props messaging.Properties) {
	for name, value := range table {
		messaging.AnyProperty(value).ApplyTo(props, name)
	}
}

// publishingFrom builds the AMQP publishing for a wire message
func publishingFrom(msg messaging.WireMessage, persistent bool) (amqp.Publishing, error) {
	publishing := amqp.Publishing{
		Headers:      headersFrom(msg.Properties()),
		DeliveryMode: amqp.Transient,
	}
	if persistent {
		publishing.DeliveryMode = amqp.Persistent
	}
	if typeName, ok := messaging.StringProperty(msg.Properties(), messaging.PropertyTypeName); ok {
		publishing.Type = typeName
	}

	switch m := msg.(type) {
	case messaging.TextMessage:
		publishing.ContentType = contentTypeText
		publishing.Body = []byte(m.Text())
	case messaging.BytesMessage:
		publishing.ContentType = contentTypeBinary
		publishing.Body = m.Bytes()
	default:
		return amqp.Publishing{}, errUnsupportedMessage
	}
	return publishing, nil
}

// wireFrom converts a delivery into a wire message. Text content types
// become text messages, everything else a bytes message.
func wireFrom(d amqp.Delivery) messaging.WireMessage {
	var wire messaging.WireMessage
	if isText(d.ContentType) {
		wire = &textDelivery{TextMessage: messaging.NewTextMessage(string(d.Body)), delivery: d}
	} else {
		wire = &bytesDelivery{BytesMessage: messaging.NewBytesMessage(d.Body), delivery: d}
	}

	applyHeaders(d.Headers, wire.Properties())
	if _, ok := wire.Properties().Get(messaging.PropertyTypeName); !ok && d.Type != "" {
		wire.Properties().SetString(messaging.PropertyTypeName, d.Type)
	}
	return wire
}

func isText(contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	return strings.HasPrefix(ct, "text/") || strings.HasPrefix(ct, "application/json")
}

// textDelivery and bytesDelivery are received messages that can be acknowledged

type textDelivery struct {
	messaging.TextMessage
	delivery amqp.Delivery
}

func (d *textDelivery) Acknowledge() error { return d.delivery.Ack(false) }

type bytesDelivery struct {
	messaging.BytesMessage
	delivery amqp.Delivery
}

func (d *bytesDelivery) Acknowledge() error { return d.delivery.Ack(false) }
