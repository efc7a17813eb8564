package nats

import (
	"errors"
	"strconv"
	"strings"

	"github.com/nats-io/nats.go"

	"github.com/glimte/svcbus-go/messaging"
)

// HeaderPayload records whether the body is text or bytes
const HeaderPayload = "Svcbus-Payload"

const (
	payloadText  = "text"
	payloadBytes = "bytes"
)

var errUnsupportedMessage = errors.New("nats: wire message is neither text nor bytes")

// encodeValue renders a property as "<kind>:<value>" so that its type
// survives the string-only NATS headers
func encodeValue(v messaging.PropertyValue) string {
	switch v.Kind() {
	case messaging.KindInt:
		return "i:" + v.String()
	case messaging.KindLong:
		return "l:" + v.String()
	case messaging.KindDouble:
		return "d:" + v.String()
	case messaging.KindBool:
		return "b:" + v.String()
	default:
		return "s:" + v.String()
	}
}

// decodeValue reverses encodeValue. Values without a recognised prefix, such
// as headers set by other publishers, are kept as plain strings.
func decodeValue(raw string) messaging.PropertyValue {
	kind, value, found := strings.Cut(raw, ":")
	if !found || len(kind) != 1 {
		return messaging.String(raw)
	}

	switch kind {
	case "i":
		if n, err := strconv.ParseInt(value, 10, 32); err == nil {
			return messaging.Int(int32(n))
		}
	case "l":
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			return messaging.Long(n)
		}
	case "d":
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return messaging.Double(f)
		}
	case "b":
		if b, err := strconv.ParseBool(value); err == nil {
			return messaging.Bool(b)
		}
	case "s":
		return messaging.String(value)
	}
	return messaging.String(raw)
}

// msgFrom builds the NATS message for a wire message
func msgFrom(subject string, wire messaging.WireMessage) (*nats.Msg, error) {
	msg := nats.NewMsg(subject)

	props := wire.Properties()
	for _, name := range props.Names() {
		v, _ := props.Get(name)
		msg.Header[name] = []string{encodeValue(v)}
	}

	switch m := wire.(type) {
	case messaging.TextMessage:
		msg.Header[HeaderPayload] = []string{payloadText}
		msg.Data = []byte(m.Text())
	case messaging.BytesMessage:
		msg.Header[HeaderPayload] = []string{payloadBytes}
		msg.Data = m.Bytes()
	default:
		return nil, errUnsupportedMessage
	}
	return msg, nil
}

// wireFrom converts a received NATS message. Messages without a payload
// header are treated as bytes.
func wireFrom(msg *nats.Msg) messaging.WireMessage {
	var wire messaging.WireMessage
	if msg.Header != nil && msg.Header.Get(HeaderPayload) == payloadText {
		wire = messaging.NewTextMessage(string(msg.Data))
	} else {
		wire = messaging.NewBytesMessage(msg.Data)
	}

	for name, values := range msg.Header {
		if name == HeaderPayload || len(values) == 0 {
			continue
		}
		decodeValue(values[0]).ApplyTo(wire.Properties(), name)
	}
	return wire
}
