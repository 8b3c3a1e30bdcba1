package pushbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
	pubnub "github.com/pubnub/go/v7"
	kafka "github.com/segmentio/kafka-go"

	"github.com/fatflowers/gachapon/internal/app/service/relay"
)

const broadcastChannel = "broadcast"

// UserChannel is the PubNub channel of one user. Broadcasts go to "broadcast".
func UserChannel(userID string) string {
	if userID == "" {
		return broadcastChannel
	}
	return "user-" + userID
}

type pubnubPublishFunc func(ctx context.Context, channel string, msg any) error

type PubNubSink struct {
	publish pubnubPublishFunc
	close   func()
}

func NewPubNubSink(pn *pubnub.PubNub) *PubNubSink {
	return &PubNubSink{
		publish: func(ctx context.Context, channel string, msg any) error {
			_, status, err := pn.PublishWithContext(ctx).Channel(channel).Message(msg).Execute()
			if err != nil {
				return err
			}
			if status.Error != nil {
				return status.Error
			}
			return nil
		},
		close: pn.Destroy,
	}
}

func (s *PubNubSink) Name() string { return "pubnub" }

func (s *PubNubSink) Send(ctx context.Context, env relay.Envelope, payload []byte) error {
	return s.publish(ctx, UserChannel(env.UserID), json.RawMessage(payload))
}

func (s *PubNubSink) Close() error {
	if s.close != nil {
		s.close()
	}
	return nil
}

type natsPublisher interface {
	Publish(subj string, data []byte) error
}

type NATSSink struct {
	conn   natsPublisher
	prefix string
	drain  func() error
}

func NewNATSSink(nc *nats.Conn, prefix string) *NATSSink {
	return &NATSSink{conn: nc, prefix: prefix, drain: nc.Drain}
}

func (s *NATSSink) Name() string { return "nats" }

// Subject is <prefix>.<domain>.<type> with the type lowercased.
func (s *NATSSink) Subject(env relay.Envelope) string {
	return fmt.Sprintf("%s.%s.%s", s.prefix, env.Domain(), strings.ToLower(string(env.Type())))
}

func (s *NATSSink) Send(ctx context.Context, env relay.Envelope, payload []byte) error {
	return s.conn.Publish(s.Subject(env), payload)
}

func (s *NATSSink) Close() error {
	if s.drain == nil {
		return nil
	}
	return s.drain()
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaSink struct {
	w messageWriter
}

func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	return &KafkaSink{w: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}}
}

func (s *KafkaSink) Name() string { return "kafka" }

// Send keys messages by user so one user's envelopes stay ordered.
func (s *KafkaSink) Send(ctx context.Context, env relay.Envelope, payload []byte) error {
	return s.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(env.UserID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(env.Type())},
			{Key: "domain", Value: []byte(env.Domain())},
		},
	})
}

func (s *KafkaSink) Close() error { return s.w.Close() }
