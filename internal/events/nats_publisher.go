package events

import (
	"context"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

type NATSSink struct {
	nc *nats.Conn
}

func NewNATSSink(url string, logger *zap.Logger) (*NATSSink, error) {
	nc, err := nats.Connect(url,
		nats.Name("graphql-chat"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, err
	}
	return &NATSSink{nc: nc}, nil
}

func (n *NATSSink) Name() string { return "nats" }

func (n *NATSSink) Send(ctx context.Context, subject string, key, payload []byte) error {
	msg := nats.NewMsg(subject)
	msg.Header.Set("Chat-Key", string(key))
	msg.Data = payload
	if err := n.nc.PublishMsg(msg); err != nil {
		return err
	}
	return n.nc.FlushWithContext(ctx)
}

func (n *NATSSink) Close() error {
	return n.nc.Drain()
}
