package mq

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/yeisme/propvault/pkg/configs"
)

// goChannelFactory 创建进程内 pub/sub，publisher 与 subscriber 为同一实例.
func goChannelFactory(
	_ context.Context,
	cfg *configs.MQConfig,
	logger watermill.LoggerAdapter,
) (message.Publisher, message.Subscriber, error) {
	ch := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: cfg.GoChannel.BufferSize,
		Persistent:          cfg.GoChannel.Persistent,
	}, logger)

	return ch, ch, nil
}

func init() {
	RegisterFactory(configs.MQTypeGoChannel, goChannelFactory)
}
