// Package consumer 订阅 Kafka 报价主题并写入缓存
package consumer

import (
	"context"
	"errors"
	"time"

	"github.com/wyfcoding/pricecache/internal/pricecache/application"
	"github.com/wyfcoding/pricecache/internal/pricecache/domain"
	"github.com/wyfcoding/pricecache/pkg/logger"
	"github.com/wyfcoding/pricecache/pkg/metrics"
	"github.com/wyfcoding/pricecache/pkg/mq"
	"github.com/wyfcoding/pricecache/pkg/utils"
)

// MessageSource 消息来源，由 mq.KafkaConsumer 实现
type MessageSource interface {
	Fetch(ctx context.Context) (*mq.Message, error)
	Commit(ctx context.Context, messages ...*mq.Message) error
}

// DeadLetterSink 死信写入，由 mq.DeadLetterQueue 实现
type DeadLetterSink interface {
	Send(ctx context.Context, original *mq.Message, reason string, err error) error
}

// 死信原因
const (
	ReasonInvalidJSON  = "invalid_json"
	ReasonInvalidPrice = "invalid_price"
)

// PriceHandler 报价订阅处理器
type PriceHandler struct {
	source       MessageSource
	dlq          DeadLetterSink
	priceService *application.PriceApplicationService
	metrics      *metrics.Metrics

	retryAttempts int
	retryInitial  time.Duration
	retryMax      time.Duration
}

// NewPriceHandler 创建报价订阅处理器
// dlq 为 nil 时非法消息只记录日志后提交
func NewPriceHandler(source MessageSource, dlq DeadLetterSink, svc *application.PriceApplicationService, m *metrics.Metrics) *PriceHandler {
	return &PriceHandler{
		source:        source,
		dlq:           dlq,
		priceService:  svc,
		metrics:       m,
		retryAttempts: 3,
		retryInitial:  200 * time.Millisecond,
		retryMax:      5 * time.Second,
	}
}

// Run 循环消费直到 ctx 取消
// 拉取失败按指数退避重试；非法消息进入死信并提交，不阻塞后续消息
func (h *PriceHandler) Run(ctx context.Context) error {
	logger.Info(ctx, "Price feed consumer started")
	backoff := utils.Backoff{Initial: h.retryInitial, Max: h.retryMax}

	for {
		msg, err := h.source.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info(ctx, "Price feed consumer stopped")
				return nil
			}
			wait := backoff.Next()
			logger.Warn(ctx, "Failed to fetch message", "error", err, "retry_in", wait.String())
			if utils.Sleep(ctx, wait) != nil {
				logger.Info(ctx, "Price feed consumer stopped")
				return nil
			}
			continue
		}
		backoff.Reset()

		h.Handle(ctx, msg)

		err = utils.RetryWithBackoff(ctx, h.retryAttempts, h.retryInitial, h.retryMax, func() error {
			return h.source.Commit(ctx, msg)
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Error(ctx, "Failed to commit message",
				"topic", msg.Topic,
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
		}
	}
}

// Handle 处理单条消息；任何结果下消息都可以提交
func (h *PriceHandler) Handle(ctx context.Context, msg *mq.Message) {
	var cmd application.PublishPriceCommand
	if err := msg.UnmarshalPayload(&cmd); err != nil {
		h.deadLetter(ctx, msg, ReasonInvalidJSON, err)
		return
	}

	err := h.priceService.PublishPrice(ctx, application.SourceKafka, cmd)
	switch {
	case err == nil:
	case domain.IsValidationError(err):
		h.deadLetter(ctx, msg, ReasonInvalidPrice, err)
	default:
		logger.Error(ctx, "Failed to publish price", "offset", msg.Offset, "error", err)
	}
}

func (h *PriceHandler) deadLetter(ctx context.Context, msg *mq.Message, reason string, cause error) {
	logger.Warn(ctx, "Message sent to dead letter queue",
		"topic", msg.Topic,
		"partition", msg.Partition,
		"offset", msg.Offset,
		"reason", reason,
		"error", cause,
	)
	if h.dlq == nil {
		return
	}

	err := utils.RetryWithBackoff(ctx, h.retryAttempts, h.retryInitial, h.retryMax, func() error {
		return h.dlq.Send(ctx, msg, reason, cause)
	})
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			logger.Error(ctx, "Failed to write dead letter", "offset", msg.Offset, "error", err)
		}
		return
	}
	if h.metrics != nil {
		h.metrics.DeadLetters.Inc()
	}
}
