// Package kafka 提供了与 Kafka 消息队列交互的功能。
package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"vectorflow-go/internal/config"
	"vectorflow-go/pkg/log"
	"vectorflow-go/pkg/tasks"
)

// TaskDispatcher 定义了接收文档处理任务的一方。
// 消费者只负责投递，处理本身是异步的，投递后立即提交 offset。
type TaskDispatcher interface {
	Enqueue(documentID string, freshUpload bool) bool
}

// 消费者拉取失败后的重试延迟，指数递增到上限。
const (
	fetchRetryBase = time.Second
	fetchRetryMax  = 30 * time.Second
)

var producer *kafka.Writer

// InitProducer 初始化 Kafka 生产者。
func InitProducer(cfg config.KafkaConfig) {
	producer = &kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers),
		Topic:    cfg.Topic,
		Balancer: &kafka.LeastBytes{},
	}
	log.Info("Kafka 生产者初始化成功")
}

// ProduceDocumentTask 发送一个文档处理任务到 Kafka。
func ProduceDocumentTask(ctx context.Context, task tasks.DocumentProcessingTask) error {
	taskBytes, err := json.Marshal(task)
	if err != nil {
		return err
	}

	return producer.WriteMessages(ctx,
		kafka.Message{
			Key:   []byte(task.DocumentID),
			Value: taskBytes,
		},
	)
}

// CloseProducer 关闭 Kafka 生产者。
func CloseProducer() {
	if producer != nil {
		if err := producer.Close(); err != nil {
			log.Errorf("关闭 Kafka 生产者失败: %v", err)
		}
	}
}

// messageFetcher 是消费循环对 kafka.Reader 的最小依赖。
type messageFetcher interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// StartConsumer 启动一个 Kafka 消费者来分发文档处理任务。
// 调度器自身做去重与失败终态处理，所以消息在成功投递后即提交，
// 不依赖 Kafka 的重投递做业务重试。
func StartConsumer(ctx context.Context, cfg config.KafkaConfig, dispatcher TaskDispatcher) {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  []string{cfg.Brokers},
		Topic:    cfg.Topic,
		GroupID:  "vectorflow-go-consumer",
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})

	log.Infof("Kafka 消费者已启动，正在监听主题 '%s'", cfg.Topic)

	consumeLoop(ctx, r, dispatcher, fetchRetryBase, fetchRetryMax)

	if err := r.Close(); err != nil {
		log.Errorf("关闭 Kafka 消费者失败: %v", err)
	}
}

// consumeLoop 循环拉取消息并投递给调度器。
// 拉取失败时指数退避后继续，只有上下文结束才退出循环。
func consumeLoop(ctx context.Context, r messageFetcher, dispatcher TaskDispatcher, retryBase, retryMax time.Duration) {
	fetchDelay := retryBase
	for {
		m, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("Kafka 消费者收到退出信号")
				break
			}
			// broker 抖动不应杀死消费者，退避后继续拉取
			log.Errorf("从 Kafka 读取消息失败，%s 后重试: %v", fetchDelay, err)
			select {
			case <-ctx.Done():
			case <-time.After(fetchDelay):
			}
			fetchDelay *= 2
			if fetchDelay > retryMax {
				fetchDelay = retryMax
			}
			continue
		}
		fetchDelay = retryBase

		log.Infof("收到 Kafka 消息: offset %d", m.Offset)

		var task tasks.DocumentProcessingTask
		if err := json.Unmarshal(m.Value, &task); err != nil {
			log.Errorf("无法解析 Kafka 消息: %v, value: %s", err, string(m.Value))
			// 消息格式错误，直接提交，避免阻塞队列
			if err := r.CommitMessages(ctx, m); err != nil {
				log.Errorf("提交错误消息失败: %v", err)
			}
			continue
		}

		if task.DocumentID == "" {
			log.Errorf("Kafka 消息缺少 document_id, value: %s", string(m.Value))
			if err := r.CommitMessages(ctx, m); err != nil {
				log.Errorf("提交错误消息失败: %v", err)
			}
			continue
		}

		accepted := dispatcher.Enqueue(task.DocumentID, task.FreshUpload)
		if accepted {
			log.Infof("文档任务已投递到调度器: documentID=%s, fileName=%s", task.DocumentID, task.FileName)
		} else {
			log.Infof("文档任务重复触发，已忽略: documentID=%s", task.DocumentID)
		}

		if err := r.CommitMessages(ctx, m); err != nil {
			log.Errorf("提交 Kafka 消息 offset 失败: %v", err)
		}
	}
}
