// Package kafka wraps the sarama async producer behind a publish channel, so
// callers enqueue raw message bytes and never block on broker round trips.
package kafka

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/verdant-network/walletnode/errors"
	"github.com/verdant-network/walletnode/ulogger"
)

type MessageStatus struct {
	Success bool
	Error   error
	Time    time.Time
}

type KafkaAsyncProducer struct {
	logger            ulogger.Logger
	url               *url.URL
	topic             string
	Producer          sarama.AsyncProducer
	LastMessageStatus MessageStatus
	mu                sync.Mutex
	PublishChannel    chan []byte
}

// NewKafkaAsyncProducer connects to the brokers named in the host part of
// kafkaURL and ensures the topic named in the path exists. Messages written to
// ch are published asynchronously once Start is called.
func NewKafkaAsyncProducer(logger ulogger.Logger, kafkaURL *url.URL, ch chan []byte) (*KafkaAsyncProducer, error) {
	logger.Debugf("starting async kafka producer for %v", kafkaURL)

	topic := kafkaURL.Path[1:]
	brokersURL := strings.Split(kafkaURL.Host, ",")

	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.Flush.Messages = getQueryParamInt(kafkaURL, "flush_messages", 50_000)
	config.Producer.Flush.Frequency = getQueryParamDuration(kafkaURL, "flush_frequency", 10*time.Second)

	clusterAdmin, err := sarama.NewClusterAdmin(brokersURL, config)
	if err != nil {
		return nil, errors.NewConfigurationError("error while creating cluster admin", err)
	}

	defer func(clusterAdmin sarama.ClusterAdmin) {
		_ = clusterAdmin.Close()
	}(clusterAdmin)

	partitions := getQueryParamInt(kafkaURL, "partitions", 1)
	replicationFactor := getQueryParamInt(kafkaURL, "replication", 1)

	if err = clusterAdmin.CreateTopic(topic, &sarama.TopicDetail{
		NumPartitions:     int32(partitions),
		ReplicationFactor: int16(replicationFactor),
	}, false); err != nil {
		if !errors.Is(err, sarama.ErrTopicAlreadyExists) {
			return nil, errors.NewProcessingError("unable to create topic %s", topic, err)
		}
	}

	producer, err := sarama.NewAsyncProducer(brokersURL, config)
	if err != nil {
		return nil, errors.NewServiceError("failed to start sarama producer", err)
	}

	return &KafkaAsyncProducer{
		logger:   logger,
		url:      kafkaURL,
		topic:    topic,
		Producer: producer,
		LastMessageStatus: MessageStatus{
			Success: true,
			Time:    time.Now(),
		},
		PublishChannel: ch,
	}, nil
}

// Start pumps messages from the publish channel into the producer until the
// context is cancelled or the channel is closed.
func (c *KafkaAsyncProducer) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				if err := c.Producer.Close(); err != nil {
					c.logger.Errorf("failed to close kafka producer: %v", err)
				}

				return
			case msg, ok := <-c.PublishChannel:
				if !ok {
					return
				}

				c.Producer.Input() <- &sarama.ProducerMessage{
					Topic: c.topic,
					Value: sarama.ByteEncoder(msg),
				}
			}
		}
	}()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-c.Producer.Successes():
				c.setLastMessageStatus(true, nil)
			case err := <-c.Producer.Errors():
				if err != nil {
					c.logger.Errorf("kafka producer error: %v", err)
					c.setLastMessageStatus(false, err)
				}
			}
		}
	}()
}

func (c *KafkaAsyncProducer) setLastMessageStatus(success bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.LastMessageStatus = MessageStatus{
		Success: success,
		Error:   err,
		Time:    time.Now(),
	}
}

func getQueryParamInt(u *url.URL, key string, defaultValue int) int {
	if v := u.Query().Get(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}

	return defaultValue
}

func getQueryParamDuration(u *url.URL, key string, defaultValue time.Duration) time.Duration {
	if v := u.Query().Get(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}

	return defaultValue
}
