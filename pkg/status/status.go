// Package status publishes image processing outcomes to Kafka. A missing
// producer degrades to a logged warning; processing never depends on the
// broker being reachable.
package status

import (
	"encoding/json"
	"time"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/ganeshsharma25-official/gdal-image-service/pkg/config"
	"github.com/ganeshsharma25-official/gdal-image-service/pkg/models"
	"github.com/rotisserie/eris"
	log "github.com/sirupsen/logrus"
)

const deliveryTimeout = 10 * time.Second

type Publisher struct {
	producer *kafka.Producer
	topic    string
}

// NewPublisher wraps an already-initialized producer. producer may be nil,
// in which case every publish is skipped with a warning.
func NewPublisher(producer *kafka.Producer, conf *config.Config) *Publisher {
	return &Publisher{
		producer: producer,
		topic:    conf.Kafka.Topic,
	}
}

// BuildMessage assembles the status payload published for a finished job.
func BuildMessage(workspace, storeName, layerType, jobStatus, originalLayer, filePath, errorMessage string) models.StatusMessage {
	message := models.StatusMessage{
		Workspace:     workspace,
		StoreName:     storeName,
		LayerType:     layerType,
		Status:        jobStatus,
		Timestamp:     time.Now().UTC().Format("2006-01-02T15:04:05.000000") + "Z",
		OriginalLayer: originalLayer,
	}
	if jobStatus == models.JobStatusSuccess {
		message.FilePath = filePath
	} else if errorMessage != "" {
		message.ErrorMessage = errorMessage
	}
	return message
}

// MessageKey partitions the topic by workspace and derived store name.
func MessageKey(workspace, storeName string) string {
	return workspace + ":" + storeName
}

func (p *Publisher) PublishSuccess(workspace, storeName, layerType, originalLayer, filePath string) {
	p.publish(BuildMessage(workspace, storeName, layerType, models.JobStatusSuccess, originalLayer, filePath, ""))
}

func (p *Publisher) PublishFailure(workspace, storeName, layerType, originalLayer, errorMessage string) {
	p.publish(BuildMessage(workspace, storeName, layerType, models.JobStatusFailed, originalLayer, "", errorMessage))
}

func (p *Publisher) publish(message models.StatusMessage) {
	if p.producer == nil {
		log.Warn("Kafka producer not available, skipping message publication")
		return
	}

	if err := p.deliver(message); err != nil {
		log.WithError(err).Error("Kafka publishing error")
	}
}

func (p *Publisher) deliver(message models.StatusMessage) error {
	value, err := json.Marshal(&message)
	if err != nil {
		return eris.Wrap(err, "marshal status message")
	}

	topic := p.topic
	deliveryChan := make(chan kafka.Event, 1)

	err = p.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Key:            []byte(MessageKey(message.Workspace, message.StoreName)),
		Value:          value,
	}, deliveryChan)
	if err != nil {
		return eris.Wrap(err, "produce status message")
	}

	select {
	case event := <-deliveryChan:
		report, ok := event.(*kafka.Message)
		if !ok {
			return eris.Errorf("unexpected delivery event: %T", event)
		}
		if report.TopicPartition.Error != nil {
			return eris.Wrap(report.TopicPartition.Error, "deliver status message")
		}
		log.WithFields(log.Fields{
			"topic":     *report.TopicPartition.Topic,
			"partition": report.TopicPartition.Partition,
			"offset":    report.TopicPartition.Offset,
		}).Info("Kafka message sent")
		return nil
	case <-time.After(deliveryTimeout):
		return eris.New("timed out waiting for delivery report")
	}
}

// Close flushes outstanding messages and releases the producer.
func (p *Publisher) Close() {
	if p.producer == nil {
		return
	}
	p.producer.Flush(int(deliveryTimeout / time.Millisecond))
	p.producer.Close()
	log.Info("Kafka producer connection closed")
}
