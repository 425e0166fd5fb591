package events

// NewKafkaPublisherWithWriters lets tests capture messages without a broker.
func NewKafkaPublisherWithWriters(placed, settled messageWriter) *KafkaPublisher {
	return &KafkaPublisher{placed: placed, settled: settled}
}

// NewSettledConsumerWithReader runs the consumer over a scripted reader.
var NewSettledConsumerWithReader = newSettledConsumer

// MessageReader exposes the reader contract to external tests.
type MessageReader = messageReader
