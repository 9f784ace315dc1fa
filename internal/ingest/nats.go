package ingest

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/your-org/peoplecounter/internal/queue"
)

// DetectionConsumer is satisfied by queue.Consumer.
type DetectionConsumer interface {
	ConsumeDetections(ctx context.Context, consumerName string, handler queue.MessageHandler) error
}

// NATSSource reads detection documents relayed by the ingestor.
type NATSSource struct {
	consumer DetectionConsumer
	name     string
	gate     *gate
}

func NewNATSSource(consumer DetectionConsumer, consumerName string, processedCap int) *NATSSource {
	return &NATSSource{consumer: consumer, name: consumerName, gate: newGate(processedCap)}
}

func (s *NATSSource) Run(ctx context.Context, out chan<- Record) error {
	err := s.consumer.ConsumeDetections(ctx, s.name, func(ctx context.Context, msg jetstream.Msg) error {
		return s.handle(ctx, messageID(msg), msg.Data(), out)
	})
	if err != nil {
		return fmt.Errorf("consume detections: %w", err)
	}
	<-ctx.Done()
	return nil
}

// messageID prefers the publisher's dedupe id, then the stream sequence.
func messageID(msg jetstream.Msg) string {
	if id := msg.Headers().Get(nats.MsgIdHdr); id != "" {
		return id
	}
	if meta, err := msg.Metadata(); err == nil {
		return fmt.Sprintf("%s#%d", meta.Stream, meta.Sequence.Stream)
	}
	return uuid.NewString()
}

// handle reports success for undecodable and stale messages so they are
// acked: redelivery cannot fix them.
func (s *NATSSource) handle(ctx context.Context, id string, data []byte, out chan<- Record) error {
	rec, ok := s.gate.admit(id, data)
	if !ok {
		return nil
	}
	return emit(ctx, out, rec)
}
