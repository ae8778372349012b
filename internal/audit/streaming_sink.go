package audit

import (
	"context"
	"log"
	"os"
	"sync"
)

// Producer is the small subset of Kafka producer behavior the streaming sink needs.
type Producer interface {
	ProduceJSON(ctx context.Context, key []byte, v interface{}) error
	Close() error
}

// StreamingSink wraps a primary sink and fans each recorded entry out to a
// Kafka producer. The primary write is the source of truth: a produce failure
// is logged but never fails the Record call, since the audit contract only
// requires the durable append.
type StreamingSink struct {
	primary  Sink
	producer Producer
	logger   *log.Logger

	wg sync.WaitGroup
}

// NewStreamingSink wires a primary sink to a producer.
func NewStreamingSink(primary Sink, producer Producer, logger *log.Logger) *StreamingSink {
	if logger == nil {
		logger = log.New(os.Stdout, "[audit.stream] ", log.LstdFlags)
	}
	return &StreamingSink{primary: primary, producer: producer, logger: logger}
}

func (s *StreamingSink) Record(ctx context.Context, e *Entry) error {
	if err := s.primary.Record(ctx, e); err != nil {
		return err
	}

	// Fan out a copy so a slow broker never blocks the orchestration path.
	cp := *e
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.producer.ProduceJSON(context.Background(), []byte(cp.Domain), cp); err != nil {
			s.logger.Printf("produce entry %s: %v", cp.ID, err)
		}
	}()
	return nil
}

// Close waits for in-flight produces and closes the producer.
func (s *StreamingSink) Close() error {
	s.wg.Wait()
	return s.producer.Close()
}
