package messaging

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"

	"restaurant-system/internal/logger"
)

// scriptedReader hands out msgs in order, then cancels the consumer
type scriptedReader struct {
	msgs      []kafka.Message
	committed []int64
	commitErr error
	cancel    context.CancelFunc
}

func (r *scriptedReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.msgs) == 0 {
		r.cancel()
		return kafka.Message{}, ctx.Err()
	}
	m := r.msgs[0]
	r.msgs = r.msgs[1:]
	return m, nil
}

func (r *scriptedReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return r.commitErr
}

func (r *scriptedReader) Close() error { return nil }

func TestKafkaConsumer_HandlerFailures(t *testing.T) {
	tests := []struct {
		name          string
		failures      int
		wantCalls     int
		wantCommitted []int64
	}{
		{"handled", 0, 1, []int64{7}},
		{"retried once", 1, 2, []int64{7}},
		{"dropped after two failures", 5, 2, []int64{7}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			reader := &scriptedReader{msgs: []kafka.Message{{Offset: 7, Value: []byte(`{}`)}}, cancel: cancel}
			c := &KafkaConsumer{reader: reader, topic: "orders", logger: logger.NewNop()}

			calls := 0
			err := c.StartConsuming(ctx, func(context.Context, []byte) error {
				calls++
				if calls <= tt.failures {
					return errors.New("bad payload")
				}
				return nil
			})
			if err != nil {
				t.Fatalf("StartConsuming() error = %v", err)
			}
			if calls != tt.wantCalls {
				t.Errorf("handler calls = %d, want %d", calls, tt.wantCalls)
			}
			if len(reader.committed) != len(tt.wantCommitted) || reader.committed[0] != tt.wantCommitted[0] {
				t.Errorf("committed = %v, want %v", reader.committed, tt.wantCommitted)
			}
		})
	}
}

func TestKafkaConsumer_NoCommitAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reader := &scriptedReader{msgs: []kafka.Message{{Offset: 3}}, cancel: cancel}
	c := &KafkaConsumer{reader: reader, topic: "notifications", logger: logger.NewNop()}

	err := c.StartConsuming(ctx, func(ctx context.Context, _ []byte) error {
		cancel()
		return ctx.Err()
	})
	if err != nil {
		t.Fatalf("StartConsuming() error = %v", err)
	}
	if len(reader.committed) != 0 {
		t.Errorf("committed = %v, want nothing while shutting down", reader.committed)
	}
}

func TestKafkaConsumer_CommitError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	commitErr := errors.New("coordinator not available")
	reader := &scriptedReader{msgs: []kafka.Message{{Offset: 1}}, commitErr: commitErr, cancel: cancel}
	c := &KafkaConsumer{reader: reader, topic: "orders", logger: logger.NewNop()}

	err := c.StartConsuming(ctx, func(context.Context, []byte) error { return nil })
	if !errors.Is(err, commitErr) {
		t.Errorf("StartConsuming() error = %v, want %v", err, commitErr)
	}
}
