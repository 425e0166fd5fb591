package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/evetabi/sportsbook/internal/events"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// scriptedReader hands out msgs in order, then blocks until ctx is done.
type scriptedReader struct {
	msgs      []kafka.Message
	committed []int64
	fetchErr  error
}

func (r *scriptedReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.msgs) == 0 {
		if r.fetchErr != nil {
			return kafka.Message{}, r.fetchErr
		}
		<-ctx.Done()
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
	return nil
}

func (r *scriptedReader) Close() error { return nil }

var _ events.MessageReader = (*scriptedReader)(nil)

func settledMsg(t *testing.T, offset int64, e events.BetSettled) kafka.Message {
	t.Helper()
	b, err := json.Marshal(e)
	if err != nil {
		t.Fatal(err)
	}
	return kafka.Message{Offset: offset, Key: []byte(e.Username), Value: b}
}

func TestSettledConsumer_DeliversAndSkipsMalformed(t *testing.T) {
	r := &scriptedReader{msgs: []kafka.Message{
		settledMsg(t, 1, events.BetSettled{BetID: "b1", Username: "alice", Outcome: "won", Credited: decimal.NewFromInt(250)}),
		{Offset: 2, Value: []byte("{not json")},
		settledMsg(t, 3, events.BetSettled{BetID: "b2", Username: "bob", Outcome: "push"}),
	}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var got []events.BetSettled
	c := events.NewSettledConsumerWithReader(r, func(_ context.Context, e events.BetSettled) {
		got = append(got, e)
		if len(got) == 2 {
			cancel()
		}
	}, zap.NewNop())

	if err := c.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(got) != 2 || got[0].BetID != "b1" || got[1].Username != "bob" {
		t.Fatalf("delivered = %+v", got)
	}
	if !got[0].Credited.Equal(decimal.NewFromInt(250)) {
		t.Errorf("credited = %s", got[0].Credited)
	}
	if len(r.committed) != 3 {
		t.Errorf("committed offsets = %v, want all three", r.committed)
	}
}

func TestSettledConsumer_FetchError(t *testing.T) {
	boom := errors.New("broker gone")
	c := events.NewSettledConsumerWithReader(&scriptedReader{fetchErr: boom},
		func(context.Context, events.BetSettled) {}, zap.NewNop())
	if err := c.Run(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("want broker error, got %v", err)
	}
}
