package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/nimasrn/farm-ledger/internal/model"
	"github.com/nimasrn/farm-ledger/internal/queue"
	"github.com/nimasrn/farm-ledger/pkg/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockWriter struct {
	mock.Mock
}

func (m *mockWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

func (m *mockWriter) Close() error {
	return m.Called().Error(0)
}

type failingPublisher struct{ err error }

func (f failingPublisher) Publish(context.Context, model.LedgerEvent) error { return f.err }
func (f failingPublisher) Close() error { return nil }

func TestKafkaPublisher_Publish(t *testing.T) {
	w := new(mockWriter)
	p := &KafkaPublisher{writer: w}

	e := New(model.EventTransactionCreated, 1, 42, 7)
	e.SerialNumber = 3

	w.On("WriteMessages", mock.Anything, mock.MatchedBy(func(msgs []kafka.Message) bool {
		if len(msgs) != 1 || string(msgs[0].Key) != "42" {
			return false
		}
		var got model.LedgerEvent
		if err := json.Unmarshal(msgs[0].Value, &got); err != nil {
			return false
		}
		return got.ID == e.ID && got.SerialNumber == 3
	})).Return(nil).Once()
	w.On("Close").Return(nil).Once()

	require.NoError(t, p.Publish(context.Background(), e))
	require.NoError(t, p.Close())
	w.AssertExpectations(t)
}

func TestNewKafkaPublisher_Validation(t *testing.T) {
	_, err := NewKafkaPublisher(nil, "topic")
	assert.Error(t, err)
	_, err = NewKafkaPublisher([]string{"localhost:9092"}, "")
	assert.Error(t, err)

	p, err := NewKafkaPublisher([]string{"localhost:9092"}, "ledger-events")
	require.NoError(t, err)
	assert.NotNil(t, p.writer)
}

func TestStreamPublisher(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	adapter, err := redis.NewRedisAdapter(t.Name()+mr.Addr(), "", &goredis.UniversalOptions{Addrs: []string{mr.Addr()}})
	require.NoError(t, err)

	q, err := queue.NewQueue(adapter, queue.QueueConfig{Name: "ledger-events", ConsumerGroup: "g", PollInterval: 20 * time.Millisecond})
	require.NoError(t, err)
	defer q.Stop(time.Second)

	p := NewStreamPublisher(q)
	e := New(model.EventTransactionDeleted, 1, 5, 6)
	require.NoError(t, p.Publish(context.Background(), e))

	got := make(chan model.LedgerEvent, 1)
	require.NoError(t, q.Consume(func(ctx context.Context, msg *queue.Message) error {
		var ev model.LedgerEvent
		if err := msg.Decode(&ev); err != nil {
			return err
		}
		assert.Equal(t, "5", msg.Metadata["customer_id"])
		got <- ev
		return nil
	}))

	select {
	case ev := <-got:
		assert.Equal(t, e.ID, ev.ID)
		assert.Equal(t, model.EventTransactionDeleted, ev.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("event not consumed")
	}
}

func TestMulti(t *testing.T) {
	boom := errors.New("boom")
	m := NewMulti().Add("ok", Nop{}).Add("bad", failingPublisher{err: boom}).Add("nil", nil)
	assert.Equal(t, 2, m.Len())

	err := m.Publish(context.Background(), New(model.EventScopeRepaired, 0, 1, 2))
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, m.Close())
}
