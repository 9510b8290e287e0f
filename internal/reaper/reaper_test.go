package reaper_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"messenger-service/internal/fanout"
	"messenger-service/internal/mocks"
	"messenger-service/internal/models"
	"messenger-service/internal/reaper"
)

type captureSink struct {
	frames [][]byte
}

func (s *captureSink) Send(frame []byte) bool {
	s.frames = append(s.frames, frame)
	return true
}

func (s *captureSink) notices(t *testing.T) []reaper.DeletionNotice {
	t.Helper()
	var out []reaper.DeletionNotice
	for _, raw := range s.frames {
		var frame struct {
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
		}
		require.NoError(t, json.Unmarshal(raw, &frame))
		require.Equal(t, fanout.EventMessageDeleted, frame.Event)
		var notice reaper.DeletionNotice
		require.NoError(t, json.Unmarshal(frame.Data, &notice))
		out = append(out, notice)
	}
	return out
}

func TestSweepNotifiesBothParties(t *testing.T) {
	logger := zap.NewNop().Sugar()
	messages := &mocks.MessageRepositoryMock{}
	fan := fanout.NewLocal(logger)

	deletedAt := time.Now().UTC()
	messages.On("DeleteExpired", mock.Anything, mock.Anything).Return([]models.DeletedMessage{
		{ID: 3, SenderID: 1, ReceiverID: 2, DeletedAt: deletedAt},
	}, nil)

	var invalidated [][2]int
	r := reaper.New(messages, fan, func(_ context.Context, a, b int) {
		invalidated = append(invalidated, [2]int{a, b})
	}, logger, time.Minute)

	sender := &captureSink{}
	receiver := &captureSink{}
	fan.Join(1, sender)
	fan.Join(2, receiver)

	count := r.Sweep(context.Background())
	assert.Equal(t, 1, count)

	senderNotices := sender.notices(t)
	require.Len(t, senderNotices, 1)
	assert.Equal(t, 3, senderNotices[0].MessageID)
	require.Len(t, receiver.notices(t), 1)

	assert.Equal(t, [][2]int{{1, 2}}, invalidated)
}

func TestSweepWithNothingExpired(t *testing.T) {
	logger := zap.NewNop().Sugar()
	messages := &mocks.MessageRepositoryMock{}
	messages.On("DeleteExpired", mock.Anything, mock.Anything).Return(nil, nil)

	r := reaper.New(messages, fanout.NewLocal(logger), nil, logger, time.Minute)
	assert.Equal(t, 0, r.Sweep(context.Background()))
}

func TestSweepSurvivesStoreError(t *testing.T) {
	logger := zap.NewNop().Sugar()
	messages := &mocks.MessageRepositoryMock{}
	messages.On("DeleteExpired", mock.Anything, mock.Anything).Return(nil, errors.New("connection reset"))

	r := reaper.New(messages, fanout.NewLocal(logger), nil, logger, time.Minute)
	assert.Equal(t, 0, r.Sweep(context.Background()))
}

func TestDeleteAfterReadEmptyBatchIsNoop(t *testing.T) {
	logger := zap.NewNop().Sugar()
	messages := &mocks.MessageRepositoryMock{}

	r := reaper.New(messages, fanout.NewLocal(logger), nil, logger, time.Minute)
	r.DeleteAfterRead(context.Background(), nil)

	messages.AssertNotCalled(t, "DeleteReadDisappearing", mock.Anything, mock.Anything, mock.Anything)
}

func TestDeleteAfterReadNotifies(t *testing.T) {
	logger := zap.NewNop().Sugar()
	messages := &mocks.MessageRepositoryMock{}
	fan := fanout.NewLocal(logger)

	deletedAt := time.Now().UTC()
	messages.On("DeleteReadDisappearing", mock.Anything, []int{3, 4}, mock.Anything).Return([]models.DeletedMessage{
		{ID: 4, SenderID: 1, ReceiverID: 2, DeletedAt: deletedAt},
	}, nil)

	r := reaper.New(messages, fan, nil, logger, time.Minute)

	receiver := &captureSink{}
	fan.Join(2, receiver)

	// Ids 3 and 4 go in; only 4 matches the disappear-after-read filter.
	r.DeleteAfterRead(context.Background(), []int{3, 4})

	notices := receiver.notices(t)
	require.Len(t, notices, 1)
	assert.Equal(t, 4, notices[0].MessageID)
}

func TestRunStopsOnCancel(t *testing.T) {
	logger := zap.NewNop().Sugar()
	messages := &mocks.MessageRepositoryMock{}
	messages.On("DeleteExpired", mock.Anything, mock.Anything).Return(nil, nil)

	r := reaper.New(messages, fanout.NewLocal(logger), nil, logger, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reaper did not stop after cancel")
	}
}
