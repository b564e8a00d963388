package message_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jan-server/services/docchat-api/internal/domain/domaintest"
	"jan-server/services/docchat-api/internal/domain/message"
	"jan-server/services/docchat-api/internal/domain/realtime"
	"jan-server/services/docchat-api/internal/utils/platformerrors"
)

func TestRecorder_Record(t *testing.T) {
	store := domaintest.NewStore()
	broadcaster := &domaintest.Broadcaster{}
	recorder := message.NewRecorder(store.Messages(), broadcaster, zerolog.Nop())

	msg, err := recorder.Record(context.Background(), "conv_1", message.RoleAssistant, "answer", []string{"doc_1"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(msg.PublicID, "msg_"))
	assert.False(t, msg.CreatedAt.IsZero())

	events := broadcaster.Events()
	require.Len(t, events, 1)
	assert.Equal(t, realtime.EventNewMessage, events[0].Name)
	assert.Same(t, msg, events[0].Payload)
}

func TestRecorder_Validation(t *testing.T) {
	tests := []struct {
		name    string
		role    message.Role
		content string
	}{
		{"blank content", message.RoleUser, " \t"},
		{"unknown role", message.Role("tool"), "hi"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := domaintest.NewStore()
			recorder := message.NewRecorder(store.Messages(), nil, zerolog.Nop())

			_, err := recorder.Record(context.Background(), "conv_1", tt.role, tt.content, nil)
			require.Error(t, err)
			assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation))

			_, _, count := store.Counts()
			assert.Zero(t, count)
		})
	}
}

func TestRecorder_BroadcastFailureKeepsMessage(t *testing.T) {
	store := domaintest.NewStore()
	broadcaster := &domaintest.Broadcaster{Err: errors.New("hub closed")}
	recorder := message.NewRecorder(store.Messages(), broadcaster, zerolog.Nop())

	_, err := recorder.Record(context.Background(), "conv_1", message.RoleSystem, "File processed successfully: a.pdf", nil)
	require.NoError(t, err)

	_, _, count := store.Counts()
	assert.Equal(t, 1, count)
}

func TestRecorder_TimestampsNeverDecrease(t *testing.T) {
	store := domaintest.NewStore()
	recorder := message.NewRecorder(store.Messages(), nil, zerolog.Nop())

	var prev *message.Message
	for i := 0; i < 50; i++ {
		msg, err := recorder.Record(context.Background(), "conv_1", message.RoleUser, "hi", nil)
		require.NoError(t, err)
		if prev != nil {
			assert.False(t, msg.CreatedAt.Before(prev.CreatedAt))
		}
		prev = msg
	}
}
