package store

import (
	"context"
	"encoding/json"
	"path"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/reagent/chatmodel"
	"github.com/effective-security/reagent/pkg/llms"
	"github.com/effective-security/xlog"
	"github.com/redis/go-redis/v9"
)

// maxStoredMessages bounds the history kept per chat.
const maxStoredMessages = 50

// The redis store implements the MessageStore interface using Redis as the
// backend. Messages are kept in a list per chat under
// `/<prefix>/chatstore/messages/<chatID>`, trimmed to the most recent
// maxStoredMessages entries.
type redisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore returns a Redis-backed message store.
func NewRedisStore(client *redis.Client, prefix string) MessageStore {
	return &redisStore{
		client: client,
		prefix: prefix,
	}
}

func (m *redisStore) messagesKey(chatID string) string {
	return path.Join(m.prefix, "chatstore", "messages", chatID)
}

func (m *redisStore) Messages(ctx context.Context) ([]llms.Message, error) {
	chatID := chatmodel.GetChatID(ctx)
	if chatID == "" {
		return nil, ErrNoChatID
	}

	data, err := m.client.LRange(ctx, m.messagesKey(chatID), 0, -1).Result()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load messages from Redis")
	}

	var models []MessageModel
	for _, item := range data {
		var model MessageModel
		if err := json.Unmarshal([]byte(item), &model); err != nil {
			logger.ContextKV(ctx, xlog.ERROR,
				"reason", "unmarshal_message",
				"err", err.Error())
			continue
		}
		models = append(models, model)
	}
	return ToMessages(models), nil
}

func (m *redisStore) Add(ctx context.Context, msgs ...llms.Message) error {
	chatID := chatmodel.GetChatID(ctx)
	if chatID == "" {
		return ErrNoChatID
	}
	if len(msgs) == 0 {
		return nil
	}

	key := m.messagesKey(chatID)
	pipe := m.client.Pipeline()
	for _, msg := range msgs {
		data, err := json.Marshal(ToModel(msg))
		if err != nil {
			return errors.Wrap(err, "failed to marshal message")
		}
		pipe.RPush(ctx, key, data)
	}
	pipe.LTrim(ctx, key, -maxStoredMessages, -1)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to store messages in Redis")
	}
	return nil
}

func (m *redisStore) Reset(ctx context.Context) error {
	chatID := chatmodel.GetChatID(ctx)
	if chatID == "" {
		return ErrNoChatID
	}

	err := m.client.Del(ctx, m.messagesKey(chatID)).Err()
	if err != nil {
		return errors.Wrap(err, "failed to reset chat in Redis")
	}
	return nil
}
