package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"hospital-console-go/internal/model"
)

const (
	transcriptTTL         = 7 * 24 * time.Hour
	maxArchivedMessages   = 100
	transcriptKeyTemplate = "transcript:%s"
)

// ErrTranscriptNotFound 表示归档不存在或已过期。
var ErrTranscriptNotFound = errors.New("transcript archive not found")

// TranscriptRepository 定义了会话转录归档的操作接口。
type TranscriptRepository interface {
	Archive(ctx context.Context, transcript model.ArchivedTranscript) error
	Load(ctx context.Context, sessionID string) (*model.ArchivedTranscript, error)
}

type redisTranscriptRepository struct {
	redisClient *redis.Client
}

// NewTranscriptRepository 创建一个基于 Redis 的 TranscriptRepository。
func NewTranscriptRepository(redisClient *redis.Client) TranscriptRepository {
	return &redisTranscriptRepository{redisClient: redisClient}
}

func transcriptKey(sessionID string) string {
	return fmt.Sprintf(transcriptKeyTemplate, sessionID)
}

// trimTranscript 只保留最近的 maxArchivedMessages 条消息。
func trimTranscript(t model.ArchivedTranscript) model.ArchivedTranscript {
	if len(t.Messages) > maxArchivedMessages {
		t.Messages = t.Messages[len(t.Messages)-maxArchivedMessages:]
	}
	return t
}

// Archive 写入转录快照，7 天后过期。
func (r *redisTranscriptRepository) Archive(ctx context.Context, transcript model.ArchivedTranscript) error {
	if transcript.SessionID == "" {
		return errors.New("transcript has no session id")
	}
	jsonData, err := json.Marshal(trimTranscript(transcript))
	if err != nil {
		return fmt.Errorf("failed to marshal transcript: %w", err)
	}
	if err := r.redisClient.Set(ctx, transcriptKey(transcript.SessionID), jsonData, transcriptTTL).Err(); err != nil {
		return fmt.Errorf("failed to archive transcript: %w", err)
	}
	return nil
}

// Load 读取归档的转录快照。
func (r *redisTranscriptRepository) Load(ctx context.Context, sessionID string) (*model.ArchivedTranscript, error) {
	jsonData, err := r.redisClient.Get(ctx, transcriptKey(sessionID)).Result()
	if err == redis.Nil {
		return nil, ErrTranscriptNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load transcript: %w", err)
	}
	var transcript model.ArchivedTranscript
	if err := json.Unmarshal([]byte(jsonData), &transcript); err != nil {
		return nil, fmt.Errorf("failed to unmarshal transcript: %w", err)
	}
	return &transcript, nil
}
