package repository

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"hospital-console-go/internal/model"
)

func TestTrimTranscript_KeepsNewest(t *testing.T) {
	tr := model.ArchivedTranscript{SessionID: "s"}
	for i := 0; i < 130; i++ {
		tr.Messages = append(tr.Messages, model.Message{Seq: i})
	}
	got := trimTranscript(tr)
	if len(got.Messages) != maxArchivedMessages {
		t.Fatalf("len = %d, want %d", len(got.Messages), maxArchivedMessages)
	}
	if got.Messages[0].Seq != 30 || got.Messages[len(got.Messages)-1].Seq != 129 {
		t.Errorf("kept seq %d..%d, want 30..129", got.Messages[0].Seq, got.Messages[len(got.Messages)-1].Seq)
	}
	if len(tr.Messages) != 130 {
		t.Error("input slice header modified")
	}
}

func TestTranscriptKey(t *testing.T) {
	if got := transcriptKey("abc"); got != "transcript:abc" {
		t.Errorf("transcriptKey = %q", got)
	}
}

// 需要真实 Redis：HOSPITAL_TEST_REDIS_ADDR=localhost:6379 go test ./internal/repository/
func TestTranscriptRepository_Redis(t *testing.T) {
	addr := os.Getenv("HOSPITAL_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("HOSPITAL_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	repo := NewTranscriptRepository(client)
	sessionID := uuid.NewString()
	t.Cleanup(func() { client.Del(ctx, transcriptKey(sessionID)) })

	if _, err := repo.Load(ctx, sessionID); !errors.Is(err, ErrTranscriptNotFound) {
		t.Fatalf("Load before archive: err = %v, want ErrTranscriptNotFound", err)
	}

	in := model.ArchivedTranscript{
		SessionID:   sessionID,
		Role:        model.RolePatient,
		DisplayName: "Alice",
		EndedAt:     time.Now(),
		Messages:    []model.Message{{Seq: 0, Speaker: model.SpeakerAssistant, Body: "Welcome"}},
	}
	if err := repo.Archive(ctx, in); err != nil {
		t.Fatalf("Archive: %v", err)
	}
	out, err := repo.Load(ctx, sessionID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if out.DisplayName != "Alice" || len(out.Messages) != 1 {
		t.Errorf("loaded = %+v", out)
	}
	if ttl := client.TTL(ctx, transcriptKey(sessionID)).Val(); ttl <= 0 || ttl > transcriptTTL {
		t.Errorf("TTL = %v", ttl)
	}
}
