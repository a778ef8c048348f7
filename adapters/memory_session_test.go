package adapters

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/henrietta/domain/entities"
	"github.com/satriahrh/henrietta/domain/repositories"
)

func TestMemorySessionRepository_CreateAndGet(t *testing.T) {
	repo := NewMemorySessionRepository(zaptest.NewLogger(t))
	ctx := context.Background()

	session := entities.NewSessionState("", time.Hour)
	if err := repo.Create(ctx, session); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if session.ID == "" {
		t.Fatal("Create should assign an ID")
	}

	got, err := repo.Get(ctx, session.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if got.ID != session.ID {
		t.Errorf("Expected ID %s, got %s", session.ID, got.ID)
	}

	if err := repo.Create(ctx, session); err == nil {
		t.Error("Creating a duplicate session should fail")
	}
}

func TestMemorySessionRepository_GetReturnsCopy(t *testing.T) {
	repo := NewMemorySessionRepository(zaptest.NewLogger(t))
	ctx := context.Background()

	session := entities.NewSessionState("copy-test", time.Hour)
	if err := repo.Create(ctx, session); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, _ := repo.Get(ctx, "copy-test")
	got.Apply(entities.StateDelta{Turns: []entities.ConversationTurn{{Role: entities.MessageRoleUser, Text: "hi"}}})

	again, _ := repo.Get(ctx, "copy-test")
	if len(again.Transcript) != 0 {
		t.Error("Mutating a fetched session must not change the stored one before Update")
	}

	if err := repo.Update(ctx, got); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	again, _ = repo.Get(ctx, "copy-test")
	if len(again.Transcript) != 1 {
		t.Errorf("Expected 1 turn after update, got %d", len(again.Transcript))
	}
}

func TestMemorySessionRepository_NotFound(t *testing.T) {
	repo := NewMemorySessionRepository(zaptest.NewLogger(t))
	ctx := context.Background()

	if _, err := repo.Get(ctx, "missing"); !errors.Is(err, repositories.ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound, got %v", err)
	}

	if err := repo.Update(ctx, entities.NewSessionState("missing", time.Hour)); !errors.Is(err, repositories.ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound on update, got %v", err)
	}

	if err := repo.Delete(ctx, "missing"); !errors.Is(err, repositories.ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound on delete, got %v", err)
	}
}

func TestMemorySessionRepository_ExpireSessions(t *testing.T) {
	repo := NewMemorySessionRepository(zaptest.NewLogger(t))
	ctx := context.Background()

	short := entities.NewSessionState("short", time.Minute)
	long := entities.NewSessionState("long", time.Hour)
	_ = repo.Create(ctx, short)
	_ = repo.Create(ctx, long)

	expired, err := repo.ExpireSessions(ctx, time.Now().Add(10*time.Minute))
	if err != nil {
		t.Fatalf("ExpireSessions failed: %v", err)
	}

	if expired != 1 {
		t.Errorf("Expected 1 expired session, got %d", expired)
	}

	if repo.Count() != 1 {
		t.Errorf("Expected 1 remaining session, got %d", repo.Count())
	}

	if _, err := repo.Get(ctx, "long"); err != nil {
		t.Errorf("Long-lived session should remain, got %v", err)
	}
}
