package repository

import (
	"fmt"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"hospital-console-go/internal/model"
)

func openAuditTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&model.AuditEntry{}); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func TestAuditRepository_CreateAndListRecent(t *testing.T) {
	repo := NewAuditRepository(openAuditTestDB(t))

	for i := 0; i < 3; i++ {
		err := repo.Create(&model.AuditEntry{
			SessionID: "sess-1",
			Actor:     "Admin-1234",
			Action:    "appointment.accept",
			Target:    fmt.Sprintf("apt_%d", i),
			Outcome:   model.OutcomeSuccess,
		})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	entries, err := repo.ListRecent(2)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len = %d, want 2", len(entries))
	}
	if entries[0].Target != "apt_2" || entries[1].Target != "apt_1" {
		t.Errorf("order = %q, %q; want newest first", entries[0].Target, entries[1].Target)
	}
	if entries[0].CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}
}

func TestAuditRepository_ListBySession(t *testing.T) {
	repo := NewAuditRepository(openAuditTestDB(t))
	_ = repo.Create(&model.AuditEntry{SessionID: "a", Actor: "x", Action: "documents.reload", Outcome: model.OutcomeSuccess})
	_ = repo.Create(&model.AuditEntry{SessionID: "b", Actor: "y", Action: "documents.upload", Outcome: model.OutcomeFailure, Detail: "File too large"})
	_ = repo.Create(&model.AuditEntry{SessionID: "a", Actor: "x", Action: "notification.read", Target: "n-1", Outcome: model.OutcomeSuccess})

	entries, err := repo.ListBySession("a")
	if err != nil {
		t.Fatalf("ListBySession: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len = %d, want 2", len(entries))
	}
	if entries[0].Action != "documents.reload" || entries[1].Action != "notification.read" {
		t.Errorf("entries = %+v", entries)
	}
}
