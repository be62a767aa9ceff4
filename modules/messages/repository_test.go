package messages

import (
	"errors"
	"testing"
	"time"

	domain "github.com/example/chat-app/domain/message"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB creates an in-memory SQLite database for testing.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	// Each pooled connection would get its own :memory: database.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := db.AutoMigrate(&domain.Message{}); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

func seedMessage(t *testing.T, repo *Repository, sender, room, text string, at time.Time) *domain.Message {
	t.Helper()
	msg := &domain.Message{
		ID:        uuid.New().String(),
		SenderID:  sender,
		Room:      room,
		Text:      &text,
		CreatedAt: at,
	}
	if err := repo.Create(msg); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return msg
}

func TestRepository_ListByRoomOrdersByCreation(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	second := seedMessage(t, repo, "u1", "general", "second", base.Add(time.Second))
	first := seedMessage(t, repo, "u2", "general", "first", base)
	seedMessage(t, repo, "u1", "random", "elsewhere", base)

	msgs, err := repo.ListByRoom("general")
	if err != nil {
		t.Fatalf("ListByRoom() error = %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("ListByRoom() returned %d messages, want 2", len(msgs))
	}
	if msgs[0].ID != first.ID || msgs[1].ID != second.ID {
		t.Errorf("ListByRoom() order = [%s %s], want [%s %s]", msgs[0].ID, msgs[1].ID, first.ID, second.ID)
	}
}

func TestRepository_AttachmentColumns(t *testing.T) {
	repo := NewRepository(setupTestDB(t))

	msg := &domain.Message{
		ID:        uuid.New().String(),
		SenderID:  "u1",
		Room:      "general",
		CreatedAt: time.Now().UTC(),
	}
	msg.SetAttachment(&domain.FileRef{Path: "/uploads/chat_files/a/doc.pdf", Name: "doc.pdf", MimeType: "application/pdf"})
	if err := repo.Create(msg); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	found, err := repo.FindByID(msg.ID)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if found.Text != nil {
		t.Errorf("Text = %q, want nil", *found.Text)
	}
	file := found.Attachment()
	if file == nil || file.Name != "doc.pdf" || file.MimeType != "application/pdf" {
		t.Errorf("Attachment() = %+v", file)
	}

	if _, err := repo.FindByID("missing"); !errors.Is(err, ErrMessageNotFound) {
		t.Errorf("FindByID(missing) error = %v, want ErrMessageNotFound", err)
	}
}

func TestRepository_DeleteOwned(t *testing.T) {
	now := time.Now().UTC()

	t.Run("all owned", func(t *testing.T) {
		repo := NewRepository(setupTestDB(t))
		m1 := seedMessage(t, repo, "alice", "general", "one", now)
		m2 := seedMessage(t, repo, "alice", "random", "two", now)

		deleted, err := repo.DeleteOwned("alice", []string{m1.ID, m2.ID, "missing"})
		if err != nil {
			t.Fatalf("DeleteOwned() error = %v", err)
		}
		if len(deleted) != 2 {
			t.Errorf("DeleteOwned() deleted %d, want 2", len(deleted))
		}
		if count, _ := repo.Count(); count != 0 {
			t.Errorf("Count() = %d, want 0", count)
		}
	})

	t.Run("mixed authors rejects the whole batch", func(t *testing.T) {
		repo := NewRepository(setupTestDB(t))
		m1 := seedMessage(t, repo, "alice", "general", "mine", now)
		m2 := seedMessage(t, repo, "bob", "general", "theirs", now)

		_, err := repo.DeleteOwned("alice", []string{m1.ID, m2.ID})
		if !errors.Is(err, ErrNotOwner) {
			t.Fatalf("DeleteOwned() error = %v, want ErrNotOwner", err)
		}
		if count, _ := repo.Count(); count != 2 {
			t.Errorf("Count() = %d, want 2 (nothing deleted)", count)
		}
	})

	t.Run("nothing matches", func(t *testing.T) {
		repo := NewRepository(setupTestDB(t))
		deleted, err := repo.DeleteOwned("alice", []string{"missing"})
		if err != nil {
			t.Fatalf("DeleteOwned() error = %v", err)
		}
		if len(deleted) != 0 {
			t.Errorf("DeleteOwned() deleted %d, want 0", len(deleted))
		}
	})
}
