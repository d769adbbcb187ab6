package repository

import (
	"context"
	"testing"
	"time"

	"mailsentry/pkg/database"

	"mailsentry/internal/models"
)

// seedListFixture inserts n folder messages; every pair shares an
// internal_date so the cursor tie-break on id gets exercised.
func seedListFixture(t *testing.T, accountID, folderID string, n int) {
	t.Helper()
	repo := NewEmailSyncRepository()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	payloads := make([]SyncPayload, 0, n)
	for i := 0; i < n; i++ {
		at := base.Add(time.Duration(i/2) * time.Minute)
		payloads = append(payloads, syncPayload(uint32(i+1), messageID(i), at))
	}
	if _, _, err := repo.SaveFolderEmails(accountID, folderID, payloads); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func messageID(i int) string {
	return "msg-" + string(rune('a'+i)) + "@example.com"
}

func TestListByFolderIDsCursorChaining(t *testing.T) {
	setupTestDB(t)
	account := createTestAccount(t)
	folder := createTestFolder(t, account.ID)
	seedListFixture(t, account.ID, folder.ID, 7)
	repo := NewEmailRepository()

	seen := make(map[string]bool)
	var previous *EmailListRow
	cursor := ""
	pages := 0

	for {
		cursorDate, cursorID, err := ParseListCursor(cursor)
		if err != nil {
			t.Fatalf("parse cursor: %v", err)
		}
		rows, next, err := repo.ListByFolderIDs(context.Background(), []string{folder.ID}, cursorDate, cursorID, 3)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		pages++

		for i := range rows {
			row := rows[i]
			if seen[row.ID] {
				t.Fatalf("duplicate row across pages: %s", row.ID)
			}
			seen[row.ID] = true

			if previous != nil {
				// Union must preserve (internal_date DESC, id DESC).
				if row.InternalDate.After(*previous.InternalDate) {
					t.Fatalf("ordering violated: %s after %s", row.InternalDate, previous.InternalDate)
				}
				if row.InternalDate.Equal(*previous.InternalDate) && row.ID >= previous.ID {
					t.Fatalf("tie-break violated: %s >= %s", row.ID, previous.ID)
				}
			}
			previous = &rows[i]
		}

		if next == nil {
			break
		}
		cursor = *next
	}

	if len(seen) != 7 {
		t.Fatalf("union has %d rows, expected 7", len(seen))
	}
	if pages != 3 {
		t.Fatalf("expected 3 pages for 7 rows at limit 3, got %d", pages)
	}
}

func TestListByFolderIDsNoCursorOnExactFit(t *testing.T) {
	setupTestDB(t)
	account := createTestAccount(t)
	folder := createTestFolder(t, account.ID)
	seedListFixture(t, account.ID, folder.ID, 3)
	repo := NewEmailRepository()

	rows, next, err := repo.ListByFolderIDs(context.Background(), []string{folder.ID}, nil, "", 3)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d", len(rows))
	}
	if next != nil {
		t.Fatalf("no next cursor expected when the page fits exactly, got %s", *next)
	}
}

func TestListByFolderIDsEmptyFolders(t *testing.T) {
	setupTestDB(t)
	repo := NewEmailRepository()
	rows, next, err := repo.ListByFolderIDs(context.Background(), nil, nil, "", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 0 || next != nil {
		t.Fatalf("empty folder set must return empty page")
	}
}

func TestParseListCursor(t *testing.T) {
	cursorDate, cursorID, err := ParseListCursor("1748779200000_some-id")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cursorID != "some-id" {
		t.Fatalf("cursor id = %q", cursorID)
	}
	if cursorDate == nil || cursorDate.UnixMilli() != 1748779200000 {
		t.Fatalf("cursor date = %v", cursorDate)
	}

	if _, _, err := ParseListCursor(""); err != nil {
		t.Fatal("empty cursor must be accepted")
	}
	if _, _, err := ParseListCursor("garbage"); err == nil {
		t.Fatal("malformed cursor must be rejected")
	}
	if _, _, err := ParseListCursor("abc_def"); err == nil {
		t.Fatal("non-numeric millis must be rejected")
	}
}

func TestUpdatePhishingResult(t *testing.T) {
	setupTestDB(t)
	account := createTestAccount(t)
	folder := createTestFolder(t, account.ID)
	syncRepo := NewEmailSyncRepository()
	emailRepo := NewEmailRepository()

	now := time.Now().UTC()
	_, ids, err := syncRepo.SaveFolderEmails(account.ID, folder.ID, []SyncPayload{syncPayload(45, "m@example.com", now)})
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	detail, err := emailRepo.GetDetail(context.Background(), ids[0])
	if err != nil {
		t.Fatalf("detail: %v", err)
	}

	if err := emailRepo.UpdatePhishingResult(
		detail.Message.ID, models.PhishingLevelHighRisk, 0.95, "检测到超长URL", models.PhishingStatusCompleted,
	); err != nil {
		t.Fatalf("update: %v", err)
	}

	var message models.Message
	database.GetDB().Where("id = ?", detail.Message.ID).First(&message)
	if message.PhishingLevel != models.PhishingLevelHighRisk ||
		message.PhishingScore != 0.95 ||
		message.PhishingStatus != models.PhishingStatusCompleted ||
		message.PhishingReason == nil {
		t.Fatalf("classification not written atomically: %+v", message)
	}

	// Re-detection path: reset to PENDING, then complete again.
	if err := emailRepo.ResetPhishingPending([]string{message.ID}); err != nil {
		t.Fatalf("reset: %v", err)
	}
	database.GetDB().Where("id = ?", message.ID).First(&message)
	if message.PhishingStatus != models.PhishingStatusPending {
		t.Fatalf("status not reset: %s", message.PhishingStatus)
	}
}
