package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"mailsentry/internal/models"
	"mailsentry/pkg/database"
)

func setupTestDB(t *testing.T) {
	t.Helper()
	db := database.Init(t.TempDir())
	if err := db.AutoMigrate(
		&models.User{},
		&models.EmailAccount{},
		&models.Folder{},
		&models.Message{},
		&models.Body{},
		&models.Recipient{},
		&models.FolderMessage{},
		&models.SenderWhitelistRule{},
		&models.URLWhitelistRule{},
		&models.SystemSettings{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}

func createTestAccount(t *testing.T) *models.EmailAccount {
	t.Helper()
	account := &models.EmailAccount{
		ID:                uuid.NewString(),
		OwnerUserID:       uuid.NewString(),
		EmailAddress:      "user@163.com",
		ProviderKind:      models.ProviderNetease163,
		IMAPHost:          "imap.163.com",
		IMAPPort:          993,
		EncryptedPassword: "x",
		IsActive:          1,
	}
	if err := database.GetDB().Create(account).Error; err != nil {
		t.Fatalf("create account: %v", err)
	}
	return account
}

func createTestFolder(t *testing.T, accountID string) *models.Folder {
	t.Helper()
	folder, _, err := NewFolderRepository().Upsert(accountID, "INBOX", nil, nil, uint32Ptr(100))
	if err != nil {
		t.Fatalf("upsert folder: %v", err)
	}
	return folder
}

func uint32Ptr(v uint32) *uint32 { return &v }

func strPtrT(v string) *string { return &v }

func syncPayload(uid uint32, messageID string, at time.Time) SyncPayload {
	return SyncPayload{
		UID:          uid,
		MessageID:    messageID,
		Subject:      strPtrT("subject " + messageID),
		Flags:        []string{`\Seen`},
		InternalDate: &at,
		ContentText:  strPtrT("body"),
	}
}

func TestSaveFolderEmailsIdempotent(t *testing.T) {
	setupTestDB(t)
	account := createTestAccount(t)
	folder := createTestFolder(t, account.ID)
	repo := NewEmailSyncRepository()

	now := time.Now().UTC().Truncate(time.Second)
	payloads := []SyncPayload{
		syncPayload(45, "m45@example.com", now),
		syncPayload(46, "m46@example.com", now.Add(time.Minute)),
		syncPayload(47, "m47@example.com", now.Add(2*time.Minute)),
	}

	inserted, ids, err := repo.SaveFolderEmails(account.ID, folder.ID, payloads)
	if err != nil {
		t.Fatalf("first save: %v", err)
	}
	if inserted != 3 || len(ids) != 3 {
		t.Fatalf("first save inserted=%d ids=%d", inserted, len(ids))
	}

	// Second identical call: nothing new, identical state.
	inserted, ids, err = repo.SaveFolderEmails(account.ID, folder.ID, payloads)
	if err != nil {
		t.Fatalf("second save: %v", err)
	}
	if inserted != 0 || len(ids) != 0 {
		t.Fatalf("second save must insert nothing, got inserted=%d", inserted)
	}

	var messageCount, fmCount, bodyCount int64
	database.GetDB().Model(&models.Message{}).Count(&messageCount)
	database.GetDB().Model(&models.FolderMessage{}).Count(&fmCount)
	database.GetDB().Model(&models.Body{}).Count(&bodyCount)
	if messageCount != 3 || fmCount != 3 || bodyCount != 3 {
		t.Fatalf("counts after duplicate save: messages=%d fms=%d bodies=%d", messageCount, fmCount, bodyCount)
	}

	// New messages start PENDING / NORMAL / 0.0.
	var message models.Message
	database.GetDB().Where("message_id = ?", "m45@example.com").First(&message)
	if message.PhishingStatus != models.PhishingStatusPending ||
		message.PhishingLevel != models.PhishingLevelNormal ||
		message.PhishingScore != 0.0 {
		t.Fatalf("initial detection state wrong: %+v", message)
	}
}

func TestSaveFolderEmailsFlagRefresh(t *testing.T) {
	setupTestDB(t)
	account := createTestAccount(t)
	folder := createTestFolder(t, account.ID)
	repo := NewEmailSyncRepository()

	now := time.Now().UTC()
	unseen := syncPayload(45, "m45@example.com", now)
	unseen.Flags = nil
	if _, _, err := repo.SaveFolderEmails(account.ID, folder.ID, []SyncPayload{unseen}); err != nil {
		t.Fatalf("save: %v", err)
	}

	var fm models.FolderMessage
	database.GetDB().Where("folder_id = ? AND uid = ?", folder.ID, 45).First(&fm)
	if fm.IsRead != 0 {
		t.Fatalf("expected unread, got %d", fm.IsRead)
	}

	seen := syncPayload(45, "m45@example.com", now)
	seen.Flags = []string{`\Seen`, `\Flagged`}
	inserted, _, err := repo.SaveFolderEmails(account.ID, folder.ID, []SyncPayload{seen})
	if err != nil {
		t.Fatalf("flag refresh save: %v", err)
	}
	if inserted != 0 {
		t.Fatalf("flag refresh must not create rows, inserted=%d", inserted)
	}

	var refreshed models.FolderMessage
	database.GetDB().Where("folder_id = ? AND uid = ?", folder.ID, 45).First(&refreshed)
	if refreshed.IsRead != 1 || refreshed.IsFlagged != 1 {
		t.Fatalf("flags not refreshed: %+v", refreshed)
	}
	if refreshed.ID != fm.ID {
		t.Fatal("flag refresh replaced the row instead of updating it")
	}
}

func TestSaveFolderEmailsSharedMessageAcrossFolders(t *testing.T) {
	setupTestDB(t)
	account := createTestAccount(t)
	inbox := createTestFolder(t, account.ID)
	archive, _, err := NewFolderRepository().Upsert(account.ID, "Archive", nil, nil, uint32Ptr(1))
	if err != nil {
		t.Fatalf("upsert archive: %v", err)
	}
	repo := NewEmailSyncRepository()

	now := time.Now().UTC()
	if _, _, err := repo.SaveFolderEmails(account.ID, inbox.ID, []SyncPayload{syncPayload(45, "shared@example.com", now)}); err != nil {
		t.Fatalf("inbox save: %v", err)
	}
	inserted, _, err := repo.SaveFolderEmails(account.ID, archive.ID, []SyncPayload{syncPayload(9, "shared@example.com", now)})
	if err != nil {
		t.Fatalf("archive save: %v", err)
	}
	if inserted != 1 {
		t.Fatalf("archive appearance must insert a FolderMessage, inserted=%d", inserted)
	}

	var messageCount, fmCount, bodyCount int64
	database.GetDB().Model(&models.Message{}).Count(&messageCount)
	database.GetDB().Model(&models.FolderMessage{}).Count(&fmCount)
	database.GetDB().Model(&models.Body{}).Count(&bodyCount)
	if messageCount != 1 || fmCount != 2 || bodyCount != 1 {
		t.Fatalf("shared message state: messages=%d fms=%d bodies=%d", messageCount, fmCount, bodyCount)
	}
}

func TestFolderUpsertUIDValidityChangePurges(t *testing.T) {
	setupTestDB(t)
	account := createTestAccount(t)
	folderRepo := NewFolderRepository()
	syncRepo := NewEmailSyncRepository()

	folder, changed, err := folderRepo.Upsert(account.ID, "INBOX", nil, nil, uint32Ptr(100))
	if err != nil || changed {
		t.Fatalf("initial upsert: changed=%v err=%v", changed, err)
	}

	now := time.Now().UTC()
	if _, _, err := syncRepo.SaveFolderEmails(account.ID, folder.ID, []SyncPayload{
		syncPayload(40, "old@example.com", now),
	}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := folderRepo.UpdateSyncState(folder.ID, 40, now); err != nil {
		t.Fatalf("update sync state: %v", err)
	}

	// Remote generation changed.
	folder, changed, err = folderRepo.Upsert(account.ID, "INBOX", nil, nil, uint32Ptr(200))
	if err != nil {
		t.Fatalf("upsert with new validity: %v", err)
	}
	if !changed {
		t.Fatal("UIDVALIDITY change not detected")
	}
	if folder.LastUID != 0 {
		t.Fatalf("cursor not reset, last_uid=%d", folder.LastUID)
	}

	if _, err := folderRepo.PurgeMessages(folder.ID); err != nil {
		t.Fatalf("purge: %v", err)
	}

	var fmCount, messageCount, bodyCount int64
	database.GetDB().Model(&models.FolderMessage{}).Count(&fmCount)
	database.GetDB().Model(&models.Message{}).Count(&messageCount)
	database.GetDB().Model(&models.Body{}).Count(&bodyCount)
	if fmCount != 0 || messageCount != 0 || bodyCount != 0 {
		t.Fatalf("purge left rows: fms=%d messages=%d bodies=%d", fmCount, messageCount, bodyCount)
	}

	var reloaded models.Folder
	database.GetDB().Where("id = ?", folder.ID).First(&reloaded)
	if reloaded.UIDValidity == nil || *reloaded.UIDValidity != 200 {
		t.Fatalf("uid_validity not stored: %+v", reloaded.UIDValidity)
	}
}

func TestMarkAsReadIdempotent(t *testing.T) {
	setupTestDB(t)
	account := createTestAccount(t)
	folder := createTestFolder(t, account.ID)
	syncRepo := NewEmailSyncRepository()
	emailRepo := NewEmailRepository()

	now := time.Now().UTC()
	payload := syncPayload(45, "m@example.com", now)
	payload.Flags = nil
	_, ids, err := syncRepo.SaveFolderEmails(account.ID, folder.ID, []SyncPayload{payload})
	if err != nil || len(ids) != 1 {
		t.Fatalf("save: ids=%d err=%v", len(ids), err)
	}

	if err := emailRepo.MarkAsRead(ids[0]); err != nil {
		t.Fatalf("first mark: %v", err)
	}
	if err := emailRepo.MarkAsRead(ids[0]); err != nil {
		t.Fatalf("second mark must be a no-op, got %v", err)
	}

	detail, err := emailRepo.GetDetail(context.Background(), ids[0])
	if err != nil {
		t.Fatalf("detail: %v", err)
	}
	if detail.FolderMessage.IsRead != 1 {
		t.Fatal("not marked read")
	}
}
