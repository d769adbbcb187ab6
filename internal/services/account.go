package services

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"mailsentry/internal/imapclient"
	"mailsentry/internal/mailparse"
	"mailsentry/internal/models"
	"mailsentry/internal/repository"
	"mailsentry/internal/utils"
)

// ErrMissingEndpoints is returned when a CUSTOM account lacks its IMAP host.
var ErrMissingEndpoints = errors.New("missing imap endpoints for custom provider")

// EmailAccountService manages registered mailboxes and runs per-account
// incremental synchronization.
type EmailAccountService struct {
	accountRepo *repository.AccountRepository
	folderRepo  *repository.FolderRepository
	syncRepo    *repository.EmailSyncRepository
	encryptor   *utils.PasswordEncryptor
	detection   *PhishingDetectionService

	chunkSize       int
	initialLookback uint32
}

func NewEmailAccountService(
	encryptor *utils.PasswordEncryptor,
	detection *PhishingDetectionService,
	chunkSize int,
	initialLookback uint32,
) *EmailAccountService {
	if chunkSize <= 0 {
		chunkSize = 20
	}
	if initialLookback == 0 {
		initialLookback = 50
	}
	return &EmailAccountService{
		accountRepo:     repository.NewAccountRepository(),
		folderRepo:      repository.NewFolderRepository(),
		syncRepo:        repository.NewEmailSyncRepository(),
		encryptor:       encryptor,
		detection:       detection,
		chunkSize:       chunkSize,
		initialLookback: initialLookback,
	}
}

func formatIMAPLoginError(imapHost string, err error) string {
	base := ""
	if err != nil {
		base = err.Error()
	}
	host := strings.ToLower(strings.TrimSpace(imapHost))
	if host == "" {
		return base
	}

	// QQ Mail commonly requires enabling IMAP/SMTP and using an authorization code (not the login password).
	if strings.Contains(host, "qq.com") {
		lower := strings.ToLower(base)
		if strings.Contains(lower, "login fail") || strings.Contains(lower, "authentication failed") || strings.Contains(lower, "auth") {
			return fmt.Sprintf(
				"%s\n\n提示：QQ邮箱需要在网页版「设置 -> 账户」开启 IMAP/SMTP 服务，并使用生成的“授权码”（不是QQ登录密码）。",
				base,
			)
		}
	}
	if strings.Contains(host, "163.com") || strings.Contains(host, "126.com") || strings.Contains(host, "yeah.net") {
		lower := strings.ToLower(base)
		if strings.Contains(lower, "unsafe login") {
			return base + "\n\n提示：网易邮箱要求客户端发送ID命令标识身份，请确认使用授权码登录。"
		}
	}

	return base
}

type CreateAccountInput struct {
	EmailAddress string `json:"email_address" binding:"required"`
	Password     string `json:"password" binding:"required"`
	ProviderKind string `json:"provider_kind"`
	IMAPHost     string `json:"imap_host"`
	IMAPPort     int    `json:"imap_port"`
	SMTPHost     string `json:"smtp_host"`
	SMTPPort     int    `json:"smtp_port"`
	UseSSL       *int   `json:"use_ssl"`
	AuthUser     string `json:"auth_user"`
}

// CreateAccount registers a mailbox. The provider kind is taken from the
// input or detected from the address domain; endpoints default from the
// provider unless overridden.
func (s *EmailAccountService) CreateAccount(ownerUserID string, input CreateAccountInput) (*models.EmailAccount, error) {
	ownerUserID = strings.TrimSpace(ownerUserID)
	if ownerUserID == "" {
		return nil, fmt.Errorf("missing owner_user_id")
	}

	address := strings.TrimSpace(strings.ToLower(input.EmailAddress))
	kind := strings.TrimSpace(input.ProviderKind)
	if kind == "" {
		kind = imapclient.KindForAddress(address)
	}

	provider := imapclient.ProviderForKind(kind, imapclient.ProviderConfig{
		IMAPHost: input.IMAPHost,
		IMAPPort: input.IMAPPort,
		SMTPHost: input.SMTPHost,
		SMTPPort: input.SMTPPort,
		UseSSL:   input.UseSSL == nil || *input.UseSSL == 1,
	})
	defaults := provider.DefaultConfig()

	imapHost := strings.TrimSpace(input.IMAPHost)
	if imapHost == "" {
		imapHost = defaults.IMAPHost
	}
	if imapHost == "" {
		return nil, ErrMissingEndpoints
	}
	imapPort := input.IMAPPort
	if imapPort == 0 {
		imapPort = defaults.IMAPPort
	}
	smtpHost := strings.TrimSpace(input.SMTPHost)
	if smtpHost == "" {
		smtpHost = defaults.SMTPHost
	}
	smtpPort := input.SMTPPort
	if smtpPort == 0 {
		smtpPort = defaults.SMTPPort
	}

	useSSL := 1
	if input.UseSSL != nil {
		useSSL = *input.UseSSL
	}

	authUser := strings.TrimSpace(input.AuthUser)
	if authUser == "" {
		authUser = address
	}

	encrypted, err := s.encryptor.Encrypt(input.Password)
	if err != nil {
		return nil, err
	}

	account := &models.EmailAccount{
		ID:                uuid.NewString(),
		OwnerUserID:       ownerUserID,
		EmailAddress:      address,
		ProviderKind:      provider.Kind(),
		IMAPHost:          imapHost,
		IMAPPort:          imapPort,
		SMTPHost:          smtpHost,
		SMTPPort:          smtpPort,
		UseSSL:            useSSL,
		AuthUser:          authUser,
		EncryptedPassword: encrypted,
		IsActive:          1,
	}
	if err := s.accountRepo.Create(account); err != nil {
		return nil, err
	}
	return account, nil
}

func (s *EmailAccountService) GetAccounts(ownerUserID string) ([]models.EmailAccountResponse, error) {
	accounts, err := s.accountRepo.FindAllForOwner(ownerUserID)
	if err != nil {
		return nil, err
	}
	responses := make([]models.EmailAccountResponse, 0, len(accounts))
	for _, a := range accounts {
		responses = append(responses, a.ToResponse())
	}
	return responses, nil
}

func (s *EmailAccountService) DeleteAccount(ownerUserID, accountID string) error {
	return s.accountRepo.DeleteForOwnerCascade(ownerUserID, accountID)
}

// TestConnection verifies the endpoint and the credential without touching
// the database.
func (s *EmailAccountService) TestConnection(input CreateAccountInput) (bool, string) {
	address := strings.TrimSpace(strings.ToLower(input.EmailAddress))
	kind := strings.TrimSpace(input.ProviderKind)
	if kind == "" {
		kind = imapclient.KindForAddress(address)
	}
	provider := imapclient.ProviderForKind(kind, imapclient.ProviderConfig{
		IMAPHost: input.IMAPHost,
		IMAPPort: input.IMAPPort,
	})
	defaults := provider.DefaultConfig()

	host := strings.TrimSpace(input.IMAPHost)
	if host == "" {
		host = defaults.IMAPHost
	}
	if host == "" {
		return false, "缺少IMAP服务器配置"
	}
	port := input.IMAPPort
	if port == 0 {
		port = defaults.IMAPPort
	}
	authUser := strings.TrimSpace(input.AuthUser)
	if authUser == "" {
		authUser = address
	}

	session := imapclient.NewSession(provider)
	defer session.Logout()
	if err := session.Connect(host, port, authUser, input.Password); err != nil {
		if errors.Is(err, imapclient.ErrAuthFailed) {
			return false, "登录失败: " + formatIMAPLoginError(host, err)
		}
		return false, fmt.Sprintf("连接失败: %v", err)
	}
	return true, "连接成功！"
}

// SyncResult is the user-visible outcome of one account sync.
type SyncResult struct {
	Success        bool   `json:"success"`
	Message        string `json:"message"`
	SyncedCount    int    `json:"synced_count"`
	FoldersScanned int    `json:"folders_scanned"`
}

// Sync pulls every selectable folder of the account incrementally, persists
// new messages and hands them to the detection pipeline. Folder failures are
// isolated: a broken folder never aborts the remaining ones.
func (s *EmailAccountService) Sync(ownerUserID, accountID string) SyncResult {
	account, err := s.accountRepo.FindByIDForOwner(ownerUserID, accountID)
	if err != nil {
		return SyncResult{Success: false, Message: "邮箱账户不存在。"}
	}
	if account.IsActive == 0 {
		return SyncResult{Success: false, Message: "邮箱账户已停用。"}
	}

	password, err := s.encryptor.Decrypt(account.EncryptedPassword)
	if err != nil {
		log.Printf("[Sync] decrypt failed: account=%s err=%v", account.ID, err)
		return SyncResult{Success: false, Message: "邮箱密码解密失败，请重新保存邮箱配置。"}
	}

	provider := s.resolveProvider(account)
	session := imapclient.NewSession(provider)
	defer session.Logout()

	authUser := account.AuthUser
	if strings.TrimSpace(authUser) == "" {
		authUser = account.EmailAddress
	}
	if err := session.Connect(account.IMAPHost, account.IMAPPort, authUser, password); err != nil {
		if errors.Is(err, imapclient.ErrAuthFailed) {
			return SyncResult{Success: false, Message: "登录失败: " + formatIMAPLoginError(account.IMAPHost, err)}
		}
		return SyncResult{Success: false, Message: fmt.Sprintf("邮箱连接失败: %v", err)}
	}

	folders, err := session.ListFolders()
	if err != nil {
		return SyncResult{Success: false, Message: fmt.Sprintf("获取文件夹列表失败: %v", err)}
	}

	total := 0
	scanned := 0
	for _, folder := range folders {
		if folder.NoSelect() {
			continue
		}
		newIDs, err := s.syncFolder(account, session, folder)
		if err != nil {
			log.Printf("[Sync] folder failed: account=%s folder=%s err=%v", account.ID, folder.Name, err)
			continue
		}
		scanned++
		total += len(newIDs)
		if len(newIDs) > 0 && s.detection != nil {
			s.detection.ScheduleBatch(newIDs)
		}
	}

	if err := s.accountRepo.UpdateLastSync(account.ID, time.Now()); err != nil {
		log.Printf("[Sync] update last_sync_at failed: account=%s err=%v", account.ID, err)
	}

	log.Printf("[Sync] account done: account=%s folders=%d new=%d", account.ID, scanned, total)
	if total == 0 {
		return SyncResult{Success: true, Message: "没有新邮件", SyncedCount: 0, FoldersScanned: scanned}
	}
	return SyncResult{
		Success:        true,
		Message:        fmt.Sprintf("同步成功，获取%d封新邮件。", total),
		SyncedCount:    total,
		FoldersScanned: scanned,
	}
}

// syncFolder runs the per-folder incremental pull:
// STATUS -> folder upsert (UIDVALIDITY reconcile) -> SELECT -> UID window ->
// chunked UID FETCH -> parse -> idempotent persist -> cursor advance.
func (s *EmailAccountService) syncFolder(account *models.EmailAccount, session *imapclient.Session, info imapclient.FolderInfo) ([]string, error) {
	status, err := session.Status(info.Name)
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}

	var delimiter, attributes *string
	if info.Delimiter != "" {
		d := info.Delimiter
		delimiter = &d
	}
	if len(info.Attributes) > 0 {
		a := strings.Join(info.Attributes, " ")
		attributes = &a
	}

	folder, uidChanged, err := s.folderRepo.Upsert(account.ID, info.Name, delimiter, attributes, status.UIDValidity)
	if err != nil {
		return nil, fmt.Errorf("upsert folder: %w", err)
	}

	if uidChanged {
		deleted, err := s.folderRepo.PurgeMessages(folder.ID)
		if err != nil {
			return nil, fmt.Errorf("purge after uidvalidity change: %w", err)
		}
		log.Printf("[Sync] UIDVALIDITY changed: folder=%s purged=%d", info.Name, deleted)
	}

	if err := session.Select(info.Name); err != nil {
		return nil, err
	}

	startUID := s.startUID(folder, status)
	uids, err := session.UIDSearchSince(startUID)
	if err != nil {
		return nil, fmt.Errorf("uid search: %w", err)
	}
	if len(uids) == 0 {
		now := time.Now()
		if err := s.folderRepo.UpdateSyncState(folder.ID, folder.LastUID, now); err != nil {
			log.Printf("[Sync] update sync state failed: folder=%s err=%v", folder.ID, err)
		}
		return nil, nil
	}

	var newIDs []string
	for start := 0; start < len(uids); start += s.chunkSize {
		end := start + s.chunkSize
		if end > len(uids) {
			end = len(uids)
		}
		chunk := uids[start:end]

		fetched, err := session.UIDFetch(chunk)
		if err != nil {
			// Individual fetch failures are non-fatal; whatever arrived
			// still gets persisted.
			log.Printf("[Sync] uid fetch error: folder=%s err=%v", info.Name, err)
		}

		payloads := s.buildPayloads(info.Name, fetched)
		if len(payloads) > 0 {
			_, ids, err := s.syncRepo.SaveFolderEmails(account.ID, folder.ID, payloads)
			if err != nil {
				return newIDs, fmt.Errorf("persist chunk: %w", err)
			}
			newIDs = append(newIDs, ids...)
		}

		if err := s.folderRepo.UpdateSyncState(folder.ID, chunk[len(chunk)-1], time.Now()); err != nil {
			log.Printf("[Sync] update sync state failed: folder=%s err=%v", folder.ID, err)
		}
	}

	return newIDs, nil
}

// startUID computes the incremental window. First syncs are bounded to the
// most recent messages instead of pulling the whole history.
func (s *EmailAccountService) startUID(folder *models.Folder, status *imapclient.FolderStatus) uint32 {
	if folder.LastUID > 0 {
		return folder.LastUID + 1
	}
	if status.UIDNext != nil {
		if *status.UIDNext > s.initialLookback {
			return *status.UIDNext - s.initialLookback
		}
		return 1
	}
	return 1
}

func (s *EmailAccountService) buildPayloads(folderName string, fetched []imapclient.FetchedMessage) []repository.SyncPayload {
	payloads := make([]repository.SyncPayload, 0, len(fetched))
	for _, f := range fetched {
		parsed, err := mailparse.Parse(f.Raw)
		if err != nil {
			log.Printf("[Sync] parse failed: folder=%s uid=%d err=%v", folderName, f.UID, err)
			continue
		}

		messageID := parsed.MessageID
		if messageID == "" {
			messageID = mailparse.FallbackMessageID(folderName, f.UID)
		}

		payload := repository.SyncPayload{
			UID:           f.UID,
			MessageID:     messageID,
			Subject:       strPtr(parsed.Subject),
			SenderName:    strPtr(parsed.SenderName),
			SenderAddress: strPtr(parsed.SenderAddress),
			Snippet:       strPtr(parsed.Snippet),
			ReceivedAt:    parsed.ReceivedAt,
			Flags:         f.Flags,
			ContentText:   strPtr(parsed.ContentText),
			ContentHTML:   strPtr(parsed.ContentHTML),
			Recipients:    parsed.Recipients,
		}
		if !f.InternalDate.IsZero() {
			d := f.InternalDate
			payload.InternalDate = &d
		}
		if f.Size > 0 {
			size := int64(f.Size)
			payload.Size = &size
		}
		payloads = append(payloads, payload)
	}
	return payloads
}

func (s *EmailAccountService) resolveProvider(account *models.EmailAccount) imapclient.Provider {
	return imapclient.ProviderForKind(account.ProviderKind, imapclient.ProviderConfig{
		IMAPHost: account.IMAPHost,
		IMAPPort: account.IMAPPort,
		SMTPHost: account.SMTPHost,
		SMTPPort: account.SMTPPort,
		UseSSL:   account.UseSSL == 1,
	})
}

func strPtr(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
