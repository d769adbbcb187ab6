package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"gopkg.in/gomail.v2"

	"mailsentry/internal/models"
	"mailsentry/internal/repository"
	"mailsentry/internal/utils"
)

// EmailService serves the aggregated mailbox views and outbound sending.
type EmailService struct {
	accountRepo *repository.AccountRepository
	folderRepo  *repository.FolderRepository
	emailRepo   *repository.EmailRepository
	encryptor   *utils.PasswordEncryptor
}

func NewEmailService(encryptor *utils.PasswordEncryptor) *EmailService {
	return &EmailService{
		accountRepo: repository.NewAccountRepository(),
		folderRepo:  repository.NewFolderRepository(),
		emailRepo:   repository.NewEmailRepository(),
		encryptor:   encryptor,
	}
}

// EmailListPage is one cursor page of the aggregated list.
type EmailListPage struct {
	Emails     []repository.EmailListRow `json:"emails"`
	NextCursor *string                   `json:"next_cursor"`
	HasNext    bool                      `json:"has_next"`
}

// GetEmails lists folder messages across the user's accounts (or one
// account), newest first, cursor-paginated.
func (s *EmailService) GetEmails(ctx context.Context, ownerUserID, accountID, cursor string, limit int) (*EmailListPage, error) {
	accounts, err := s.accountRepo.FindAllForOwnerCtx(ctx, ownerUserID)
	if err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		return &EmailListPage{Emails: []repository.EmailListRow{}}, nil
	}

	accountIDs := make([]string, 0, len(accounts))
	if strings.TrimSpace(accountID) != "" {
		for _, a := range accounts {
			if a.ID == accountID {
				accountIDs = append(accountIDs, a.ID)
			}
		}
		if len(accountIDs) == 0 {
			return &EmailListPage{Emails: []repository.EmailListRow{}}, nil
		}
	} else {
		for _, a := range accounts {
			accountIDs = append(accountIDs, a.ID)
		}
	}

	folderIDs, err := s.folderRepo.FindIDsByAccountIDs(accountIDs)
	if err != nil {
		return nil, err
	}
	if len(folderIDs) == 0 {
		return &EmailListPage{Emails: []repository.EmailListRow{}}, nil
	}

	cursorDate, cursorID, err := repository.ParseListCursor(cursor)
	if err != nil {
		return nil, err
	}

	rows, nextCursor, err := s.emailRepo.ListByFolderIDs(ctx, folderIDs, cursorDate, cursorID, limit)
	if err != nil {
		return nil, err
	}

	return &EmailListPage{
		Emails:     rows,
		NextCursor: nextCursor,
		HasNext:    nextCursor != nil,
	}, nil
}

// EmailDetailResponse is the full view of one folder message.
type EmailDetailResponse struct {
	ID             string              `json:"id"`
	AccountID      string              `json:"account_id"`
	EmailAddress   string              `json:"email_address"`
	MessageID      string              `json:"message_id"`
	Subject        *string             `json:"subject"`
	SenderName     *string             `json:"sender_name"`
	SenderAddress  *string             `json:"sender_address"`
	Recipients     []models.Recipient  `json:"recipients"`
	ContentText    *string             `json:"content_text"`
	ContentHTML    *string             `json:"content_html"`
	ReceivedAt     *time.Time          `json:"received_at"`
	IsRead         int                 `json:"is_read"`
	PhishingLevel  string              `json:"phishing_level"`
	PhishingScore  float64             `json:"phishing_score"`
	PhishingReason *string             `json:"phishing_reason"`
	PhishingStatus string              `json:"phishing_status"`
}

// GetEmailDetail returns one message's full content and marks it read.
func (s *EmailService) GetEmailDetail(ctx context.Context, ownerUserID, folderMessageID string) (*EmailDetailResponse, error) {
	detail, err := s.emailRepo.GetDetail(ctx, folderMessageID)
	if err != nil {
		return nil, err
	}
	if detail.Account == nil || detail.Account.OwnerUserID != ownerUserID {
		return nil, ErrUnauthorized
	}

	if detail.FolderMessage.IsRead == 0 {
		if err := s.emailRepo.MarkAsRead(folderMessageID); err != nil {
			log.Printf("[Email] mark read failed: id=%s err=%v", folderMessageID, err)
		}
	}

	response := &EmailDetailResponse{
		ID:             detail.FolderMessage.ID,
		AccountID:      detail.Account.ID,
		EmailAddress:   detail.Account.EmailAddress,
		MessageID:      detail.Message.MessageID,
		Subject:        detail.Message.Subject,
		SenderName:     detail.Message.SenderName,
		SenderAddress:  detail.Message.SenderAddress,
		Recipients:     detail.Recipients,
		ReceivedAt:     detail.Message.ReceivedAt,
		IsRead:         1,
		PhishingLevel:  detail.Message.PhishingLevel,
		PhishingScore:  detail.Message.PhishingScore,
		PhishingReason: detail.Message.PhishingReason,
		PhishingStatus: detail.Message.PhishingStatus,
	}
	if detail.Body != nil {
		response.ContentText = detail.Body.ContentText
		response.ContentHTML = detail.Body.ContentHTML
	}
	return response, nil
}

// MarkAsRead marks one folder message read; calling it twice is a no-op.
func (s *EmailService) MarkAsRead(ctx context.Context, ownerUserID, folderMessageID string) error {
	detail, err := s.emailRepo.GetDetail(ctx, folderMessageID)
	if err != nil {
		return err
	}
	if detail.Account == nil || detail.Account.OwnerUserID != ownerUserID {
		return ErrUnauthorized
	}
	return s.emailRepo.MarkAsRead(folderMessageID)
}

type SendEmailInput struct {
	AccountID   string   `json:"account_id" binding:"required"`
	To          []string `json:"to" binding:"required"`
	Cc          []string `json:"cc"`
	Subject     string   `json:"subject"`
	Content     string   `json:"content"`
	ContentHTML string   `json:"content_html"`
}

// SendEmail sends via the account's SMTP endpoint with the stored credential.
func (s *EmailService) SendEmail(ownerUserID string, input SendEmailInput) (bool, string) {
	account, err := s.accountRepo.FindByIDForOwner(ownerUserID, input.AccountID)
	if err != nil {
		return false, "发件邮箱账户不存在。"
	}
	if strings.TrimSpace(account.SMTPHost) == "" {
		return false, "该邮箱未配置SMTP服务器。"
	}

	password, err := s.encryptor.Decrypt(account.EncryptedPassword)
	if err != nil {
		return false, "邮箱密码解密失败，请重新保存邮箱配置。"
	}

	m := gomail.NewMessage()
	m.SetHeader("From", account.EmailAddress)
	m.SetHeader("To", input.To...)
	if len(input.Cc) > 0 {
		m.SetHeader("Cc", input.Cc...)
	}
	m.SetHeader("Subject", input.Subject)
	m.SetBody("text/plain", input.Content)
	if strings.TrimSpace(input.ContentHTML) != "" {
		m.AddAlternative("text/html", input.ContentHTML)
	}

	authUser := account.AuthUser
	if strings.TrimSpace(authUser) == "" {
		authUser = account.EmailAddress
	}

	d := gomail.NewDialer(account.SMTPHost, account.SMTPPort, authUser, password)
	d.SSL = account.UseSSL == 1

	if err := d.DialAndSend(m); err != nil {
		log.Printf("[Email] send failed: account=%s err=%v", account.ID, err)
		return false, fmt.Sprintf("邮件发送失败: %v", err)
	}

	log.Printf("[Email] sent: from=%s to=%v", account.EmailAddress, input.To)
	return true, "邮件发送成功。"
}
