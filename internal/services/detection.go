package services

import (
	"context"
	"fmt"
	"log"
	"strings"

	"mailsentry/internal/models"
	"mailsentry/internal/phishing"
	"mailsentry/internal/repository"
)

// senderWhitelist and urlWhitelist are the matcher surfaces the pipeline
// consults; narrow interfaces keep the pipeline testable with fakes.
type senderWhitelist interface {
	IsWhitelisted(senderAddress string) (bool, error)
}

type urlWhitelist interface {
	AllURLsWhitelisted(urls []string) (bool, error)
}

// PhishingDetectionService drives the classification pipeline for synced
// messages: whitelist short-circuits first, then the dynamically-selected
// detector set, then the result write and the SSE fan-out.
type PhishingDetectionService struct {
	emailRepo       *repository.EmailRepository
	detector        phishing.Detector
	events          *PhishingEventService
	senderWhitelist senderWhitelist
	urlWhitelist    urlWhitelist
	jobs            *JobRunner
}

func NewPhishingDetectionService(
	detector phishing.Detector,
	events *PhishingEventService,
	sender *SenderWhitelistService,
	url *URLWhitelistService,
	jobs *JobRunner,
) *PhishingDetectionService {
	return &PhishingDetectionService{
		emailRepo:       repository.NewEmailRepository(),
		detector:        detector,
		events:          events,
		senderWhitelist: sender,
		urlWhitelist:    url,
		jobs:            jobs,
	}
}

// ScheduleBatch hands a detection batch to the job runner. One submission is
// one worker; the ids run sequentially in order.
func (s *PhishingDetectionService) ScheduleBatch(folderMessageIDs []string) {
	if len(folderMessageIDs) == 0 {
		return
	}
	ids := make([]string, len(folderMessageIDs))
	copy(ids, folderMessageIDs)
	s.jobs.Submit("detect-batch", func() {
		s.DetectBatch(ids)
	})
	log.Printf("[Detect] batch scheduled: %d messages", len(ids))
}

// DetectBatch classifies each message in order. Failures on one message are
// logged and do not affect the siblings. After the batch, one batch_completed
// event goes to each distinct owning user.
func (s *PhishingDetectionService) DetectBatch(folderMessageIDs []string) {
	userIDs := make(map[string]struct{})
	for _, id := range folderMessageIDs {
		userID, err := s.detectOne(id)
		if err != nil {
			log.Printf("[Detect] message %s failed: %v", id, err)
			continue
		}
		if userID != "" {
			userIDs[userID] = struct{}{}
		}
	}

	log.Printf("[Detect] batch completed: %d messages", len(folderMessageIDs))
	if s.events != nil {
		for userID := range userIDs {
			s.events.PublishBatchCompleted(userID, len(folderMessageIDs))
		}
	}
}

func (s *PhishingDetectionService) detectOne(folderMessageID string) (string, error) {
	detail, err := s.emailRepo.GetDetail(context.Background(), folderMessageID)
	if err != nil {
		return "", err
	}
	message := detail.Message

	var contentText, contentHTML string
	if detail.Body != nil {
		if detail.Body.ContentText != nil {
			contentText = *detail.Body.ContentText
		}
		if detail.Body.ContentHTML != nil {
			contentHTML = *detail.Body.ContentHTML
		}
	}

	in := phishing.Input{
		Sender:      derefString(message.SenderAddress),
		Subject:     derefString(message.Subject),
		ContentText: contentText,
		ContentHTML: contentHTML,
	}
	result := s.Classify(context.Background(), in)

	if err := s.emailRepo.UpdatePhishingResult(
		message.ID, result.Level, result.Score, result.Reason, models.PhishingStatusCompleted,
	); err != nil {
		return "", err
	}

	var userID string
	if detail.Account != nil {
		userID = detail.Account.OwnerUserID
	}
	if s.events != nil && userID != "" {
		s.events.PublishDetectionUpdate(userID, map[string]interface{}{
			"email_id":        folderMessageID,
			"phishing_level":  result.Level,
			"phishing_score":  result.Score,
			"phishing_status": models.PhishingStatusCompleted,
			"phishing_reason": result.Reason,
		})
	}
	return userID, nil
}

// Classify applies the whitelist short-circuits and falls through to the
// composite detector:
//  1. whitelisted sender -> NORMAL, detectors skipped;
//  2. non-empty URL set entirely whitelisted -> NORMAL, detectors skipped;
//  3. otherwise the dynamic detector decides.
func (s *PhishingDetectionService) Classify(ctx context.Context, in phishing.Input) phishing.Result {
	sender := strings.ToLower(strings.TrimSpace(in.Sender))
	if s.senderWhitelist != nil && sender != "" {
		ok, err := s.senderWhitelist.IsWhitelisted(sender)
		if err != nil {
			log.Printf("[Detect] sender whitelist check failed: %v", err)
		} else if ok {
			return phishing.NormalResult("发件人在白名单中，无需检测")
		}
	}

	if s.urlWhitelist != nil {
		urls := ExtractMessageURLs(in.ContentText, in.ContentHTML)
		if len(urls) > 0 {
			ok, err := s.urlWhitelist.AllURLsWhitelisted(urls)
			if err != nil {
				log.Printf("[Detect] url whitelist check failed: %v", err)
			} else if ok {
				return phishing.NormalResult(fmt.Sprintf("邮件中的所有链接(%d个)都在白名单中，无需检测", len(urls)))
			}
		}
	}

	result, err := s.detector.Detect(ctx, in)
	if err != nil {
		log.Printf("[Detect] detector failed: %v", err)
		return phishing.NormalResult("检测器执行失败")
	}
	return result
}

// DetectSingle runs detection for one message synchronously, for the
// operator surface.
func (s *PhishingDetectionService) DetectSingle(folderMessageID string) (map[string]interface{}, error) {
	if _, err := s.detectOne(folderMessageID); err != nil {
		return nil, err
	}
	detail, err := s.emailRepo.GetDetail(context.Background(), folderMessageID)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"email_id":        folderMessageID,
		"phishing_level":  detail.Message.PhishingLevel,
		"phishing_score":  detail.Message.PhishingScore,
		"phishing_reason": derefString(detail.Message.PhishingReason),
		"phishing_status": detail.Message.PhishingStatus,
	}, nil
}

// RedetectAll resets every message to PENDING and schedules a global
// detection batch. Returns the number of scheduled messages.
func (s *PhishingDetectionService) RedetectAll() (int, error) {
	folderMessageIDs, err := s.emailRepo.GetAllFolderMessageIDs()
	if err != nil {
		return 0, err
	}
	if len(folderMessageIDs) == 0 {
		return 0, nil
	}

	messageIDs, err := s.emailRepo.MessageIDsForFolderMessages(folderMessageIDs)
	if err != nil {
		return 0, err
	}
	if err := s.emailRepo.ResetPhishingPending(messageIDs); err != nil {
		return 0, err
	}

	s.ScheduleBatch(folderMessageIDs)
	log.Printf("[Detect] global re-detection scheduled: %d messages", len(folderMessageIDs))
	return len(folderMessageIDs), nil
}

// DetectorInfo exposes detector metadata for the operator surface.
func (s *PhishingDetectionService) DetectorInfo() map[string]interface{} {
	return s.detector.Info()
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
