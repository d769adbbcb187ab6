package services

import (
	"context"
	"strings"
	"testing"

	"mailsentry/internal/models"
	"mailsentry/internal/phishing"
)

type spyDetector struct {
	calls  int
	result phishing.Result
}

func (d *spyDetector) Name() string { return "Spy" }

func (d *spyDetector) Detect(ctx context.Context, in phishing.Input) (phishing.Result, error) {
	d.calls++
	return d.result, nil
}

func (d *spyDetector) Info() map[string]interface{} { return nil }

type fakeSenderWhitelist struct {
	whitelisted map[string]bool
}

func (f fakeSenderWhitelist) IsWhitelisted(sender string) (bool, error) {
	return f.whitelisted[sender], nil
}

type fakeURLWhitelist struct {
	allowed map[string]bool
}

func (f fakeURLWhitelist) AllURLsWhitelisted(urls []string) (bool, error) {
	if len(urls) == 0 {
		return false, nil
	}
	for _, u := range urls {
		if !f.allowed[u] {
			return false, nil
		}
	}
	return true, nil
}

func newTestPipeline(detector phishing.Detector, sender senderWhitelist, url urlWhitelist) *PhishingDetectionService {
	return &PhishingDetectionService{
		detector:        detector,
		senderWhitelist: sender,
		urlWhitelist:    url,
	}
}

func TestClassifySenderShortCircuit(t *testing.T) {
	spy := &spyDetector{result: phishing.Result{Level: models.PhishingLevelHighRisk, Score: 0.99, Reason: "boom"}}
	svc := newTestPipeline(
		spy,
		fakeSenderWhitelist{whitelisted: map[string]bool{"foo@mail.tsinghua.edu.cn": true}},
		fakeURLWhitelist{},
	)

	result := svc.Classify(context.Background(), phishing.Input{
		Sender:      "Foo@mail.tsinghua.edu.cn",
		Subject:     "账号异常，立即验证",
		ContentText: "点击 http://evil.example/verify",
	})

	if result.Level != models.PhishingLevelNormal || result.Score != 0.0 {
		t.Fatalf("short-circuit not taken: %+v", result)
	}
	if !strings.Contains(result.Reason, "发件人在白名单中") {
		t.Fatalf("reason = %q", result.Reason)
	}
	if spy.calls != 0 {
		t.Fatalf("detector must not run on whitelisted sender, ran %d times", spy.calls)
	}
}

func TestClassifyAllURLsWhitelisted(t *testing.T) {
	spy := &spyDetector{result: phishing.Result{Level: models.PhishingLevelHighRisk, Score: 0.99}}
	svc := newTestPipeline(
		spy,
		fakeSenderWhitelist{},
		fakeURLWhitelist{allowed: map[string]bool{"https://safe.example.com/x": true}},
	)

	result := svc.Classify(context.Background(), phishing.Input{
		Sender:      "someone@unknown.example",
		ContentHTML: `<a href="https://safe.example.com/x">link</a>`,
	})

	if result.Level != models.PhishingLevelNormal {
		t.Fatalf("url short-circuit not taken: %+v", result)
	}
	if !strings.Contains(result.Reason, "白名单") {
		t.Fatalf("reason = %q", result.Reason)
	}
	if spy.calls != 0 {
		t.Fatalf("detector must not run, ran %d times", spy.calls)
	}
}

func TestClassifyMixedURLsRunDetector(t *testing.T) {
	spy := &spyDetector{result: phishing.Result{Level: models.PhishingLevelSuspicious, Score: 0.7, Reason: "r"}}
	svc := newTestPipeline(
		spy,
		fakeSenderWhitelist{},
		fakeURLWhitelist{allowed: map[string]bool{"https://safe.example.com/x": true}},
	)

	result := svc.Classify(context.Background(), phishing.Input{
		Sender:      "someone@unknown.example",
		ContentHTML: `<a href="https://safe.example.com/x">a</a><a href="https://evil.cn/x">b</a>`,
	})

	if spy.calls != 1 {
		t.Fatalf("detector should run on mixed urls, ran %d times", spy.calls)
	}
	if result.Level != models.PhishingLevelSuspicious {
		t.Fatalf("result = %+v", result)
	}
}

func TestClassifyEmptyURLSetIsNotWhitelisted(t *testing.T) {
	spy := &spyDetector{result: phishing.Result{Level: models.PhishingLevelNormal, Score: 0.0, Reason: ""}}
	svc := newTestPipeline(spy, fakeSenderWhitelist{}, fakeURLWhitelist{})

	svc.Classify(context.Background(), phishing.Input{
		Sender:      "someone@unknown.example",
		ContentText: "没有任何链接",
	})

	if spy.calls != 1 {
		t.Fatalf("detector must run when the message has no urls, ran %d times", spy.calls)
	}
}
