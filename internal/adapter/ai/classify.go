package ai

import (
	"context"
	"errors"
	"strings"

	"github.com/qanuni/legalai/internal/domain"
)

// Kind is the user-facing category of an upstream AI failure.
type Kind string

// Kinds, most specific first.
const (
	KindAuth         Kind = "auth"
	KindPermission   Kind = "permission"
	KindQuota        Kind = "quota"
	KindRateLimited  Kind = "rate_limited"
	KindBadRequest   Kind = "bad_request"
	KindServer       Kind = "server"
	KindUnclassified Kind = "unclassified"
)

// AIError is a classified upstream failure carrying a fixed bilingual message.
type AIError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *AIError) Error() string { return e.Message }

func (e *AIError) Unwrap() error { return e.Err }

// Is lets callers match on the domain sentinel of the kind.
func (e *AIError) Is(target error) bool {
	s := kindSentinel(e.Kind)
	return s != nil && target == s
}

type rule struct {
	kind    Kind
	needles []string
	message string
}

var rules = []rule{
	{KindAuth, []string{"api key", "api_key", "unauthenticated", "401"},
		"کلید API نامعتبر است یا تنظیم نشده است. لطفاً تنظیمات را بررسی کنید. / Invalid or missing API key. Please check the configuration."},
	{KindPermission, []string{"permission_denied", "permission denied", "403"},
		"شما اجازه استفاده از این سرویس را ندارید. / Permission denied for this AI service."},
	{KindQuota, []string{"quota", "resource_exhausted"},
		"سهمیه استفاده به پایان رسیده است. لطفاً بعداً تلاش کنید. / Usage quota exceeded. Please try again later."},
	{KindRateLimited, []string{"429", "rate limit", "too many requests"},
		"تعداد درخواست‌ها زیاد است. لطفاً کمی صبر کنید. / Too many requests. Please wait a moment and try again."},
	{KindBadRequest, []string{"400", "invalid_argument"},
		"درخواست نامعتبر است. لطفاً ورودی را بررسی کنید. / The request was rejected as invalid. Please review your input."},
	{KindServer, []string{"500", "502", "503", "internal", "unavailable"},
		"سرویس هوش مصنوعی در حال حاضر در دسترس نیست. / The AI service is temporarily unavailable."},
}

// Classify maps a raw provider error to an *AIError by matching substrings of
// its lower-cased message. Context errors, ParseErrors and errors that are
// already classified pass through unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var ae *AIError
	if errors.As(err, &ae) {
		return err
	}
	var pe *ParseError
	if errors.As(err, &pe) {
		return err
	}

	msg := strings.ToLower(err.Error())
	for _, r := range rules {
		for _, n := range r.needles {
			if strings.Contains(msg, n) {
				return &AIError{Kind: r.kind, Message: r.message, Err: err}
			}
		}
	}
	return &AIError{Kind: KindUnclassified, Message: err.Error(), Err: err}
}

// KindOf returns the kind of a classified error, or KindUnclassified.
func KindOf(err error) Kind {
	var ae *AIError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindUnclassified
}

func kindSentinel(k Kind) error {
	switch k {
	case KindAuth:
		return domain.ErrUpstreamAuth
	case KindPermission:
		return domain.ErrUpstreamPermission
	case KindQuota:
		return domain.ErrQuotaExceeded
	case KindRateLimited:
		return domain.ErrUpstreamRateLimit
	case KindBadRequest:
		return domain.ErrUpstreamBadRequest
	case KindServer:
		return domain.ErrUpstreamServer
	}
	return nil
}
