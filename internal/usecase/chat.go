package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/qanuni/legalai/internal/domain"
	"github.com/qanuni/legalai/pkg/textx"
)

// MaxChatMessageRunes bounds the user text forwarded to providers.
const MaxChatMessageRunes = 4000

// Completer is the fallback chain used by chat.
type Completer interface {
	CallWithFallback(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error)
}

// ChatService answers chatbot and WhatsApp messages through the provider
// fallback chain.
type ChatService struct {
	completer   Completer
	catalog     *Catalog
	maxTokens   int
	temperature float64
}

// NewChatService constructs a ChatService.
func NewChatService(c Completer, catalog *Catalog, maxTokens int, temperature float64) *ChatService {
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &ChatService{completer: c, catalog: catalog, maxTokens: maxTokens, temperature: temperature}
}

// Reply returns the assistant answer for message.
func (s *ChatService) Reply(ctx context.Context, message string) (string, error) {
	message = textx.Truncate(textx.SanitizeText(message), MaxChatMessageRunes)
	if message == "" {
		return "", fmt.Errorf("%w: message required", domain.ErrInvalidArgument)
	}
	p, err := s.catalog.Render(KindChat, map[string]string{"Message": message})
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInternal, err)
	}
	reply, err := s.completer.CallWithFallback(ctx, p.Prompt, s.maxTokens, s.temperature)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(reply), nil
}
