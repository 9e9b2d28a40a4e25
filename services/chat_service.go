//go:generate go run go.uber.org/mock/mockgen -source=chat_service.go -destination=../mocks/mock_chat_service.go -package=mocks
package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"educhat/ai"
	"educhat/contract"
	"educhat/domain/chat"
	"educhat/domain/event"
	"educhat/moderation"
	"educhat/observability"
	"educhat/repositories"
)

// SendDirectCommand carries one direct-chat send, socket or REST originated.
type SendDirectCommand struct {
	ConnID     string
	SenderID   string
	Room       string
	Body       string
	Language   string
	BotEnabled bool
}

type IChatService interface {
	SendDirect(ctx context.Context, cmd SendDirectCommand) error
	History(room string, cursor *string) ([]chat.Message, *string, error)
	BotReply(ctx context.Context, message, language string) (string, error)
}

// ChatService is the direct-message half of the broadcast engine: it
// moderates, persists and only then emits, so a client re-fetching history
// right after the live event always observes the message.
type ChatService struct {
	log         *slog.Logger
	messages    repositories.IMessageRepository
	broadcaster contract.Broadcaster
	moderator   *moderation.Moderator
	bot         contract.BotClient
	translator  contract.Translator
	metrics     *observability.Metrics
	botTimeout  time.Duration
}

func NewChatService(log *slog.Logger, messages repositories.IMessageRepository,
	broadcaster contract.Broadcaster, moderator *moderation.Moderator,
	bot contract.BotClient, translator contract.Translator,
	metrics *observability.Metrics, botTimeout time.Duration) *ChatService {
	return &ChatService{
		log:         log,
		messages:    messages,
		broadcaster: broadcaster,
		moderator:   moderator,
		bot:         bot,
		translator:  translator,
		metrics:     metrics,
		botTimeout:  botTimeout,
	}
}

// SendDirect moderates and persists the message, then emits receive_message
// to the room excluding the triggering connection. A persistence failure
// aborts before any emission. When bot assistance is requested, the reply is
// produced asynchronously and pushed to the sender only; bot failures are
// logged and swallowed.
func (s *ChatService) SendDirect(ctx context.Context, cmd SendDirectCommand) error {
	language := cmd.Language
	if language == "" {
		language = ai.DetectLanguage(cmd.Body)
	}

	body, censoredWords := s.moderator.Censor(cmd.Body)
	if len(censoredWords) > 0 {
		s.log.Info("Message censored", "room", cmd.Room, "words", len(censoredWords))
	}

	message := chat.Message{
		ID:        uuid.New(),
		Room:      cmd.Room,
		SenderID:  cmd.SenderID,
		Body:      body,
		Language:  language,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.messages.Store(message); err != nil {
		return err
	}
	s.metrics.MessagesStored.Add(1)

	s.broadcaster.BroadcastRoom(chat.RoomID(cmd.Room), event.ReceiveMessage{
		Room:      message.Room,
		SenderID:  message.SenderID,
		Message:   message.Body,
		Language:  message.Language,
		Timestamp: message.CreatedAt,
	}, cmd.ConnID)

	if cmd.BotEnabled {
		go s.botEcho(cmd.ConnID, message)
	}
	return nil
}

// botEcho runs outside the send path. The AI call is bounded; a timeout is
// treated like any other bot failure.
func (s *ChatService) botEcho(connID string, message chat.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), s.botTimeout)
	defer cancel()

	reply, err := s.bot.Reply(ctx, message.Body, message.Language)
	if err != nil {
		s.metrics.BotFailures.Add(1)
		s.log.Warn("Bot echo failed", "room", message.Room, "error", err)
		return
	}
	s.metrics.BotReplies.Add(1)

	s.broadcaster.EmitConn(connID, event.ReceiveMessage{
		Room:      message.Room,
		SenderID:  chat.BotSenderID,
		Message:   reply,
		Language:  message.Language,
		Timestamp: time.Now().UTC(),
	})
}

// History pages through a conversation room, newest first.
func (s *ChatService) History(room string, cursor *string) ([]chat.Message, *string, error) {
	return s.messages.History(room, cursor)
}

// BotReply answers a standalone tutoring question. Non-English input is
// translated to English before the model and the answer translated back;
// translation failures pass the text through unmodified.
func (s *ChatService) BotReply(ctx context.Context, message, language string) (string, error) {
	if language == "" {
		language = ai.DetectLanguage(message)
	}

	prompt := message
	if language != "" && language != "en" {
		translated, err := s.translator.Translate(ctx, message, "en")
		if err != nil {
			s.log.Warn("Translation failed, using original text", "target", "en", "error", err)
		} else {
			prompt = translated
		}
	}

	reply, err := s.bot.Reply(ctx, prompt, language)
	if err != nil {
		s.metrics.BotFailures.Add(1)
		return "", err
	}
	s.metrics.BotReplies.Add(1)

	if language != "" && language != "en" {
		translated, err := s.translator.Translate(ctx, reply, language)
		if err != nil {
			s.log.Warn("Translation failed, using original text", "target", language, "error", err)
			return reply, nil
		}
		return translated, nil
	}
	return reply, nil
}
