package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/yousraMsaouri/ChatBot-Inteligent-Assistant-de-Redaction-de-Rapports/internal/domain"
	"github.com/yousraMsaouri/ChatBot-Inteligent-Assistant-de-Redaction-de-Rapports/internal/metrics"
	"github.com/yousraMsaouri/ChatBot-Inteligent-Assistant-de-Redaction-de-Rapports/internal/policy"
	"github.com/yousraMsaouri/ChatBot-Inteligent-Assistant-de-Redaction-de-Rapports/internal/repository"
)

const (
	conversationFailureReply = "Désolé, une erreur est survenue avec Gemini."
	reportFailureReply       = "Désolé, le rapport '%s' n'a pas pu être généré. Merci de réessayer plus tard."
	reportSuccessReply       = "✅ Rapport '%s' généré avec succès ! Un email vous a été envoyé."
)

type Conversationalist interface {
	Converse(ctx context.Context, message string, history domain.ReportHistory) (string, error)
}

type ReportCreator interface {
	CreateReport(ctx context.Context, userID, title string) (CreateReportResult, error)
}

type ChatDependencies struct {
	Messages  repository.MessagesRepository
	Reports   repository.ReportsRepository
	Workflow  ReportCreator
	Generator Conversationalist
	Metrics   *metrics.Metrics
	Logger    *log.Logger
	Now       func() time.Time
}

// ChatService answers chat messages: report requests run the report
// workflow, anything else goes to the conversational model.
type ChatService struct {
	messages  repository.MessagesRepository
	reports   repository.ReportsRepository
	workflow  ReportCreator
	generator Conversationalist
	metrics   *metrics.Metrics
	logger    *log.Logger
	now       func() time.Time
}

func NewChatService(deps ChatDependencies) *ChatService {
	if deps.Now == nil {
		deps.Now = func() time.Time { return time.Now().UTC() }
	}
	return &ChatService{
		messages:  deps.Messages,
		reports:   deps.Reports,
		workflow:  deps.Workflow,
		generator: deps.Generator,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
		now:       deps.Now,
	}
}

func (s *ChatService) Reply(ctx context.Context, userID, message string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", fmt.Errorf("%w: user_id is required", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(message) == "" {
		return "", fmt.Errorf("%w: message is required", domain.ErrInvalidInput)
	}

	if err := s.append(ctx, userID, message, domain.SenderUser); err != nil {
		return "", fmt.Errorf("log user message: %w", err)
	}

	history := domain.ReportHistory{}
	if reports, err := s.reports.ListReports(ctx, userID); err != nil {
		s.logf("load report history failed user_id=%s err=%v", userID, err)
	} else {
		history = domain.SummarizeReports(reports)
	}

	var response string
	request := ParseReportRequest(message)
	if request.Triggered && request.Title != "" {
		s.metrics.ChatIntent("report")
		response = s.createReport(ctx, userID, request.Title)
	} else {
		s.metrics.ChatIntent("conversation")
		response = s.converse(ctx, userID, message, history)
	}

	if err := s.append(ctx, userID, response, domain.SenderBot); err != nil {
		s.logf("log bot message failed user_id=%s err=%v", userID, err)
	}
	return response, nil
}

// History returns the most recent messages of a user, oldest first.
func (s *ChatService) History(ctx context.Context, userID string, limit int) ([]domain.Message, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user_id is required", domain.ErrInvalidInput)
	}
	return s.messages.ListMessages(ctx, userID, limit)
}

func (s *ChatService) createReport(ctx context.Context, userID, title string) string {
	result, err := s.workflow.CreateReport(ctx, userID, title)
	if err != nil {
		s.logf("chat report creation failed kind=%s user_id=%s title=%q err=%v", domain.FailureKind(err), userID, title, err)
		return fmt.Sprintf(reportFailureReply, title)
	}
	return fmt.Sprintf(reportSuccessReply, result.Title)
}

func (s *ChatService) converse(ctx context.Context, userID, message string, history domain.ReportHistory) string {
	response, err := s.generator.Converse(ctx, message, history)
	if err != nil {
		s.logf("conversation failed user_id=%s message=%q err=%v", userID, policy.MaskPIIString(message), err)
		return conversationFailureReply
	}
	return response
}

func (s *ChatService) append(ctx context.Context, userID, body string, sender domain.Sender) error {
	return s.messages.AppendMessage(ctx, &domain.Message{
		ID:        uuid.NewString(),
		UserID:    userID,
		Body:      body,
		Sender:    sender,
		CreatedAt: s.now(),
	})
}

func (s *ChatService) logf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}
