package service

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strings"
	"sync"
	"text/template"
	"time"

	"github.com/yousraMsaouri/ChatBot-Inteligent-Assistant-de-Redaction-de-Rapports/internal/ai"
	contextbuilder "github.com/yousraMsaouri/ChatBot-Inteligent-Assistant-de-Redaction-de-Rapports/internal/context"
	"github.com/yousraMsaouri/ChatBot-Inteligent-Assistant-de-Redaction-de-Rapports/internal/domain"
	"github.com/yousraMsaouri/ChatBot-Inteligent-Assistant-de-Redaction-de-Rapports/internal/metrics"
	"github.com/yousraMsaouri/ChatBot-Inteligent-Assistant-de-Redaction-de-Rapports/internal/quality"
)

//go:embed prompts/*.tmpl
var embeddedPrompts embed.FS

const (
	reportPromptFile = "report_v1.tmpl"
	chatPromptFile   = "chat_v1.tmpl"
)

type ReferenceBuilder interface {
	Build(ctx context.Context, input contextbuilder.BuildInput) (contextbuilder.BuildOutput, error)
}

type GenerationDependencies struct {
	Router  *ai.ModelRouter
	Client  ai.TextGenerator
	Metrics *metrics.Metrics
	// References and Validator are optional.
	References     ReferenceBuilder
	ReferenceCount int
	Validator      *quality.ReportValidator
	// PromptsDir overrides the embedded templates when set.
	PromptsDir string
	Logger     *log.Logger
}

// GenerationService renders prompt templates and calls the text generator,
// falling back to the secondary model when the primary one fails.
type GenerationService struct {
	router     *ai.ModelRouter
	client     ai.TextGenerator
	metrics    *metrics.Metrics
	references ReferenceBuilder
	refCount   int
	validator  *quality.ReportValidator
	prompts    fs.FS
	logger     *log.Logger

	tmplMu    sync.RWMutex
	templates map[string]*template.Template
}

func NewGenerationService(deps GenerationDependencies) *GenerationService {
	if deps.Router == nil {
		deps.Router = ai.NewModelRouter(ai.ModelRouterConfig{})
	}

	var prompts fs.FS
	if dir := strings.TrimSpace(deps.PromptsDir); dir != "" {
		prompts = os.DirFS(dir)
	} else {
		sub, err := fs.Sub(embeddedPrompts, "prompts")
		if err != nil {
			panic(fmt.Sprintf("embedded prompts: %v", err))
		}
		prompts = sub
	}

	return &GenerationService{
		router:     deps.Router,
		client:     deps.Client,
		metrics:    deps.Metrics,
		references: deps.References,
		refCount:   deps.ReferenceCount,
		validator:  deps.Validator,
		prompts:    prompts,
		logger:     deps.Logger,
		templates:  make(map[string]*template.Template),
	}
}

// GenerateReport returns the body text of a report with the given title and plan.
// Reference sections are appended to the prompt when available, and the text
// is checked before it is returned.
func (s *GenerationService) GenerateReport(ctx context.Context, title string, plan []string) (string, error) {
	prompt, err := s.renderPrompt(reportPromptFile, map[string]any{
		"Title":      title,
		"Plan":       plan,
		"References": s.referenceBlock(ctx, title),
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrGeneration, err)
	}

	text, err := s.generate(ctx, ai.TaskReport, prompt)
	if err != nil || s.validator == nil {
		return text, err
	}

	checked, err := s.validator.ValidateReport(quality.ReportInput{Title: title, Plan: plan, Content: text})
	if err != nil {
		s.logf("report content rejected title=%q err=%v", title, err)
		return "", fmt.Errorf("%w: %w", domain.ErrGeneration, err)
	}
	if len(checked.MissingSections) > 0 {
		s.logf("report content missing sections title=%q sections=%v score=%.2f", title, checked.MissingSections, checked.Score)
	}
	return checked.Content, nil
}

func (s *GenerationService) referenceBlock(ctx context.Context, title string) string {
	if s.references == nil {
		return ""
	}
	output, err := s.references.Build(ctx, contextbuilder.BuildInput{Title: title, MaxChunks: s.refCount})
	if err != nil {
		s.logf("reference sections unavailable title=%q err=%v", title, err)
		return ""
	}
	return output.ContextText
}

// Converse answers a free-form chat message, with the user's report history
// appended to the prompt when there is any.
func (s *GenerationService) Converse(ctx context.Context, message string, history domain.ReportHistory) (string, error) {
	prompt, err := s.renderPrompt(chatPromptFile, map[string]any{
		"Message": message,
		"History": history,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrGeneration, err)
	}
	return s.generate(ctx, ai.TaskConversation, prompt)
}

func (s *GenerationService) generate(ctx context.Context, task ai.TaskKind, prompt string) (string, error) {
	started := time.Now()
	text, modelID, err := s.generateText(ctx, s.router.Select(task), prompt)
	if err != nil {
		s.metrics.ObserveGeneration(string(task), "error", time.Since(started))
		return "", fmt.Errorf("%w: %v", domain.ErrGeneration, err)
	}
	s.metrics.ObserveGeneration(string(task), "ok", time.Since(started))
	s.logf("generation completed task=%s model=%s chars=%d", task, modelID, len(text))
	return text, nil
}

func (s *GenerationService) generateText(
	ctx context.Context,
	profile ai.ModelProfile,
	prompt string,
) (string, string, error) {
	if s.client == nil || !s.client.Available() {
		return "", "", ai.ErrGeminiUnavailable
	}

	primaryResult, err := s.client.Generate(ctx, ai.GenerateRequest{
		Model:           profile.PrimaryModel,
		Input:           prompt,
		Temperature:     profile.Temperature,
		MaxOutputTokens: profile.MaxOutputTokens,
	})
	if err == nil {
		return primaryResult.Text, firstNonEmpty(primaryResult.ModelID, profile.PrimaryModel), nil
	}
	if errors.Is(err, context.Canceled) {
		return "", "", err
	}

	if strings.TrimSpace(profile.FallbackModel) == "" || profile.FallbackModel == profile.PrimaryModel {
		return "", "", err
	}
	s.logf("primary model failed model=%s err=%v, trying fallback=%s", profile.PrimaryModel, err, profile.FallbackModel)

	fallbackResult, fallbackErr := s.client.Generate(ctx, ai.GenerateRequest{
		Model:           profile.FallbackModel,
		Input:           prompt,
		Temperature:     profile.Temperature,
		MaxOutputTokens: profile.MaxOutputTokens,
	})
	if fallbackErr != nil {
		return "", "", fmt.Errorf("primary model failed: %v; fallback failed: %w", err, fallbackErr)
	}
	return fallbackResult.Text, firstNonEmpty(fallbackResult.ModelID, profile.FallbackModel), nil
}

func (s *GenerationService) renderPrompt(fileName string, data any) (string, error) {
	tmpl, err := s.loadTemplate(fileName)
	if err != nil {
		return "", err
	}

	buffer := bytes.NewBuffer(nil)
	if err := tmpl.Execute(buffer, data); err != nil {
		return "", fmt.Errorf("execute template %s: %w", fileName, err)
	}
	return strings.TrimSpace(buffer.String()), nil
}

func (s *GenerationService) loadTemplate(fileName string) (*template.Template, error) {
	s.tmplMu.RLock()
	if tmpl, ok := s.templates[fileName]; ok {
		s.tmplMu.RUnlock()
		return tmpl, nil
	}
	s.tmplMu.RUnlock()

	content, err := fs.ReadFile(s.prompts, fileName)
	if err != nil {
		return nil, fmt.Errorf("read prompt template %s: %w", fileName, err)
	}

	tmpl, err := template.New(fileName).Funcs(template.FuncMap{
		"sections": formatSections,
	}).Parse(string(content))
	if err != nil {
		return nil, fmt.Errorf("parse prompt template %s: %w", fileName, err)
	}

	s.tmplMu.Lock()
	s.templates[fileName] = tmpl
	s.tmplMu.Unlock()

	return tmpl, nil
}

func (s *GenerationService) logf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}

// formatSections renders ["introduction", "développement"] as
// "Introduction, Développement".
func formatSections(plan []string) string {
	if len(plan) == 0 {
		plan = domain.DefaultPlan
	}
	names := make([]string, 0, len(plan))
	for _, section := range plan {
		names = append(names, titleCase(strings.TrimSpace(section)))
	}
	return strings.Join(names, ", ")
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}
