package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/yousraMsaouri/ChatBot-Inteligent-Assistant-de-Redaction-de-Rapports/internal/domain"
	"github.com/yousraMsaouri/ChatBot-Inteligent-Assistant-de-Redaction-de-Rapports/internal/metrics"
	"github.com/yousraMsaouri/ChatBot-Inteligent-Assistant-de-Redaction-de-Rapports/internal/queue"
	"github.com/yousraMsaouri/ChatBot-Inteligent-Assistant-de-Redaction-de-Rapports/internal/repository"
)

// UnavailableContent replaces the report body when generation fails.
const UnavailableContent = "Contenu du rapport indisponible."

type ReportGenerator interface {
	GenerateReport(ctx context.Context, title string, plan []string) (string, error)
}

type DocumentRenderer interface {
	Render(ctx context.Context, userID, title, content string) (string, error)
}

type ReportWorkflowDependencies struct {
	Reports       repository.ReportsRepository
	Generator     ReportGenerator
	Renderer      DocumentRenderer
	Scheduler     queue.Scheduler
	PublicBaseURL string
	ReminderDelay time.Duration
	CallDelay     time.Duration
	Metrics       *metrics.Metrics
	Logger        *log.Logger
	Now           func() time.Time
}

// ReportWorkflow creates a report end to end: row, content, PDF, location,
// then the two deferred notifications.
type ReportWorkflow struct {
	reports       repository.ReportsRepository
	generator     ReportGenerator
	renderer      DocumentRenderer
	scheduler     queue.Scheduler
	publicBaseURL string
	reminderDelay time.Duration
	callDelay     time.Duration
	metrics       *metrics.Metrics
	logger        *log.Logger
	now           func() time.Time
}

type CreateReportResult struct {
	ReportID     string
	Title        string
	Location     string
	DownloadLink string
}

func NewReportWorkflow(deps ReportWorkflowDependencies) *ReportWorkflow {
	if deps.ReminderDelay <= 0 {
		deps.ReminderDelay = 2 * time.Second
	}
	if deps.CallDelay <= 0 {
		deps.CallDelay = 5 * time.Second
	}
	if deps.Now == nil {
		deps.Now = func() time.Time { return time.Now().UTC() }
	}
	return &ReportWorkflow{
		reports:       deps.Reports,
		generator:     deps.Generator,
		renderer:      deps.Renderer,
		scheduler:     deps.Scheduler,
		publicBaseURL: strings.TrimSuffix(deps.PublicBaseURL, "/"),
		reminderDelay: deps.ReminderDelay,
		callDelay:     deps.CallDelay,
		metrics:       deps.Metrics,
		logger:        deps.Logger,
		now:           deps.Now,
	}
}

func (w *ReportWorkflow) CreateReport(ctx context.Context, userID, title string) (CreateReportResult, error) {
	userID = strings.TrimSpace(userID)
	title = strings.TrimSpace(title)
	if userID == "" {
		return CreateReportResult{}, fmt.Errorf("%w: user_id is required", domain.ErrInvalidInput)
	}
	if title == "" {
		return CreateReportResult{}, fmt.Errorf("%w: report title is required", domain.ErrInvalidInput)
	}

	report := &domain.Report{
		ID:          uuid.NewString(),
		UserID:      userID,
		Title:       title,
		Plan:        append([]string(nil), domain.DefaultPlan...),
		GeneratedAt: w.now(),
	}
	if err := w.reports.CreateReport(ctx, report); err != nil {
		w.metrics.ReportOutcome("store_failed")
		return CreateReportResult{}, fmt.Errorf("create report row: %w", err)
	}

	content, err := w.generator.GenerateReport(ctx, title, report.Plan)
	if err != nil {
		w.logf("report content generation failed report_id=%s err=%v, using placeholder", report.ID, err)
		w.metrics.ReportOutcome("generation_placeholder")
		content = UnavailableContent
	}

	location, err := w.renderer.Render(ctx, userID, title, content)
	if err != nil {
		w.logf("report rendering failed report_id=%s err=%v", report.ID, err)
		w.metrics.ReportOutcome("rendering_failed")
		return CreateReportResult{}, &domain.RenderingError{ReportID: report.ID, Err: err}
	}

	if err := w.reports.SetLocation(ctx, report.ID, location); err != nil {
		w.metrics.ReportOutcome("store_failed")
		return CreateReportResult{}, fmt.Errorf("set report location: %w", err)
	}

	result := CreateReportResult{
		ReportID:     report.ID,
		Title:        title,
		Location:     location,
		DownloadLink: w.publicBaseURL + location,
	}

	args := domain.TaskArgs{
		UserID:       userID,
		ReportID:     report.ID,
		DownloadLink: result.DownloadLink,
	}
	w.schedule(ctx, w.reminderDelay, domain.TaskSendReminder, args)
	w.schedule(ctx, w.callDelay, domain.TaskConditionalCall, args)

	w.metrics.ReportOutcome("created")
	w.logf("report created report_id=%s user_id=%s location=%s", report.ID, userID, location)
	return result, nil
}

// schedule never fails the request; a lost notification is logged and counted.
func (w *ReportWorkflow) schedule(ctx context.Context, delay time.Duration, task domain.TaskName, args domain.TaskArgs) {
	if w.scheduler == nil {
		w.logf("no scheduler configured, dropping task=%s report_id=%s", task, args.ReportID)
		w.metrics.Scheduled(string(task), "dropped")
		return
	}
	if err := w.scheduler.Schedule(context.WithoutCancel(ctx), delay, task, args); err != nil {
		w.logf("schedule failed task=%s report_id=%s err=%v", task, args.ReportID, err)
		w.metrics.Scheduled(string(task), "error")
		return
	}
	w.metrics.Scheduled(string(task), "ok")
}

func (w *ReportWorkflow) ListReports(ctx context.Context, userID string) ([]domain.Report, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user_id is required", domain.ErrInvalidInput)
	}
	return w.reports.ListReports(ctx, userID)
}

// MarkDownloaded flags the report stored at location. Unknown locations are
// reported as repository.ErrNotFound.
func (w *ReportWorkflow) MarkDownloaded(ctx context.Context, location string) (*domain.Report, error) {
	report, err := w.reports.MarkDownloaded(ctx, location)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			w.logf("mark downloaded failed location=%s err=%v", location, err)
		}
		return nil, err
	}
	w.logf("report downloaded report_id=%s", report.ID)
	return report, nil
}

func (w *ReportWorkflow) logf(format string, args ...any) {
	if w.logger != nil {
		w.logger.Printf(format, args...)
	}
}
