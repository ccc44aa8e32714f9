package worker

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/yousraMsaouri/ChatBot-Inteligent-Assistant-de-Redaction-de-Rapports/internal/domain"
	"github.com/yousraMsaouri/ChatBot-Inteligent-Assistant-de-Redaction-de-Rapports/internal/metrics"
	"github.com/yousraMsaouri/ChatBot-Inteligent-Assistant-de-Redaction-de-Rapports/internal/notify"
	"github.com/yousraMsaouri/ChatBot-Inteligent-Assistant-de-Redaction-de-Rapports/internal/policy"
	"github.com/yousraMsaouri/ChatBot-Inteligent-Assistant-de-Redaction-de-Rapports/internal/repository"
)

type TasksDependencies struct {
	Reports   repository.ReportsRepository
	Mailer    notify.Mailer
	Caller    notify.Caller
	Directory notify.Directory
	Metrics   *metrics.Metrics
	Logger    *log.Logger
}

// Tasks holds the deferred notification jobs scheduled after each report.
type Tasks struct {
	reports   repository.ReportsRepository
	mailer    notify.Mailer
	caller    notify.Caller
	directory notify.Directory
	metrics   *metrics.Metrics
	logger    *log.Logger
}

func NewTasks(deps TasksDependencies) *Tasks {
	return &Tasks{
		reports:   deps.Reports,
		mailer:    deps.Mailer,
		caller:    deps.Caller,
		directory: deps.Directory,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
	}
}

// Handlers maps task names to their implementation, ready for NewProcessor.
func (t *Tasks) Handlers() map[domain.TaskName]TaskHandler {
	return map[domain.TaskName]TaskHandler{
		domain.TaskSendReminder:    t.SendReminder,
		domain.TaskConditionalCall: t.ConditionalCall,
	}
}

// SendReminder mails the download link. Delivery failures are logged and
// counted, never returned.
func (t *Tasks) SendReminder(ctx context.Context, args domain.TaskArgs) error {
	const task = string(domain.TaskSendReminder)

	title := ""
	if report, err := t.reports.GetReport(ctx, args.ReportID); err == nil {
		title = report.Title
	} else {
		t.logf("reminder could not read report report_id=%s err=%v", args.ReportID, err)
	}

	if err := t.sendReminder(ctx, args, title); err != nil {
		t.metrics.TaskOutcome(task, "notification_failed")
		t.logf("reminder email failed report_id=%s err=%v", args.ReportID, err)
		return nil
	}

	if err := t.reports.MarkEmailSent(ctx, args.ReportID); err != nil {
		t.logf("mark email sent failed report_id=%s err=%v", args.ReportID, err)
	}
	t.metrics.TaskOutcome(task, "sent")
	return nil
}

func (t *Tasks) sendReminder(ctx context.Context, args domain.TaskArgs, title string) error {
	if t.mailer == nil || t.directory == nil {
		return fmt.Errorf("%w: %w", domain.ErrNotification, notify.ErrNotConfigured)
	}
	to, err := t.directory.EmailFor(ctx, args.UserID)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrNotification, err)
	}
	if err := t.mailer.Send(ctx, notify.ReportReadyEmail(to, title, args.DownloadLink)); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrNotification, err)
	}
	t.logf("reminder email sent report_id=%s to=%s", args.ReportID, policy.MaskEmail(to))
	return nil
}

// ConditionalCall phones the user when the report has not been downloaded.
// A missing row still gets a call with a generic title. Any other repository
// error ends the task without calling.
func (t *Tasks) ConditionalCall(ctx context.Context, args domain.TaskArgs) error {
	const task = string(domain.TaskConditionalCall)

	title := ""
	report, err := t.reports.GetReport(ctx, args.ReportID)
	switch {
	case err == nil:
		if report.Downloaded {
			t.metrics.TaskOutcome(task, "skipped")
			t.logf("report already downloaded, no call report_id=%s", args.ReportID)
			return nil
		}
		title = report.Title
	case errors.Is(err, repository.ErrNotFound):
		t.logf("report missing, calling with generic title report_id=%s", args.ReportID)
	default:
		t.metrics.TaskOutcome(task, "lookup_failed")
		return fmt.Errorf("load report %s: %w", args.ReportID, err)
	}

	callID, err := t.placeCall(ctx, args, title)
	if err != nil {
		t.metrics.TaskOutcome(task, "notification_failed")
		t.logf("reminder call failed report_id=%s err=%v", args.ReportID, err)
		return nil
	}

	if report != nil {
		if err := t.reports.MarkCallPlaced(ctx, args.ReportID); err != nil {
			t.logf("mark call placed failed report_id=%s err=%v", args.ReportID, err)
		}
	}
	t.metrics.TaskOutcome(task, "called")
	t.logf("reminder call placed report_id=%s call_id=%s", args.ReportID, callID)
	return nil
}

func (t *Tasks) placeCall(ctx context.Context, args domain.TaskArgs, title string) (string, error) {
	if t.caller == nil || t.directory == nil {
		return "", fmt.Errorf("%w: %w", domain.ErrNotification, notify.ErrNotConfigured)
	}
	to, err := t.directory.PhoneFor(ctx, args.UserID)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrNotification, err)
	}
	callID, err := t.caller.Call(ctx, notify.DownloadReminderCall(to, title))
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrNotification, err)
	}
	t.logf("dialing report_id=%s to=%s", args.ReportID, policy.MaskPhone(to))
	return callID, nil
}

func (t *Tasks) logf(format string, args ...any) {
	if t.logger != nil {
		t.logger.Printf(format, args...)
	}
}
