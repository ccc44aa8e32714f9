package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/url"
	"strings"
)

var ErrNotConfigured = errors.New("notification channel not configured")

type Email struct {
	To      string
	Subject string
	HTML    string
}

type VoiceCall struct {
	To      string
	Message string
}

type Mailer interface {
	Send(ctx context.Context, email Email) error
}

type Caller interface {
	// Call places one outbound call and returns the provider call id.
	Call(ctx context.Context, call VoiceCall) (string, error)
}

// Directory resolves how a user is reached.
type Directory interface {
	EmailFor(ctx context.Context, userID string) (string, error)
	PhoneFor(ctx context.Context, userID string) (string, error)
}

// StaticDirectory sends every notification to the same configured recipients.
type StaticDirectory struct {
	Email string
	Phone string
}

func (d StaticDirectory) EmailFor(_ context.Context, userID string) (string, error) {
	if strings.TrimSpace(d.Email) == "" {
		return "", fmt.Errorf("%w: no email recipient for user %s", ErrNotConfigured, userID)
	}
	return d.Email, nil
}

func (d StaticDirectory) PhoneFor(_ context.Context, userID string) (string, error) {
	if strings.TrimSpace(d.Phone) == "" {
		return "", fmt.Errorf("%w: no phone recipient for user %s", ErrNotConfigured, userID)
	}
	return d.Phone, nil
}

const reportReadySubject = "📚 Votre rapport est prêt !"

// ReportReadyEmail builds the reminder mail sent shortly after generation.
func ReportReadyEmail(to, title, downloadLink string) Email {
	if strings.TrimSpace(title) == "" {
		title = "Rapport Dynamique"
	}
	body := fmt.Sprintf(`<h3>Bonjour,</h3>
<p>Votre rapport a été généré avec succès.</p>
<p><strong>Nom :</strong> %s</p>
<a href="%s" style="color: #fff; background: #007bff; padding: 10px 15px; text-decoration: none; border-radius: 4px;">Télécharger le rapport (PDF)</a>
<p>Le lien expire dans 7 jours.</p>
<p>Cordialement,<br>L'équipe de génération de rapports</p>`,
		html.EscapeString(title),
		html.EscapeString(downloadLink),
	)
	return Email{To: to, Subject: reportReadySubject, HTML: body}
}

// DownloadReminderCall builds the spoken message for an undownloaded report.
func DownloadReminderCall(to, title string) VoiceCall {
	if strings.TrimSpace(title) == "" {
		title = "demandé"
	}
	return VoiceCall{
		To:      to,
		Message: fmt.Sprintf("Bonjour, votre rapport %s est disponible. Veuillez le télécharger. Merci.", title),
	}
}

// EchoTwimlURL wraps text in a TwiML echo endpoint that reads it aloud.
func EchoTwimlURL(base, text string) string {
	values := url.Values{}
	values.Set("Text", text)
	separator := "?"
	if strings.Contains(base, "?") {
		separator = "&"
	}
	return base + separator + values.Encode()
}
