package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/yousraMsaouri/ChatBot-Inteligent-Assistant-de-Redaction-de-Rapports/internal/storage"
)

// StaticPrefix is the URL path under which artifact keys are served.
const StaticPrefix = "/static/"

const maxKeyAttempts = 50

type Dependencies struct {
	Store  storage.ArtifactStore
	Logger *log.Logger
	Now    func() time.Time
}

// PDFRenderer turns generated text into a PDF document in the artifact store.
type PDFRenderer struct {
	store  storage.ArtifactStore
	logger *log.Logger
	now    func() time.Time
}

func NewPDFRenderer(deps Dependencies) *PDFRenderer {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &PDFRenderer{
		store:  deps.Store,
		logger: deps.Logger,
		now:    deps.Now,
	}
}

// Render stores the document and returns its location, for example
// "/static/reports/report_u1_20250301_100000.pdf".
func (r *PDFRenderer) Render(ctx context.Context, userID, title, content string) (string, error) {
	if r.store == nil {
		return "", fmt.Errorf("renderer has no artifact store")
	}
	generatedAt := r.now()

	document, err := BuildPDF(title, content, generatedAt)
	if err != nil {
		return "", err
	}

	key, err := r.storeUnique(ctx, userID, generatedAt, document)
	if err != nil {
		return "", err
	}

	location := StaticPrefix + key
	if r.logger != nil {
		r.logger.Printf("report rendered location=%s bytes=%d", location, len(document))
	}
	return location, nil
}

// storeUnique writes the document under the first free key, so two reports
// rendered for one user within the same second keep separate artifacts.
func (r *PDFRenderer) storeUnique(ctx context.Context, userID string, at time.Time, document []byte) (string, error) {
	for attempt := 1; attempt <= maxKeyAttempts; attempt++ {
		key := reportKeyAttempt(userID, at, attempt)
		err := r.store.Put(ctx, key, bytes.NewReader(document), int64(len(document)), "application/pdf")
		if err == nil {
			return key, nil
		}
		if !errors.Is(err, storage.ErrExists) {
			return "", fmt.Errorf("store pdf: %w", err)
		}
	}
	return "", fmt.Errorf("store pdf: no free key for %s after %d attempts", ReportKey(userID, at), maxKeyAttempts)
}

// ReportKey builds the artifact key for a user's report at the given instant.
func ReportKey(userID string, at time.Time) string {
	return reportKeyAttempt(userID, at, 1)
}

func reportKeyAttempt(userID string, at time.Time, attempt int) string {
	stem := fmt.Sprintf("reports/report_%s_%s", safeFileComponent(userID), at.Format("20060102_150405"))
	if attempt > 1 {
		stem = fmt.Sprintf("%s_%d", stem, attempt)
	}
	return stem + ".pdf"
}

// BuildPDF lays out the title, the body and a generation footer on A4 pages.
func BuildPDF(title, content string, generatedAt time.Time) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	footer := tr(fmt.Sprintf("Généré par Assistant de Rapports - %s", generatedAt.Format("02/01/2006 15:04")))

	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 25)
	pdf.SetFooterFunc(func() {
		pdf.SetY(-18)
		pdf.SetFont("Arial", "I", 9)
		pdf.SetTextColor(102, 102, 102)
		pdf.CellFormat(0, 8, footer, "", 0, "L", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 20)
	pdf.SetTextColor(0, 123, 255)
	pdf.MultiCell(0, 10, tr(strings.TrimSpace(title)), "", "L", false)
	pdf.Ln(6)

	pdf.SetFont("Arial", "", 11)
	pdf.SetTextColor(33, 37, 41)
	for _, paragraph := range strings.Split(normalizeNewlines(content), "\n") {
		if strings.TrimSpace(paragraph) == "" {
			pdf.Ln(4)
			continue
		}
		pdf.MultiCell(0, 6, tr(paragraph), "", "L", false)
	}

	var buffer bytes.Buffer
	if err := pdf.Output(&buffer); err != nil {
		return nil, fmt.Errorf("build pdf: %w", err)
	}
	return buffer.Bytes(), nil
}

func normalizeNewlines(value string) string {
	return strings.ReplaceAll(value, "\r\n", "\n")
}

func safeFileComponent(value string) string {
	var builder strings.Builder
	for _, r := range strings.TrimSpace(value) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			builder.WriteRune(r)
		default:
			builder.WriteRune('_')
		}
	}
	if builder.Len() == 0 {
		return "anonymous"
	}
	return builder.String()
}
