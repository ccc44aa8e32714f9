package quality

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var ErrQualityRejected = errors.New("report content failed quality checks")

const (
	minReportScore  = 0.50
	defaultMaxChars = 12000
	shortReportLen  = 200
)

type ReportInput struct {
	Title   string
	Plan    []string
	Content string
}

type ReportResult struct {
	Content         string
	Score           float64
	MissingSections []string
	Corrected       bool
}

// ReportValidator cleans generated report text before rendering and rejects
// refusals, empty answers and off-language output.
type ReportValidator struct {
	maxChars int
}

func NewReportValidator(maxChars int) *ReportValidator {
	if maxChars <= 0 {
		maxChars = defaultMaxChars
	}
	return &ReportValidator{maxChars: maxChars}
}

func (v *ReportValidator) ValidateReport(input ReportInput) (ReportResult, error) {
	content := normalizeParagraphs(stripMarkdown(input.Content))
	if content == "" {
		return ReportResult{}, fmt.Errorf("%w: content is empty", ErrQualityRejected)
	}

	result := ReportResult{Corrected: content != input.Content}
	penalty := 0.0

	if len([]rune(content)) > v.maxChars {
		content = truncateAtWord(content, v.maxChars)
		result.Corrected = true
		penalty += 0.02
	}
	if len([]rune(content)) < shortReportLen {
		penalty += 0.15
	}

	lowered := strings.ToLower(content)
	if containsAny(lowered, refusalMarkers) {
		penalty += 0.6
	}
	if hasMoreMarkers(" "+lowered+" ", enMarkers, frMarkers) {
		penalty += 0.2
	}

	for _, section := range input.Plan {
		name := strings.ToLower(strings.TrimSpace(section))
		if name == "" || strings.Contains(lowered, name) {
			continue
		}
		result.MissingSections = append(result.MissingSections, section)
		penalty += 0.1
	}

	score := round2(clamp01(1.0 - penalty))
	if score < minReportScore {
		return ReportResult{}, fmt.Errorf("%w: low report quality score %.2f", ErrQualityRejected, score)
	}

	result.Content = content
	result.Score = score
	return result, nil
}

// stripMarkdown drops the markup the PDF renderer would print literally.
func stripMarkdown(value string) string {
	lines := strings.Split(strings.ReplaceAll(value, "\r\n", "\n"), "\n")
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			continue
		}
		trimmed = strings.TrimSpace(strings.TrimLeft(trimmed, "#"))
		trimmed = strings.ReplaceAll(trimmed, "**", "")
		trimmed = strings.ReplaceAll(trimmed, "__", "")
		cleaned = append(cleaned, trimmed)
	}
	return strings.Join(cleaned, "\n")
}

// normalizeParagraphs collapses spaces inside lines and keeps at most one
// blank line between paragraphs.
func normalizeParagraphs(value string) string {
	lines := strings.Split(value, "\n")
	kept := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			if !blank && len(kept) > 0 {
				kept = append(kept, "")
			}
			blank = true
			continue
		}
		blank = false
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

func truncateAtWord(value string, maxLen int) string {
	runes := []rune(value)
	if len(runes) <= maxLen || maxLen <= 0 {
		return value
	}
	cut := string(runes[:maxLen])
	lastSpace := strings.LastIndexAny(cut, " \n")
	if lastSpace > len(cut)/2 {
		cut = cut[:lastSpace]
	}
	return strings.TrimSpace(cut)
}

func containsAny(value string, markers []string) bool {
	for _, marker := range markers {
		if strings.Contains(value, marker) {
			return true
		}
	}
	return false
}

func hasMoreMarkers(value string, negative []string, positive []string) bool {
	negativeCount := 0
	for _, marker := range negative {
		if strings.Contains(value, marker) {
			negativeCount++
		}
	}
	positiveCount := 0
	for _, marker := range positive {
		if strings.Contains(value, marker) {
			positiveCount++
		}
	}
	return negativeCount > positiveCount+1
}

var refusalMarkers = []string{
	"je ne peux pas rédiger",
	"je ne suis pas en mesure",
	"en tant qu'ia",
	"en tant que modèle de langage",
	"as an ai",
	"i cannot help",
}

var frMarkers = []string{
	" le ",
	" la ",
	" les ",
	" des ",
	" et ",
	" pour ",
}

var enMarkers = []string{
	" the ",
	" and ",
	" with ",
	" for ",
	" this ",
	" of ",
}

func clamp01(value float64) float64 {
	if value < 0 {
		return 0
	}
	if value > 1 {
		return 1
	}
	return value
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}
