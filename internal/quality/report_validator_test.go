package quality

import (
	"errors"
	"strings"
	"testing"
)

var defaultPlan = []string{"introduction", "développement", "conclusion"}

func TestValidateReportCleansMarkdown(t *testing.T) {
	validator := NewReportValidator(0)
	body := strings.Repeat("Le budget de la commune reste stable et les dépenses sont maîtrisées. ", 4)

	result, err := validator.ValidateReport(ReportInput{
		Title: "Budget 2025",
		Plan:  defaultPlan,
		Content: "```markdown\n## Introduction\n\n\n**Contexte**  :   " + body +
			"\n## Développement\n" + body + "\n## Conclusion\nLa situation est saine.\n```",
	})
	if err != nil {
		t.Fatalf("expected report to validate: %v", err)
	}
	if strings.Contains(result.Content, "**") || strings.Contains(result.Content, "#") || strings.Contains(result.Content, "```") {
		t.Fatalf("expected markdown to be stripped, got %q", result.Content)
	}
	if !strings.HasPrefix(result.Content, "Introduction\n\nContexte : Le budget") {
		t.Fatalf("unexpected normalized content: %q", result.Content)
	}
	if strings.Contains(result.Content, "\n\n\n") {
		t.Fatalf("expected blank lines to be collapsed")
	}
	if result.Score != 1 || len(result.MissingSections) != 0 || !result.Corrected {
		t.Fatalf("unexpected result: score=%.2f missing=%v corrected=%v", result.Score, result.MissingSections, result.Corrected)
	}
}

func TestValidateReportRejectsRefusal(t *testing.T) {
	validator := NewReportValidator(0)

	_, err := validator.ValidateReport(ReportInput{
		Title:   "Budget",
		Plan:    defaultPlan,
		Content: "Je ne suis pas en mesure de rédiger ce rapport.",
	})
	if !errors.Is(err, ErrQualityRejected) {
		t.Fatalf("expected ErrQualityRejected, got %v", err)
	}
}

func TestValidateReportRejectsEmptyAndEnglish(t *testing.T) {
	validator := NewReportValidator(0)

	if _, err := validator.ValidateReport(ReportInput{Content: "```\n   \n```"}); !errors.Is(err, ErrQualityRejected) {
		t.Fatalf("expected empty content to be rejected, got %v", err)
	}

	_, err := validator.ValidateReport(ReportInput{
		Plan:    defaultPlan,
		Content: "This is the summary of the plan and the risks for the year.",
	})
	if !errors.Is(err, ErrQualityRejected) {
		t.Fatalf("expected english content to be rejected, got %v", err)
	}
}

func TestValidateReportTruncatesLongContent(t *testing.T) {
	validator := NewReportValidator(50)

	result, err := validator.ValidateReport(ReportInput{
		Content: strings.Repeat("développement durable ", 20),
	})
	if err != nil {
		t.Fatalf("expected truncated report to validate: %v", err)
	}
	if len([]rune(result.Content)) > 50 {
		t.Fatalf("expected at most 50 runes, got %d", len([]rune(result.Content)))
	}
	if !result.Corrected {
		t.Fatalf("expected truncation to mark the result corrected")
	}
	if result.Score != 0.83 {
		t.Fatalf("unexpected score %.2f", result.Score)
	}
}

func TestValidateReportReportsMissingSections(t *testing.T) {
	validator := NewReportValidator(0)

	result, err := validator.ValidateReport(ReportInput{
		Plan:    defaultPlan,
		Content: "Introduction\nLes risques climatiques...\nConclusion",
	})
	if err != nil {
		t.Fatalf("expected report to validate: %v", err)
	}
	if len(result.MissingSections) != 1 || result.MissingSections[0] != "développement" {
		t.Fatalf("unexpected missing sections: %v", result.MissingSections)
	}
	if result.Score != 0.75 {
		t.Fatalf("unexpected score %.2f", result.Score)
	}
	if result.Corrected {
		t.Fatalf("expected clean content to stay uncorrected")
	}
}
