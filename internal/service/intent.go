package service

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

var reportTriggers = []string{
	"crée un nouveau rapport",
	"créer un nouveau rapport",
	"génère un nouveau rapport",
	"générer un nouveau rapport",
}

var structureSuffixes = []string{
	"avec la structure habituelle",
	"en utilisant la structure habituelle",
}

var leadingArticles = []string{"l ", "la ", "le ", "les "}

// ReportRequest is what a chat message asks for. Title is empty when the
// message triggers report creation without naming the report.
type ReportRequest struct {
	Triggered bool
	Title     string
}

// ParseReportRequest detects a report-creation request and extracts its title.
// Markers are tried in order: "intitulé :", "intitulé", "sur ", "à propos de ".
// Matching ignores case.
func ParseReportRequest(message string) ReportRequest {
	lowered := strings.ToLower(strings.TrimSpace(message))
	triggered := false
	for _, trigger := range reportTriggers {
		if strings.Contains(lowered, trigger) {
			triggered = true
			break
		}
	}
	if !triggered {
		return ReportRequest{}
	}

	title := extractTitle(message)
	for _, suffix := range structureSuffixes {
		if index, _ := indexFold(title, suffix); index >= 0 {
			title = title[:index]
		}
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return ReportRequest{Triggered: true}
	}
	return ReportRequest{Triggered: true, Title: titleCase(title)}
}

func extractTitle(message string) string {
	if rest, ok := after(message, "intitulé :"); ok {
		return rest
	}
	if rest, ok := after(message, "intitulé"); ok {
		lowered := strings.ToLower(rest)
		for _, article := range leadingArticles {
			if strings.HasPrefix(lowered, article) {
				fields := strings.SplitN(rest, " ", 2)
				if len(fields) > 1 {
					return strings.TrimSpace(fields[1])
				}
				return fields[0]
			}
		}
		return rest
	}
	if rest, ok := after(message, "sur "); ok {
		return rest
	}
	if rest, ok := after(message, "à propos de "); ok {
		return rest
	}
	return ""
}

// after returns the trimmed text following the first case-insensitive
// occurrence of marker.
func after(message, marker string) (string, bool) {
	index, size := indexFold(message, marker)
	if index < 0 {
		return "", false
	}
	return strings.TrimSpace(message[index+size:]), true
}

// indexFold is a case-insensitive strings.Index. It returns the byte offset
// and byte length of the match in s, or -1.
func indexFold(s, substr string) (int, int) {
	for offset := 0; offset < len(s); {
		if size, ok := hasPrefixFold(s[offset:], substr); ok {
			return offset, size
		}
		_, width := utf8.DecodeRuneInString(s[offset:])
		offset += width
	}
	return -1, 0
}

func hasPrefixFold(s, prefix string) (int, bool) {
	consumed := 0
	for _, expected := range prefix {
		if consumed >= len(s) {
			return 0, false
		}
		actual, width := utf8.DecodeRuneInString(s[consumed:])
		if actual != expected && unicode.ToLower(actual) != unicode.ToLower(expected) {
			return 0, false
		}
		consumed += width
	}
	return consumed, true
}

// titleCase upper-cases the first letter of every run of letters and
// lower-cases the rest: "risques climatiques" -> "Risques Climatiques",
// "l'analyse" -> "L'Analyse".
func titleCase(value string) string {
	var builder strings.Builder
	builder.Grow(len(value))
	inWord := false
	for _, r := range value {
		if unicode.IsLetter(r) {
			if inWord {
				builder.WriteRune(unicode.ToLower(r))
			} else {
				builder.WriteRune(unicode.ToTitle(r))
			}
			inWord = true
			continue
		}
		inWord = false
		builder.WriteRune(r)
	}
	return builder.String()
}
