package policy

import (
	"strings"
	"testing"
)

func TestMaskPIIStringMasksCommonPatterns(t *testing.T) {
	raw := "écrire à jean.dupont@example.fr ou appeler le +33 6 12 34 56 78, IBAN FR76 3000 6000 0112 3456 7890 189"
	masked := MaskPIIString(raw)

	if strings.Contains(masked, "jean.dupont@example.fr") {
		t.Fatalf("expected email to be masked: %s", masked)
	}
	if strings.Contains(masked, "12 34 56 78") {
		t.Fatalf("expected phone to be masked: %s", masked)
	}
	if strings.Contains(masked, "FR76") {
		t.Fatalf("expected iban to be masked: %s", masked)
	}
	if !strings.HasPrefix(masked, "écrire à ") {
		t.Fatalf("expected surrounding text to survive: %s", masked)
	}
}

func TestMaskPIIStringLeavesPlainTextAlone(t *testing.T) {
	raw := "Crée un nouveau rapport intitulé : Budget 2025"
	if masked := MaskPIIString(raw); masked != raw {
		t.Fatalf("expected unchanged text, got %q", masked)
	}
}

func TestMaskEmailAndPhone(t *testing.T) {
	if got := MaskEmail("yousra@example.com"); got != "y***@example.com" {
		t.Fatalf("unexpected masked email %q", got)
	}
	if got := MaskEmail("not-an-email"); got != "[email_redacted]" {
		t.Fatalf("unexpected masked invalid email %q", got)
	}
	if got := MaskPhone("+1 256 667 6023"); got != "*******6023" {
		t.Fatalf("unexpected masked phone %q", got)
	}
	if got := MaskPhone("12"); got != "[phone_redacted]" {
		t.Fatalf("unexpected masked short phone %q", got)
	}
}
