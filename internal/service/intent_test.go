package service

import "testing"

func TestParseReportRequest(t *testing.T) {
	tests := []struct {
		name      string
		message   string
		triggered bool
		title     string
	}{
		{
			name:      "title after colon marker",
			message:   "Crée un nouveau rapport intitulé : Budget 2025",
			triggered: true,
			title:     "Budget 2025",
		},
		{
			name:      "marker without colon drops article",
			message:   "Peux-tu créer un nouveau rapport intitulé la stratégie digitale",
			triggered: true,
			title:     "Stratégie Digitale",
		},
		{
			name:      "subject after sur with structure suffix",
			message:   "Génère un nouveau rapport sur les risques climatiques avec la structure habituelle",
			triggered: true,
			title:     "Les Risques Climatiques",
		},
		{
			name:      "a propos de",
			message:   "générer un nouveau rapport à propos de la cybersécurité en utilisant la structure habituelle",
			triggered: true,
			title:     "La Cybersécurité",
		},
		{
			name:      "colon marker wins over sur",
			message:   "Crée un nouveau rapport intitulé : analyse sur le marché",
			triggered: true,
			title:     "Analyse Sur Le Marché",
		},
		{
			name:      "upper case trigger",
			message:   "CRÉE UN NOUVEAU RAPPORT INTITULÉ : BILAN",
			triggered: true,
			title:     "Bilan",
		},
		{
			name:      "trigger without title",
			message:   "Crée un nouveau rapport",
			triggered: true,
			title:     "",
		},
		{
			name:      "not a trigger",
			message:   "Quelle heure est-il ?",
			triggered: false,
		},
		{
			name:      "report mention without trigger",
			message:   "Peux-tu me parler du rapport sur le climat ?",
			triggered: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseReportRequest(tt.message)
			if got.Triggered != tt.triggered {
				t.Fatalf("triggered=%v want %v", got.Triggered, tt.triggered)
			}
			if got.Title != tt.title {
				t.Fatalf("title=%q want %q", got.Title, tt.title)
			}
		})
	}
}

func TestTitleCase(t *testing.T) {
	cases := map[string]string{
		"risques climatiques":   "Risques Climatiques",
		"l'analyse des RISQUES": "L'Analyse Des Risques",
		"budget 2025":           "Budget 2025",
		"2025budget":            "2025Budget",
		"éTUDE":                 "Étude",
	}
	for input, want := range cases {
		if got := titleCase(input); got != want {
			t.Fatalf("titleCase(%q)=%q want %q", input, got, want)
		}
	}
}

func TestIndexFold(t *testing.T) {
	index, size := indexFold("Rapport INTITULÉ : x", "intitulé :")
	if index != 8 || size != len("INTITULÉ :") {
		t.Fatalf("unexpected match index=%d size=%d", index, size)
	}
	if index, _ := indexFold("abc", "abcd"); index != -1 {
		t.Fatalf("expected no match, got %d", index)
	}
}
