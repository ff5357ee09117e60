package cron

import "testing"

func TestGeneratePrefix(t *testing.T) {
	tests := []struct {
		message string
		want    string
	}{
		{"beber água", "BEB"},
		{"tomar remédio da pressão", "REM"},
		{"reunião com o chefe", "RUN"},
		{"ir ao dentista", "DEN"},
		{"water the plants", "WT"},
		{"pagar o aluguel", "PAG"},
		// No keyword: first significant word's leading letters.
		{"xereta demais", "XER"},
		// Accents fold into plain letters.
		{"óleo do motor", "OLE"},
		// Nothing usable at all.
		{"", "LM"},
		{"a o de", "LM"},
		{"123 456", "LM"},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			if got := GeneratePrefix(tt.message); got != tt.want {
				t.Errorf("GeneratePrefix(%q) = %q, want %q", tt.message, got, tt.want)
			}
		})
	}
}

func TestGeneratePrefixAvoidsConfusingTokens(t *testing.T) {
	// "spa" would truncate to "SP", a state code; three letters avoids it.
	got := GeneratePrefix("spanish homework")
	if confusingPrefixes[got] {
		t.Errorf("prefix %q is a confusing token", got)
	}
}

func TestGenerateIDSuffixes(t *testing.T) {
	taken := map[string]bool{}
	used := func(id string) bool { return taken[id] }

	first := GenerateID("beber água", used)
	if first != "BEB01" {
		t.Errorf("first id = %q, want BEB01", first)
	}
	taken[first] = true

	second := GenerateID("beber chá", used)
	if second != "BEB02" {
		t.Errorf("second id = %q, want BEB02", second)
	}
}

func TestGenerateIDOverflowsToThreeDigits(t *testing.T) {
	taken := map[string]bool{}
	for n := 1; n <= 99; n++ {
		taken[GenerateID("beber água", func(id string) bool { return taken[id] })] = true
	}
	id := GenerateID("beber água", func(id string) bool { return taken[id] })
	if id != "BEB100" {
		t.Errorf("overflow id = %q, want BEB100", id)
	}
}
