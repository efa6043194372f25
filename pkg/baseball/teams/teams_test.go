package teams

import "testing"

func TestAllThirtyClubs(t *testing.T) {
	all := All()
	if len(all) != 30 {
		t.Fatalf("got %d teams, want 30", len(all))
	}
	seen := make(map[string]bool)
	for _, team := range all {
		if seen[team.Code] {
			t.Errorf("duplicate code %q", team.Code)
		}
		seen[team.Code] = true
	}
}

func TestByCode(t *testing.T) {
	tests := []struct {
		code     string
		wantName string
		wantOK   bool
	}{
		{"NYY", "New York Yankees", true},
		{"nyy", "New York Yankees", true},
		{" Bos ", "Boston Red Sox", true},
		{"KC", "Kansas City Royals", true},
		{"XYZ", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		team, ok := ByCode(tt.code)
		if ok != tt.wantOK {
			t.Errorf("ByCode(%q) ok = %v, want %v", tt.code, ok, tt.wantOK)
			continue
		}
		if ok && team.Name != tt.wantName {
			t.Errorf("ByCode(%q) = %q, want %q", tt.code, team.Name, tt.wantName)
		}
	}
}

func TestByNameNormalizes(t *testing.T) {
	tests := []struct {
		name     string
		wantCode string
	}{
		{"New York Yankees", "NYY"},
		{"new york yankees", "NYY"},
		{"ST. LOUIS CARDINALS", "STL"},
		{"  Boston   Red  Sox ", "BOS"},
		{"Atlánta Bravés", "ATL"},
	}
	for _, tt := range tests {
		team, ok := ByName(tt.name)
		if !ok {
			t.Errorf("ByName(%q): not found", tt.name)
			continue
		}
		if team.Code != tt.wantCode {
			t.Errorf("ByName(%q) = %q, want %q", tt.name, team.Code, tt.wantCode)
		}
	}
}

func TestValidate(t *testing.T) {
	team, err := Validate("sea")
	if err != nil {
		t.Fatalf("Validate(sea): %v", err)
	}
	if team.Code != "SEA" {
		t.Errorf("code = %q, want SEA", team.Code)
	}

	if _, err := Validate("QQQ"); err == nil {
		t.Error("Validate(QQQ): want error")
	}
}
