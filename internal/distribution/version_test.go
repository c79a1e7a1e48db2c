package distribution

import "testing"

func TestParseVersion(t *testing.T) {
	tests := []struct {
		in      string
		want    Version
		wantStr string
		wantErr bool
	}{
		{"4.2.13", Version{4, 2, 13, ""}, "4.2.13", false},
		{"v5.0", Version{5, 0, 0, ""}, "5.0.0", false},
		{"4.4.0-rc7", Version{4, 4, 0, "rc7"}, "4.4.0-rc7", false},
		{"100.5.1", Version{100, 5, 1, ""}, "100.5.1", false},
		{"", Version{}, "", true},
		{"latest", Version{}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseVersion(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseVersion(%q) expected error", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseVersion(%q) error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseVersion(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
			if got.String() != tt.wantStr {
				t.Errorf("String() = %q, want %q", got.String(), tt.wantStr)
			}
		})
	}
}

func TestCompareIgnoresQualifier(t *testing.T) {
	a := MustParseVersion("4.4.0-rc7")
	b := MustParseVersion("4.4.0")
	if a.Compare(b) != 0 {
		t.Errorf("qualifier should not affect ordering")
	}
	if MustParseVersion("4.2.16").Compare(MustParseVersion("4.10.0")) >= 0 {
		t.Errorf("4.2.16 should sort before 4.10.0")
	}
	if MustParseVersion("5.0.0").Compare(MustParseVersion("4.99.99")) <= 0 {
		t.Errorf("5.0.0 should sort after 4.99.99")
	}
}

func TestVersionRangeContains(t *testing.T) {
	r, err := ParseVersionRange("4.2.5-4.2.16")
	if err != nil {
		t.Fatalf("ParseVersionRange() error: %v", err)
	}

	tests := []struct {
		v    string
		want bool
	}{
		{"4.2.4", false},
		{"4.2.5", true},
		{"4.2.13", true},
		{"4.2.16", true},
		{"4.2.17", false},
		{"4.2.10-rc1", true},
		{"4.3.0", false},
	}
	for _, tt := range tests {
		if got := r.Contains(MustParseVersion(tt.v)); got != tt.want {
			t.Errorf("%s.Contains(%s) = %v, want %v", r, tt.v, got, tt.want)
		}
	}
}

func TestParseVersionRange(t *testing.T) {
	single, err := ParseVersionRange("3.3.1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !single.Contains(MustParseVersion("3.3.1")) || single.Contains(MustParseVersion("3.3.2")) {
		t.Errorf("single version range should contain only itself")
	}
	if single.String() != "3.3.1" {
		t.Errorf("String() = %q", single.String())
	}

	for _, bad := range []string{"4.2.16-4.2.5", "x-4.0.0", "4.0.0-", "4.0.0-rc1-4.0.2"} {
		if _, err := ParseVersionRange(bad); err == nil {
			t.Errorf("ParseVersionRange(%q) expected error", bad)
		}
	}
}
