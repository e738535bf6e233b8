package observation

import "testing"

func TestParseCategory(t *testing.T) {
	tests := []struct {
		raw    string
		want   Category
		wantOK bool
	}{
		{raw: "Running", want: Running, wantOK: true},
		{raw: "  GYM: UB ", want: GymUpperBody, wantOK: true},
		{raw: "Cross-Country Skiing", want: CrossCountrySkiing, wantOK: true},
		{raw: "Stress", want: Stress, wantOK: true},
		{raw: "running w/ bob", wantOK: false},
		{raw: "", wantOK: false},
	}
	for _, tt := range tests {
		got, ok := ParseCategory(tt.raw)
		if ok != tt.wantOK {
			t.Fatalf("ParseCategory(%q) ok = %v, want %v", tt.raw, ok, tt.wantOK)
		}
		if ok && got != tt.want {
			t.Fatalf("ParseCategory(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestCategorySlug(t *testing.T) {
	tests := map[Category]string{
		Running:            "running",
		GymUpperBody:       "gym-ub",
		CrossCountrySkiing: "cross-country-skiing",
	}
	for c, want := range tests {
		if got := c.Slug(); got != want {
			t.Fatalf("%q slug = %q, want %q", c, got, want)
		}
	}
}

func TestEveryListedCategoryHasSpec(t *testing.T) {
	for _, c := range append(Activities(), Dimensions()...) {
		spec, ok := c.Spec()
		if !ok {
			t.Fatalf("missing spec for %q", c)
		}
		if spec.Stream == "" {
			t.Fatalf("missing stream for %q", c)
		}
	}
	if !Stress.Inverted() {
		t.Fatal("stress must be inverted")
	}
	if Sleep.Inverted() || Running.Inverted() {
		t.Fatal("only stress is inverted")
	}
	if Sleep.Stream() != StreamWellbeing || Gym.Stream() != StreamActivity {
		t.Fatal("unexpected streams")
	}
}
