package screening

import (
	"strings"
	"testing"

	"go.uber.org/zap"
	"pgregory.net/rapid"
)

func TestScreen(t *testing.T) {
	c := NewChecker([]string{"noreply", "no-reply"}, []string{"spam.example"}, zap.NewNop())

	tests := []struct {
		from string
		want string
	}{
		{"", ReasonNoAddress},
		{"   ", ReasonNoAddress},
		{"noreply@shop.com", ReasonNoreply},
		{"NoReply-Alerts@bank.com", ReasonNoreply},
		{"no-reply@github.com", ReasonNoreply},
		{"parent@gmail.com", ""},
		{"x@spam.example", ReasonBlockedDomain},
		{"x@mail.spam.example", ReasonBlockedDomain},
		{"x@notspam.example", ""},
	}
	for _, tt := range tests {
		if got := c.Screen(tt.from); got != tt.want {
			t.Errorf("Screen(%q) = %q, want %q", tt.from, got, tt.want)
		}
	}
}

func TestNilLoggerIsAllowed(t *testing.T) {
	c := NewChecker(nil, []string{"a.com"}, nil)
	if c.Allowed("x@a.com") {
		t.Fatal("blocked domain should not be allowed")
	}
}

func TestPropertyNoreplyAlwaysExcluded(t *testing.T) {
	c := NewChecker([]string{"noreply"}, nil, zap.NewNop())
	rapid.Check(t, func(rt *rapid.T) {
		local := rapid.StringMatching(`[a-z0-9.]{0,10}`).Draw(rt, "local")
		domain := rapid.StringMatching(`[a-z]{1,10}\.(com|edu|org)`).Draw(rt, "domain")
		upper := rapid.Bool().Draw(rt, "upper")

		marker := "noreply"
		if upper {
			marker = strings.ToUpper(marker)
		}
		addr := local + marker + "@" + domain
		if c.Allowed(addr) {
			rt.Fatalf("Allowed(%q) = true, want false", addr)
		}
	})
}
