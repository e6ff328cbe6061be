package policy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsAllowedApprovedBypassesWhitelist(t *testing.T) {
	p := MustNew(Tables{
		Approved: []string{"https://CCV-CVC.ca/"},
	})

	assert.True(t, p.IsAllowed("https://ccv-cvc.ca"))
	assert.True(t, p.IsApproved("https://ccv-cvc.ca"))
	assert.False(t, p.IsAllowed("https://ccv-cvc.ca/other"))
}

func TestIsAllowedTiers(t *testing.T) {
	tests := []struct {
		name      string
		whitelist []string
		url       string
		want      bool
	}{
		{"full host", []string{"apo.mcgill.ca"}, "https://apo.mcgill.ca/x", true},
		{"base2 family", []string{"mcgill.ca"}, "https://a.b.c.mcgill.ca/x", true},
		{"base3 family", []string{"research.mcgill.ca"}, "https://sub.fundingopps-osr.research.mcgill.ca", true},
		{"deeper entry does not match descendants", []string{"fundingopps-osr.research.mcgill.ca"}, "https://sub.fundingopps-osr.research.mcgill.ca", false},
		{"www stripped before lookup", []string{"dal.ca"}, "https://www.dal.ca/page", true},
		{"unrelated host", []string{"dal.ca"}, "https://github.com/x", false},
		{"empty url", []string{"dal.ca"}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := MustNew(Tables{Whitelist: tt.whitelist})
			assert.Equal(t, tt.want, p.IsAllowed(tt.url))
		})
	}
}

func TestFallbackPrecedence(t *testing.T) {
	p := MustNew(Tables{
		Fallbacks: map[string]string{
			"mcgill.ca":          "https://www.mcgill.ca/research/",
			"apo.mcgill.ca":      "https://www.mcgill.ca/apo/",
			"research.mcgill.ca": "https://www.mcgill.ca/research/osr",
		},
	})

	assert.Equal(t, "https://www.mcgill.ca/apo/", p.FallbackFor("apo.mcgill.ca"))
	assert.Equal(t, "https://www.mcgill.ca/research/", p.FallbackFor("news.mcgill.ca"))
	// base2 is consulted before base3.
	assert.Equal(t, "https://www.mcgill.ca/research/", p.FallbackFor("x.research.mcgill.ca"))
	assert.Equal(t, "", p.FallbackFor("github.com"))
	assert.Equal(t, "", p.FallbackFor(""))
}

func TestSkipsLiveness(t *testing.T) {
	p := MustNew(Tables{SkipLiveness: []string{"dal.ca", "cdn.example.com"}})

	assert.True(t, p.SkipsLiveness("dal.ca"))
	assert.True(t, p.SkipsLiveness("medicine.dal.ca"))
	assert.True(t, p.SkipsLiveness("cdn.example.com"))
	// base3 is not consulted for the skip list.
	assert.False(t, p.SkipsLiveness("img.cdn.example.com"))
	assert.False(t, p.SkipsLiveness("example.com"))
}

func TestNewRejectsInvalidEntries(t *testing.T) {
	_, err := New(Tables{
		Approved:  []string{"mailto:someone@example.com"},
		Fallbacks: map[string]string{"  ": "https://x.example"},
		Rewrites:  []Rewrite{{Keyword: " ", To: "https://x.example"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "approved url")
	assert.Contains(t, err.Error(), "fallback host")
	assert.Contains(t, err.Error(), "rewrite keyword")
}

func TestValidateRequiresAllowedTargets(t *testing.T) {
	p := MustNew(Tables{
		Whitelist: []string{"dal.ca"},
		Fallbacks: map[string]string{
			"dal.ca":    "https://www.dal.ca",
			"other.org": "https://elsewhere.example/",
		},
	})
	err := p.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fallback for other.org")
	assert.NotContains(t, err.Error(), "fallback for dal.ca")
}

func TestValidateAcceptsRewriteToUnlistedHost(t *testing.T) {
	p := MustNew(Tables{
		Whitelist: []string{"dal.ca"},
		Rewrites:  []Rewrite{{Keyword: "github", To: "https://rppa-appr.ca/en/summary"}},
	})
	assert.NoError(t, p.Validate())

	bad := MustNew(Tables{Rewrites: []Rewrite{{Keyword: "github", To: "ftp://mirror"}}})
	err := bad.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rewrite for github")
}

func TestDefaultTablesValidate(t *testing.T) {
	p, err := Default()
	require.NoError(t, err)

	stats := p.Stats()
	assert.Equal(t, 8, stats.Approved)
	assert.Equal(t, 3, stats.SkipLiveness)
	assert.Equal(t, 1, stats.Rewrites)

	assert.True(t, p.IsAllowed("https://www.dal.ca/campus_life/health-and-wellness.html"))
	assert.Equal(t, "https://www.mcgill.ca/apo/", p.FallbackFor("apo.mcgill.ca"))
	assert.True(t, p.SkipsLiveness("dal.ca"))
	assert.False(t, p.IsAllowed("https://rppa-appr.ca/en/summary"))
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("whitelist: [dal.ca]\nwhitelsit: [typo.ca]\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("whitelist: [dal.ca]\nfallbacks:\n  dal.ca: https://www.dal.ca\n"), 0o600))
	p, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://www.dal.ca", p.FallbackFor("medicine.dal.ca"))
}

func TestFromFileDefaultsWhenUnset(t *testing.T) {
	p, err := FromFile("")
	require.NoError(t, err)
	assert.NotZero(t, p.Stats().Whitelist)
}
