package urlcanon

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		want   string
		wantOK bool
	}{
		{
			name:   "drops fragment and query and lowercases",
			in:     "HTTPS://Example.COM/Posts/Go/?utm_source=rss#top",
			want:   "https://example.com/posts/go",
			wantOK: true,
		},
		{
			name:   "keeps www on the normalized form",
			in:     "https://www.Dal.ca/",
			want:   "https://www.dal.ca",
			wantOK: true,
		},
		{
			name:   "strips trailing sentence punctuation",
			in:     "https://example.com/a).",
			want:   "https://example.com/a",
			wantOK: true,
		},
		{
			name:   "strips exactly one trailing slash",
			in:     "https://example.com/a//",
			want:   "https://example.com/a/",
			wantOK: true,
		},
		{
			name:   "keeps explicit port",
			in:     "http://example.com:8443/x",
			want:   "http://example.com:8443/x",
			wantOK: true,
		},
		{
			name: "rejects unsupported scheme",
			in:   "ftp://example.com/file",
		},
		{
			name: "rejects missing host",
			in:   "https:///path",
		},
		{
			name: "rejects invalid port",
			in:   "https://example.com:99999/",
		},
		{
			name: "rejects invalid escape",
			in:   "https://example.com/%zz",
		},
		{
			name: "rejects plain text",
			in:   "not a url",
		},
		{
			name: "rejects empty input",
			in:   "   \t   ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Normalize(tt.in)
			if ok != tt.wantOK {
				t.Fatalf("Normalize(%q) ok = %v, want %v", tt.in, ok, tt.wantOK)
			}
			if got != tt.want {
				t.Fatalf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeEquivalentForms(t *testing.T) {
	forms := []string{
		"https://Example.com/Page",
		"https://example.com/page/",
		"https://example.com/page?a=1",
		"https://EXAMPLE.com/page#frag",
		"https://example.com:443/page",
		"HTTPS://example.com:/page",
	}
	want, ok := Normalize(forms[0])
	if !ok {
		t.Fatalf("Normalize(%q) reported invalid", forms[0])
	}
	for _, f := range forms[1:] {
		got, ok := Normalize(f)
		if !ok || got != want {
			t.Fatalf("Normalize(%q) = %q, %v; want %q", f, got, ok, want)
		}
	}
}

func TestNormalizeKeepsNonDefaultPort(t *testing.T) {
	cases := map[string]string{
		"http://ccv-cvc.ca:80":    "http://ccv-cvc.ca",
		"https://ccv-cvc.ca:443/": "https://ccv-cvc.ca",
		"http://ccv-cvc.ca:443":   "http://ccv-cvc.ca:443",
		"https://ccv-cvc.ca:8443": "https://ccv-cvc.ca:8443",
	}
	for in, want := range cases {
		got, ok := Normalize(in)
		if !ok || got != want {
			t.Fatalf("Normalize(%q) = %q, %v; want %q", in, got, ok, want)
		}
	}
}

func TestHostOf(t *testing.T) {
	cases := map[string]string{
		"https://www.dal.ca/campus":           "dal.ca",
		"https://apo.mcgill.ca/x":             "apo.mcgill.ca",
		"https://WWW.Example.com:8080/":       "example.com",
		"https://wwwexample.com":              "wwwexample.com",
		"http://[::1]:80/":                    "::1",
		"https://example.com/%zz":             "",
		"https://www.www.example.com/nested/": "www.example.com",
	}
	for in, want := range cases {
		if got := HostOf(in); got != want {
			t.Fatalf("HostOf(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBaseLabels(t *testing.T) {
	host := "sub.fundingopps-osr.research.mcgill.ca"
	if got := Base2(host); got != "mcgill.ca" {
		t.Fatalf("Base2(%q) = %q", host, got)
	}
	if got := Base3(host); got != "research.mcgill.ca" {
		t.Fatalf("Base3(%q) = %q", host, got)
	}
	if got := Base2("localhost"); got != "localhost" {
		t.Fatalf("Base2(localhost) = %q", got)
	}
	if got := Base3("dal.ca"); got != "dal.ca" {
		t.Fatalf("Base3(dal.ca) = %q", got)
	}
}
