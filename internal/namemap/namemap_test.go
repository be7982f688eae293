package namemap

import "testing"

func TestEscapeUnescapeInverse(t *testing.T) {
	for _, name := range []string{
		"etc/hostname",
		`etc/foo:bar`,
		`weird*name|with<many>types?of"chars`,
		"plain-ascii_name.txt",
		"",
		"#not-an-escape",
		"#12ZZ",
	} {
		got := Unescape(Escape(name))
		if got != name {
			t.Errorf("Unescape(Escape(%q)) = %q, want %q", name, got, name)
		}
	}
}

func TestEscapeKnownMapping(t *testing.T) {
	for _, tt := range []struct{ in, want string }{
		{"etc/foo:bar", "etc/foo#003Abar"},
		{`a*b`, `a#002Ab`},
		{`a|b`, `a#007Cb`},
		{`a>b`, `a#003Eb`},
		{`a<b`, `a#003Cb`},
		{`a?b`, `a#003Fb`},
		{`a"b`, `a#0022b`},
		{"no-special-chars", "no-special-chars"},
	} {
		if got := Escape(tt.in); got != tt.want {
			t.Errorf("Escape(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEscapeLeavesControlCharsAlone(t *testing.T) {
	in := "a\tb\nc"
	if got := Escape(in); got != in {
		t.Errorf("Escape(%q) = %q, want unchanged", in, got)
	}
}

func TestUnescapeNonHexHashIsLiteral(t *testing.T) {
	in := "price#1ZZ0"
	if got := Unescape(in); got != in {
		t.Errorf("Unescape(%q) = %q, want unchanged (not valid hex)", in, got)
	}
}
