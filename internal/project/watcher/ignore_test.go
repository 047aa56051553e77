package watcher

import "testing"

func TestIgnorePatterns_Match(t *testing.T) {
	ip := NewIgnorePatterns(DefaultIgnorePatterns...)
	ip.AddPattern("# comment")
	ip.AddPattern("")
	ip.AddPattern("/work/app/out/*")
	ip.AddPattern("*.bak")
	ip.AddPattern("!keep.bak")

	tests := []struct {
		path string
		want bool
	}{
		{"/work/app/.idea/libraries/guava.xml", false},
		{"/work/app/.idea/libraries/guava.xml___jb_tmp___", true},
		{"/work/app/.idea/libraries/guava.xml___jb_old___", true},
		{"/work/app/.idea/libraries/.guava.xml.12345.tmp", true},
		{"/work/app/core.iml~", true},
		{"/work/app/.#core.iml", true},
		{"/work/app/out/app.jar", true},
		{"/work/app/out/nested/app.jar", false},
		{"/work/app/old.bak", true},
		{"/work/app/keep.bak", false},
	}

	for _, tt := range tests {
		if got := ip.Match(tt.path); got != tt.want {
			t.Errorf("Match(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestIgnorePatterns_Patterns(t *testing.T) {
	ip := NewIgnorePatterns("*.a", "  ", "#x", "!b")
	got := ip.Patterns()
	if len(got) != 2 || got[0] != "*.a" || got[1] != "!b" {
		t.Errorf("Patterns() = %v, want [*.a !b]", got)
	}
}
