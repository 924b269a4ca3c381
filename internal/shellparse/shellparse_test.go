package shellparse

import (
	"reflect"
	"testing"
)

func TestSplit(t *testing.T) {
	cases := []struct {
		name    string
		command string
		want    []string
	}{
		{"simple", "kubectl get pods", []string{"kubectl get pods"}},
		{"and", "ls /tmp && terraform apply", []string{"ls /tmp", "terraform apply"}},
		{"pipe", "cat f | grep x", []string{"cat f", "grep x"}},
		{"or", "test -f x || touch x", []string{"test -f x", "touch x"}},
		{"semicolon", "cd /tmp; ls", []string{"cd /tmp", "ls"}},
		{"newline", "ls\npwd", []string{"ls", "pwd"}},
		{"mixed", "a && b | c; d", []string{"a", "b", "c", "d"}},
		{"quoted single", `echo 'a && b'`, []string{`echo 'a && b'`}},
		{"quoted double", `echo "a | b"`, []string{`echo "a | b"`}},
		{"escaped separator", `echo a\;b`, []string{`echo a\;b`}},
		{"escape inside single quotes is literal", `echo 'a\' && ls`, []string{`echo 'a\'`, "ls"}},
		{"double inside single", `echo 'he said "hi" | bye'`, []string{`echo 'he said "hi" | bye'`}},
		{"single inside double", `echo "it's fine; really"`, []string{`echo "it's fine; really"`}},
		{"empty trailing", "ls &&", []string{"ls"}},
		{"empty leading", "&& ls", []string{"ls"}},
		{"only separators", "&& || ;", nil},
		{"empty string", "", nil},
		{"whitespace", "   ", nil},
		{"unclosed quote closed at eol", `echo "a && b`, []string{`echo "a && b`}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Split(tc.command)
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("Split(%q) = %#v, want %#v", tc.command, got, tc.want)
			}
		})
	}
}

func TestSplit_SingleComponentIffNoSeparator(t *testing.T) {
	singles := []string{
		"kubectl get pods -n prod",
		`git commit -m "fix: a && b"`,
		`awk '{print $1 | "sort"}' file`,
	}
	for _, s := range singles {
		if got := Split(s); len(got) != 1 {
			t.Errorf("Split(%q) = %d components, want 1", s, len(got))
		}
	}
	if !IsCompound("ls | wc -l") {
		t.Error("IsCompound(ls | wc -l) = false, want true")
	}
	if IsCompound("ls -la") {
		t.Error("IsCompound(ls -la) = true, want false")
	}
}

func TestJoin_RoundTrip(t *testing.T) {
	commands := []string{
		"ls /tmp && terraform apply",
		"a | b; c",
		`echo 'x;y' && pwd`,
	}
	for _, cmd := range commands {
		first := Split(cmd)
		second := Split(Join(first))
		if !reflect.DeepEqual(first, second) {
			t.Errorf("round trip of %q: %#v != %#v", cmd, first, second)
		}
	}
}
