package bot

import "testing"

func TestParseCommand(t *testing.T) {
	cases := []struct {
		text string
		name string
		ok   bool
	}{
		{"/start", "start", true},
		{"/HELP", "help", true},
		{"/help@my_bot foo", "help", true},
		{"/clear\nmore", "clear", true},
		{"/", "", true},
		{"hello /clear", "", false},
		{" /clear", "", false},
		{"", "", false},
	}
	for _, c := range cases {
		name, ok := ParseCommand(c.text)
		if name != c.name || ok != c.ok {
			t.Errorf("ParseCommand(%q) = %q, %v; want %q, %v", c.text, name, ok, c.name, c.ok)
		}
	}
}
