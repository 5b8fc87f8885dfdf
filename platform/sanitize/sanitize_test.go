package sanitize

import "testing"

func TestText(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"plain text untouched", "Kitchen remodel", "Kitchen remodel"},
		{"tags stripped", "<b>Kitchen</b> remodel", "Kitchen remodel"},
		{"trimmed", "  Kitchen remodel  ", "Kitchen remodel"},
		{"entities decoded", "Smith &amp; Sons &quot;North&quot;", `Smith & Sons "North"`},
		{"nbsp becomes space", "Main&nbsp;street&nbsp;5", "Main street 5"},
		{"encoded tags do not survive", "&lt;script&gt;alert(1)&lt;/script&gt;", "alert(1)"},
		{"whitespace collapsed", "Main \t street\r\n5", "Main street 5"},
		{"empty", "", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Text(tc.input); got != tc.want {
				t.Fatalf("Text(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}
