package oscserver

import "testing"

func TestCompilePattern(t *testing.T) {
	cases := []struct {
		pattern string
		addr    string
		want    bool
	}{
		{"/pwm*/start", "/pwm0/start", true},
		{"/pwm*/start", "/pwm0/fm/start", false},
		{"/pwm*/start", "/pwm0/interrupter/start", false},
		{"/pwm*", "/pwm0/start", false},
		{"/pwm?/stop", "/pwm1/stop", true},
		{"/pwm?/stop", "/pwm12/stop", false},
		{"/pwm[0-1]/stop", "/pwm1/stop", true},
		{"/pwm[0-1]/stop", "/pwm2/stop", false},
		{"/pwm[!0]/stop", "/pwm1/stop", true},
		{"/pwm[!0]/stop", "/pwm0/stop", false},
		{"/pwm0/{start,stop}", "/pwm0/stop", true},
		{"/pwm0/{start,stop}", "/pwm0/toggle", false},
		{"/pwm0/fm/*", "/pwm0/fm/spread", true},
		{"/a.b/*", "/axb/c", false},
		{"/a+(b)/*", "/a+(b)/c", true},
	}
	for _, tc := range cases {
		re, err := compilePattern(tc.pattern)
		if err != nil {
			t.Fatalf("compilePattern(%q): %v", tc.pattern, err)
		}
		if got := re.MatchString(tc.addr); got != tc.want {
			t.Fatalf("%q matches %q = %v want %v", tc.pattern, tc.addr, got, tc.want)
		}
	}
}

func TestCompilePattern_RejectsMalformed(t *testing.T) {
	for _, p := range []string{"/pwm[", "/pwm{", "/pwm{a,{b}}", "/pwm[]", "/pwm[!]", "/pwm[9-0]", "/pwm[a/b]", "/pwm*/(x["} {
		if _, err := compilePattern(p); err == nil {
			t.Fatalf("compilePattern(%q): expected error", p)
		}
	}
}
