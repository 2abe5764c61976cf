package main

import "testing"

func TestValidateStreamIDString(t *testing.T) {
	cases := []struct {
		id    string
		ok    bool
		label string
	}{
		{"", false, "empty"},
		{"live-channel_01.test", true, "letters/digits/-/_/."},
		{"has space", false, "space not allowed"},
		{"has/slash", false, "slash not allowed"},
	}

	for _, c := range cases {
		if got := validateStreamIDString(c.id, 128); got != c.ok {
			t.Errorf("%s: validateStreamIDString(%q) = %v, want %v", c.label, c.id, got, c.ok)
		}
	}
}

func TestValidateStreamIDStringMaxLength(t *testing.T) {
	short := "abc"
	long := make([]byte, 129)
	for i := range long {
		long[i] = 'a'
	}

	if !validateStreamIDString(short, 128) {
		t.Fatalf("expected a short id to pass a 128-char limit")
	}
	if validateStreamIDString(string(long), 128) {
		t.Fatalf("expected a 129-char id to fail a 128-char limit")
	}
}

func TestDefaultValidatorUsesConfiguredMaxLength(t *testing.T) {
	v := NewDefaultValidator(4)

	if !v.ValidateConnect("abcd") {
		t.Fatalf("expected a 4-char channel to pass a max length of 4")
	}
	if v.ValidateConnect("abcde") {
		t.Fatalf("expected a 5-char channel to fail a max length of 4")
	}
}

func TestNewDefaultValidatorFallsBackOnNonPositiveMaxLength(t *testing.T) {
	v := NewDefaultValidator(0)
	if v.MaxLength != streamIdMaxLengthDefault {
		t.Fatalf("expected MaxLength to fall back to default %d, got %d", streamIdMaxLengthDefault, v.MaxLength)
	}
}

func TestDefaultValidatorAcceptsSetDataFrame(t *testing.T) {
	v := &DefaultValidator{MaxLength: streamIdMaxLengthDefault}
	if !v.ValidateSetDataFrame("chan", map[string]*AMF0Value{}) {
		t.Fatalf("expected DefaultValidator to accept any metadata")
	}
}
