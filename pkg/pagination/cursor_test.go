package pagination

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
)

func TestEncodeDecodeCursor_RoundTrip(t *testing.T) {
	c := Cursor{
		V:   1,
		P:   "/data/book.xlsx",
		S:   "Sheet1",
		R:   "A1:D100",
		Off: 200,
		Ps:  50,
		Wbv: 1700000000000000000,
		F:   true,
	}
	tok, err := EncodeCursor(c)
	if err != nil {
		t.Fatalf("EncodeCursor error: %v", err)
	}
	if strings.ContainsAny(tok, "+/=") {
		t.Fatalf("token contains non-url-safe chars: %q", tok)
	}
	out, err := DecodeCursor(tok)
	if err != nil {
		t.Fatalf("DecodeCursor error: %v", err)
	}
	if out.P != c.P || out.S != c.S || out.R != c.R || out.Off != c.Off || out.Ps != c.Ps || out.Wbv != c.Wbv || !out.F {
		t.Fatalf("roundtrip mismatch: got %+v want %+v", out, c)
	}
	if out.Iat == 0 {
		t.Fatalf("expected iat to be defaulted")
	}
}

func TestDecodeCursor_Invalid(t *testing.T) {
	cases := []string{
		"",
		"!!!",
		base64.RawURLEncoding.EncodeToString([]byte("not-json")),
		mustB64(`{"v":1}`),
		mustB64(`{"v":1,"p":"x","s":"","r":"A1:B2","off":0,"ps":10}`),
		mustB64(`{"v":1,"p":"","s":"S","r":"A1:B2","off":0,"ps":10}`),
		mustB64(`{"v":1,"p":"x","s":"S","r":"","off":0,"ps":10}`),
		mustB64(`{"v":1,"p":"x","s":"S","r":"A1","off":-1,"ps":10}`),
		mustB64(`{"v":1,"p":"x","s":"S","r":"A1","off":0,"ps":0}`),
	}
	for i, tok := range cases {
		if _, err := DecodeCursor(tok); err == nil {
			t.Fatalf("case %d: expected error for token %q", i, tok)
		}
	}
}

func TestCursorCheck(t *testing.T) {
	c := &Cursor{P: "/data/a.xlsx", Wbv: 42}
	if err := c.Check("/data/a.xlsx", 42); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := c.Check("/data/a.xlsx", 43); !errors.Is(err, ErrStale) {
		t.Fatalf("expected ErrStale, got %v", err)
	}
	if err := c.Check("/data/b.xlsx", 42); err == nil {
		t.Fatalf("expected path mismatch error")
	}
}

func TestNextOffset(t *testing.T) {
	if got := NextOffset(-5, 10); got != 10 {
		t.Fatalf("got %d", got)
	}
	if got := NextOffset(20, 0); got != 20 {
		t.Fatalf("got %d", got)
	}
}

func FuzzDecodeCursor(f *testing.F) {
	seeds := []string{
		"", "abc", mustB64(`{"v":1}`), mustB64(`{"p":"x"}`),
		mustB64(`{"v":1,"p":"wb","s":"S","r":"A1","off":0,"ps":1}`),
	}
	for _, s := range seeds {
		f.Add(s)
	}
	f.Fuzz(func(t *testing.T, token string) {
		_, _ = DecodeCursor(token)
	})
}

func mustB64(s string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(s))
}
