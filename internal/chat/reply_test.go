package chat

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestNormalizeReplyCollapsesWhitespace(t *testing.T) {
	got := NormalizeReply("  Hello   there.\n\nSecond   sentence. ")
	want := "Hello there. Second sentence."
	if got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestNormalizeReplyEmpty(t *testing.T) {
	if got := NormalizeReply("   \n "); got != "" {
		t.Errorf("Expected empty string, got %q", got)
	}
}

func TestNormalizeReplySentenceCap(t *testing.T) {
	raw := strings.Repeat("One sentence here. ", 10)
	got := NormalizeReply(raw)
	if n := strings.Count(got, "."); n != maxReplySentences {
		t.Errorf("Expected %d sentences, got %d: %q", maxReplySentences, n, got)
	}
}

func TestNormalizeReplyCharCap(t *testing.T) {
	raw := strings.Repeat("word ", 300) // one giant "sentence", no terminators
	got := NormalizeReply(raw)
	if len(got) > truncateReplyAt+1 {
		t.Errorf("Expected reply capped near %d chars, got %d", truncateReplyAt, len(got))
	}
	if !strings.HasSuffix(got, ".") {
		t.Errorf("Expected truncated reply to end with a period, got %q", got[len(got)-10:])
	}
}

func TestNormalizeReplyMultibyteCharCap(t *testing.T) {
	// The char cap must cut on a rune boundary: a byte-offset slice through
	// three-byte runes would leave an invalid UTF-8 tail.
	raw := strings.Repeat("好", 300) + "."
	got := NormalizeReply(raw)
	if !utf8.ValidString(got) {
		t.Fatalf("Expected valid UTF-8 after truncation, got %q", got)
	}
	if len(got) > truncateReplyAt+1 {
		t.Errorf("Expected reply capped near %d bytes, got %d", truncateReplyAt, len(got))
	}
	if !strings.HasSuffix(got, ".") {
		t.Errorf("Expected truncated reply to end with a period, got %q", got)
	}
	if strings.ContainsRune(got, utf8.RuneError) {
		t.Errorf("Expected no replacement characters, got %q", got)
	}
}

func TestTruncateAtRune(t *testing.T) {
	cases := []struct {
		in   string
		n    int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello", 3, "hel"},
		{"héllo", 2, "h"},      // é is two bytes; cutting at 2 would split it
		{"好好好", 4, "好"},       // three-byte runes
		{"好好好", 6, "好好"},
	}
	for _, tc := range cases {
		if got := truncateAtRune(tc.in, tc.n); got != tc.want {
			t.Errorf("truncateAtRune(%q, %d): expected %q, got %q", tc.in, tc.n, got, tc.want)
		}
	}
}

func TestFinalizeReplyFallbackOnEmpty(t *testing.T) {
	got := FinalizeReply("", Classification{Intent: IntentGeneral})
	if got != NormalizeReply(fallbackReply) {
		t.Errorf("Expected fallback reply, got %q", got)
	}
}

func TestFinalizeReplyTopicSubstitution(t *testing.T) {
	cls := Classification{Intent: IntentSpecific, Topics: []string{"pricing"}}

	got := FinalizeReply(fallbackReply, cls)
	if !strings.Contains(got, "$1,000") {
		t.Errorf("Expected pricing fallback substituted, got %q", got)
	}

	got = FinalizeReply("Here are the basics about what we do.", cls)
	if !strings.Contains(got, "$1,000") {
		t.Errorf("Expected generic reply substituted, got %q", got)
	}

	// A substantive generated reply is kept.
	got = FinalizeReply("Most rebuilds run about a thousand dollars.", cls)
	if got != "Most rebuilds run about a thousand dollars." {
		t.Errorf("Expected generated reply kept, got %q", got)
	}
}

func TestFinalizeReplyTopicPriority(t *testing.T) {
	cls := Classification{Intent: IntentSpecific, Topics: []string{"support", "pricing"}}
	got := FinalizeReply(fallbackReply, cls)
	if !strings.HasPrefix(got, "Most 5-page rebuilds") {
		t.Errorf("Expected pricing to outrank support, got %q", got)
	}
}

func TestFinalizeReplyFormOffer(t *testing.T) {
	cls := Classification{Intent: IntentGeneral, OfferForm: true}

	got := FinalizeReply("Happy to help with that.", cls)
	if !strings.HasSuffix(got, formOfferSuffix) {
		t.Errorf("Expected form offer appended, got %q", got)
	}
	if strings.Contains(got, "..") {
		t.Errorf("Expected clean spacing, got %q", got)
	}

	// No double offer when the reply already mentions the form.
	got = FinalizeReply("Use the quick review form to get going.", cls)
	if strings.Count(strings.ToLower(got), "review form") != 1 {
		t.Errorf("Expected a single form mention, got %q", got)
	}
}

func TestCannedReplies(t *testing.T) {
	cases := []struct {
		cls  Classification
		want string
	}{
		{Classification{Intent: IntentGreeting}, greetingReply},
		{Classification{Intent: IntentLeadCapture}, leadCaptureReply},
		{Classification{Intent: IntentRedirect}, redirectReply},
		{Classification{Intent: IntentRedirect, ReviewRefusal: true}, reviewRefusalReply},
	}
	for _, tc := range cases {
		if got := cannedReply(tc.cls); got != tc.want {
			t.Errorf("Intent %s: expected %q, got %q", tc.cls.Intent, tc.want, got)
		}
	}
}
