package strategist

import (
	"strings"
	"unicode"
)

// DeclineReply acknowledges a declined offer.
const DeclineReply = "No problem. Let me know when you want to look at the chart again."

// strong words carry the refusal; filler words may accompany them.
var (
	declineStrong = map[string]bool{
		"no": true, "nope": true, "nah": true, "cancel": true, "stop": true,
		"never": true, "nevermind": true, "pass": true, "skip": true, "negative": true,
	}
	declineFiller = map[string]bool{
		"thanks": true, "thank": true, "you": true, "thx": true, "not": true, "now": true,
		"mind": true, "ok": true, "okay": true, "i'm": true, "im": true, "good": true,
		"fine": true, "all": true, "that's": true, "thats": true, "it": true, "for": true,
		"right": true, "just": true, "please": true, "maybe": true, "later": true, "i": true,
		"am": true, "dont": true, "don't": true, "need": true, "want": true,
	}
)

// IsDecline reports whether message is unambiguously a refusal: every word
// belongs to the decline vocabulary and at least one of them is a refusal.
// Anything carrying other content ("no, show RSI") is not a decline.
func IsDecline(message string) bool {
	words := strings.FieldsFunc(strings.ToLower(message), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	})
	if len(words) == 0 || len(words) > 6 {
		return false
	}
	strong := false
	for _, w := range words {
		w = strings.Trim(w, "'")
		switch {
		case declineStrong[w]:
			strong = true
		case declineFiller[w]:
		default:
			return false
		}
	}
	return strong
}
