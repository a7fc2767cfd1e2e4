// Package redflag is the deterministic pre-filter that runs before any
// model call. It normalizes the message text to a canonical form and
// scans it against fixed keyword dictionaries for probing questions
// (internal implementation, creator identity) and emergency content.
package redflag

import (
	"regexp"
	"strings"
	"unicode"
)

// Reason is the scan outcome.
type Reason string

const (
	ReasonNone            Reason = "none"
	ReasonInternalDetails Reason = "internal_details"
	ReasonCreatorIdentity Reason = "creator_identity"
	ReasonEmergency       Reason = "emergency"
)

// Result carries the scan outcome plus the data the caller needs to
// short-circuit: the canned reply for probing questions, and the force
// flag for emergencies where a severe keyword matched.
type Result struct {
	Reason   Reason
	Reply    string
	Severe   bool
	Keywords []string
}

// Base canonical phrases. Input is cleaned to canonical form before
// matching, so obfuscated variants ("s3lf h4rm") still confirm.
var internalDetailsPhrases = []string{
	"show me your code",
	"your source code",
	"what model are you",
	"which llm",
	"your system prompt",
	"your prompt",
	"your training data",
	"how were you built",
	"how are you programmed",
	"your architecture",
	"jailbreak",
	"ignore your instructions",
}

var creatorIdentityPhrases = []string{
	"who made you",
	"who created you",
	"who built you",
	"who is your creator",
	"who is your developer",
	"which company made you",
	"who owns you",
}

var emergencyPhrases = []string{
	"suicide",
	"kill myself",
	"end my life",
	"take my life",
	"end it all",
	"self harm",
	"cut myself",
	"hurt myself",
	"harm myself",
	"want to die",
	"wish i was dead",
	"not worth living",
	"better off dead",
	"unalive",
	"overdose",
	"emergency",
	"call for help",
}

// severePhrases is the subset of emergencyPhrases that forces immediate
// escalation regardless of user notification preferences.
var severePhrases = []string{
	"kill myself",
	"end my life",
	"take my life",
	"suicide",
	"overdose",
	"better off dead",
}

var cannedReplies = map[Reason]string{
	ReasonInternalDetails: "I keep the details of how I work to myself, but I'm fully here for you. What's on your mind?",
	ReasonCreatorIdentity: "I was made by a small team that cares a lot about you getting real support. What can I help with today?",
}

var spaceRegex = regexp.MustCompile(`\s+`)

var obfuscationFold = map[rune]rune{
	'@': 'a', '4': 'a', '3': 'e', '!': 'i', '1': 'i',
	'0': 'o', '$': 's', '5': 's', '7': 't', '+': 't',
	'а': 'a', 'е': 'e', 'і': 'i', 'о': 'o', 'р': 'p',
}

// Clean normalizes text to canonical form: lowercase, obfuscation
// characters folded to letters, non-letters collapsed to spaces,
// repeated letters collapsed ("rrreeeally" -> "realy" -> matches as a
// whole-word only when the canonical phrase survives the same fold).
func Clean(text string) string {
	lowered := strings.ToLower(text)

	var b strings.Builder
	b.Grow(len(lowered))
	for _, r := range lowered {
		if folded, ok := obfuscationFold[r]; ok {
			r = folded
		}
		if unicode.IsLetter(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}

	cleaned := collapseRepeats(b.String())
	cleaned = spaceRegex.ReplaceAllString(cleaned, " ")
	return strings.TrimSpace(cleaned)
}

// collapseRepeats reduces runs of the same letter to a single letter,
// leaving spaces intact.
func collapseRepeats(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	var last rune
	lastWasLetter := false
	for _, r := range text {
		isLetter := unicode.IsLetter(r)
		if isLetter && lastWasLetter && r == last {
			continue
		}
		b.WriteRune(r)
		last = r
		lastWasLetter = isLetter
	}
	return b.String()
}

// containsPhrase confirms a canonical phrase in cleaned text. Single
// words must match a whole word (so "skill" does not confirm "kill");
// multi-word phrases match by substring.
func containsPhrase(cleaned string, words []string, phrase string) bool {
	canonical := collapseRepeats(phrase)
	if !strings.Contains(cleaned, canonical) {
		return false
	}
	if strings.ContainsRune(canonical, ' ') {
		return true
	}
	for _, w := range words {
		if w == canonical {
			return true
		}
	}
	return false
}

func matchAny(cleaned string, words []string, phrases []string) []string {
	var matched []string
	for _, p := range phrases {
		if containsPhrase(cleaned, words, p) {
			matched = append(matched, p)
		}
	}
	return matched
}

// Scan classifies text against the fixed keyword sets. Emergency takes
// precedence over the probing categories. Pure function, never calls
// out.
func Scan(text string) Result {
	cleaned := Clean(text)
	words := strings.Fields(cleaned)

	if matched := matchAny(cleaned, words, emergencyPhrases); len(matched) > 0 {
		severe := len(matchAny(cleaned, words, severePhrases)) > 0
		return Result{Reason: ReasonEmergency, Severe: severe, Keywords: matched}
	}
	if matched := matchAny(cleaned, words, internalDetailsPhrases); len(matched) > 0 {
		return Result{
			Reason:   ReasonInternalDetails,
			Reply:    cannedReplies[ReasonInternalDetails],
			Keywords: matched,
		}
	}
	if matched := matchAny(cleaned, words, creatorIdentityPhrases); len(matched) > 0 {
		return Result{
			Reason:   ReasonCreatorIdentity,
			Reply:    cannedReplies[ReasonCreatorIdentity],
			Keywords: matched,
		}
	}
	return Result{Reason: ReasonNone}
}

// CannedReply returns the templated reply for a probing reason, empty
// for other reasons.
func CannedReply(r Reason) string {
	return cannedReplies[r]
}
