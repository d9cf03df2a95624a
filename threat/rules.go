package threat

import (
	"regexp"
	"strings"
	"unicode"
)

// Kind names one detection rule
type Kind string

const (
	KindInviteLink   Kind = "invite_link"
	KindMaliciousURL Kind = "malicious_url"
	KindMassMention  Kind = "mass_mention"
	KindCharRun      Kind = "char_run"
	KindCapsRun      Kind = "caps_run"
	KindRepeats      Kind = "repeats"
	KindInjection    Kind = "injection"
	KindIPLeak       Kind = "ip_leak"
	KindPhoneLeak    Kind = "phone_leak"
	KindEmailLeak    Kind = "email_leak"
	KindMessageFlood Kind = "message_flood"
	KindMentionFlood Kind = "mention_flood"
	KindInviteFlood  Kind = "invite_flood"
	KindCommandFlood Kind = "command_flood"
)

// Level grades a detection
type Level string

const (
	LevelLow      Level = "low"
	LevelMedium   Level = "medium"
	LevelHigh     Level = "high"
	LevelCritical Level = "critical"
)

var levelRank = map[Level]int{
	LevelLow:      0,
	LevelMedium:   1,
	LevelHigh:     2,
	LevelCritical: 3,
}

// Rule is one content check. Pattern-based rules match via the compiled
// regexp; heuristic rules (char runs, caps, repeats, mass mentions) are
// evaluated in code and carry a nil Pattern.
type Rule struct {
	Kind       Kind
	Level      Level
	Confidence float64
	Enabled    bool
	Pattern    *regexp.Regexp
}

var (
	inviteLinkPattern = regexp.MustCompile(`(?i)(discord\.gg|discord(app)?\.com/invite)/[a-zA-Z0-9-]+`)

	maliciousURLPattern = regexp.MustCompile(`(?i)(free[\s_-]?nitro|nitro[\s_-]?free|discord[\s_-]?gift|steamcommunity\.com/gift|airdrop[\s_-]?claim|wallet[\s_-]?connect[\s_-]?verify)`)

	injectionPattern = regexp.MustCompile(`(?i)(ignore (all )?(previous|prior) (instructions|messages)|disregard (your|the) (instructions|rules)|you are now [a-z]|system prompt|\{\{?system\}?\})`)

	ipPattern = regexp.MustCompile(`\b(?:(?:25[0-5]|2[0-4]\d|1?\d?\d)\.){3}(?:25[0-5]|2[0-4]\d|1?\d?\d)\b`)

	phonePattern = regexp.MustCompile(`\+\d{1,3}[\s.-]?\(?\d{1,4}\)?(?:[\s.-]?\d{2,4}){2,4}`)

	emailPattern = regexp.MustCompile(`\b[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}\b`)
)

// defaultRules builds the initial rule set
func defaultRules() map[Kind]*Rule {
	rules := []*Rule{
		{Kind: KindInviteLink, Level: LevelMedium, Confidence: 0.9, Enabled: true, Pattern: inviteLinkPattern},
		{Kind: KindMaliciousURL, Level: LevelHigh, Confidence: 0.85, Enabled: true, Pattern: maliciousURLPattern},
		{Kind: KindInjection, Level: LevelMedium, Confidence: 0.7, Enabled: true, Pattern: injectionPattern},
		{Kind: KindIPLeak, Level: LevelLow, Confidence: 0.6, Enabled: true, Pattern: ipPattern},
		{Kind: KindPhoneLeak, Level: LevelLow, Confidence: 0.5, Enabled: true, Pattern: phonePattern},
		{Kind: KindEmailLeak, Level: LevelLow, Confidence: 0.6, Enabled: true, Pattern: emailPattern},
		{Kind: KindMassMention, Level: LevelHigh, Confidence: 0.9, Enabled: true},
		{Kind: KindCharRun, Level: LevelLow, Confidence: 0.7, Enabled: true},
		{Kind: KindCapsRun, Level: LevelLow, Confidence: 0.6, Enabled: true},
		{Kind: KindRepeats, Level: LevelLow, Confidence: 0.7, Enabled: true},
		{Kind: KindMessageFlood, Level: LevelMedium, Confidence: 0.8, Enabled: true},
		{Kind: KindMentionFlood, Level: LevelHigh, Confidence: 0.85, Enabled: true},
		{Kind: KindInviteFlood, Level: LevelHigh, Confidence: 0.9, Enabled: true},
		{Kind: KindCommandFlood, Level: LevelMedium, Confidence: 0.7, Enabled: true},
	}

	out := make(map[Kind]*Rule, len(rules))
	for _, r := range rules {
		out[r.Kind] = r
	}
	return out
}

const (
	massMentionThreshold = 5
	charRunThreshold     = 10
	capsRunMinLength     = 16
	capsRunRatio         = 0.7
	repeatTokenCount     = 5
)

// hasCharRun reports a run of the same rune at least charRunThreshold long
func hasCharRun(content string) bool {
	var last rune
	run := 0
	for _, r := range content {
		if r == last {
			run++
			if run >= charRunThreshold {
				return true
			}
		} else {
			last = r
			run = 1
		}
	}
	return false
}

// isCapsRun reports mostly-uppercase content above a minimum length
func isCapsRun(content string) bool {
	letters, upper := 0, 0
	for _, r := range content {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		}
	}
	if letters < capsRunMinLength {
		return false
	}
	return float64(upper)/float64(letters) >= capsRunRatio
}

// hasRepeats reports the same token appearing repeatTokenCount or more
// times in a row
func hasRepeats(content string) bool {
	fields := strings.Fields(strings.ToLower(content))
	run := 1
	for i := 1; i < len(fields); i++ {
		if len(fields[i]) >= 3 && fields[i] == fields[i-1] {
			run++
			if run >= repeatTokenCount {
				return true
			}
		} else {
			run = 1
		}
	}
	return false
}
