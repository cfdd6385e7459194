// Package policy validates message content against contact-leak patterns.
package policy

import (
	"fmt"
	"regexp"
	"strings"
)

// Reason identifies which pattern class a message violated.
type Reason string

const (
	ReasonEmail       Reason = "email"
	ReasonPhone       Reason = "phone"
	ReasonURL         Reason = "url"
	ReasonContactInfo Reason = "contact_info"
)

var reasonMessages = map[Reason]string{
	ReasonEmail:       "Messages cannot contain email addresses.",
	ReasonPhone:       "Messages cannot contain phone numbers.",
	ReasonURL:         "Messages cannot contain links.",
	ReasonContactInfo: "Messages cannot contain contact details.",
}

// Violation is returned when content matches a deny-listed pattern.
type Violation struct {
	Reason Reason
	Match  string
}

func (v *Violation) Error() string {
	return fmt.Sprintf("content policy violation: %s", v.Reason)
}

// UserMessage returns the text shown to the sender so they can edit and retry.
func (v *Violation) UserMessage() string {
	if msg, ok := reasonMessages[v.Reason]; ok {
		return msg
	}
	return "Message rejected by content policy."
}

type rule struct {
	reason Reason
	find   func(string) string
}

// Filter checks content against an ordered list of rules.
type Filter struct {
	rules []rule
}

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

	// A run of digits joined by up to two separators between digits.
	phoneCandidate = regexp.MustCompile(`\+?\d(?:[\s.\-()/]{0,2}\d)*`)

	// ISO and slashed dates, dotted dates with a four-digit year, clock times.
	datePattern = regexp.MustCompile(`\b(?:\d{4}-` + month + `-` + day +
		`|` + day + `/` + day + `/\d{2,4}` +
		`|` + day + `\.` + day + `\.\d{4}` +
		`|(?:[01]?\d|2[0-3]):[0-5]\d)\b`)

	digitGroup = regexp.MustCompile(`\d+`)

	urlPattern = regexp.MustCompile(`(?i)(?:\b[a-z][a-z0-9+.\-]*://|\bwww\.)\S+`)
)

const (
	month = `(?:0?[1-9]|1[0-2])`
	day   = `(?:0?[1-9]|[12]\d|3[01])`
)

// minPhoneDigits is the shortest digit count treated as a phone number.
const minPhoneDigits = 9

// longGroup is the group length above which two neighbouring groups are read
// as separate numbers ("50000-70000") rather than parts of one.
const longGroup = 5

// NewFilter returns a filter checking email, then phone, then URL.
func NewFilter() *Filter {
	return &Filter{
		rules: []rule{
			{reason: ReasonEmail, find: emailPattern.FindString},
			{reason: ReasonPhone, find: findPhone},
			{reason: ReasonURL, find: urlPattern.FindString},
		},
	}
}

// findPhone returns the first phone-like number in content. Dates and times
// are blanked out first so they cannot chain with neighbouring digits, and a
// candidate is split wherever two long digit groups meet.
func findPhone(content string) string {
	masked := datePattern.ReplaceAllStringFunc(content, func(s string) string {
		return strings.Repeat("#", len(s))
	})

	for _, loc := range phoneCandidate.FindAllStringIndex(masked, -1) {
		groups := digitGroup.FindAllStringIndex(masked[loc[0]:loc[1]], -1)

		start, digits, prev := 0, 0, 0
		for i, g := range groups {
			n := g[1] - g[0]
			if i > 0 && prev >= longGroup && n >= longGroup {
				start, digits = i, 0
			}
			digits += n
			prev = n
			if digits >= minPhoneDigits {
				from := loc[0] + groups[start][0]
				if start == 0 {
					from = loc[0]
				}
				return content[from : loc[0]+g[1]]
			}
		}
	}
	return ""
}

// Validate returns the first Violation found, or nil when content is allowed.
// Only one reason surfaces even if several rules match.
func (f *Filter) Validate(content string) error {
	for _, r := range f.rules {
		if m := r.find(content); m != "" {
			return &Violation{Reason: r.reason, Match: m}
		}
	}
	return nil
}

var defaultFilter = NewFilter()

// Validate checks content with the default rule set.
func Validate(content string) error {
	return defaultFilter.Validate(content)
}
