package service

import (
	"regexp"
	"strings"

	"github.com/sphllzulu/QuickPactv2/model"
)

const monthNames = `January|February|March|April|May|June|July|August|September|October|November|December`

var (
	partyPattern = regexp.MustCompile(`\b(?i:party|between|and)[ \t]+([A-Z][a-z]+(?:[ \t]+[A-Z][a-z]+)*)`)

	amountPattern = regexp.MustCompile(`\bR[ \t]?(\d{1,3}(?:,\d{3})+|\d+)(\.\d+)?`)

	startDatePattern = regexp.MustCompile(`\b(?i:begins on|starting|commences|from|on)[ \t]+((?:` + monthNames + `)[ \t]+\d{1,2}(?:st|nd|rd|th)?,?[ \t]+\d{4})`)

	addressPattern = regexp.MustCompile(`(?i:located at|property at|premises at|address:)[ \t]*([^.\n]+)`)

	termPattern = regexp.MustCompile(`(?i)\b(?:term|duration|period)[ \t]+of[ \t]+(\d+)[ \t]+months?\b`)

	noticePattern = regexp.MustCompile(`(?i)\b(?:notice|notification)(?:[ \t]+period)?[ \t]+of[ \t]+(\d+)[ \t]+days?\b`)

	headingPattern = regexp.MustCompile(`(?m)^#`)

	paragraphBreak = regexp.MustCompile(`\n[ \t\r]*\n`)

	// structuralPattern matches paragraphs that belong to the contract body
	structuralPattern = regexp.MustCompile(`(?i)^(?:#|[-*+>|_]|\d+[.)]|\*\*|signature|signed|witness|print name|date\b|name:)`)

	commentaryPattern = regexp.MustCompile(`(?i)^(?:let me know|i hope|i have|i've|i can|feel free|please (?:note|let|review|feel|consult|ensure)|note:|if you(?:'d| would| need| have| want)|this (?:draft|template|document) (?:is|should|can)|you (?:may|might|should) (?:want|wish|consider)|disclaimer|hope this)`)

	thematicBreakPattern = regexp.MustCompile(`^(?:-{3,}|\*{3,}|_{3,})$`)
)

// partyLeadIns end a run of capitalised words so that "John Smith And Jane Doe"
// yields two names
var partyLeadIns = map[string]bool{"and": true, "between": true, "party": true}

// ExtractFields recovers structured values from free text. Every pattern that
// does not match leaves the corresponding field at its previous value.
func ExtractFields(text string, previous model.ContractFields) model.ContractFields {
	out := previous
	if text == "" {
		return out
	}

	parties := extractParties(text)
	if len(parties) > 0 {
		out.Party1 = parties[0]
	}
	if len(parties) > 1 {
		out.Party2 = parties[1]
	}

	if m := amountPattern.FindStringSubmatch(text); m != nil {
		out.Amount = strings.ReplaceAll(m[1], ",", "") + m[2]
	}
	if m := startDatePattern.FindStringSubmatch(text); m != nil {
		out.StartDate = m[1]
	}
	if m := addressPattern.FindStringSubmatch(text); m != nil {
		if addr := strings.TrimSpace(m[1]); addr != "" {
			out.Address = addr
		}
	}
	if m := termPattern.FindStringSubmatch(text); m != nil {
		out.Term = m[1]
	}
	if m := noticePattern.FindStringSubmatch(text); m != nil {
		out.Notice = m[1]
	}

	return out
}

// extractParties returns up to two distinct capitalised names in order of
// appearance. Matches on markdown heading lines are skipped.
func extractParties(text string) []string {
	var parties []string
	for offset := 0; offset < len(text) && len(parties) < 2; {
		m := partyPattern.FindStringSubmatchIndex(text[offset:])
		if m == nil {
			break
		}
		start := offset + m[2]
		name := truncateAtLeadIn(text[start : offset+m[3]])
		offset = start + len(name)
		if name == "" {
			continue
		}

		if onHeadingLine(text, start) {
			continue
		}
		if len(parties) == 1 && parties[0] == name {
			continue
		}
		parties = append(parties, name)
	}
	return parties
}

func truncateAtLeadIn(run string) string {
	end := 0
	for _, word := range strings.Fields(run) {
		if partyLeadIns[strings.ToLower(word)] {
			break
		}
		end = strings.Index(run[end:], word) + end + len(word)
	}
	return run[:end]
}

func onHeadingLine(text string, pos int) bool {
	lineStart := strings.LastIndexByte(text[:pos], '\n') + 1
	return strings.HasPrefix(strings.TrimLeft(text[lineStart:pos], " \t"), "#")
}

// IsolateDocument cuts the contract out of a raw model response: everything
// before the first markdown heading is dropped, as are trailing paragraphs
// addressed to the reader ("Let me know if ..."). Text without a heading is
// returned unchanged.
func IsolateDocument(raw string) string {
	loc := headingPattern.FindStringIndex(raw)
	if loc == nil {
		return raw
	}
	doc := strings.TrimRight(raw[loc[0]:], " \t\r\n")

	dropped := false
	for {
		breaks := paragraphBreak.FindAllStringIndex(doc, -1)
		if len(breaks) == 0 {
			break
		}
		last := breaks[len(breaks)-1]
		para := strings.TrimSpace(doc[last[1]:])

		isBreak := thematicBreakPattern.MatchString(para)
		if !isCommentary(para) && !(dropped && isBreak) {
			break
		}
		doc = strings.TrimRight(doc[:last[0]], " \t\r\n")
		dropped = true
	}
	// A rule left in front of removed commentary
	if dropped {
		if i := strings.LastIndexByte(doc, '\n'); i >= 0 && thematicBreakPattern.MatchString(strings.TrimSpace(doc[i+1:])) {
			doc = strings.TrimRight(doc[:i], " \t\r\n")
		}
	}
	return doc
}

func isCommentary(para string) bool {
	if para == "" || structuralPattern.MatchString(para) {
		return false
	}
	return commentaryPattern.MatchString(para)
}
