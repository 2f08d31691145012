package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/sphllzulu/QuickPactv2/model"
)

// SystemPrompt fixes the assistant persona and the document format
const SystemPrompt = "You are a legal assistant specializing in drafting professional contracts. " +
	"Create contracts with proper legal structure, sections, and clauses. " +
	"Use markdown formatting with # for main headings and ## for section headings."

// CurrencyMarker prefixes every amount in prompts and documents
const CurrencyMarker = "R"

const structureInstructions = `Formatting requirements:
- Use a single # heading for the document title and ## headings for sections.
- Number every section (1., 2., 3., ...).
- Include definitions, governing law and jurisdiction, and termination clauses, plus any other standard clauses expected in this type of agreement.
- End with a signature block for every party with lines for signature, printed name and date.
- Use "R" as the currency symbol.
- Return only the contract document, without commentary before or after it.`

// BuildInitialPrompt builds the summary-driven prompt used for the first generation.
// Fields the user has set are listed as known details. Fields still at their
// session-start defaults are offered only as fallbacks for what the summary
// leaves open.
func BuildInitialPrompt(fields model.ContractFields, ct model.ContractType, summary string) string {
	known, fallback := splitDefaults(fields)

	var b strings.Builder
	fmt.Fprintf(&b, "Create a legally formatted %s based on this summary: %s\n", typeLabel(ct), strings.TrimSpace(summary))

	if lines := detailLines(known, ct); len(lines) > 0 {
		b.WriteString("\nKnown details (these take precedence over the summary):\n")
		writeLines(&b, lines)
	}
	if lines := detailLines(fallback, ct); len(lines) > 0 {
		b.WriteString("\nUse these defaults only where the summary does not say otherwise:\n")
		writeLines(&b, lines)
	}

	b.WriteByte('\n')
	b.WriteString(structureInstructions)
	b.WriteByte('\n')
	return b.String()
}

// BuildRegeneratePrompt builds the field-driven prompt used on regenerate.
// The summary is passed along only as secondary context.
func BuildRegeneratePrompt(fields model.ContractFields, ct model.ContractType, summary string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Create a professionally formatted %s with the following details:\n", typeLabel(ct))
	writeLines(&b, detailLines(fields, ct))

	if s := strings.TrimSpace(summary); s != "" {
		fmt.Fprintf(&b, "\nAdditional context: %s\n", s)
		b.WriteString("Where the additional context conflicts with the details above, the details above are correct.\n")
	}

	b.WriteByte('\n')
	b.WriteString(structureInstructions)
	b.WriteByte('\n')
	return b.String()
}

// splitDefaults separates values the user supplied from those still equal to
// the session-start defaults. The agreement date is always a fallback.
func splitDefaults(f model.ContractFields) (known, fallback model.ContractFields) {
	d := model.DefaultFields(time.Time{})
	known = f

	known.Today, fallback.Today = "", f.Today
	if f.Term == d.Term {
		known.Term, fallback.Term = "", f.Term
	}
	if f.Notice == d.Notice {
		known.Notice, fallback.Notice = "", f.Notice
	}
	if f.RoommateCount == d.RoommateCount {
		known.RoommateCount, fallback.RoommateCount = "", f.RoommateCount
	}
	return known, fallback
}

func writeLines(b *strings.Builder, lines []string) {
	for _, line := range lines {
		b.WriteString(line)
		b.WriteByte('\n')
	}
}

func typeLabel(ct model.ContractType) string {
	if ct.Label != "" {
		return ct.Label
	}
	return ct.ID
}

// detailLines renders one instruction line per non-empty field. The
// roommate line is only emitted for roommate agreements.
func detailLines(f model.ContractFields, ct model.ContractType) []string {
	var lines []string
	add := func(format, value string) {
		if v := strings.TrimSpace(value); v != "" {
			lines = append(lines, fmt.Sprintf(format, v))
		}
	}

	p1, p2 := strings.TrimSpace(f.Party1), strings.TrimSpace(f.Party2)
	switch {
	case p1 != "" && p2 != "":
		lines = append(lines, fmt.Sprintf("- Between %s and %s", p1, p2))
	case p1 != "":
		lines = append(lines, fmt.Sprintf("- Party: %s", p1))
	case p2 != "":
		lines = append(lines, fmt.Sprintf("- Party: %s", p2))
	}

	add("- Amount: "+CurrencyMarker+"%s", f.Amount)
	add("- Start date: %s", f.StartDate)
	add("- Address: %s", f.Address)
	add("- Term: %s months", f.Term)
	add("- Notice period: %s days", f.Notice)
	if ct.IsRoommate() {
		add("- Number of roommates: %s", f.RoommateCount)
	}
	add("- Date of agreement: %s", f.Today)
	return lines
}
