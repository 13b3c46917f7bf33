package extract

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jeffkirdeikis/pulse-verify/internal/model"
)

// buildExtractPrompt constructs the extraction prompt. The rules mirror the
// filtering the extractor enforces afterwards, so well-behaved models do the
// filtering themselves and the Go side is the backstop.
func buildExtractPrompt(text, sourceURL, venueName string) string {
	var b strings.Builder

	b.WriteString("Extract real, individual events (classes, workshops, performances, deals with a date) from the page content below.\n\n")
	b.WriteString("RULES:\n")
	b.WriteString("1. Ignore navigation text, menus, footers, and generic service descriptions with no date.\n")
	b.WriteString("2. Do NOT emit the venue itself as an event. A title identical to the venue name is a mis-extraction.\n")
	b.WriteString("3. Dates must be ISO format YYYY-MM-DD. If the page omits the year, use the nearest FUTURE occurrence of that month and day.\n")
	b.WriteString("4. Times are 24-hour HH:MM local, omitted when not stated.\n")
	b.WriteString("5. Give each event a confidence value from 0 to 1 for how certain you are it is a real upcoming event.\n")
	b.WriteString("6. If a date or time looks implausible for the event type (a fitness class at 03:00), set \"flag\" to a short reason.\n\n")

	if venueName != "" {
		fmt.Fprintf(&b, "Known venue: %s\n", venueName)
	}
	fmt.Fprintf(&b, "Source URL: %s\n\n", sourceURL)

	b.WriteString("Respond with exactly one JSON object:\n")
	b.WriteString(`{"events": [{"title": "", "start_date": "YYYY-MM-DD", "start_time": "HH:MM", "end_time": "HH:MM", "venue_name": "", "venue_address": "", "price": "", "category": "", "description": "", "instructor": "", "confidence": 0.0, "flag": ""}], "extraction_notes": ""}`)
	b.WriteString("\n\nPAGE CONTENT:\n")
	b.WriteString(text)

	return b.String()
}

// buildValidatePrompt constructs the single-candidate validation prompt
func buildValidatePrompt(candidate model.CandidateEvent, nearby []model.StoredEvent) string {
	var b strings.Builder

	b.WriteString("Validate this community-submitted event for a local directory.\n\n")
	b.WriteString("Check that it is plausible (real venue, sensible date/time for its category, non-spam), ")
	b.WriteString("and whether it duplicates one of the existing events listed below.\n\n")

	b.WriteString("SUBMITTED EVENT:\n")
	writeEventJSON(&b, candidate)

	b.WriteString("\nEXISTING EVENTS (same date or venue):\n")
	if len(nearby) == 0 {
		b.WriteString("(none)\n")
	}
	for _, ev := range nearby {
		fmt.Fprintf(&b, "- id=%s ", ev.ID)
		writeEventJSON(&b, ev.CandidateEvent)
	}

	b.WriteString("\nRespond with exactly one JSON object:\n")
	b.WriteString(`{"is_valid": true, "confidence": 0.0, "issues": [], "suggested_fixes": {"field_name": "corrected value"}, "is_duplicate_of": null, "reasoning": ""}`)
	b.WriteString("\n\nis_duplicate_of must be the id of the duplicated existing event, or null. ")
	b.WriteString("suggested_fixes may only contain fields that need correction; use the field names shown in the submitted event.")

	return b.String()
}

// buildReconcilePrompt constructs the duplicate-merge prompt
func buildReconcilePrompt(events []model.CandidateEvent) string {
	var b strings.Builder

	b.WriteString("These event records from different sources describe the SAME event. ")
	b.WriteString("Merge them into one authoritative record, selecting the most complete and accurate value for each field.\n\n")

	for i, ev := range events {
		fmt.Fprintf(&b, "RECORD %d (source: %s):\n", i+1, ev.SourceTag)
		writeEventJSON(&b, ev)
	}

	b.WriteString("\nRespond with exactly one JSON object:\n")
	b.WriteString(`{"merged_event": {"title": "", "start_date": "YYYY-MM-DD", "start_time": "", "end_time": "", "venue_name": "", "venue_address": "", "price": "", "category": "", "description": "", "instructor": ""}, "source_ids": [], "merge_notes": ""}`)
	b.WriteString("\n\nsource_ids lists the source tags of the records you drew from. merge_notes is a short human-readable rationale.")

	return b.String()
}

func writeEventJSON(b *strings.Builder, ev model.CandidateEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		fmt.Fprintf(b, "%s on %s\n", ev.Title, ev.StartDate)
		return
	}
	b.Write(data)
	b.WriteString("\n")
}
