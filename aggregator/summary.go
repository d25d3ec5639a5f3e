package aggregator

import "github.com/ashu01304/nostr-forms-sub000/protocol"

// FieldSummary tallies the selections of one choice field across all
// readable rows.
type FieldSummary struct {
	FieldID       string
	QuestionLabel string
	// Counts maps option label → number of rows that selected it. A
	// multi-select row contributes one count per selected option.
	Counts map[string]int
}

// Summary computes per-option selection counts for every choice field of
// the form, over the current rows. Rows that are not readable contribute
// nothing; unknown option ids are skipped, matching how labels resolve.
func (a *Aggregator) Summary() []FieldSummary {
	if a.spec == nil {
		return nil
	}

	var out []FieldSummary
	for _, field := range a.spec.Fields {
		if field.Type != protocol.FieldTypeOption {
			continue
		}
		s := FieldSummary{
			FieldID:       field.ID,
			QuestionLabel: field.Label,
			Counts:        make(map[string]int, len(field.Options)),
		}
		for _, author := range a.order {
			row := a.rows[author]
			if !row.Readable {
				continue
			}
			for _, ans := range row.Answers {
				if ans.FieldID != field.ID {
					continue
				}
				for _, optID := range ans.SelectedOptionIDs() {
					if label, ok := field.OptionLabel(optID); ok {
						s.Counts[label]++
					}
				}
			}
		}
		out = append(out, s)
	}
	return out
}
