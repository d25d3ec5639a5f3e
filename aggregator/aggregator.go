package aggregator

import (
	"log/slog"

	"github.com/ashu01304/nostr-forms-sub000/crypto"
	"github.com/ashu01304/nostr-forms-sub000/protocol"
)

// RejectReason classifies why an event contributed no row content.
type RejectReason string

const (
	// RejectNone: the event was accepted.
	RejectNone RejectReason = ""
	// RejectWrongKind: not a response event.
	RejectWrongKind RejectReason = "wrong_kind"
	// RejectDecryptionFailed: missing key, tampered or malformed
	// ciphertext. The event still counts toward the author's submissions
	// but its content is dropped; an expected condition for viewers
	// without access, never fatal.
	RejectDecryptionFailed RejectReason = "decryption_failed"
)

// Placeholder shown for a field referenced in an answer set without a value.
const missingValue = "N/A"

// Row is the aggregated latest-wins view of one respondent identity.
type Row struct {
	Author string
	// EventID and CreatedAt identify the event currently backing the row.
	EventID   string
	CreatedAt int64
	// SeenCount is the number of raw ingests from this identity, including
	// duplicates and undecryptable events.
	SeenCount int
	// Readable is false while every event seen from this identity failed
	// decryption; the row is then a "cannot decrypt" placeholder.
	Readable bool

	// Answers are the decoded answer tags of the backing event.
	Answers []protocol.Answer
	// Resolved are the display views of Answers against the form spec.
	Resolved []protocol.ResolvedAnswer
	// Values maps fieldId → response label, Labels maps question label →
	// response label; both default missing values to "N/A".
	Values map[string]string
	Labels map[string]string
}

// Result reports the outcome of one ingest.
type Result struct {
	// Row is the respondent's current row after the ingest; nil only when
	// the event was rejected before an author row could exist.
	Row *Row
	// Installed is true when the event's content became the row (first
	// event from the identity, or newer than the stored one).
	Installed bool
	Rejected  RejectReason
}

// Aggregator owns the respondent row map for one subscription session.
// Ingest is not safe for concurrent use: serialize events from the
// subscription's delivery stream through a single goroutine.
type Aggregator struct {
	spec *protocol.FormSpec
	keys KeySource
	log  *slog.Logger

	rows  map[string]*Row
	order []string
}

// New creates an aggregator for one form. keys may be nil for sessions that
// only expect plaintext responses.
func New(spec *protocol.FormSpec, keys KeySource, log *slog.Logger) *Aggregator {
	if log == nil {
		log = slog.Default()
	}
	if keys == nil {
		keys = SecretKeySource(nil)
	}
	return &Aggregator{
		spec: spec,
		keys: keys,
		log:  log,
		rows: make(map[string]*Row),
	}
}

// Ingest folds one event into the row map.
//
// The steps, in order: identify the author; obtain the answer tags,
// plaintext from the event or by decrypting its content; compare createdAt
// with the author's stored row and replace when strictly newer; flatten the
// answers for display. Every ingest from an identity bumps its seen-count,
// whatever else happens; no ingest error aborts the session.
func (a *Aggregator) Ingest(ev *protocol.Event) Result {
	if ev == nil || ev.Kind != protocol.KindFormResponse {
		return Result{Rejected: RejectWrongKind}
	}

	row := a.ensureRow(ev.PubKey)
	row.SeenCount++

	answers, reason := a.answersFor(ev)
	if reason != RejectNone {
		a.log.Debug("response content dropped", "author", ev.PubKey, "event", ev.ID, "reason", string(reason))
		return Result{Row: row, Rejected: reason}
	}

	// Latest-wins: replace, never merge. Arrival order is irrelevant; only
	// the payload's createdAt decides.
	if row.Readable && ev.CreatedAt <= row.CreatedAt {
		return Result{Row: row}
	}

	row.EventID = ev.ID
	row.CreatedAt = ev.CreatedAt
	row.Readable = true
	row.Answers = answers
	a.flatten(row)
	return Result{Row: row, Installed: true}
}

// answersFor extracts the event's answer tags, decrypting when needed.
func (a *Aggregator) answersFor(ev *protocol.Event) ([]protocol.Answer, RejectReason) {
	var tags []protocol.Tag
	if ev.Content == "" {
		tags = ev.PlaintextAnswers()
	} else {
		key, err := a.keys.ConversationKey(ev.PubKey)
		if err != nil {
			return nil, RejectDecryptionFailed
		}
		plaintext, err := crypto.Decrypt(key, ev.Content)
		if err != nil {
			// Format errors and authentication failures are one condition
			// here: content this session cannot read.
			return nil, RejectDecryptionFailed
		}
		tags, err = protocol.ParseAnswerPayload(plaintext)
		if err != nil {
			return nil, RejectDecryptionFailed
		}
	}

	answers := make([]protocol.Answer, 0, len(tags))
	for _, t := range tags {
		ans, err := protocol.DecodeAnswer(t)
		if err != nil {
			continue
		}
		answers = append(answers, ans)
	}
	return answers, RejectNone
}

// flatten rebuilds the row's display projections from its answers.
func (a *Aggregator) flatten(row *Row) {
	row.Resolved = row.Resolved[:0]
	row.Values = make(map[string]string, len(row.Answers))
	row.Labels = make(map[string]string, len(row.Answers))

	for _, ans := range row.Answers {
		r := protocol.ResolveAnswer(ans, a.spec)
		if r.ResponseLabel == "" {
			r.ResponseLabel = missingValue
		}
		row.Resolved = append(row.Resolved, r)
		row.Values[r.FieldID] = r.ResponseLabel
		row.Labels[r.QuestionLabel] = r.ResponseLabel
	}
}

func (a *Aggregator) ensureRow(author string) *Row {
	if row, ok := a.rows[author]; ok {
		return row
	}
	row := &Row{Author: author}
	a.rows[author] = row
	a.order = append(a.order, author)
	return row
}

// Row returns the current row for an identity, nil if none was ever seen.
func (a *Aggregator) Row(author string) *Row {
	return a.rows[author]
}

// Rows returns all rows in insertion order. Presentation layers may re-sort
// freely; insertion order carries no protocol meaning.
func (a *Aggregator) Rows() []*Row {
	out := make([]*Row, 0, len(a.order))
	for _, author := range a.order {
		out = append(out, a.rows[author])
	}
	return out
}

// Len is the number of distinct respondent identities seen.
func (a *Aggregator) Len() int { return len(a.rows) }
