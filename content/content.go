// Package content turns Notes (user-entered field values against a
// NoteType's templates) into scheduler Cards. It owns no scheduling state
// of its own — every generated Card starts life exactly as
// scheduler.NewCard would leave it, and progresses from there only via the
// scheduler package.
package content

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"microdote/scheduler"
)

var htmlPolicy = bluemonday.UGCPolicy()

// SanitizeHTML strips anything bluemonday's UGC policy disallows from
// user-entered field content before it is stored or re-rendered.
func SanitizeHTML(s string) string {
	return htmlPolicy.Sanitize(s)
}

type NoteTypeName string

// CardTemplate renders a Note's fields into a Card's front/back content.
type CardTemplate struct {
	Name            string
	QFmt            string
	AFmt            string
	Styling         string
	IfFieldNonEmpty string
	IsCloze         bool
}

// NoteType defines the fields a Note of this type carries and the
// templates used to expand it into one or more Cards.
type NoteType struct {
	Name      NoteTypeName
	Fields    []string
	Templates []CardTemplate
}

// Note is the content record a scheduler.Note is attached to. Tags and
// identity live on the embedded scheduler.Note (the scheduler is the only
// thing that ever mutates tags, by adding "leech"); FieldMap is owned here.
type Note struct {
	*scheduler.Note
	Type       NoteTypeName
	FieldMap   map[string]string
	CreatedAt  time.Time
	ModifiedAt time.Time
}

// Card pairs a scheduler.Card (all scheduling state) with the rendered
// content a template produced it from.
type Card struct {
	*scheduler.Card
	TemplateName string
	Ordinal      int
	Front        string
	Back         string
}

// NewNote constructs a content Note backed by a fresh scheduler.Note.
func NewNote(id int64, noteType NoteTypeName, fields map[string]string, now time.Time) *Note {
	sanitized := make(map[string]string, len(fields))
	for k, v := range fields {
		sanitized[k] = SanitizeHTML(v)
	}
	return &Note{
		Note:       scheduler.NewNote(id),
		Type:       noteType,
		FieldMap:   sanitized,
		CreatedAt:  now,
		ModifiedAt: now,
	}
}

// GenerateCards expands note into one Card per matching template of nt,
// appending each as a NEW card on deck via idgen for fresh ids.
func GenerateCards(nt NoteType, note *Note, deck *scheduler.Deck, idgen *scheduler.IDGenerator, crt int64) ([]*Card, error) {
	var out []*Card

	for _, tmpl := range nt.Templates {
		if tmpl.IfFieldNonEmpty != "" && strings.TrimSpace(note.FieldMap[tmpl.IfFieldNonEmpty]) == "" {
			continue
		}

		if tmpl.IsCloze {
			ordinals := extractClozeOrdinals(note.FieldMap["Text"])
			for _, ord := range ordinals {
				front := renderTemplateWithCloze(tmpl.QFmt, note.FieldMap, ord, false)
				back := renderTemplateWithCloze(tmpl.AFmt, note.FieldMap, ord, true)
				sc := deck.AddCard(idgen.Next(), note.ID, note.Note, crt)
				out = append(out, &Card{Card: sc, TemplateName: tmpl.Name, Ordinal: ord, Front: front, Back: back})
			}
			continue
		}

		front := renderTemplate(tmpl.QFmt, note.FieldMap)
		back := renderTemplate(tmpl.AFmt, note.FieldMap)
		sc := deck.AddCard(idgen.Next(), note.ID, note.Note, crt)
		out = append(out, &Card{Card: sc, TemplateName: tmpl.Name, Ordinal: 0, Front: front, Back: back})
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("content: note type %q produced no cards for note %d", nt.Name, note.ID)
	}
	return out, nil
}

var fieldTokenRe = regexp.MustCompile(`\{\{([^}]+)\}\}`)
var clozeRe = regexp.MustCompile(`\{\{c(\d+)::(.*?)(?:::([^}]*))?\}\}`)

func renderTemplate(tmpl string, fields map[string]string) string {
	return fieldTokenRe.ReplaceAllStringFunc(tmpl, func(token string) string {
		m := fieldTokenRe.FindStringSubmatch(token)
		if len(m) != 2 {
			return token
		}
		key := strings.TrimSpace(m[1])
		if strings.HasPrefix(key, "type:") {
			fieldName := strings.TrimSpace(strings.TrimPrefix(key, "type:"))
			if fields[fieldName] == "" {
				return "[type: empty]"
			}
			return "[type your answer here]"
		}
		return fields[key]
	})
}

func renderTemplateWithCloze(tmpl string, fields map[string]string, targetOrdinal int, reveal bool) string {
	return fieldTokenRe.ReplaceAllStringFunc(tmpl, func(token string) string {
		m := fieldTokenRe.FindStringSubmatch(token)
		if len(m) != 2 {
			return token
		}
		key := strings.TrimSpace(m[1])
		if key == "cloze:Text" {
			return renderCloze(fields["Text"], targetOrdinal, reveal)
		}
		return fields[key]
	})
}

func extractClozeOrdinals(text string) []int {
	seen := map[int]bool{}
	for _, m := range clozeRe.FindAllStringSubmatch(text, -1) {
		if len(m) < 2 {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil || n <= 0 {
			continue
		}
		seen[n] = true
	}
	var ord []int
	for k := range seen {
		ord = append(ord, k)
	}
	sort.Ints(ord)
	return ord
}

func renderCloze(text string, targetOrdinal int, reveal bool) string {
	return clozeRe.ReplaceAllStringFunc(text, func(token string) string {
		m := clozeRe.FindStringSubmatch(token)
		if len(m) < 3 {
			return token
		}
		ord, _ := strconv.Atoi(m[1])
		answer := m[2]
		hint := ""
		if len(m) >= 4 {
			hint = m[3]
		}
		if reveal {
			if ord == targetOrdinal {
				return fmt.Sprintf("**%s**", answer)
			}
			return answer
		}
		if ord == targetOrdinal {
			if strings.TrimSpace(hint) != "" {
				return fmt.Sprintf("[%s]", hint)
			}
			return "[...]"
		}
		return answer
	})
}

// Builtins returns the note types every fresh collection starts with.
func Builtins() map[NoteTypeName]NoteType {
	return map[NoteTypeName]NoteType{
		"Basic": {
			Name:   "Basic",
			Fields: []string{"Front", "Back"},
			Templates: []CardTemplate{
				{Name: "Card 1", QFmt: "Q: {{Front}}", AFmt: "A: {{Back}}"},
			},
		},
		"Basic (and reversed card)": {
			Name:   "Basic (and reversed card)",
			Fields: []string{"Front", "Back"},
			Templates: []CardTemplate{
				{Name: "Card 1", QFmt: "Q: {{Front}}", AFmt: "A: {{Back}}"},
				{Name: "Card 2", QFmt: "Q: {{Back}}", AFmt: "A: {{Front}}"},
			},
		},
		"Basic (optional reversed card)": {
			Name:   "Basic (optional reversed card)",
			Fields: []string{"Front", "Back", "Add Reverse"},
			Templates: []CardTemplate{
				{Name: "Card 1", QFmt: "Q: {{Front}}", AFmt: "A: {{Back}}"},
				{Name: "Card 2 (optional reverse)", QFmt: "Q: {{Back}}", AFmt: "A: {{Front}}", IfFieldNonEmpty: "Add Reverse"},
			},
		},
		"Basic (type in the answer)": {
			Name:   "Basic (type in the answer)",
			Fields: []string{"Front", "Back"},
			Templates: []CardTemplate{
				{Name: "Card 1", QFmt: "Q: {{Front}}\n\n{{type:Back}}", AFmt: "A: {{Back}}"},
			},
		},
		"Cloze": {
			Name:   "Cloze",
			Fields: []string{"Text", "Extra"},
			Templates: []CardTemplate{
				{Name: "Cloze", QFmt: "Q: {{cloze:Text}}", AFmt: "A: {{cloze:Text}}\n\nExtra: {{Extra}}", IsCloze: true},
			},
		},
	}
}
