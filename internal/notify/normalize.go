package notify

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/nhle/boletin/internal/model"
)

// DescriptionLimit bounds the description length, in runes.
const DescriptionLimit = 100

// DefaultTitle is shown for records without a usable subject.
const DefaultTitle = "Notificación"

// DefaultLink is the inbox route, used when a record points nowhere else.
const DefaultLink = "/mensajes"

var (
	whitespace = regexp.MustCompile(`\s+`)

	dateSuffixes = []*regexp.Regexp{
		regexp.MustCompile(`\s*[—-]\s*\d{4}-\d{2}-\d{2}\s*$`),
		regexp.MustCompile(`\s*[—-]\s*\d{2}[/-]\d{2}[/-]\d{4}\s*$`),
		regexp.MustCompile(`\s*[—-]\s*\d{2}[/-]\d{2}[/-]\d{2}\s*$`),
	}

	dateLines = []*regexp.Regexp{
		regexp.MustCompile(`(?im)^[ \t]*Fecha\s*:.*$`),
		regexp.MustCompile(`(?im)^[ \t]*Fecha\s*de\s*la\s*nota\s*:.*$`),
	}

	reasonLine = regexp.MustCompile(`(?im)^[ \t]*Motivo:[ \t]*(.+)$`)
	gradeLine  = regexp.MustCompile(`(?im)^[ \t]*Calificación:[ \t]*(.+)$`)
	bulletLine = regexp.MustCompile(`(?m)^[ \t]*•[ \t]*(.+)$`)
)

// titleTemplates rewrites the backend's templated subjects into a
// sentence about the student.
var titleTemplates = []struct {
	prefix string
	format string
}{
	{"nueva sanción para ", "%s recibió una sanción"},
	{"nueva nota para ", "%s recibió una nota"},
	{"nuevas notas para ", "%s recibió nuevas notas"},
}

// studentTabs maps a record type to the student page tab it concerns.
var studentTabs = map[string]string{
	"nota":       "notas",
	"sancion":    "sanciones",
	"asistencia": "asistencias",
}

// record is one raw preview entry. Field names vary between the
// notification and message payloads.
type record map[string]interface{}

// str returns the first non-empty value among keys, formatted as text.
func (r record) str(keys ...string) string {
	for _, k := range keys {
		if s := scalar(r[k]); s != "" {
			return s
		}
	}
	return ""
}

func (r record) meta() record {
	if m, ok := r["meta"].(map[string]interface{}); ok {
		return record(m)
	}
	return record{}
}

func scalar(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return ""
	}
}

func truthy(v interface{}) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != "" && x != "0" && !strings.EqualFold(x, "false")
	case json.Number:
		return x.String() != "0"
	case float64:
		return x != 0
	default:
		return true
	}
}

// normalize converts a raw preview record into the display model.
func normalize(r record, fetchedAt time.Time) model.Notification {
	id := r.str("id")
	if id == "" {
		id = uuid.NewString()
	}

	return model.Notification{
		ID:          id,
		Kind:        kindOf(r),
		Unread:      isUnread(r),
		Title:       BuildTitle(r.str("titulo", "asunto")),
		Description: BuildDescription(r.str("descripcion", "contenido", "cuerpo")),
		TargetLink:  buildLink(r),
		FetchedAt:   fetchedAt,
	}
}

func kindOf(r record) model.NotificationKind {
	if strings.EqualFold(strings.TrimSpace(r.str("tipo")), "mensaje") {
		return model.KindMessage
	}
	if r.str("titulo") == "" && r.str("asunto") != "" {
		return model.KindMessage
	}
	return model.KindNotification
}

func isUnread(r record) bool {
	if v, ok := r["unread"]; ok {
		return truthy(v)
	}
	for _, k := range []string{"leida", "leido", "is_read", "read"} {
		if v, ok := r[k]; ok {
			return !truthy(v)
		}
	}
	return true
}

func normalizeText(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}

// StripDateSuffix removes a trailing dash-separated date such as "2026-01-13".
func StripDateSuffix(s string) string {
	for _, re := range dateSuffixes {
		s = re.ReplaceAllString(s, "")
	}
	return strings.TrimSpace(s)
}

// Truncate collapses whitespace and cuts s to at most n runes, ending
// with an ellipsis when shortened.
func Truncate(s string, n int) string {
	t := normalizeText(s)
	if utf8.RuneCountInString(t) <= n {
		return t
	}
	runes := []rune(t)
	return strings.TrimRight(string(runes[:n-1]), " ") + "…"
}

// BuildTitle derives the display title from a raw subject.
func BuildTitle(subject string) string {
	a := StripDateSuffix(normalizeText(subject))
	lower := strings.ToLower(a)
	for _, tpl := range titleTemplates {
		if !strings.HasPrefix(lower, tpl.prefix) || len(lower) != len(a) {
			continue
		}
		if name := strings.TrimSpace(a[len(tpl.prefix):]); name != "" {
			return fmt.Sprintf(tpl.format, name)
		}
	}
	if a == "" {
		return DefaultTitle
	}
	return a
}

// BuildDescription derives a short summary from a raw body: date lines
// are dropped, then the reason, the grade, the first bullet or the whole
// text is used, in that order of preference.
func BuildDescription(body string) string {
	for _, re := range dateLines {
		body = re.ReplaceAllString(body, "")
	}

	if m := reasonLine.FindStringSubmatch(body); m != nil {
		return Truncate(StripDateSuffix(normalizeText(m[1])), DescriptionLimit)
	}
	if m := gradeLine.FindStringSubmatch(body); m != nil {
		return Truncate(StripDateSuffix(normalizeText("Calificación: "+m[1])), DescriptionLimit)
	}
	if m := bulletLine.FindStringSubmatch(body); m != nil {
		return Truncate(StripDateSuffix(normalizeText(m[1])), DescriptionLimit)
	}
	return Truncate(StripDateSuffix(normalizeText(body)), DescriptionLimit)
}

// buildLink picks the route a record opens: its explicit url, the
// student tab for grade, sanction and attendance records, the message
// thread, or the inbox.
func buildLink(r record) string {
	if u := r.str("url"); u != "" {
		return u
	}

	tipo := strings.ToLower(strings.TrimSpace(r.str("tipo")))
	studentID := r.meta().str("alumno_id")
	if studentID == "" {
		studentID = r.str("alumno_id")
	}
	if tab, ok := studentTabs[tipo]; ok && studentID != "" && studentID != "0" {
		return "/alumnos/" + studentID + "/?tab=" + tab
	}

	if tid := r.str("thread_id"); tid != "" {
		return "/mensajes/hilo/" + tid
	}
	if id := r.str("id"); id != "" {
		return "/mensajes/hilo/" + id
	}
	return DefaultLink
}
