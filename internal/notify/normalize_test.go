package notify

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/nhle/boletin/internal/model"
)

func TestBuildTitle(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Nueva sanción para Juan Pérez", "Juan Pérez recibió una sanción"},
		{"nueva nota para Ana", "Ana recibió una nota"},
		{"Nuevas notas para Ana Gómez — 2026-01-13", "Ana Gómez recibió nuevas notas"},
		{"Nueva nota para ", "Nueva nota para"},
		{"  Reunión   de padres  ", "Reunión de padres"},
		{"Acto escolar - 13/01/2026", "Acto escolar"},
		{"", DefaultTitle},
		{"   ", DefaultTitle},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := BuildTitle(tt.in); got != tt.want {
				t.Errorf("BuildTitle(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestBuildDescription(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "reason wins",
			in:   "Alumno: Ana\nFecha: 2026-01-13\nMotivo: Llegó tarde — 2026-01-13\nCalificación: 7",
			want: "Llegó tarde",
		},
		{
			name: "grade line",
			in:   "Fecha de la nota: 13/01/2026\nMateria: Historia\nCalificación: 9 (Excelente)",
			want: "Calificación: 9 (Excelente)",
		},
		{
			name: "first bullet",
			in:   "Se cargaron notas:\n• Matemática: 8\n• Lengua: 6",
			want: "Matemática: 8",
		},
		{
			name: "whole text",
			in:   "La reunión   se pasa\nal jueves - 13-01-26",
			want: "La reunión se pasa al jueves",
		},
		{
			name: "date lines only",
			in:   "Fecha: 2026-01-13",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BuildDescription(tt.in); got != tt.want {
				t.Errorf("BuildDescription = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	long := strings.Repeat("á", 150)
	got := Truncate(long, DescriptionLimit)
	if utf8.RuneCountInString(got) != DescriptionLimit {
		t.Errorf("truncated to %d runes, want %d", utf8.RuneCountInString(got), DescriptionLimit)
	}
	if !strings.HasSuffix(got, "…") {
		t.Errorf("expected ellipsis, got %q", got)
	}

	if got := Truncate("corto", DescriptionLimit); got != "corto" {
		t.Errorf("short text changed: %q", got)
	}
}

func decodeRecord(t *testing.T, raw string) record {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var r map[string]interface{}
	if err := dec.Decode(&r); err != nil {
		t.Fatalf("decoding %s: %v", raw, err)
	}
	return record(r)
}

func TestBuildLink(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"explicit url", `{"id":1,"url":"/alumnos/3/","tipo":"nota","meta":{"alumno_id":9}}`, "/alumnos/3/"},
		{"grade via meta", `{"id":1,"tipo":"nota","meta":{"alumno_id":9}}`, "/alumnos/9/?tab=notas"},
		{"sanction top level", `{"id":1,"tipo":"Sancion","alumno_id":"12"}`, "/alumnos/12/?tab=sanciones"},
		{"attendance", `{"id":1,"tipo":"asistencia","meta":{"alumno_id":4}}`, "/alumnos/4/?tab=asistencias"},
		{"type without student", `{"id":5,"tipo":"nota"}`, "/mensajes/hilo/5"},
		{"thread", `{"id":5,"thread_id":"abc"}`, "/mensajes/hilo/abc"},
		{"id only", `{"id":77}`, "/mensajes/hilo/77"},
		{"nothing", `{}`, DefaultLink},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := buildLink(decodeRecord(t, tt.raw)); got != tt.want {
				t.Errorf("buildLink = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	now := time.Date(2026, 1, 13, 10, 0, 0, 0, time.UTC)

	n := normalize(decodeRecord(t, `{
		"id": 42,
		"tipo": "sancion",
		"titulo": "Nueva sanción para Ana",
		"descripcion": "Motivo: Uso de celular",
		"leida": false,
		"meta": {"alumno_id": 7}
	}`), now)

	want := model.Notification{
		ID:          "42",
		Kind:        model.KindNotification,
		Unread:      true,
		Title:       "Ana recibió una sanción",
		Description: "Uso de celular",
		TargetLink:  "/alumnos/7/?tab=sanciones",
		FetchedAt:   now,
	}
	if n != want {
		t.Errorf("normalize = %+v\nwant %+v", n, want)
	}

	msg := normalize(decodeRecord(t, `{"asunto":"Reunión","contenido":"Hola","leido":true,"thread_id":3}`), now)
	if msg.Kind != model.KindMessage || msg.Unread || msg.ID == "" {
		t.Errorf("message normalized to %+v", msg)
	}
	if msg.TargetLink != "/mensajes/hilo/3" {
		t.Errorf("message link = %q", msg.TargetLink)
	}
}

func TestBadge(t *testing.T) {
	for n, want := range map[int]string{0: "", -1: "", 1: "1", 99: "99", 100: "99+", 250: "99+"} {
		if got := Badge(n); got != want {
			t.Errorf("Badge(%d) = %q, want %q", n, got, want)
		}
	}
}
