package filekind

import (
	"testing"

	"github.com/bigkaa/resportal/internal/domain/model"
)

func TestInfer(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		want     model.Kind
		ok       bool
	}{
		{"pdf", "report.pdf", model.KindPDF, true},
		{"верхний регистр", "PHOTO.JPG", model.KindImage, true},
		{"webp", "a.b.webp", model.KindImage, true},
		{"видео mkv", "lecture.mkv", model.KindVideo, true},
		{"презентация как doc", "slides.pptx", model.KindDoc, true},
		{"keynote как doc", "talk.key", model.KindDoc, true},
		{"hwp", "form.hwp", model.KindDoc, true},
		{"архив 7z", "bundle.7z", model.KindZip, true},
		{"неизвестное расширение", "binary.exe", "", false},
		{"без расширения", "README", "", false},
		{"точка в конце", "weird.", "", false},
		{"расширение в пути не учитывается", "dir.pdf/file", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Infer(tt.filename)
			if got != tt.want || ok != tt.ok {
				t.Errorf("Infer(%q) = (%q, %v), хотели (%q, %v)", tt.filename, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestSafeKeyName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"report.pdf", "report.pdf"},
		{"my report (final).pdf", "my_report_final_.pdf"},
		{"../../etc/passwd", "passwd"},
		{"C:\\Users\\me\\doc.docx", "doc.docx"},
		{"회의록.hwp", "_.hwp"},
		{"???", "file"},
		{"", "file"},
	}

	for _, tt := range tests {
		if got := SafeKeyName(tt.in); got != tt.want {
			t.Errorf("SafeKeyName(%q) = %q, хотели %q", tt.in, got, tt.want)
		}
	}
}

func TestSafeDownloadName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"회의록 2026.hwp", "회의록_2026.hwp"},
		{"Отчёт \"итог\".pdf", "Отчёт_итог_.pdf"},
		{"a;b=c.txt", "a_b_c.txt"},
	}

	for _, tt := range tests {
		if got := SafeDownloadName(tt.in); got != tt.want {
			t.Errorf("SafeDownloadName(%q) = %q, хотели %q", tt.in, got, tt.want)
		}
	}
}
