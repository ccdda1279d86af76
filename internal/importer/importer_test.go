package importer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bigkaa/resportal/internal/domain/model"
	"github.com/bigkaa/resportal/internal/service"
)

var fileTime = time.Date(2024, 5, 6, 12, 0, 0, 0, time.UTC)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(path, fileTime, fileTime); err != nil {
		t.Fatal(err)
	}
}

func testTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "news", "report_2025-09-07_final.pdf"), "%PDF")
	writeFile(t, filepath.Join(root, "news", "photo.JPG"), "jpg")
	writeFile(t, filepath.Join(root, "news", "notes.exe"), "MZ")
	writeFile(t, filepath.Join(root, "news", ".DS_Store"), "")
	writeFile(t, filepath.Join(root, "news", "2024", "deep.pdf"), "%PDF")
	writeFile(t, filepath.Join(root, "labs", "data.zip"), "PK")
	writeFile(t, filepath.Join(root, ".git", "config.txt"), "")
	writeFile(t, filepath.Join(root, "readme.txt"), "корневой файл")
	return root
}

// TestScan проверяет сбор файлов по каталогам разделов.
func TestScan(t *testing.T) {
	root := testTree(t)

	items, skipped, err := Scan(root, "")
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(items) != 4 {
		t.Fatalf("найдено %d файлов, ожидалось 4: %+v", len(items), items)
	}

	// Порядок по пути: labs/data.zip, news/2024/deep.pdf, news/photo.JPG, news/report_...
	if items[0].BoardSlug != "labs" || items[0].Kind != model.KindZip {
		t.Errorf("items[0] = %+v", items[0])
	}
	if items[1].BoardSlug != "news" || items[1].Filename != "deep.pdf" {
		t.Errorf("вложенный файл должен относиться к разделу news: %+v", items[1])
	}
	if items[2].Kind != model.KindImage || items[2].Title != "photo" || items[2].PublishedAt != "2024-05-06" {
		t.Errorf("items[2] = %+v", items[2])
	}
	report := items[3]
	if report.Title != "report 2025-09-07" || report.PublishedAt != "2025-09-07" || report.Size != 4 {
		t.Errorf("items[3] = %+v", report)
	}
	if len(skipped) != 1 || skipped[0].Reason != "unsupported file type" {
		t.Errorf("пропущено: %+v, ожидался только notes.exe", skipped)
	}
}

// TestScan_BoardFilter проверяет фильтр по разделу и отсутствующий каталог.
func TestScan_BoardFilter(t *testing.T) {
	root := testTree(t)

	items, _, err := Scan(root, "labs")
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(items) != 1 || items[0].Filename != "data.zip" {
		t.Errorf("items = %+v", items)
	}

	if _, _, err := Scan(filepath.Join(root, "missing"), ""); err == nil {
		t.Error("ожидалась ошибка для отсутствующего каталога")
	}
}

// TestDateFromFilename проверяет извлечение даты из имени файла.
func TestDateFromFilename(t *testing.T) {
	tests := []struct {
		name   string
		want   string
		wantOK bool
	}{
		{"ATM No 004 2025-09-07", "2025-09-07", true},
		{"bulletin 2025.9.7", "2025-09-07", true},
		{"minutes_2024_12_01", "2024-12-01", true},
		{"24 KINGS 2024 JAN 27", "2024-01-27", true},
		{"retreat 2025-SEPT-04", "2025-09-04", true},
		{"2025-02-30 invalid", "", false},
		{"no date here", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := DateFromFilename(tt.name)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("DateFromFilename(%q) = %q, %v; ожидалось %q, %v", tt.name, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

// TestTitleFromFilename проверяет очистку заголовка.
func TestTitleFromFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"annual_report_final", "annual report"},
		{"Guide Version 2.1 Final", "Guide"},
		{"slides ver.3", "slides"},
		{"  plain   name ", "plain name"},
		{"final", "final"},
	}
	for _, tt := range tests {
		if got := TitleFromFilename(tt.in); got != tt.want {
			t.Errorf("TitleFromFilename(%q) = %q, ожидалось %q", tt.in, got, tt.want)
		}
	}
}

type mockIngester struct {
	calls  []service.IngestParams
	bodies []string
	viewer model.Viewer
	failOn string
}

func (m *mockIngester) Ingest(_ context.Context, p service.IngestParams, viewer model.Viewer) (*service.IngestResult, error) {
	m.calls = append(m.calls, p)
	m.viewer = viewer
	data, _ := io.ReadAll(p.File.Body)
	m.bodies = append(m.bodies, string(data))
	if p.File.Filename == m.failOn {
		return nil, &service.Error{Kind: service.ErrValidation, Message: "invalid boardSlug"}
	}
	return &service.IngestResult{Resource: &model.Resource{ID: int64(len(m.calls))}}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestRun проверяет загрузку от имени администратора и учёт ошибок.
func TestRun(t *testing.T) {
	root := testTree(t)
	items, _, err := Scan(root, "")
	if err != nil {
		t.Fatal(err)
	}
	for i := range items {
		items[i].Visibility = model.VisibilityMember
	}

	ing := &mockIngester{failOn: "photo.JPG"}
	rep, err := New(ing, "importer", testLogger()).Run(context.Background(), items, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Imported != 3 || rep.Failed != 1 {
		t.Errorf("отчёт = %+v", rep)
	}
	if !ing.viewer.IsApprovedAdmin() || ing.viewer.UserID != "importer" {
		t.Errorf("viewer = %+v", ing.viewer)
	}

	last := ing.calls[3]
	if last.BoardSlug != "news" || last.Title != "report 2025-09-07" || last.Visibility != "member" ||
		last.PublishedAt != "2025-09-07" || last.Displayname != "report_2025-09-07_final.pdf" {
		t.Errorf("параметры = %+v", last)
	}
	if last.File.ContentType != "application/pdf" || ing.bodies[3] != "%PDF" {
		t.Errorf("файл: %q %q", last.File.ContentType, ing.bodies[3])
	}
}

// TestRun_VisibilityOverride проверяет, что флаг видимости перекрывает раздел.
func TestRun_VisibilityOverride(t *testing.T) {
	items := []Item{{BoardSlug: "news", Path: filepath.Join(testTree(t), "labs", "data.zip"), Filename: "data.zip", Visibility: model.VisibilityPublic}}

	ing := &mockIngester{}
	if _, err := New(ing, "importer", testLogger()).Run(context.Background(), items, Options{Visibility: model.VisibilityAdmin}); err != nil {
		t.Fatal(err)
	}
	if ing.calls[0].Visibility != "admin" {
		t.Errorf("видимость = %q, ожидалась admin", ing.calls[0].Visibility)
	}
}

// TestRun_DryRun проверяет, что dry-run не загружает файлы.
func TestRun_DryRun(t *testing.T) {
	root := testTree(t)
	items, _, _ := Scan(root, "")

	rep, err := New(nil, "importer", testLogger()).Run(context.Background(), items, Options{DryRun: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Imported != 4 || rep.Failed != 0 {
		t.Errorf("отчёт %+v", rep)
	}
}

// TestRun_Cancelled проверяет прерывание по отмене контекста.
func TestRun_Cancelled(t *testing.T) {
	root := testTree(t)
	items, _, _ := Scan(root, "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ing := &mockIngester{}
	if _, err := New(ing, "importer", testLogger()).Run(ctx, items, Options{}); !errors.Is(err, context.Canceled) {
		t.Errorf("ошибка = %v, ожидалась context.Canceled", err)
	}
	if len(ing.calls) != 0 {
		t.Errorf("вызовов %d после отмены", len(ing.calls))
	}
}
