// Пакет importer — массовый импорт файлов из локального каталога.
// Структура каталога: <root>/<boardSlug>/.../<file>; раздел определяется
// каталогом первого уровня. Каждый файл загружается через IngestionService
// от имени служебного администратора.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/bigkaa/resportal/internal/domain/filekind"
	"github.com/bigkaa/resportal/internal/domain/model"
	"github.com/bigkaa/resportal/internal/service"
)

// Item — файл, подлежащий импорту.
type Item struct {
	BoardSlug string
	Path      string
	Filename  string
	Title     string
	Kind      model.Kind
	Size      int64
	// PublishedAt — дата из имени файла, иначе дата изменения файла (YYYY-MM-DD)
	PublishedAt string
	// Visibility — видимость по умолчанию раздела; заполняется вызывающим
	Visibility model.Visibility
}

// Skipped — файл, пропущенный при сканировании.
type Skipped struct {
	Path   string
	Reason string
}

// Scan обходит root и собирает файлы внутри каталогов разделов.
// Скрытые файлы и каталоги пропускаются, файлы в самом root игнорируются.
// board — фильтр по разделу (пусто — все).
func Scan(root, board string) ([]Item, []Skipped, error) {
	var items []Item
	var skipped []Skipped

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		parts := strings.Split(filepath.ToSlash(rel), "/")
		if board != "" && parts[0] != board {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || len(parts) < 2 {
			return nil
		}
		if !d.Type().IsRegular() {
			skipped = append(skipped, Skipped{Path: path, Reason: "not a regular file"})
			return nil
		}

		kind, ok := filekind.Infer(d.Name())
		if !ok {
			skipped = append(skipped, Skipped{Path: path, Reason: "unsupported file type"})
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("stat %s: %w", path, err)
		}

		base := strings.TrimSuffix(d.Name(), filepath.Ext(d.Name()))
		published, ok := DateFromFilename(base)
		if !ok {
			published = info.ModTime().UTC().Format(openapi_types.DateFormat)
		}

		items = append(items, Item{
			BoardSlug:   parts[0],
			Path:        path,
			Filename:    d.Name(),
			Title:       TitleFromFilename(base),
			Kind:        kind,
			Size:        info.Size(),
			PublishedAt: published,
		})
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("обход каталога %s: %w", root, err)
	}

	sort.Slice(items, func(i, j int) bool { return items[i].Path < items[j].Path })
	return items, skipped, nil
}

// 2025-09-07, 2025.09.07, 2025_09_07
var numericDate = regexp.MustCompile(`(?:^|[^0-9])(20\d{2})\s*[-_./]\s*(\d{1,2})\s*[-_./]\s*(\d{1,2})(?:[^0-9]|$)`)

// 2024 JAN 27, 2025-SEPT-04
var monthDate = regexp.MustCompile(`(?i)(?:^|[^0-9])(20\d{2})\s*[-_.]?\s*([a-z]{3,4})\s*[-_.]?\s*(\d{1,2})(?:[^0-9]|$)`)

var monthNames = map[string]time.Month{
	"JAN": time.January, "FEB": time.February, "MAR": time.March, "APR": time.April,
	"MAY": time.May, "JUN": time.June, "JUNE": time.June, "JUL": time.July,
	"JULY": time.July, "AUG": time.August, "SEP": time.September, "SEPT": time.September,
	"OCT": time.October, "NOV": time.November, "DEC": time.December,
}

// DateFromFilename извлекает календарную дату из имени файла без расширения.
func DateFromFilename(name string) (string, bool) {
	name = strings.Join(strings.Fields(name), " ")

	if m := numericDate.FindStringSubmatch(name); m != nil {
		if d, ok := validDate(m[1], m[2], m[3]); ok {
			return d, true
		}
	}
	if m := monthDate.FindStringSubmatch(name); m != nil {
		if mon, ok := monthNames[strings.ToUpper(m[2])]; ok {
			if d, ok := validDate(m[1], fmt.Sprint(int(mon)), m[3]); ok {
				return d, true
			}
		}
	}
	return "", false
}

func validDate(y, m, d string) (string, bool) {
	t, err := time.Parse("2006-1-2", y+"-"+m+"-"+d)
	if err != nil {
		return "", false
	}
	return t.Format(openapi_types.DateFormat), true
}

var (
	versionToken = regexp.MustCompile(`(?i)\bver(?:sion|\.)?\s*[0-9.]+[a-z]?\b`)
	finalToken   = regexp.MustCompile(`(?i)(?:_|\b)final\b`)
)

// TitleFromFilename строит заголовок из имени файла без расширения:
// убирает пометки версии и "final", заменяет "_" пробелами.
func TitleFromFilename(name string) string {
	t := versionToken.ReplaceAllString(name, "")
	t = finalToken.ReplaceAllString(t, "")
	t = strings.ReplaceAll(t, "_", " ")
	t = strings.Join(strings.Fields(t), " ")
	if t == "" {
		return strings.TrimSpace(name)
	}
	return t
}

// Ingester — загрузка одного ресурса.
type Ingester interface {
	Ingest(ctx context.Context, p service.IngestParams, viewer model.Viewer) (*service.IngestResult, error)
}

// Options — параметры запуска импорта.
type Options struct {
	// Visibility переопределяет видимость раздела (пусто — Item.Visibility)
	Visibility model.Visibility
	DryRun     bool
}

// Report — итог импорта.
type Report struct {
	Imported int
	Failed   int
}

// Importer загружает просканированные файлы.
type Importer struct {
	ingester Ingester
	viewer   model.Viewer
	logger   *slog.Logger
}

// New создаёт Importer. Загрузка выполняется от имени operator
// с правами одобренного администратора.
func New(ingester Ingester, operator string, logger *slog.Logger) *Importer {
	return &Importer{
		ingester: ingester,
		viewer: model.Viewer{
			LoggedIn: true,
			UserID:   operator,
			Role:     model.RoleAdmin,
			Approved: true,
		},
		logger: logger.With(slog.String("component", "importer")),
	}
}

// Run загружает items по одному. Ошибка отдельного файла не прерывает
// импорт; отмена контекста прерывает.
func (im *Importer) Run(ctx context.Context, items []Item, opts Options) (Report, error) {
	var rep Report
	for _, it := range items {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		if opts.Visibility != "" {
			it.Visibility = opts.Visibility
		}

		if opts.DryRun {
			im.logger.Info("Импорт (dry-run)",
				slog.String("board", it.BoardSlug),
				slog.String("file", it.Filename),
				slog.String("title", it.Title),
				slog.String("kind", string(it.Kind)),
				slog.String("visibility", string(it.Visibility)),
				slog.String("published_at", it.PublishedAt),
				slog.Int64("size", it.Size),
			)
			rep.Imported++
			continue
		}

		res, err := im.importOne(ctx, it)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return rep, err
			}
			rep.Failed++
			im.logger.Error("Ошибка импорта файла",
				slog.String("path", it.Path),
				slog.String("error", service.ClientMessage(err)),
			)
			continue
		}
		rep.Imported++
		im.logger.Info("Файл импортирован",
			slog.String("path", it.Path),
			slog.Int64("resource_id", res.Resource.ID),
		)
	}
	return rep, nil
}

func (im *Importer) importOne(ctx context.Context, it Item) (*service.IngestResult, error) {
	f, err := os.Open(it.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return im.ingester.Ingest(ctx, service.IngestParams{
		Title:       it.Title,
		BoardSlug:   it.BoardSlug,
		Visibility:  string(it.Visibility),
		Displayname: it.Filename,
		PublishedAt: it.PublishedAt,
		File: &service.FileUpload{
			Filename:    it.Filename,
			ContentType: contentType(it.Filename),
			Size:        it.Size,
			Body:        f,
		},
	}, im.viewer)
}

func contentType(filename string) string {
	if ct := mime.TypeByExtension(filepath.Ext(filename)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
