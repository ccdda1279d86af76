// Пакет filekind — определение вида файла по расширению имени
// и нормализация имён для ключей хранилища и заголовков ответа.
// Содержимое файла никогда не анализируется.
package filekind

import (
	"path"
	"strings"
	"unicode"

	"github.com/bigkaa/resportal/internal/domain/model"
)

// extKinds — таблица расширение → вид.
// Презентации (ppt, pptx, key) классифицируются как doc.
var extKinds = map[string]model.Kind{
	"pdf": model.KindPDF,

	"png":  model.KindImage,
	"jpg":  model.KindImage,
	"jpeg": model.KindImage,
	"webp": model.KindImage,
	"gif":  model.KindImage,

	"mp4":  model.KindVideo,
	"mov":  model.KindVideo,
	"webm": model.KindVideo,
	"mkv":  model.KindVideo,

	"ppt":  model.KindDoc,
	"pptx": model.KindDoc,
	"key":  model.KindDoc,

	"doc":  model.KindDoc,
	"docx": model.KindDoc,
	"hwp":  model.KindDoc,
	"txt":  model.KindDoc,

	"zip": model.KindZip,
	"7z":  model.KindZip,
	"rar": model.KindZip,
}

// Ext возвращает расширение в нижнем регистре без точки.
func Ext(filename string) string {
	ext := path.Ext(filename)
	if ext == "" {
		return ""
	}
	return strings.ToLower(ext[1:])
}

// Infer определяет вид файла по расширению.
// Второе значение false — расширение не поддерживается.
func Infer(filename string) (model.Kind, bool) {
	k, ok := extKinds[Ext(filename)]
	return k, ok
}

// SafeKeyName приводит имя файла к набору [A-Za-z0-9_.-] для ключа объекта.
// Каждая серия прочих символов заменяется одним "_".
func SafeKeyName(name string) string {
	return replaceRuns(baseName(name), func(r rune) bool {
		return r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '.' || r == '-')
	}, "file")
}

// SafeDownloadName нормализует имя для Content-Disposition.
// В отличие от SafeKeyName сохраняет буквы любых алфавитов.
func SafeDownloadName(name string) string {
	return replaceRuns(baseName(name), func(r rune) bool {
		return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '.' || r == '-'
	}, "file")
}

// baseName отбрасывает путь, присланный клиентом (в т.ч. с обратными слэшами).
func baseName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	return strings.TrimSpace(name)
}

func replaceRuns(name string, keep func(rune) bool, fallback string) string {
	var b strings.Builder
	b.Grow(len(name))
	inRun := false
	for _, r := range name {
		if keep(r) {
			b.WriteRune(r)
			inRun = false
			continue
		}
		if !inRun {
			b.WriteByte('_')
			inRun = true
		}
	}
	out := b.String()
	if strings.Trim(out, "_.") == "" {
		return fallback
	}
	return out
}
