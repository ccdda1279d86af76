// Пакет model — доменные модели resportal.
// Resource, Board и Profile — маппинг таблиц resources, boards, profiles.
package model

import "time"

// Kind — классификация файла, выводимая из расширения при загрузке.
type Kind string

const (
	KindPDF   Kind = "pdf"
	KindImage Kind = "image"
	KindVideo Kind = "video"
	KindDoc   Kind = "doc"
	KindZip   Kind = "zip"
	// KindLink — внешняя ссылка без объекта в хранилище
	KindLink Kind = "link"
)

// Visibility — уровень видимости ресурса.
// Строгий порядок по требуемым привилегиям: public < member < admin.
type Visibility string

const (
	VisibilityPublic Visibility = "public"
	VisibilityMember Visibility = "member"
	VisibilityAdmin  Visibility = "admin"
)

// Visibilities — все уровни видимости в порядке возрастания привилегий.
var Visibilities = []Visibility{VisibilityPublic, VisibilityMember, VisibilityAdmin}

// Valid проверяет, что значение входит в перечисление.
func (v Visibility) Valid() bool {
	switch v {
	case VisibilityPublic, VisibilityMember, VisibilityAdmin:
		return true
	}
	return false
}

// IsPrivate — объект хранится в приватном бакете и выдаётся только по подписанной ссылке.
func (v Visibility) IsPrivate() bool {
	return v != VisibilityPublic
}

// Resource — запись таблицы resources.
type Resource struct {
	// ID — целочисленный идентификатор
	ID int64
	// BoardID — раздел, которому принадлежит ресурс
	BoardID int64
	// Title — заголовок
	Title string
	// Displayname — отображаемое имя (переопределяет Title только для показа)
	Displayname *string
	Kind        Kind
	Visibility  Visibility
	// R2Key — ключ объекта в хранилище (nil только для KindLink)
	R2Key            *string
	OriginalFilename *string
	Mime             *string
	SizeBytes        *int64
	// PublishedAt — календарная дата публикации (полночь UTC)
	PublishedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	// DeletedAt — метка мягкого удаления
	DeletedAt *time.Time
	// DeletedBy — кто удалил (user id)
	DeletedBy *string
}

// IsDeleted возвращает true для мягко удалённой записи.
func (r *Resource) IsDeleted() bool {
	return r.DeletedAt != nil
}

// HasObject возвращает true, если у ресурса есть объект в хранилище.
func (r *Resource) HasObject() bool {
	return r.R2Key != nil && *r.R2Key != ""
}

// Board — раздел (категория). Справочные данные, slug неизменяем.
type Board struct {
	ID                int64
	Slug              string
	Title             string
	VisibilityDefault Visibility
}

// ResourceEntry — ресурс вместе с данными раздела для листинга.
type ResourceEntry struct {
	Resource
	BoardSlug  string
	BoardTitle string
}
