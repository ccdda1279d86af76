package repository

import (
	"reflect"
	"strings"
	"testing"

	"github.com/bigkaa/resportal/internal/domain/model"
)

// --- Тесты buildResourceWhere ---

func TestBuildResourceWhere_AlwaysExcludesDeleted(t *testing.T) {
	params := ListParams{Visibilities: []model.Visibility{model.VisibilityPublic}}
	where, args := buildResourceWhere(params, 1)

	if !strings.HasPrefix(where, "WHERE r.deleted_at IS NULL") {
		t.Errorf("where = %q, ожидалось условие deleted_at IS NULL первым", where)
	}
	if !strings.Contains(where, "r.visibility = ANY($1)") {
		t.Errorf("where = %q, ожидался фильтр видимости $1", where)
	}
	if strings.Contains(where, "board_id") {
		t.Errorf("where = %q, фильтр раздела не ожидался", where)
	}
	if len(args) != 1 {
		t.Fatalf("args count = %d, ожидался 1", len(args))
	}
	if !reflect.DeepEqual(args[0], []string{"public"}) {
		t.Errorf("args[0] = %v, ожидался [public]", args[0])
	}
}

func TestBuildResourceWhere_Board(t *testing.T) {
	boardID := int64(7)
	params := ListParams{
		BoardID:      &boardID,
		Visibilities: []model.Visibility{model.VisibilityPublic, model.VisibilityMember},
	}
	where, args := buildResourceWhere(params, 1)

	if !strings.Contains(where, "r.board_id = $2") {
		t.Errorf("where = %q, ожидался фильтр раздела $2", where)
	}
	if len(args) != 2 {
		t.Fatalf("args count = %d, ожидалось 2", len(args))
	}
	if args[1] != int64(7) {
		t.Errorf("args[1] = %v, ожидался 7", args[1])
	}
	if !reflect.DeepEqual(args[0], []string{"public", "member"}) {
		t.Errorf("args[0] = %v, ожидался [public member]", args[0])
	}
}

func TestBuildResourceWhere_StartArg(t *testing.T) {
	boardID := int64(1)
	params := ListParams{BoardID: &boardID, Visibilities: model.Visibilities}
	where, _ := buildResourceWhere(params, 3)

	if !strings.Contains(where, "$3") || !strings.Contains(where, "$4") {
		t.Errorf("where = %q, ожидалась нумерация с $3", where)
	}
}

func TestListingOrder(t *testing.T) {
	if !strings.Contains(listingOrder, "published_at DESC NULLS LAST") {
		t.Errorf("listingOrder = %q, ожидалась сортировка published_at DESC NULLS LAST", listingOrder)
	}
	if strings.Index(listingOrder, "published_at") > strings.Index(listingOrder, "created_at") {
		t.Errorf("listingOrder = %q, created_at должен разрешать совпадения после published_at", listingOrder)
	}
}
