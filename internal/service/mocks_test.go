package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bigkaa/resportal/internal/domain/model"
	"github.com/bigkaa/resportal/internal/objectstore"
	"github.com/bigkaa/resportal/internal/repository"
)

// --- Mock репозитория разделов ---

type mockBoardRepo struct {
	boards []*model.Board
	calls  int
	err    error
}

func (m *mockBoardRepo) GetBySlug(_ context.Context, slug string) (*model.Board, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	for _, b := range m.boards {
		if b.Slug == slug {
			return b, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *mockBoardRepo) GetByID(_ context.Context, id int64) (*model.Board, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	for _, b := range m.boards {
		if b.ID == id {
			return b, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *mockBoardRepo) List(_ context.Context) ([]*model.Board, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	out := append([]*model.Board(nil), m.boards...)
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}

// --- Mock репозитория ресурсов ---

// mockResourceRepo хранит ресурсы в памяти и повторяет семантику SQL-репозитория:
// фильтр по видимости и разделу, исключение удалённых, условное удаление.
type mockResourceRepo struct {
	mu        sync.Mutex
	items     map[int64]*model.Resource
	boards    map[int64]*model.Board
	nextID    int64
	createErr error
	// lastList — параметры последнего вызова List
	lastList repository.ListParams
	// softDeleteLost — SoftDelete имитирует проигранную гонку
	softDeleteLost bool
}

func newMockResourceRepo(boards ...*model.Board) *mockResourceRepo {
	m := &mockResourceRepo{
		items:  make(map[int64]*model.Resource),
		boards: make(map[int64]*model.Board),
		nextID: 1,
	}
	for _, b := range boards {
		m.boards[b.ID] = b
	}
	return m
}

func (m *mockResourceRepo) add(r *model.Resource) *model.Resource {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID == 0 {
		r.ID = m.nextID
	}
	if r.ID >= m.nextID {
		m.nextID = r.ID + 1
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	}
	m.items[r.ID] = r
	return r
}

func (m *mockResourceRepo) GetByID(_ context.Context, id int64) (*model.Resource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *mockResourceRepo) filter(params repository.ListParams) []*model.Resource {
	var out []*model.Resource
	for _, r := range m.items {
		if r.IsDeleted() {
			continue
		}
		if params.BoardID != nil && r.BoardID != *params.BoardID {
			continue
		}
		allowed := false
		for _, v := range params.Visibilities {
			if r.Visibility == v {
				allowed = true
			}
		}
		if allowed {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (m *mockResourceRepo) List(_ context.Context, params repository.ListParams) ([]*model.ResourceEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastList = params
	all := m.filter(params)
	if params.Offset >= len(all) {
		return nil, nil
	}
	all = all[params.Offset:]
	if len(all) > params.Limit {
		all = all[:params.Limit]
	}
	var out []*model.ResourceEntry
	for _, r := range all {
		e := &model.ResourceEntry{Resource: *r}
		if b, ok := m.boards[r.BoardID]; ok {
			e.BoardSlug, e.BoardTitle = b.Slug, b.Title
		}
		out = append(out, e)
	}
	return out, nil
}

func (m *mockResourceRepo) Count(_ context.Context, params repository.ListParams) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.filter(params)), nil
}

func (m *mockResourceRepo) Create(_ context.Context, res *model.Resource) error {
	if m.createErr != nil {
		return m.createErr
	}
	res.CreatedAt = time.Now().UTC()
	res.UpdatedAt = res.CreatedAt
	cp := *res
	m.add(&cp)
	res.ID = cp.ID
	return nil
}

func (m *mockResourceRepo) UpdateDisplayName(_ context.Context, id int64, displayname *string) (*model.Resource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.items[id]
	if !ok || r.IsDeleted() {
		return nil, repository.ErrNotFound
	}
	r.Displayname = displayname
	cp := *r
	return &cp, nil
}

func (m *mockResourceRepo) ReplaceFile(_ context.Context, id int64, upd repository.FileUpdate) (*model.Resource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.items[id]
	if !ok || r.IsDeleted() {
		return nil, repository.ErrNotFound
	}
	r.R2Key = &upd.R2Key
	r.Mime = &upd.Mime
	r.SizeBytes = &upd.SizeBytes
	r.OriginalFilename = &upd.OriginalFilename
	cp := *r
	return &cp, nil
}

func (m *mockResourceRepo) SoftDelete(_ context.Context, id int64, deletedBy string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.softDeleteLost {
		return false, nil
	}
	r, ok := m.items[id]
	if !ok || r.IsDeleted() {
		return false, nil
	}
	now := time.Now().UTC()
	r.DeletedAt = &now
	r.DeletedBy = &deletedBy
	return true, nil
}

// --- Mock репозитория профилей ---

type mockProfileRepo struct {
	profiles  map[string]*model.Profile
	err       error
	lastQuery string
}

func newMockProfileRepo() *mockProfileRepo {
	return &mockProfileRepo{profiles: make(map[string]*model.Profile)}
}

func (m *mockProfileRepo) GetByID(_ context.Context, id string) (*model.Profile, error) {
	p, ok := m.profiles[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return p, nil
}

func (m *mockProfileRepo) List(_ context.Context, query string, limit, offset int) ([]*model.Profile, int, error) {
	if m.err != nil {
		return nil, 0, m.err
	}
	m.lastQuery = query
	ids := make([]string, 0, len(m.profiles))
	for id, p := range m.profiles {
		if query == "" || strings.Contains(strings.ToLower(p.Email), strings.ToLower(query)) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	var out []*model.Profile
	for i, id := range ids {
		if i >= offset && len(out) < limit {
			out = append(out, m.profiles[id])
		}
	}
	return out, len(ids), nil
}

func (m *mockProfileRepo) RecordSignIn(_ context.Context, id, email string) error {
	if m.err != nil {
		return m.err
	}
	p, ok := m.profiles[id]
	if !ok {
		p = &model.Profile{ID: id, Role: model.RoleMember}
		m.profiles[id] = p
	}
	if email != "" {
		p.Email = email
	}
	return nil
}

func (m *mockProfileRepo) Upsert(_ context.Context, upd repository.ProfileUpdate) (*model.Profile, error) {
	if m.err != nil {
		return nil, m.err
	}
	p, ok := m.profiles[upd.ID]
	if !ok {
		p = &model.Profile{ID: upd.ID, Role: model.RoleMember}
		m.profiles[upd.ID] = p
	}
	if upd.Role != nil {
		p.Role = *upd.Role
	}
	if upd.Approved != nil {
		p.Approved = *upd.Approved
	}
	return p, nil
}

// --- Mock объектного хранилища ---

type putCall struct {
	tier        objectstore.Tier
	key         string
	size        int64
	contentType string
	body        string
}

type mockStore struct {
	puts        []putCall
	presigned   []objectstore.PresignOptions
	putErr      error
	presignErr  error
	presignedAt time.Time
}

func (m *mockStore) Put(_ context.Context, tier objectstore.Tier, key string, body io.ReadSeeker, size int64, contentType string) error {
	if m.putErr != nil {
		return m.putErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.puts = append(m.puts, putCall{tier: tier, key: key, size: size, contentType: contentType, body: string(data)})
	return nil
}

func (m *mockStore) PublicURL(key string) string {
	return "https://cdn.example.com/" + key
}

func (m *mockStore) PresignGet(_ context.Context, key string, opts objectstore.PresignOptions) (string, time.Time, error) {
	if m.presignErr != nil {
		return "", time.Time{}, m.presignErr
	}
	m.presigned = append(m.presigned, opts)
	return "https://signed.example.com/private/" + key + "?X-Amz-Signature=abc", m.presignedAt.Add(60 * time.Second), nil
}

// --- Общие фикстуры ---

var (
	errDB = errors.New("соединение с БД потеряно")

	testBoards = []*model.Board{
		{ID: 1, Slug: "news", Title: "Новости", VisibilityDefault: model.VisibilityPublic},
		{ID: 2, Slug: "labs", Title: "Лаборатория", VisibilityDefault: model.VisibilityMember},
	}

	anonViewer    = model.Anonymous()
	pendingViewer = model.Viewer{LoggedIn: true, UserID: "u-pending", Role: model.RoleMember}
	memberViewer  = model.Viewer{LoggedIn: true, UserID: "u-member", Role: model.RoleMember, Approved: true}
	adminViewer   = model.Viewer{LoggedIn: true, UserID: "u-admin", Role: model.RoleAdmin, Approved: true}
)

func strPtr(s string) *string { return &s }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestBoardService() (*BoardService, *mockBoardRepo) {
	repo := &mockBoardRepo{boards: testBoards}
	return NewBoardService(repo, time.Minute), repo
}
