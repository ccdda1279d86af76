package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bigkaa/resportal/internal/domain/model"
)

type signIn struct {
	id, email string
}

type mockSignInStore struct {
	calls []signIn
	err   error
}

func (m *mockSignInStore) RecordSignIn(_ context.Context, id, email string) error {
	m.calls = append(m.calls, signIn{id, email})
	return m.err
}

// TestSignIns_Throttle проверяет запись входа не чаще интервала.
func TestSignIns_Throttle(t *testing.T) {
	store := &mockSignInStore{}
	svc := NewSignInService(store, 200*time.Millisecond, testLogger())
	ctx := context.Background()

	newbie := model.Viewer{LoggedIn: true, UserID: "newbie", Email: "new@example.org", Role: model.RoleMember}
	admin := model.Viewer{LoggedIn: true, UserID: "admin", Email: "boss@example.org", Role: model.RoleAdmin, Approved: true}

	svc.Record(ctx, newbie)
	svc.Record(ctx, newbie)
	svc.Record(ctx, admin)
	svc.Record(ctx, model.Anonymous())

	want := []signIn{{"newbie", "new@example.org"}, {"admin", "boss@example.org"}}
	if len(store.calls) != len(want) {
		t.Fatalf("записей %d, ожидалось %d: %+v", len(store.calls), len(want), store.calls)
	}
	for i := range want {
		if store.calls[i] != want[i] {
			t.Errorf("calls[%d] = %+v, ожидалось %+v", i, store.calls[i], want[i])
		}
	}

	// Смена email записывается сразу
	newbie.Email = "renamed@example.org"
	svc.Record(ctx, newbie)
	if got := store.calls[len(store.calls)-1]; got != (signIn{"newbie", "renamed@example.org"}) {
		t.Errorf("после смены email: %+v", got)
	}

	// После интервала вход записывается повторно
	n := len(store.calls)
	time.Sleep(300 * time.Millisecond)
	svc.Record(ctx, admin)
	if len(store.calls) != n+1 {
		t.Errorf("после интервала записей %d, ожидалось %d", len(store.calls), n+1)
	}
}

// TestSignIns_RetryAfterError проверяет повтор записи после ошибки хранилища.
func TestSignIns_RetryAfterError(t *testing.T) {
	store := &mockSignInStore{err: errors.New("read-only transaction")}
	svc := NewSignInService(store, time.Minute, testLogger())
	viewer := model.Viewer{LoggedIn: true, UserID: "u1", Role: model.RoleMember}

	svc.Record(context.Background(), viewer)
	svc.Record(context.Background(), viewer)
	if len(store.calls) != 2 {
		t.Errorf("записей %d, ожидалось 2", len(store.calls))
	}

	store.err = nil
	svc.Record(context.Background(), viewer)
	svc.Record(context.Background(), viewer)
	if len(store.calls) != 3 {
		t.Errorf("после успешной записи повтор не ожидался: %d", len(store.calls))
	}
}
