package objectstore

import (
	"context"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"

	"github.com/bigkaa/resportal/internal/domain/model"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	awsCfg := aws.Config{
		Region:      "auto",
		Credentials: credentials.NewStaticCredentialsProvider("AKIDEXAMPLE", "SECRETEXAMPLE", ""),
	}
	return newWithConfig(awsCfg, Options{
		Endpoint:      "https://acc.r2.example.com",
		Region:        "auto",
		PublicBucket:  "res-public",
		PrivateBucket: "res-private",
		PublicBaseURL: "https://files.example.org/",
		UsePathStyle:  true,
		SignedURLTTL:  60 * time.Second,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestTierFor(t *testing.T) {
	tests := []struct {
		vis  model.Visibility
		want Tier
	}{
		{model.VisibilityPublic, TierPublic},
		{model.VisibilityMember, TierPrivate},
		{model.VisibilityAdmin, TierPrivate},
	}
	for _, tt := range tests {
		if got := TierFor(tt.vis); got != tt.want {
			t.Errorf("TierFor(%s) = %s, хотели %s", tt.vis, got, tt.want)
		}
	}
}

func TestBucket(t *testing.T) {
	c := newTestClient(t)
	if c.Bucket(TierPublic) != "res-public" || c.Bucket(TierPrivate) != "res-private" {
		t.Errorf("Bucket() вернул неверные бакеты: %s/%s", c.Bucket(TierPublic), c.Bucket(TierPrivate))
	}
}

func TestPublicURL(t *testing.T) {
	c := newTestClient(t)

	got := c.PublicURL("atm/42-file.pdf")
	if got != "https://files.example.org/atm/42-file.pdf" {
		t.Errorf("PublicURL() = %q", got)
	}

	got = c.PublicURL("atm/a b#c.pdf")
	if got != "https://files.example.org/atm/a%20b%23c.pdf" {
		t.Errorf("PublicURL() не экранировал сегмент: %q", got)
	}
}

func TestPresignGet(t *testing.T) {
	c := newTestClient(t)

	before := time.Now()
	raw, expiresAt, err := c.PresignGet(context.Background(), "atm/1700000000000-abcd1234-report.pdf", PresignOptions{
		ContentDisposition: `attachment; filename="report.pdf"`,
		ContentType:        "application/pdf",
	})
	if err != nil {
		t.Fatalf("PresignGet() ошибка: %v", err)
	}

	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("некорректный URL %q: %v", raw, err)
	}
	if u.Host != "acc.r2.example.com" {
		t.Errorf("Host = %q, ожидался endpoint хранилища", u.Host)
	}
	if !strings.HasPrefix(u.Path, "/res-private/atm/") {
		t.Errorf("Path = %q, ожидался приватный бакет в пути (path style)", u.Path)
	}

	q := u.Query()
	if q.Get("X-Amz-Expires") != "60" {
		t.Errorf("X-Amz-Expires = %q, ожидалось 60", q.Get("X-Amz-Expires"))
	}
	if q.Get("response-content-disposition") != `attachment; filename="report.pdf"` {
		t.Errorf("response-content-disposition = %q", q.Get("response-content-disposition"))
	}
	if q.Get("response-content-type") != "application/pdf" {
		t.Errorf("response-content-type = %q", q.Get("response-content-type"))
	}
	if strings.Contains(raw, "SECRETEXAMPLE") {
		t.Error("подписанная ссылка содержит секретный ключ")
	}

	if d := expiresAt.Sub(before); d < 59*time.Second || d > 61*time.Second {
		t.Errorf("expiresAt через %v, ожидалось около 60s", d)
	}
}
