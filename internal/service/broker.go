// broker.go — выдача ссылок на объекты ресурсов.
//
// Публичный уровень — прямая бессрочная ссылка на публичный бакет.
// Приватный уровень — подписанная ссылка с ограниченным сроком действия.
// Ни подписанные ссылки, ни ключи доступа не логируются.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/resportal/internal/domain/filekind"
	"github.com/bigkaa/resportal/internal/domain/model"
	"github.com/bigkaa/resportal/internal/domain/policy"
	"github.com/bigkaa/resportal/internal/objectstore"
	"github.com/bigkaa/resportal/internal/repository"
)

// Prometheus-метрики выдачи ссылок.
var (
	deliveryURLsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rp_delivery_urls_total",
		Help: "Количество выданных ссылок по уровню хранения и режиму.",
	}, []string{"tier", "mode"})

	deliveryDeniedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rp_delivery_denied_total",
		Help: "Количество отказов в выдаче ссылки по причине.",
	}, []string{"reason"})
)

// URLSigner — построение ссылок на объекты хранилища.
type URLSigner interface {
	PublicURL(key string) string
	PresignGet(ctx context.Context, key string, opts objectstore.PresignOptions) (string, time.Time, error)
}

// Delivery — выданная ссылка.
type Delivery struct {
	URL  string
	Tier objectstore.Tier
	// ExpiresAt — момент истечения подписанной ссылки (nil для публичной)
	ExpiresAt *time.Time
}

// BrokerService — выдача ссылок с проверкой политики.
type BrokerService struct {
	resources repository.ResourceRepository
	signer    URLSigner
	policy    policy.Policy
	logger    *slog.Logger
}

// NewBrokerService создаёт сервис выдачи ссылок.
func NewBrokerService(
	resources repository.ResourceRepository,
	signer URLSigner,
	pol policy.Policy,
	logger *slog.Logger,
) *BrokerService {
	return &BrokerService{
		resources: resources,
		signer:    signer,
		policy:    pol,
		logger:    logger.With(slog.String("component", "broker_service")),
	}
}

// Resolve выдаёт ссылку на объект ресурса в режиме mode.
// Ошибки: ErrNotFound (нет ресурса, удалён, нет объекта),
// ErrLoginRequired (анонимный зритель), ErrForbidden (недостаточно прав).
func (s *BrokerService) Resolve(ctx context.Context, id int64, mode policy.Mode, viewer model.Viewer) (*Delivery, error) {
	res, err := s.resources.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("resource not found")
		}
		return nil, fmt.Errorf("получение ресурса %d: %w", id, err)
	}

	decision := s.policy.Decide(res.Visibility, res.IsDeleted(), viewer, mode)
	if !decision.Allowed {
		deliveryDeniedTotal.WithLabelValues(string(decision.Reason)).Inc()
		s.logger.Debug("Отказ в выдаче ссылки",
			slog.Int64("resource_id", id),
			slog.String("mode", string(mode)),
			slog.String("reason", string(decision.Reason)),
		)
		switch decision.Reason {
		case policy.ReasonNotFound:
			return nil, notFound("resource not found")
		case policy.ReasonLoginRequired:
			return nil, loginRequired(decision.Message(mode, res.Visibility))
		default:
			return nil, forbidden(decision.Message(mode, res.Visibility))
		}
	}

	if !res.HasObject() {
		return nil, notFound("resource has no stored file")
	}
	key := *res.R2Key

	tier := objectstore.TierFor(res.Visibility)
	if tier == objectstore.TierPublic {
		deliveryURLsTotal.WithLabelValues(string(tier), string(mode)).Inc()
		return &Delivery{URL: s.signer.PublicURL(key), Tier: tier}, nil
	}

	opts := objectstore.PresignOptions{
		ContentDisposition: contentDisposition(mode, downloadName(res)),
	}
	if res.Mime != nil {
		opts.ContentType = *res.Mime
	}

	signed, expiresAt, err := s.signer.PresignGet(ctx, key, opts)
	if err != nil {
		return nil, fmt.Errorf("подпись ссылки для ресурса %d: %w", id, err)
	}
	deliveryURLsTotal.WithLabelValues(string(tier), string(mode)).Inc()
	return &Delivery{URL: signed, Tier: tier, ExpiresAt: &expiresAt}, nil
}

// downloadName — имя файла для Content-Disposition:
// исходное имя файла, иначе заголовок ресурса.
func downloadName(res *model.Resource) string {
	if res.OriginalFilename != nil && *res.OriginalFilename != "" {
		return filekind.SafeDownloadName(*res.OriginalFilename)
	}
	return filekind.SafeDownloadName(res.Title)
}

// contentDisposition строит заголовок: inline для просмотра,
// attachment для скачивания. Имя с не-ASCII символами дублируется
// в filename* (RFC 5987), в filename остаётся ASCII-вариант.
func contentDisposition(mode policy.Mode, name string) string {
	disp := "inline"
	if mode == policy.ModeDownload {
		disp = "attachment"
	}
	if name == "" {
		return disp
	}

	ascii := filekind.SafeKeyName(name)
	var b strings.Builder
	b.WriteString(disp)
	b.WriteString(`; filename="`)
	b.WriteString(ascii)
	b.WriteString(`"`)
	if ascii != name {
		b.WriteString("; filename*=UTF-8''")
		b.WriteString(url.PathEscape(name))
	}
	return b.String()
}
