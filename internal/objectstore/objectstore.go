// Пакет objectstore — клиент S3-совместимого объектного хранилища (R2).
// Два уровня хранения: публичный бакет (прямые ссылки) и приватный
// (только подписанные ссылки с ограниченным сроком действия).
// Долговременные ключи доступа никогда не покидают пакет.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/bigkaa/resportal/internal/config"
	"github.com/bigkaa/resportal/internal/domain/model"
)

// Tier — уровень хранения.
type Tier string

const (
	TierPublic  Tier = "public"
	TierPrivate Tier = "private"
)

// TierFor возвращает уровень хранения для уровня видимости.
// public — публичный бакет, member и admin — приватный.
func TierFor(vis model.Visibility) Tier {
	if vis.IsPrivate() {
		return TierPrivate
	}
	return TierPublic
}

// PresignOptions — заголовки ответа, зашиваемые в подписанную ссылку.
type PresignOptions struct {
	// ContentDisposition — inline или attachment; filename="..."
	ContentDisposition string
	// ContentType — MIME-тип ответа (пусто — как в хранилище)
	ContentType string
}

// Options — параметры клиента.
type Options struct {
	Endpoint      string
	Region        string
	AccessKeyID   string
	SecretKey     string
	PublicBucket  string
	PrivateBucket string
	PublicBaseURL string
	UsePathStyle  bool
	// SignedURLTTL — срок действия подписанной ссылки
	SignedURLTTL time.Duration
}

// OptionsFromConfig собирает Options из конфигурации приложения.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Endpoint:      cfg.S3Endpoint,
		Region:        cfg.S3Region,
		AccessKeyID:   cfg.S3AccessKeyID,
		SecretKey:     cfg.S3SecretAccessKey,
		PublicBucket:  cfg.S3PublicBucket,
		PrivateBucket: cfg.S3PrivateBucket,
		PublicBaseURL: cfg.S3PublicBaseURL,
		UsePathStyle:  cfg.S3UsePathStyle,
		SignedURLTTL:  cfg.SignedURLTTL,
	}
}

// Client — клиент объектного хранилища.
type Client struct {
	s3      *s3.Client
	presign *s3.PresignClient
	opts    Options
	logger  *slog.Logger
}

// New создаёт клиента. Учётные данные — статические ключи из конфигурации.
func New(ctx context.Context, opts Options, logger *slog.Logger) (*Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(opts.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("ошибка конфигурации S3 клиента: %w", err)
	}
	return newWithConfig(awsCfg, opts, logger), nil
}

func newWithConfig(awsCfg aws.Config, opts Options, logger *slog.Logger) *Client {
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(opts.Endpoint)
		o.UsePathStyle = opts.UsePathStyle
	})
	opts.PublicBaseURL = strings.TrimRight(opts.PublicBaseURL, "/")

	return &Client{
		s3:      client,
		presign: s3.NewPresignClient(client),
		opts:    opts,
		logger:  logger.With(slog.String("component", "objectstore")),
	}
}

// Bucket возвращает имя бакета уровня хранения.
func (c *Client) Bucket(tier Tier) string {
	if tier == TierPrivate {
		return c.opts.PrivateBucket
	}
	return c.opts.PublicBucket
}

// SignedURLTTL возвращает срок действия подписанных ссылок.
func (c *Client) SignedURLTTL() time.Duration {
	return c.opts.SignedURLTTL
}

// Put записывает объект в бакет уровня tier.
func (c *Client) Put(ctx context.Context, tier Tier, key string, body io.ReadSeeker, size int64, contentType string) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := c.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.Bucket(tier)),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("ошибка записи объекта %s: %w", key, describeError(err))
	}

	c.logger.Debug("Объект записан",
		slog.String("tier", string(tier)),
		slog.String("key", key),
		slog.Int64("size", size),
	)
	return nil
}

// PublicURL возвращает прямую бессрочную ссылку на объект публичного бакета.
// Сегменты ключа экранируются.
func (c *Client) PublicURL(key string) string {
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return c.opts.PublicBaseURL + "/" + strings.Join(segments, "/")
}

// PresignGet возвращает подписанную ссылку на объект приватного бакета
// и момент истечения её срока действия.
func (c *Client) PresignGet(ctx context.Context, key string, opts PresignOptions) (string, time.Time, error) {
	input := &s3.GetObjectInput{
		Bucket: aws.String(c.opts.PrivateBucket),
		Key:    aws.String(key),
	}
	if opts.ContentDisposition != "" {
		input.ResponseContentDisposition = aws.String(opts.ContentDisposition)
	}
	if opts.ContentType != "" {
		input.ResponseContentType = aws.String(opts.ContentType)
	}

	signedAt := time.Now()
	req, err := c.presign.PresignGetObject(ctx, input, s3.WithPresignExpires(c.opts.SignedURLTTL))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("ошибка подписи ссылки: %w", err)
	}
	return req.URL, signedAt.Add(c.opts.SignedURLTTL).UTC(), nil
}

// CheckReady проверяет доступность обоих бакетов через HeadBucket.
// Возвращает статус ("ok", "fail") и сообщение.
func (c *Client) CheckReady() (status string, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	for _, tier := range []Tier{TierPublic, TierPrivate} {
		_, err := c.s3.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(c.Bucket(tier))})
		if err != nil {
			return "fail", fmt.Sprintf("бакет %s недоступен: %v", tier, describeError(err))
		}
	}
	return "ok", "бакеты доступны"
}

// describeError сокращает ошибку API хранилища до кода и сообщения.
func describeError(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s: %s: %w", apiErr.ErrorCode(), apiErr.ErrorMessage(), err)
	}
	return err
}
