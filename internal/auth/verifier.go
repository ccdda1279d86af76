// Пакет auth — проверка bearer-токенов внешнего провайдера аутентификации
// и вычисление идентичности зрителя (Viewer) по токену и профилю.
// Токены не выпускаются этим сервисом.
package auth

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

// Ошибки проверки токена.
var (
	// ErrNoToken — заголовок Authorization отсутствует или не Bearer.
	ErrNoToken = errors.New("токен отсутствует")
	// ErrInvalidToken — подпись, срок действия или claims не прошли проверку.
	ErrInvalidToken = errors.New("невалидный токен")
)

// Claims — извлечённые из токена данные пользователя.
type Claims struct {
	// Subject — sub (id пользователя у провайдера)
	Subject string
	Email   string
}

// providerClaims — raw claims токена провайдера.
type providerClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

// Verifier проверяет подпись и срок действия JWT.
type Verifier struct {
	keyfunc func(ctx context.Context) jwt.Keyfunc
	methods []string
	issuer  string
	leeway  time.Duration
	logger  *slog.Logger
}

// NewJWKSVerifier создаёт Verifier с ключами из JWKS endpoint провайдера.
// Ключи обновляются в фоне, старт не блокируется недоступностью провайдера.
func NewJWKSVerifier(
	jwksURL string,
	caCertPath string,
	issuer string,
	clientTimeout time.Duration,
	refreshInterval time.Duration,
	leeway time.Duration,
	logger *slog.Logger,
) (*Verifier, error) {
	httpClient := &http.Client{Timeout: clientTimeout}
	if caCertPath != "" {
		var err error
		httpClient, err = httpClientWithCA(caCertPath, clientTimeout)
		if err != nil {
			return nil, fmt.Errorf("загрузка CA-сертификата %s: %w", caCertPath, err)
		}
		logger.Info("CA-сертификат для JWKS добавлен в пул доверия",
			slog.String("ca_cert", caCertPath),
		)
	}

	storage, err := jwkset.NewStorageFromHTTP(jwksURL, jwkset.HTTPClientStorageOptions{
		Client:                    httpClient,
		NoErrorReturnFirstHTTPReq: true,
		RefreshInterval:           refreshInterval,
		RefreshErrorHandler: func(_ context.Context, err error) {
			logger.Error("Ошибка обновления JWKS",
				slog.String("error", err.Error()),
				slog.String("url", jwksURL),
			)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("создание JWKS storage: %w", err)
	}

	k, err := keyfunc.New(keyfunc.Options{Storage: storage})
	if err != nil {
		return nil, fmt.Errorf("создание keyfunc: %w", err)
	}

	return NewVerifierWithKeyfunc(k, issuer, leeway, logger), nil
}

// NewVerifierWithKeyfunc создаёт Verifier с готовым keyfunc.
// Используется в тестах (keyfunc.NewJWKSetJSON).
func NewVerifierWithKeyfunc(kf keyfunc.Keyfunc, issuer string, leeway time.Duration, logger *slog.Logger) *Verifier {
	return &Verifier{
		keyfunc: kf.KeyfuncCtx,
		methods: []string{"RS256", "ES256"},
		issuer:  issuer,
		leeway:  leeway,
		logger:  logger.With(slog.String("component", "jwt_verifier")),
	}
}

// NewHS256Verifier создаёт Verifier с общим секретом HS256.
func NewHS256Verifier(secret, issuer string, leeway time.Duration, logger *slog.Logger) *Verifier {
	key := []byte(secret)
	return &Verifier{
		keyfunc: func(context.Context) jwt.Keyfunc {
			return func(*jwt.Token) (any, error) { return key, nil }
		},
		methods: []string{"HS256"},
		issuer:  issuer,
		leeway:  leeway,
		logger:  logger.With(slog.String("component", "jwt_verifier")),
	}
}

// Verify проверяет токен и возвращает claims.
// Любая ошибка проверки сводится к ErrInvalidToken.
func (v *Verifier) Verify(ctx context.Context, tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrNoToken
	}

	raw := &providerClaims{}
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods(v.methods),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
	}
	if v.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, raw, v.keyfunc(ctx), parserOpts...)
	if err != nil {
		v.logger.Debug("JWT валидация не пройдена", slog.String("error", err.Error()))
		return nil, ErrInvalidToken
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	subject, err := raw.GetSubject()
	if err != nil || subject == "" {
		return nil, ErrInvalidToken
	}

	return &Claims{Subject: subject, Email: raw.Email}, nil
}

// BearerToken извлекает токен из заголовка Authorization.
// Возвращает пустую строку, если заголовок отсутствует или не Bearer.
func BearerToken(header string) string {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// httpClientWithCA создаёт HTTP-клиент с кастомным CA-сертификатом.
func httpClientWithCA(caCertPath string, timeout time.Duration) (*http.Client, error) {
	caCert, err := os.ReadFile(caCertPath)
	if err != nil {
		return nil, err
	}

	caCertPool, err := x509.SystemCertPool()
	if err != nil {
		caCertPool = x509.NewCertPool()
	}
	caCertPool.AppendCertsFromPEM(caCert)

	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				RootCAs: caCertPool,
			},
		},
	}, nil
}
