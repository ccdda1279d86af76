// health.go — обработчики health endpoints.
// /health/live — liveness probe (процесс жив)
// /health/ready — readiness probe (PostgreSQL, объектное хранилище, JWKS)
// /metrics — Prometheus метрики
package handlers

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bigkaa/resportal/internal/config"
)

// ReadinessChecker — интерфейс проверки готовности зависимости.
type ReadinessChecker interface {
	// CheckReady возвращает статус ("ok", "degraded", "fail") и сообщение.
	CheckReady() (status string, message string)
}

// DependencyHealth — состояние зависимостей из мониторинга topologymetrics.
type DependencyHealth interface {
	Health() map[string]bool
}

// HealthHandler — обработчик health endpoints.
type HealthHandler struct {
	pgChecker    ReadinessChecker
	storeChecker ReadinessChecker
	authChecker  ReadinessChecker
	deps         DependencyHealth
	promHandler  http.Handler
}

// NewHealthHandler создаёт обработчик health endpoints.
// pgChecker и storeChecker обязательны для готовности (nil — "fail").
// authChecker (JWKS) и deps могут быть nil: HS256-режим не зависит от провайдера.
func NewHealthHandler(pgChecker, storeChecker, authChecker ReadinessChecker, deps DependencyHealth) *HealthHandler {
	return &HealthHandler{
		pgChecker:    pgChecker,
		storeChecker: storeChecker,
		authChecker:  authChecker,
		deps:         deps,
		promHandler:  promhttp.Handler(),
	}
}

// healthCheckResult — результат проверки одной зависимости.
type healthCheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type healthLiveResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
	Service   string `json:"service"`
}

type healthReadyResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
	Service   string `json:"service"`
	Checks    struct {
		PostgreSQL  healthCheckResult  `json:"postgresql"`
		ObjectStore healthCheckResult  `json:"objectStore"`
		Auth        *healthCheckResult `json:"auth,omitempty"`
	} `json:"checks"`
	Dependencies map[string]bool `json:"dependencies,omitempty"`
}

// HealthLive — liveness probe. Возвращает 200 если процесс жив.
func (h *HealthHandler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthLiveResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   config.Version,
		Service:   "resportal",
	})
}

func check(c ReadinessChecker) healthCheckResult {
	if c == nil {
		return healthCheckResult{Status: "fail", Message: "не инициализирован"}
	}
	status, msg := c.CheckReady()
	return healthCheckResult{Status: status, Message: msg}
}

// HealthReady — readiness probe.
// Возвращает 200 (ok/degraded) или 503 (fail).
func (h *HealthHandler) HealthReady(w http.ResponseWriter, _ *http.Request) {
	resp := healthReadyResponse{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   config.Version,
		Service:   "resportal",
	}

	resp.Checks.PostgreSQL = check(h.pgChecker)
	resp.Checks.ObjectStore = check(h.storeChecker)
	statuses := []string{resp.Checks.PostgreSQL.Status, resp.Checks.ObjectStore.Status}

	if h.authChecker != nil {
		res := check(h.authChecker)
		resp.Checks.Auth = &res
		statuses = append(statuses, res.Status)
	}
	if h.deps != nil {
		resp.Dependencies = h.deps.Health()
	}

	resp.Status = overallStatus(statuses...)

	status := http.StatusOK
	if resp.Status == "fail" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// GetMetrics — Prometheus метрики.
func (h *HealthHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.promHandler.ServeHTTP(w, r)
}

// overallStatus определяет итоговый статус из статусов зависимостей.
// Если хотя бы одна зависимость fail — итог fail.
// Если хотя бы одна degraded — итог degraded.
// Иначе — ok.
func overallStatus(statuses ...string) string {
	hasDegraded := false
	for _, s := range statuses {
		if s == "fail" {
			return "fail"
		}
		if s == "degraded" {
			hasDegraded = true
		}
	}
	if hasDegraded {
		return "degraded"
	}
	return "ok"
}
