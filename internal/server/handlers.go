// File: internal/server/handlers.go
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/smellak/browser-worker-agent/api/schemas"
	"github.com/smellak/browser-worker-agent/internal/config"
	"github.com/smellak/browser-worker-agent/internal/store"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	maxRequestBody   = 1 << 20
	archiveTimeout   = 10 * time.Second
	livenessMessage  = "Browser Worker Agent alive"
	archiveDisabled  = "run archive is disabled"
	errBusyOrClosing = "no run slot available: request cancelled or server shutting down"
)

// Runner executes one navigation run. *agent.Navigator satisfies it.
type Runner interface {
	Run(ctx context.Context, startURL, goal string, maxSteps int) schemas.RunResult
}

// Handlers serves the agent's HTTP API.
type Handlers struct {
	log      *zap.Logger
	runner   Runner
	store    schemas.RunStore
	agentCfg config.AgentConfig
	// requestTimeout bounds a run request from slot wait to response.
	requestTimeout time.Duration
	sem            *semaphore.Weighted
}

// NewHandlers creates the API handlers. runner may be nil only when the
// credential check is expected to fail; store may be nil to disable the
// archive. At most serverCfg.MaxConcurrentRuns runs (each owning a browser)
// execute at once.
func NewHandlers(logger *zap.Logger, runner Runner, runStore schemas.RunStore, agentCfg config.AgentConfig, serverCfg config.ServerConfig) *Handlers {
	maxConcurrentRuns := serverCfg.MaxConcurrentRuns
	if maxConcurrentRuns <= 0 {
		maxConcurrentRuns = 1
	}
	return &Handlers{
		log:            logger.Named("http_handlers"),
		runner:         runner,
		store:          runStore,
		agentCfg:       agentCfg,
		requestTimeout: serverCfg.RequestTimeout,
		sem:            semaphore.NewWeighted(int64(maxConcurrentRuns)),
	}
}

// RegisterRoutes mounts the API on r.
func (h *Handlers) RegisterRoutes(r chi.Router) {
	r.Get("/", h.HandleRoot)
	r.Get("/healthz", h.HandleHealthCheck)
	r.Post("/run-agent", h.HandleRunAgent)
	r.Get("/runs/{runID}", h.HandleGetRun)
}

// statusResponse is the body of the liveness endpoint.
type statusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// errorResponse is the body of every non-2xx JSON response.
type errorResponse struct {
	Detail string `json:"detail"`
}

// HandleRoot reports that the service is alive.
func (h *Handlers) HandleRoot(w http.ResponseWriter, r *http.Request) {
	h.respondWithJSON(w, http.StatusOK, statusResponse{Status: "ok", Message: livenessMessage})
}

// HandleHealthCheck answers orchestrator health checks in plain text.
func (h *Handlers) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// HandleRunAgent validates the request, runs the navigation loop to
// completion and returns its RunResult. Run-level failures are reported inside
// the result with a 200; only invalid input and missing credentials fail the
// request.
func (h *Handlers) HandleRunAgent(w http.ResponseWriter, r *http.Request) {
	var req schemas.RunRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusUnprocessableEntity, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	startURL, goal, maxSteps, err := validateRunRequest(req, h.agentCfg)
	if err != nil {
		h.respondWithError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if err := h.agentCfg.LLM.ValidateCredentials(); err != nil || h.runner == nil {
		if err == nil {
			err = errors.New("navigation runner is not configured")
		}
		h.log.Error("Refusing run, oracle is not usable.", zap.Error(err))
		h.respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// The deadline reaches the navigator, which reports expiry inside the
	// RunResult, so the response is always written exactly once here.
	ctx := r.Context()
	if h.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.requestTimeout)
		defer cancel()
	}
	if err := h.sem.Acquire(ctx, 1); err != nil {
		h.respondWithError(w, http.StatusServiceUnavailable, errBusyOrClosing)
		return
	}
	defer h.sem.Release(1)

	h.log.Info("Received run request", zap.String("url", startURL), zap.String("goal", goal), zap.Int("max_steps", maxSteps))
	result := h.runner.Run(ctx, startURL, goal, maxSteps)
	h.archive(ctx, result)

	h.respondWithJSON(w, http.StatusOK, result)
}

// HandleGetRun returns an archived run by ID.
func (h *Handlers) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		h.respondWithError(w, http.StatusNotFound, archiveDisabled)
		return
	}

	runID := chi.URLParam(r, "runID")
	result, err := h.store.GetRun(r.Context(), runID)
	if errors.Is(err, store.ErrRunNotFound) {
		h.respondWithError(w, http.StatusNotFound, fmt.Sprintf("run %s not found", runID))
		return
	}
	if err != nil {
		h.log.Error("Failed to load archived run", zap.String("run_id", runID), zap.Error(err))
		h.respondWithError(w, http.StatusInternalServerError, "failed to load run")
		return
	}
	h.respondWithJSON(w, http.StatusOK, result)
}

// archive stores result when the archive is enabled. The caller's response
// does not depend on it, so failures are only logged.
func (h *Handlers) archive(ctx context.Context, result schemas.RunResult) {
	if h.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), archiveTimeout)
	defer cancel()
	if err := h.store.SaveRun(ctx, result); err != nil {
		h.log.Error("Failed to archive run", zap.String("run_id", result.RunID), zap.Error(err))
	}
}

// validateRunRequest applies defaults and bounds to an inbound request.
func validateRunRequest(req schemas.RunRequest, agentCfg config.AgentConfig) (startURL, goal string, maxSteps int, err error) {
	startURL = strings.TrimSpace(req.URL)
	u, parseErr := url.Parse(startURL)
	if startURL == "" || parseErr != nil {
		return "", "", 0, fmt.Errorf("url: must be a valid absolute http or https URL")
	}
	if scheme := strings.ToLower(u.Scheme); (scheme != "http" && scheme != "https") || u.Host == "" {
		return "", "", 0, fmt.Errorf("url: must be a valid absolute http or https URL")
	}

	goal = strings.TrimSpace(req.Goal)
	if goal == "" {
		return "", "", 0, fmt.Errorf("goal: must not be empty")
	}

	maxSteps = agentCfg.DefaultMaxSteps
	if maxSteps <= 0 {
		maxSteps = schemas.DefaultMaxSteps
	}
	if req.MaxSteps != nil {
		maxSteps = *req.MaxSteps
	}
	if maxSteps < 1 {
		return "", "", 0, fmt.Errorf("max_steps: must be at least 1")
	}
	if agentCfg.MaxStepsLimit > 0 && maxSteps > agentCfg.MaxStepsLimit {
		return "", "", 0, fmt.Errorf("max_steps: must be at most %d", agentCfg.MaxStepsLimit)
	}
	return startURL, goal, maxSteps, nil
}

// respondWithError sends a JSON error body.
func (h *Handlers) respondWithError(w http.ResponseWriter, statusCode int, message string) {
	h.respondWithJSON(w, statusCode, errorResponse{Detail: message})
}

func (h *Handlers) respondWithJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error("Failed to encode response", zap.Error(err))
	}
}
