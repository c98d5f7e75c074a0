package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/skill-engine/internal/engine"
	"github.com/sells-group/skill-engine/internal/evaluator"
	"github.com/sells-group/skill-engine/internal/generator"
	"github.com/sells-group/skill-engine/internal/model"
	"github.com/sells-group/skill-engine/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		api := &apiServer{
			store:     st,
			runtime:   engine.NewRuntime(st, cfg.Engine.LowConfidenceThreshold),
			generator: generator.New(st, cfg.Generator.Seed),
		}
		api.evaluator = evaluator.New(st, api.runtime, cfg.Benchmark.CheckpointEvery)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           api.router(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			// The signal context is already canceled; give in-flight
			// requests their own drain window.
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

type apiServer struct {
	store     store.Store
	runtime   *engine.Runtime
	generator *generator.Generator
	evaluator *evaluator.Evaluator
}

func (a *apiServer) router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))
	r.Use(rateLimit(rate.Limit(cfg.Server.RatePerSecond), cfg.Server.RateBurst))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/parse", a.handleParse)

		r.Get("/skills", a.handleListSkills)
		r.Post("/skills", a.handleCreateSkill)
		r.Get("/skills/{ref}", a.handleGetSkill)
		r.Put("/skills/{ref}/status", a.handleSkillStatus)

		r.Get("/datasets", a.handleListDatasets)
		r.Post("/datasets", a.handleCreateDataset)
		r.Post("/datasets/{code}/generate", a.handleGenerate)

		r.Post("/runs", a.handleCreateRun)
		r.Post("/runs/{code}/execute", a.handleExecuteRun)
		r.Get("/runs/{code}", a.handleGetRun)
		r.Get("/runs/{code}/metrics", a.handleRunMetrics)
		r.Get("/runs/{code}/results", a.handleRunResults)

		r.Get("/executions", a.handleListExecutions)
	})

	return r
}

func (a *apiServer) handleParse(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	resp, err := a.runtime.Execute(r.Context(), req.Text)
	if err != nil {
		zap.L().Error("parse request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "parse failed")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *apiServer) handleListSkills(w http.ResponseWriter, r *http.Request) {
	skills, err := a.store.ListSkills(r.Context(),
		r.URL.Query().Get("domain"),
		model.SkillStatus(r.URL.Query().Get("status")),
	)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, skills)
}

func (a *apiServer) handleCreateSkill(w http.ResponseWriter, r *http.Request) {
	var skill model.Skill
	if err := json.NewDecoder(r.Body).Decode(&skill); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if skill.DSL == nil {
		writeError(w, http.StatusBadRequest, "dsl payload is required")
		return
	}
	if err := skill.DSL.Validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	skill.DSL.Compile()
	if skill.ID == "" {
		skill.ID = uuid.NewString()
	}
	if skill.Status == "" {
		skill.Status = model.SkillDraft
	}
	if skill.DSLVersion == "" {
		skill.DSLVersion = "1.0"
	}
	if skill.Domain == "" {
		skill.Domain = skill.DSL.Domain
	}

	if err := a.store.PutSkill(r.Context(), &skill); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, skill)
}

func (a *apiServer) handleGetSkill(w http.ResponseWriter, r *http.Request) {
	skill, err := a.store.GetSkill(r.Context(), chi.URLParam(r, "ref"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, skill)
}

func (a *apiServer) handleSkillStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status model.SkillStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	switch req.Status {
	case model.SkillDraft, model.SkillTesting, model.SkillActive, model.SkillDeprecated:
	default:
		writeError(w, http.StatusBadRequest, "unknown status")
		return
	}
	if err := a.store.UpdateSkillStatus(r.Context(), chi.URLParam(r, "ref"), req.Status); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(req.Status)})
}

func (a *apiServer) handleListDatasets(w http.ResponseWriter, r *http.Request) {
	datasets, err := a.store.ListDatasets(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, datasets)
}

func (a *apiServer) handleCreateDataset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code    string `json:"code"`
		Name    string `json:"name"`
		SkillID string `json:"skillId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Code == "" {
		writeError(w, http.StatusBadRequest, "code is required")
		return
	}
	if req.Name == "" {
		req.Name = req.Code
	}
	dataset := &model.Dataset{
		ID:         uuid.NewString(),
		Code:       req.Code,
		Name:       req.Name,
		SkillID:    req.SkillID,
		SourceType: model.DatasetGenerated,
		Status:     model.DatasetDraft,
		CreatedAt:  time.Now().UTC(),
	}
	if err := a.store.CreateDataset(r.Context(), dataset); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, dataset)
}

func (a *apiServer) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SkillID      string         `json:"skillId"`
		Count        int            `json:"count"`
		Distribution map[string]int `json:"distribution"`
		IncludeNoise bool           `json:"includeNoise"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SkillID == "" {
		writeError(w, http.StatusBadRequest, "skillId is required")
		return
	}
	if req.Count <= 0 {
		req.Count = 50
	}

	stats, err := a.generator.GenerateFromSkill(r.Context(), req.SkillID, chi.URLParam(r, "code"), generator.Options{
		Count:                  req.Count,
		DifficultyDistribution: req.Distribution,
		IncludeNoise:           req.IncludeNoise,
	})
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (a *apiServer) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Dataset        string   `json:"dataset"`
		Name           string   `json:"name"`
		Tolerance      *float64 `json:"tolerance"`
		SkipSkillMatch bool     `json:"skipSkillMatch"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Dataset == "" {
		writeError(w, http.StatusBadRequest, "dataset is required")
		return
	}
	tolerance := cfg.Benchmark.Tolerance
	if req.Tolerance != nil {
		tolerance = *req.Tolerance
	}

	run, err := a.evaluator.CreateRun(r.Context(), req.Dataset, req.Name, model.EvalConfig{
		Tolerance:      tolerance,
		PartialMatch:   cfg.Benchmark.PartialMatch,
		SkipSkillMatch: req.SkipSkillMatch || cfg.Benchmark.SkipSkillMatch,
	})
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, run)
}

func (a *apiServer) handleExecuteRun(w http.ResponseWriter, r *http.Request) {
	run, err := a.evaluator.ExecuteRun(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (a *apiServer) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := a.store.GetRun(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (a *apiServer) handleRunMetrics(w http.ResponseWriter, r *http.Request) {
	metrics, err := a.evaluator.Metrics(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, metrics)
}

func (a *apiServer) handleRunResults(w http.ResponseWriter, r *http.Request) {
	run, err := a.store.GetRun(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	var filter store.ResultFilter
	for _, status := range r.URL.Query()["status"] {
		filter.Statuses = append(filter.Statuses, model.ResultStatus(status))
	}
	if limit := r.URL.Query().Get("limit"); limit != "" {
		filter.Limit, _ = strconv.Atoi(limit)
	}
	if offset := r.URL.Query().Get("offset"); offset != "" {
		filter.Offset, _ = strconv.Atoi(offset)
	}

	results, err := a.store.ListResults(r.Context(), run.ID, filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (a *apiServer) handleListExecutions(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	recs, err := a.store.ListExecutionRecords(r.Context(), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

// rateLimit enforces a per-client-IP token bucket.
func rateLimit(limit rate.Limit, burst int) func(http.Handler) http.Handler {
	var mu sync.Mutex
	limiters := map[string]*rate.Limiter{}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			host, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				host = r.RemoteAddr
			}

			mu.Lock()
			limiter, ok := limiters[host]
			if !ok {
				limiter = rate.NewLimiter(limit, burst)
				limiters[host] = limiter
			}
			mu.Unlock()

			if !limiter.Allow() {
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
