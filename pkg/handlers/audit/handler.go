package audit

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/de-tools/kmp-audit/pkg/adapters"
	"github.com/de-tools/kmp-audit/pkg/models/api"
	"github.com/de-tools/kmp-audit/pkg/models/domain"
	"github.com/de-tools/kmp-audit/pkg/services/audit"
	"github.com/de-tools/kmp-audit/pkg/services/batch"
	"github.com/de-tools/kmp-audit/pkg/services/gather"
	"github.com/de-tools/kmp-audit/pkg/store/duckdb/results"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

const (
	maxBodySize     = 16 << 20
	defaultRunLimit = 50
)

type Handler struct {
	analyzer *audit.Analyzer
	results  results.Store
	runs     batch.Controller
}

func NewHandler(analyzer *audit.Analyzer, results results.Store, runs batch.Controller) *Handler {
	return &Handler{
		analyzer: analyzer,
		results:  results,
		runs:     runs,
	}
}

// AnalyzePackage grades the package facts posted as JSON. Facts missing
// required fields are answered with 422 and the synthetic malformed verdict.
func (h *Handler) AnalyzePackage(w http.ResponseWriter, r *http.Request) {
	logger := zerolog.Ctx(r.Context())

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	facts, err := gather.DecodePackageFacts(body, gather.FormatJSON, "")
	if err != nil {
		logger.Warn().Err(err).Msg("malformed package facts")
		writeJSON(w, r, http.StatusUnprocessableEntity, adapters.MapPackageVerdictDomainToApi(audit.MalformedVerdict(facts, err)))
		return
	}

	verdict := h.analyzer.AnalyzePackage(facts)
	writeJSON(w, r, http.StatusOK, adapters.MapPackageVerdictDomainToApi(verdict))
}

// AnalyzeModules grades a list of running modules.
func (h *Handler) AnalyzeModules(w http.ResponseWriter, r *http.Request) {
	logger := zerolog.Ctx(r.Context())

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	modules, err := gather.DecodeModuleFacts(body, gather.FormatJSON, "request")
	if err != nil {
		logger.Warn().Err(err).Msg("malformed module facts")
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	verdicts := make([]domain.ModuleVerdict, 0, len(modules))
	for _, m := range modules {
		verdicts = append(verdicts, h.analyzer.AnalyzeLiveModule(m))
	}
	writeJSON(w, r, http.StatusOK, adapters.MapModuleVerdictsDomainToApi(verdicts))
}

func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := zerolog.Ctx(ctx)

	limit := defaultRunLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			http.Error(w, "invalid 'limit'. Expected a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	runs, err := h.results.ListRuns(ctx, limit)
	if err != nil {
		logger.Error().Err(err).Msg("failed to list runs")
		http.Error(w, "failed to list runs", http.StatusInternalServerError)
		return
	}

	response := make([]api.Run, 0, len(runs))
	for _, run := range runs {
		response = append(response, adapters.MapRunStoreToApi(run))
	}
	writeJSON(w, r, http.StatusOK, response)
}

func (h *Handler) StartRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := zerolog.Ctx(ctx)

	var req api.StartRunRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	request := batch.Request{Mode: req.Mode, Path: req.Path, Hosts: req.Hosts}
	if err := request.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	run, err := h.runs.Start(ctx, request)
	if err != nil {
		logger.Error().Err(err).Str("mode", req.Mode).Msg("failed to start run")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, r, http.StatusAccepted, adapters.MapRunStoreToApi(*run))
}

func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "run")

	run, err := h.results.GetRun(ctx, id)
	if err != nil {
		h.storeError(w, r, err, id)
		return
	}
	writeJSON(w, r, http.StatusOK, adapters.MapRunStoreToApi(*run))
}

func (h *Handler) CancelRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "run")
	if err := h.runs.Cancel(r.Context(), id); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetResults(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "run")

	if _, err := h.results.GetRun(ctx, id); err != nil {
		h.storeError(w, r, err, id)
		return
	}
	rows, err := h.results.GetResults(ctx, id)
	if err != nil {
		h.storeError(w, r, err, id)
		return
	}

	response := make([]api.RunResult, 0, len(rows))
	for _, row := range rows {
		response = append(response, adapters.MapResultStoreToApi(row))
	}
	writeJSON(w, r, http.StatusOK, response)
}

func (h *Handler) storeError(w http.ResponseWriter, r *http.Request, err error, run string) {
	if errors.Is(err, results.ErrRunNotFound) {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}
	zerolog.Ctx(r.Context()).Error().Err(err).Str("run", run).Msg("failed to read run")
	http.Error(w, "failed to read run", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("failed to encode response")
	}
}
