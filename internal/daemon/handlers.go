package daemon

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"hikfetch/internal/api"
	"hikfetch/internal/catalog"
	"hikfetch/internal/logging"
)

const (
	maxSubmitBody       = 64 << 10
	defaultArchiveLimit = 100
)

func (s *apiServer) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req api.SubmitRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSubmitBody))
	if err := decoder.Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	params, err := req.Params(s.cfg.Device.DefaultChannel)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	params.DeviceURL = s.cfg.Device.URL
	params.Username = s.cfg.Device.Username
	params.Password = s.cfg.Device.Password

	snap := s.daemon.jobs.Submit(params)
	logging.WithContext(r.Context(), s.log()).Info("job submitted",
		logging.String(logging.FieldJobID, snap.ID),
		logging.String(logging.FieldDisplayCode, snap.DisplayCode),
		logging.String("start", params.Start),
		logging.String("end", params.End),
		logging.Int("channel", params.Channel),
		logging.String("media", string(params.Media)),
	)
	s.writeJSON(w, http.StatusAccepted, api.SubmitResponse{
		JobID:       snap.ID,
		DisplayCode: snap.DisplayCode,
		Job:         api.FromSnapshot(snap),
	})
}

func (s *apiServer) handleListJobs(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, api.JobListResponse{Jobs: api.FromSnapshots(s.daemon.jobs.List())})
}

func (s *apiServer) handleGetJob(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.daemon.jobs.Get(chi.URLParam(r, "id"))
	if !ok {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromSnapshot(snap))
}

func (s *apiServer) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.daemon.jobs.Cancel(id) {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}
	snap, _ := s.daemon.jobs.Get(id)
	job := api.FromSnapshot(snap)
	s.writeJSON(w, http.StatusOK, api.CancelResponse{Status: job.State, Job: job})
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.daemon.Status(r.Context())
	counts := make(map[string]int, len(status.JobCounts))
	for state, n := range status.JobCounts {
		counts[string(state)] = n
	}
	payload := api.DaemonStatus{
		Running:      status.Running,
		PID:          status.PID,
		LockFilePath: status.LockFilePath,
		ArchiveDir:   s.cfg.Paths.ArchiveDir,
		DeviceURL:    s.cfg.Device.URL,
		JobCounts:    counts,
		Preflight:    api.FromPreflight(status.Preflight),
	}
	if status.CatalogPath != "" {
		catalogStatus := &api.CatalogStatus{Path: status.CatalogPath}
		if status.CatalogStats != nil {
			catalogStatus.Files = status.CatalogStats.Files
			catalogStatus.Bytes = status.CatalogStats.Bytes
		}
		if status.CatalogError != nil {
			catalogStatus.Error = status.CatalogError.Error()
		}
		payload.Catalog = catalogStatus
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *apiServer) handleArchive(w http.ResponseWriter, r *http.Request) {
	store := s.daemon.catalog
	if store == nil {
		s.writeError(w, http.StatusServiceUnavailable, "archive catalog is disabled")
		return
	}

	filter := catalog.Filter{
		JobID: strings.TrimSpace(r.URL.Query().Get("job")),
		Limit: defaultArchiveLimit,
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		filter.Limit = limit
	}

	entries, err := store.List(r.Context(), filter)
	if err != nil {
		logging.ErrorWithContext(logging.WithContext(r.Context(), s.log()), "archive listing failed", "archive_list_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the catalog database file"),
		)
		s.writeError(w, http.StatusInternalServerError, "list archive: "+err.Error())
		return
	}
	files := make([]api.ArchiveEntry, 0, len(entries))
	for _, entry := range entries {
		files = append(files, api.FromCatalogEntry(entry))
	}
	s.writeJSON(w, http.StatusOK, api.ArchiveListResponse{Files: files})
}
