package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"hikfetch/internal/api"
	"hikfetch/internal/config"
	"hikfetch/internal/services"
)

func TestClientSendsBearerToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(api.JobListResponse{Jobs: []api.Job{{ID: "a", State: "pending"}}})
	}))
	defer srv.Close()

	client := api.NewClient(srv.URL+"/", api.WithToken("s3cret"))
	jobs, err := client.ListJobs(context.Background())
	if err != nil {
		t.Fatalf("ListJobs returned error: %v", err)
	}
	if len(jobs) != 1 || jobs[0].ID != "a" {
		t.Fatalf("unexpected jobs %+v", jobs)
	}
	if gotAuth != "Bearer s3cret" {
		t.Fatalf("unexpected Authorization header %q", gotAuth)
	}
}

func TestClientSubmitPostsForm(t *testing.T) {
	var got api.SubmitRequest
	var gotUser, gotPass string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/jobs" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		gotUser, gotPass, _ = r.BasicAuth()
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(api.SubmitResponse{JobID: "job-1", DisplayCode: "ABCD1234"})
	}))
	defer srv.Close()

	client := api.NewClient(srv.URL, api.WithBasicAuth("viewer", "pw"))
	resp, err := client.Submit(context.Background(), api.SubmitRequest{
		StartDate: "2024-03-01", StartTime: "10:00",
		EndDate: "2024-03-01", EndTime: "11:00",
		Channel: 2,
	})
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if resp.JobID != "job-1" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if got.StartDate != "2024-03-01" || got.Channel != 2 {
		t.Fatalf("server saw %+v", got)
	}
	if gotUser != "viewer" || gotPass != "pw" {
		t.Fatalf("unexpected basic auth %q/%q", gotUser, gotPass)
	}
}

func TestClientDecodesErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"job not found"}`))
	}))
	defer srv.Close()

	_, err := api.NewClient(srv.URL).GetJob(context.Background(), "missing")
	if err == nil {
		t.Fatal("expected error")
	}
	if !api.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err.Error() != "daemon returned 404: job not found" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestStatusErrorMarkers(t *testing.T) {
	tests := []struct {
		code int
		want error
	}{
		{http.StatusNotFound, services.ErrNotFound},
		{http.StatusBadRequest, services.ErrValidation},
		{http.StatusUnauthorized, services.ErrUnauthorized},
		{http.StatusBadGateway, services.ErrTransient},
	}
	for _, tc := range tests {
		err := error(&api.StatusError{StatusCode: tc.code})
		if !errors.Is(err, tc.want) {
			t.Fatalf("status %d: expected %v marker", tc.code, tc.want)
		}
	}
	if api.IsNotFound(&api.StatusError{StatusCode: http.StatusConflict}) {
		t.Fatal("409 should not count as not found")
	}
}

func TestClientArchiveQuery(t *testing.T) {
	var rawQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawQuery = r.URL.RawQuery
		_ = json.NewEncoder(w).Encode(api.ArchiveListResponse{})
	}))
	defer srv.Close()

	if _, err := api.NewClient(srv.URL).Archive(context.Background(), "job-9", 5); err != nil {
		t.Fatalf("Archive returned error: %v", err)
	}
	if rawQuery != "job=job-9&limit=5" {
		t.Fatalf("unexpected query %q", rawQuery)
	}
}

func TestNewClientFromConfig(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.API.Bind = srv.Listener.Addr().String()
	cfg.API.AuthMethod = config.AuthToken
	cfg.API.Token = "tok"

	if err := api.NewClientFromConfig(&cfg).Health(context.Background()); err != nil {
		t.Fatalf("Health returned error: %v", err)
	}
	if gotAuth != "Bearer tok" {
		t.Fatalf("unexpected Authorization header %q", gotAuth)
	}
}
