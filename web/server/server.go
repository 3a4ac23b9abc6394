// Package server exposes the tracer over HTTP: render jobs with live console
// streams, the run catalog, single-pixel inspection and Prometheus metrics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"sync"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"github.com/df07/go-grrt/pkg/catalog"
	"github.com/df07/go-grrt/pkg/config"
	"github.com/df07/go-grrt/pkg/device"
	"github.com/df07/go-grrt/pkg/metrics"
	"github.com/df07/go-grrt/pkg/scene"
)

// Config for the HTTP API handler.
type Config struct {
	Jobs     *Manager
	Catalog  *catalog.Repo // nil disables the runs endpoints
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"invalid_run"`
	Message string         `json:"message" example:"invalid spin: must be in [0, 1)"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the tracer API.
func New(cfg Config) (http.Handler, error) {
	if cfg.Jobs == nil {
		return nil, errors.New("server: job manager required")
	}
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v1"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(newAuthMiddleware(basePath, cfg.Auth))
	hcfg := huma.DefaultConfig("GRRT API", "1.0.0")
	hcfg.OpenAPIPath = ""
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerScenes(group)
	registerJobs(group, cfg.Jobs)
	registerRuns(group, cfg.Catalog)
	registerInspect(group)
	registerOpenAPI(router, api, basePath)

	router.Get(path.Join(basePath, "jobs/{id}/events"), handleJobEvents(cfg.Jobs))
	router.Get(path.Join(basePath, "jobs/{id}/output"), handleJobOutput(cfg.Jobs))
	router.Handle("/metrics", metrics.Handler())

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var ce *config.Error
	if errors.As(err, &ce) {
		return newAPIError(http.StatusBadRequest, "invalid_run", err.Error(), map[string]any{"field": ce.Field})
	}
	switch {
	case errors.Is(err, scene.ErrUnknownScene):
		return newAPIError(http.StatusNotFound, "unknown_scene", err.Error(), nil)
	case errors.Is(err, catalog.ErrNotFound):
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	case errors.Is(err, ErrJobFinished):
		return newAPIError(http.StatusConflict, "job_finished", err.Error(), nil)
	case errors.Is(err, device.ErrNoDevice):
		return newAPIError(http.StatusBadRequest, "no_device", err.Error(), nil)
	}
	msg := err.Error()
	if strings.Contains(strings.ToLower(msg), "invalid") {
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	}
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var (
		once sync.Once
		doc  []byte
	)
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		once.Do(func() { doc, _ = json.Marshal(api.OpenAPI()) })
		w.Header().Set("Content-Type", "application/json")
		w.Write(doc)
	})
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>GRRT API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
    <p style="padding: 1rem; font-family: sans-serif; color: #444;">
      Submitting or cancelling jobs may require Authorization: Bearer &lt;token&gt;.
    </p>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]any `json:"body"`
	}, error) {
		return &struct {
			Body map[string]any `json:"body"`
		}{Body: map[string]any{"status": "ok", "devices": device.Available()}}, nil
	})
}

func registerScenes(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-scenes",
		Method:      http.MethodGet,
		Path:        "/scenes",
		Summary:     "List built-in scenes and run files",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body scene.ScenesResponse `json:"body"`
	}, error) {
		scenes, err := scene.ListAllScenes()
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body scene.ScenesResponse `json:"body"`
		}{Body: scenes}, nil
	})
}

// resolveRun looks up a scene and applies YAML overrides on top of it.
func resolveRun(sceneID, overrides string) (config.Run, error) {
	run, err := scene.Resolve(sceneID)
	if err != nil {
		return config.Run{}, err
	}
	if strings.TrimSpace(overrides) == "" {
		return run, nil
	}
	return config.FromYAML([]byte(overrides), run)
}

// SubmitJobRequest names a scene and optional YAML overrides.
type SubmitJobRequest struct {
	Scene     string `json:"scene" example:"redshift"`
	Overrides string `json:"overrides,omitempty" doc:"Run YAML applied over the scene" example:"resolution: 64"`
}

type jobPath struct {
	ID string `path:"id"`
}

type jobResponse struct {
	Body JobView `json:"body"`
}

func registerJobs(api huma.API, m *Manager) {
	huma.Register(api, huma.Operation{
		OperationID:   "submit-job",
		Method:        http.MethodPost,
		Path:          "/jobs",
		Summary:       "Submit a render job",
		DefaultStatus: http.StatusAccepted,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Body SubmitJobRequest
	}) (*jobResponse, error) {
		run, err := resolveRun(input.Body.Scene, input.Body.Overrides)
		if err != nil {
			return nil, handleError(err)
		}
		submittedBy := ""
		if p, ok := principalFromContext(ctx); ok {
			submittedBy = p.Subject
		}
		job, err := m.Submit(input.Body.Scene, submittedBy, run)
		if err != nil {
			return nil, handleError(err)
		}
		return &jobResponse{Body: job.View()}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-jobs",
		Method:      http.MethodGet,
		Path:        "/jobs",
		Summary:     "List jobs, newest first",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []JobView `json:"body"`
	}, error) {
		return &struct {
			Body []JobView `json:"body"`
		}{Body: m.List()}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-job",
		Method:      http.MethodGet,
		Path:        "/jobs/{id}",
		Summary:     "Get a job",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *jobPath) (*jobResponse, error) {
		job, ok := m.Get(input.ID)
		if !ok {
			return nil, newAPIError(http.StatusNotFound, "not_found", "job not found", nil)
		}
		return &jobResponse{Body: job.View()}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "cancel-job",
		Method:      http.MethodDelete,
		Path:        "/jobs/{id}",
		Summary:     "Cancel a queued or running job",
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *jobPath) (*jobResponse, error) {
		job, err := m.Cancel(input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &jobResponse{Body: job.View()}, nil
	})
}

// RunSummary is a catalogued run.
type RunSummary struct {
	catalog.Run
}

// RunDetail is a catalogued run with its pixel diagnostics.
type RunDetail struct {
	catalog.Run
	Diagnostics []catalog.Diagnostic `json:"diagnostics"`
}

func registerRuns(api huma.API, repo *catalog.Repo) {
	if repo == nil {
		return
	}
	huma.Register(api, huma.Operation{
		OperationID: "list-runs",
		Method:      http.MethodGet,
		Path:        "/runs",
		Summary:     "List catalogued runs, newest first",
	}, func(ctx context.Context, input *struct {
		Limit int `query:"limit" default:"50" minimum:"1" maximum:"500"`
	}) (*struct {
		Body []RunSummary `json:"body"`
	}, error) {
		runs, err := repo.ListRuns(ctx, input.Limit)
		if err != nil {
			return nil, handleError(err)
		}
		// Schemas are named by type; catalog.Run would clash with config.Run.
		out := make([]RunSummary, 0, len(runs))
		for _, r := range runs {
			out = append(out, RunSummary{Run: r})
		}
		return &struct {
			Body []RunSummary `json:"body"`
		}{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-run",
		Method:      http.MethodGet,
		Path:        "/runs/{id}",
		Summary:     "Get a catalogued run with its diagnostics",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body RunDetail `json:"body"`
	}, error) {
		run, err := repo.GetRun(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		diags, err := repo.Diagnostics(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		if diags == nil {
			diags = []catalog.Diagnostic{}
		}
		return &struct {
			Body RunDetail `json:"body"`
		}{Body: RunDetail{Run: run, Diagnostics: diags}}, nil
	})
}
