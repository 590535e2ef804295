package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dashgen/backend/internal/analysis"
	"github.com/dashgen/backend/internal/chat"
	"github.com/dashgen/backend/internal/dataset"
	"github.com/dashgen/backend/internal/jobs"
)

type fixedLoader struct {
	ds *dataset.Dataset
}

func (f *fixedLoader) Load(ctx context.Context, fileRef string) (*dataset.Dataset, error) {
	return f.ds, nil
}

func testDataset() *dataset.Dataset {
	return dataset.New([]dataset.Column{
		{Name: "region", Cells: []string{"north", "south", "north", "south", "north", "south"}},
		{Name: "sales", Cells: []string{"10.5", "20.5", "11.5", "21.5", "12.5", "22.5"}},
	})
}

func newTestApp(ds *dataset.Dataset, uploadDir string) (*fiber.App, *jobs.Manager) {
	manager := jobs.NewManager(&fixedLoader{ds: ds}, analysis.DefaultOptions(), 10*time.Second, nil)

	app := fiber.New()
	api := app.Group("/api/v1")

	datasetHandler := NewDatasetHandler(manager, uploadDir)
	jobsHandler := NewJobsHandler(manager, nil)
	chatHandler := NewChatHandler(chat.NewEngine(manager, nil, nil))

	api.Post("/datasets", datasetHandler.UploadDataset)
	api.Get("/jobs/:id", jobsHandler.GetStatus)
	api.Get("/jobs/:id/dashboard", jobsHandler.GetDashboard)
	api.Delete("/jobs/:id", jobsHandler.CancelJob)
	api.Post("/jobs/:id/chat", chatHandler.HandleQuery)

	return app, manager
}

func submitAndWait(t *testing.T, m *jobs.Manager) string {
	t.Helper()
	jobID, err := m.Submit("test.csv")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		snap, err := m.Status(jobID)
		return err == nil && snap.State.Terminal()
	}, 10*time.Second, 10*time.Millisecond)
	return jobID
}

func decodeBody(t *testing.T, resp io.Reader) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp).Decode(&body))
	return body
}

func TestUploadDatasetAcceptsCSV(t *testing.T) {
	app, _ := newTestApp(testDataset(), t.TempDir())

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", "sales.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte("region,sales\nnorth,10.5\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest("POST", "/api/v1/datasets", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := app.Test(req, 5000)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusAccepted, resp.StatusCode)

	body := decodeBody(t, resp.Body)
	assert.NotEmpty(t, body["job_id"])
	assert.Equal(t, "sales.csv", body["filename"])
}

func TestUploadDatasetRejectsUnsupportedExtension(t *testing.T) {
	app, _ := newTestApp(testDataset(), t.TempDir())

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", "report.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("%PDF"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest("POST", "/api/v1/datasets", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := app.Test(req, 5000)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnsupportedMediaType, resp.StatusCode)
}

func TestUploadDatasetRequiresFile(t *testing.T) {
	app, _ := newTestApp(testDataset(), t.TempDir())

	req := httptest.NewRequest("POST", "/api/v1/datasets", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, 5000)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestGetStatusUnknownJob(t *testing.T) {
	app, _ := newTestApp(testDataset(), t.TempDir())

	resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/jobs/nope", nil), 5000)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestGetStatusCompletedJob(t *testing.T) {
	app, manager := newTestApp(testDataset(), t.TempDir())
	jobID := submitAndWait(t, manager)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/jobs/"+jobID, nil), 5000)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp.Body)
	assert.Equal(t, jobID, body["job_id"])
	assert.Equal(t, "completed", body["state"])
}

func TestGetDashboardCompletedJob(t *testing.T) {
	app, manager := newTestApp(testDataset(), t.TempDir())
	jobID := submitAndWait(t, manager)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/jobs/"+jobID+"/dashboard", nil), 5000)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp.Body)
	charts, ok := body["charts"].([]interface{})
	require.True(t, ok)
	assert.NotEmpty(t, charts)
}

func TestGetDashboardFailedJobConflicts(t *testing.T) {
	app, manager := newTestApp(dataset.New(nil), t.TempDir())
	jobID := submitAndWait(t, manager)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/jobs/"+jobID+"/dashboard", nil), 5000)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
}

func TestCancelUnknownJob(t *testing.T) {
	app, _ := newTestApp(testDataset(), t.TempDir())

	resp, err := app.Test(httptest.NewRequest("DELETE", "/api/v1/jobs/nope", nil), 5000)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestCancelCompletedJobAccepted(t *testing.T) {
	app, manager := newTestApp(testDataset(), t.TempDir())
	jobID := submitAndWait(t, manager)

	resp, err := app.Test(httptest.NewRequest("DELETE", "/api/v1/jobs/"+jobID, nil), 5000)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusAccepted, resp.StatusCode)
}

func TestChatRequiresQuestion(t *testing.T) {
	app, manager := newTestApp(testDataset(), t.TempDir())
	jobID := submitAndWait(t, manager)

	req := httptest.NewRequest("POST", "/api/v1/jobs/"+jobID+"/chat", strings.NewReader(`{"question":""}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, 5000)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestChatRejectsIncompleteJob(t *testing.T) {
	app, manager := newTestApp(dataset.New(nil), t.TempDir())
	jobID := submitAndWait(t, manager)

	req := httptest.NewRequest("POST", "/api/v1/jobs/"+jobID+"/chat", strings.NewReader(`{"question":"what is the mean?"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, 5000)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
}
