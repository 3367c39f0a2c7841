package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ttms-api/internal/dto"
	appErrors "github.com/noah-isme/ttms-api/pkg/errors"
)

type timetableGeneratorMock struct {
	captured dto.GenerateTimetableRequest
	err      error
}

func (m *timetableGeneratorMock) Generate(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.GenerateTimetableResponse, error) {
	m.captured = req
	if m.err != nil {
		return nil, m.err
	}
	return &dto.GenerateTimetableResponse{Year: req.Year, CourseID: req.CourseID, Semester: req.Semester, Status: dto.GenerationStatusComplete, PlacedCount: 20}, nil
}

func (m *timetableGeneratorMock) Enqueue(ctx context.Context) (*dto.BatchStatusResponse, error) {
	return &dto.BatchStatusResponse{ID: "batch-1", Status: dto.BatchStatusQueued}, nil
}

func (m *timetableGeneratorMock) BatchStatus(ctx context.Context, id string) (*dto.BatchStatusResponse, error) {
	if id != "batch-1" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "batch not found")
	}
	return &dto.BatchStatusResponse{ID: id, Status: dto.BatchStatusCompleted}, nil
}

type timetableViewerMock struct {
	gridQuery  dto.CohortQuery
	masterYear string
}

func (m *timetableViewerMock) Grid(ctx context.Context, query dto.CohortQuery) (*dto.GridResponse, error) {
	m.gridQuery = query
	return &dto.GridResponse{Year: query.Year, Grid: map[string][]string{"Monday": {"CS101 - Programming (Dr. Rao)"}}}, nil
}

func (m *timetableViewerMock) Master(ctx context.Context, year string) (*dto.MasterTimetableResponse, error) {
	m.masterYear = year
	return &dto.MasterTimetableResponse{Year: year, Cohorts: []dto.GridResponse{{Year: "I"}, {Year: "II"}}}, nil
}

func (m *timetableViewerMock) StaffSchedule(ctx context.Context, staffID string) (*dto.StaffScheduleResponse, error) {
	return &dto.StaffScheduleResponse{StaffID: staffID}, nil
}

func (m *timetableViewerMock) Periods(ctx context.Context) ([]dto.PeriodView, error) {
	return []dto.PeriodView{{ID: "p1", PeriodNo: 1}}, nil
}

func newTimetableRouter(gen *timetableGeneratorMock, view *timetableViewerMock) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := &TimetableHandler{generator: gen, viewer: view}
	router := gin.New()
	router.POST("/timetable/generate", h.Generate)
	router.POST("/timetable/generate-all", h.GenerateAll)
	router.GET("/timetable/batches/:id", h.Batch)
	router.GET("/timetable/grid", h.Grid)
	router.GET("/timetable/master", h.Master)
	router.GET("/timetable/staff/:staffId", h.StaffSchedule)
	router.GET("/periods", h.Periods)
	return router
}

func TestTimetableHandlerGenerate(t *testing.T) {
	gen := &timetableGeneratorMock{}
	router := newTimetableRouter(gen, &timetableViewerMock{})

	req := httptest.NewRequest(http.MethodPost, "/timetable/generate", bytes.NewReader([]byte(`{"year":"II","courseId":"cse","semester":"3","seed":99}`)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "II", gen.captured.Year)
	require.NotNil(t, gen.captured.Seed)
	assert.Equal(t, int64(99), *gen.captured.Seed)

	var body struct {
		Data dto.GenerateTimetableResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 20, body.Data.PlacedCount)
}

func TestTimetableHandlerGenerateMalformed(t *testing.T) {
	router := newTimetableRouter(&timetableGeneratorMock{}, &timetableViewerMock{})

	req := httptest.NewRequest(http.MethodPost, "/timetable/generate", bytes.NewReader([]byte(`{"year":`)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), appErrors.ErrValidation.Code)
}

func TestTimetableHandlerGenerateMapsPreconditionFailures(t *testing.T) {
	gen := &timetableGeneratorMock{err: appErrors.Clone(appErrors.ErrNoAssignments, "")}
	router := newTimetableRouter(gen, &timetableViewerMock{})

	req := httptest.NewRequest(http.MethodPost, "/timetable/generate", bytes.NewReader([]byte(`{"year":"I","courseId":"cse","semester":"1"}`)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusPreconditionFailed, w.Code)
	assert.Contains(t, w.Body.String(), "NO_ASSIGNMENTS")
}

func TestTimetableHandlerGenerateAllAndBatch(t *testing.T) {
	router := newTimetableRouter(&timetableGeneratorMock{}, &timetableViewerMock{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/timetable/generate-all", nil))
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Contains(t, w.Body.String(), `"batch-1"`)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/timetable/batches/batch-1", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), dto.BatchStatusCompleted)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/timetable/batches/unknown", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTimetableHandlerReads(t *testing.T) {
	view := &timetableViewerMock{}
	router := newTimetableRouter(&timetableGeneratorMock{}, view)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/timetable/grid?year=I&courseId=cse&semester=1", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, dto.CohortQuery{Year: "I", CourseID: "cse", Semester: "1"}, view.gridQuery)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/timetable/master", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "all", view.masterYear)
	assert.Contains(t, w.Body.String(), `"cohorts":2`)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/timetable/staff/staff-9", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "staff-9")

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/periods", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}
