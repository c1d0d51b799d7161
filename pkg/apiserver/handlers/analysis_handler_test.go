package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/seatwise/seatwise/pkg/eventbus"
	"github.com/seatwise/seatwise/pkg/model"
)

type stubAnalysisReader struct {
	analyses map[string]*model.Analysis
}

func (s *stubAnalysisReader) GetByID(_ context.Context, id string) (*model.Analysis, error) {
	analysis, ok := s.analyses[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return analysis, nil
}

func (s *stubAnalysisReader) List(_ context.Context, _ string, _ *model.AnalysisStatus, _, _ int) ([]model.Analysis, int64, error) {
	items := make([]model.Analysis, 0, len(s.analyses))
	for _, analysis := range s.analyses {
		items = append(items, *analysis)
	}
	return items, int64(len(items)), nil
}

func eventsTestRouter(reader *stubAnalysisReader, bus *eventbus.Bus) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := &AnalysisHandler{
		analyses: reader,
		bus:      bus,
		logger:   zap.NewNop(),
	}
	router := gin.New()
	router.GET("/analyses/:id/events", handler.Events)
	return router
}

func TestAnalysisEventsUnknownID(t *testing.T) {
	router := eventsTestRouter(&stubAnalysisReader{analyses: map[string]*model.Analysis{}}, nil)

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/analyses/"+uuid.New().String()+"/events", nil)
	router.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", recorder.Code, recorder.Body.String())
	}
}

func TestAnalysisEventsWithoutBus(t *testing.T) {
	analysis := &model.Analysis{ID: uuid.New(), TenantClientID: uuid.New(), Status: model.AnalysisRunning}
	reader := &stubAnalysisReader{analyses: map[string]*model.Analysis{analysis.ID.String(): analysis}}
	router := eventsTestRouter(reader, nil)

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/analyses/"+analysis.ID.String()+"/events", nil)
	router.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d: %s", recorder.Code, recorder.Body.String())
	}
}

func TestAnalysisEventsTerminalRunClosesStream(t *testing.T) {
	analysis := &model.Analysis{ID: uuid.New(), TenantClientID: uuid.New(), Status: model.AnalysisCompleted}
	reader := &stubAnalysisReader{analyses: map[string]*model.Analysis{analysis.ID.String(): analysis}}
	// The bus is only consulted after the initial event; a terminal run
	// never reaches the subscription.
	router := eventsTestRouter(reader, &eventbus.Bus{})

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/analyses/"+analysis.ID.String()+"/events", nil)
	router.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
	if got := recorder.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("expected an event stream, got %q", got)
	}

	body := recorder.Body.String()
	if !strings.Contains(body, "event:status") {
		t.Fatalf("expected a status event, got %q", body)
	}
	if !strings.Contains(body, string(model.AnalysisCompleted)) {
		t.Fatalf("expected the terminal status in the stream, got %q", body)
	}
}
