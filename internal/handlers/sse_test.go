package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"basket-dashboard/internal/models"
	"basket-dashboard/internal/services"
)

func newTestSSEHandlers() *SSEHandlers {
	return NewSSEHandlers(createTestMiner(), testMiningConfig(), testLogger())
}

func TestSSEHandlers_HandleRules(t *testing.T) {
	h := newTestSSEHandlers()

	req := httptest.NewRequest(http.MethodGet, "/sse/rules?country=France&min_support=0.5&min_confidence=0.5&min_lift=1.0", nil)
	w := httptest.NewRecorder()

	h.HandleRules(w, req)

	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Errorf("content-type = %q, want text/event-stream", ct)
	}

	body := w.Body.String()
	if !strings.Contains(body, "rules-content") {
		t.Error("expected rules-content patch in SSE stream")
	}
	if !strings.Contains(body, "modern-table") {
		t.Error("expected rule table markup in SSE stream")
	}
	if !strings.Contains(body, "chartData") {
		t.Error("expected chartData signal patch in SSE stream")
	}
	if !strings.Contains(body, "summary") {
		t.Error("expected summary signal patch in SSE stream")
	}
}

func TestSSEHandlers_HandleRules_UnknownCountry(t *testing.T) {
	h := newTestSSEHandlers()

	req := httptest.NewRequest(http.MethodGet, "/sse/rules?country=Narnia&min_support=0.5&min_confidence=0.5&min_lift=1.0", nil)
	w := httptest.NewRecorder()

	h.HandleRules(w, req)

	body := w.Body.String()
	if !strings.Contains(body, "unknown region") {
		t.Errorf("expected unknown-region message in SSE stream, got:\n%s", body)
	}
}

func TestSSEHandlers_HandleRules_NoMatches(t *testing.T) {
	h := newTestSSEHandlers()

	// Nothing clears a 0.99 support bar; the panel explains rather
	// than erroring.
	req := httptest.NewRequest(http.MethodGet, "/sse/rules?country=France&min_support=0.99&min_confidence=0.5&min_lift=1.0", nil)
	w := httptest.NewRecorder()

	h.HandleRules(w, req)

	body := w.Body.String()
	if !strings.Contains(body, "No patterns found") {
		t.Errorf("expected no-patterns message in SSE stream, got:\n%s", body)
	}
}

func TestSSEHandlers_HandleRules_MissingCountry(t *testing.T) {
	h := newTestSSEHandlers()

	req := httptest.NewRequest(http.MethodGet, "/sse/rules", nil)
	w := httptest.NewRecorder()

	h.HandleRules(w, req)

	if !strings.Contains(w.Body.String(), "country parameter is required") {
		t.Error("expected validation message in SSE stream")
	}
}

func TestSSEHandlers_RenderRulesTable_RowCap(t *testing.T) {
	cfg := testMiningConfig()
	cfg.MaxTableRows = 2
	h := NewSSEHandlers(createTestMiner(), cfg, testLogger())

	rules := []models.AssociationRule{
		{AntecedentDisplay: "A", ConsequentDisplay: "B", Support: 0.5, Confidence: 0.8, Lift: 2},
		{AntecedentDisplay: "B", ConsequentDisplay: "C", Support: 0.4, Confidence: 0.7, Lift: 1.8},
		{AntecedentDisplay: "C", ConsequentDisplay: "D", Support: 0.3, Confidence: 0.6, Lift: 1.5},
	}

	html, err := h.renderRulesTable(rules)
	if err != nil {
		t.Fatalf("renderRulesTable() failed: %v", err)
	}
	if n := strings.Count(html, "<tr>") - 1; n != 2 {
		t.Errorf("rendered %d body rows, want 2", n)
	}
	if strings.Contains(html, "C</td>") && strings.Contains(html, "<strong>D</strong>") {
		t.Error("third rule should be dropped by the row cap")
	}
}

func TestSSEHandlers_HandleRecommendations_ProductList(t *testing.T) {
	h := newTestSSEHandlers()

	// Without a product the handler patches the selector options.
	req := httptest.NewRequest(http.MethodGet, "/sse/recommendations?country=France&min_support=0.5&min_confidence=0.5&min_lift=1.0", nil)
	w := httptest.NewRecorder()

	h.HandleRecommendations(w, req)

	body := w.Body.String()
	if !strings.Contains(body, "products") {
		t.Error("expected products signal patch in SSE stream")
	}
}

func TestSSEHandlers_HandleRecommendations_WithProduct(t *testing.T) {
	h := newTestSSEHandlers()

	req := httptest.NewRequest(http.MethodGet, "/sse/recommendations?country=France&product=A&min_support=0.5&min_confidence=0.5&min_lift=1.0", nil)
	w := httptest.NewRecorder()

	h.HandleRecommendations(w, req)

	body := w.Body.String()
	if !strings.Contains(body, "recommendations-content") {
		t.Error("expected recommendations-content patch in SSE stream")
	}
	if !strings.Contains(body, "<strong>B</strong>") {
		t.Errorf("expected B recommended for A, got:\n%s", body)
	}
}

func TestSSEHandlers_HandleRecommendations_NoRulesForProduct(t *testing.T) {
	h := newTestSSEHandlers()

	req := httptest.NewRequest(http.MethodGet, "/sse/recommendations?country=France&product=ZZZ&min_support=0.5&min_confidence=0.5&min_lift=1.0", nil)
	w := httptest.NewRecorder()

	h.HandleRecommendations(w, req)

	if !strings.Contains(w.Body.String(), "No strong rules") {
		t.Error("expected empty-recommendations message in SSE stream")
	}
}

func TestSSEHandlers_HandleRecommendations_NoData(t *testing.T) {
	h := NewSSEHandlers(services.NewMiner(testLogger()), testMiningConfig(), testLogger())

	req := httptest.NewRequest(http.MethodGet, "/sse/recommendations?country=France&product=A&min_support=0.5&min_confidence=0.5&min_lift=1.0", nil)
	w := httptest.NewRecorder()

	h.HandleRecommendations(w, req)

	if !strings.Contains(w.Body.String(), "no data source loaded") {
		t.Error("expected no-data message in SSE stream")
	}
}
