package main

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"basket-dashboard/internal/config"
	"basket-dashboard/internal/models"
	"basket-dashboard/internal/services"
)

func testConfig() *config.Config {
	return &config.Config{
		Data: config.DataConfig{CSVFile: "data/OnlineRetail.csv"},
		Mining: config.MiningConfig{
			DefaultMinSupport:    0.05,
			DefaultMinConfidence: 0.30,
			DefaultMinLift:       1.2,
			MaxTableRows:         50,
			MaxChartRules:        500,
		},
	}
}

func loadedMiner() *services.Miner {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	m := services.NewMiner(logger)
	m.SetRecords(&models.RecordSet{
		Records: []models.Record{
			{InvoiceID: "I1", Description: "A", Quantity: 1, Country: "France"},
			{InvoiceID: "I1", Description: "B", Quantity: 1, Country: "France"},
		},
		Countries: []string{"France"},
		ItemCount: 2,
		LoadedAt:  time.Now(),
	})
	return m
}

func TestDashboardHandler(t *testing.T) {
	handler := dashboardHandler(loadedMiner(), testConfig())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()

	handler(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	body := w.Body.String()
	if !strings.Contains(body, "Retail Strategy Optimizer") {
		t.Error("expected dashboard title in page")
	}
	if !strings.Contains(body, `<option value="France">France</option>`) {
		t.Error("expected France in the region selector")
	}
	if cc := w.Header().Get("Cache-Control"); cc != cacheMaxAge {
		t.Errorf("cache-control = %q, want %q", cc, cacheMaxAge)
	}
}

func TestDashboardHandler_NoData(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	handler := dashboardHandler(services.NewMiner(logger), testConfig())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()

	handler(w, req)

	body := w.Body.String()
	if !strings.Contains(body, "Data not found") {
		t.Error("expected data-not-found page when no records are loaded")
	}
	if !strings.Contains(body, "OnlineRetail.csv") {
		t.Error("expected the configured CSV path in the page")
	}
}
