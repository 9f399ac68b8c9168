package httpadapter

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kirillkom/fiscal-doc-pipeline/internal/config"
	"github.com/kirillkom/fiscal-doc-pipeline/internal/core/domain"
)

func TestProcessDocumentForwardsPhaseZeroResult(t *testing.T) {
	var got domain.ProcessRequest
	processor := processorFake{
		got: &got,
		result: domain.ProcessResult{
			Success: true,
			Data:    domain.Record{"document_type": "Invoice", "processing_status": "COMPLETED"},
		},
	}
	handler := NewRouter(config.Config{}, ingestSuccessFake{}, processor, docsErrFake{}).Handler()

	req, contentType := multipartRequest(t, "/v1/documents/process", "factura.pdf", []byte("%PDF-1.4"), map[string]string{
		"client_id":     "RO18547290",
		"phase":         "1",
		"phase0_result": `{"document_type":"Invoice","confidence":0.91}`,
	})
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if got.ClientID != "RO18547290" || got.Phase != domain.PhaseExtract || got.Filename != "factura.pdf" {
		t.Fatalf("unexpected request: %+v", got)
	}
	if got.Phase0Result.DocumentType() != domain.TypeInvoice {
		t.Fatalf("phase0 result not forwarded: %v", got.Phase0Result)
	}
	if n, ok := got.Phase0Result["confidence"].(json.Number); !ok || n.String() != "0.91" {
		t.Fatalf("expected confidence kept as json.Number, got %#v", got.Phase0Result["confidence"])
	}

	var body map[string]any
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	data, _ := body["data"].(map[string]any)
	if body["success"] != true || data["processing_status"] != "COMPLETED" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestProcessDocumentRejectsBadPhase(t *testing.T) {
	handler := NewRouter(config.Config{}, ingestSuccessFake{}, processorFake{}, docsErrFake{}).Handler()

	for _, fields := range []map[string]string{
		{"phase": "2"},
		{"phase": "1", "phase0_result": "[1,2]"},
	} {
		req, contentType := multipartRequest(t, "/v1/documents/process", "a.txt", []byte("x"), fields)
		req.Header.Set("Content-Type", contentType)
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		if res.Code != http.StatusBadRequest {
			t.Fatalf("fields %v: expected 400, got %d", fields, res.Code)
		}
	}
}

func TestProcessDocumentInputErrorIs422(t *testing.T) {
	processor := processorFake{result: domain.ProcessResult{Error: "document not found", Details: "empty upload"}}
	handler := NewRouter(config.Config{}, ingestSuccessFake{}, processor, docsErrFake{}).Handler()

	req, contentType := multipartRequest(t, "/v1/documents/process", "a.txt", []byte("x"), nil)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", res.Code)
	}
	var body map[string]any
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["error"] != "document not found" || body["details"] != "empty upload" {
		t.Fatalf("unexpected body: %v", body)
	}
}
