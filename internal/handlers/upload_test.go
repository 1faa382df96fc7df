package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestUploadHandlers_HandleUpload(t *testing.T) {
	dashboard := newDashboard()
	handlers := NewUploadHandlers(dashboard, NewUploader(1<<20), testLogger())

	w := httptest.NewRecorder()
	handlers.HandleUpload(w, newUploadRequest(t, "/api/upload", "sales.csv", "text/csv", sampleCSV))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}

	var summary Summary
	if err := json.Unmarshal(decodeEnvelope(t, w.Body.Bytes()).Data, &summary); err != nil {
		t.Fatal(err)
	}
	if summary.RecordCount != 3 || summary.Totals.Quantity != 18 {
		t.Errorf("summary = %+v", summary)
	}

	if state, _ := dashboard.Current(); state == nil || state.FileName != "sales.csv" {
		t.Error("upload should replace the dashboard state")
	}
}

func TestUploadHandlers_Rejections(t *testing.T) {
	tests := []struct {
		name        string
		fileName    string
		contentType string
		content     string
		maxBytes    int64
		wantStatus  int
		wantCode    string
		wantMessage string
	}{
		{
			name:        "missing columns",
			fileName:    "sales.csv",
			contentType: "text/csv",
			content:     "date,product,quantity\n2024-01-01,A,1\n",
			wantStatus:  http.StatusBadRequest,
			wantCode:    "VALIDATION_ERROR",
			wantMessage: "CSV must contain: date, product, region, quantity, revenue",
		},
		{
			name:        "bad date",
			fileName:    "sales.csv",
			contentType: "text/csv",
			content:     "date,product,region,quantity,revenue\nyesterday,A,N,1,1\n",
			wantStatus:  http.StatusBadRequest,
			wantCode:    "VALIDATION_ERROR",
			wantMessage: `row 1 (line 2): cannot parse date "yesterday" (expected YYYY-MM-DD)`,
		},
		{
			name:        "bad number",
			fileName:    "sales.csv",
			contentType: "text/csv",
			content:     "date,product,region,quantity,revenue\n2024-01-01,A,N,1,lots\n",
			wantStatus:  http.StatusBadRequest,
			wantCode:    "VALIDATION_ERROR",
			wantMessage: `row 1 (line 2): revenue "lots" is not a number`,
		},
		{
			name:        "exponent out of range",
			fileName:    "sales.csv",
			contentType: "text/csv",
			content:     "date,product,region,quantity,revenue\n2024-01-05,A,N,1,1e200000000\n",
			wantStatus:  http.StatusBadRequest,
			wantCode:    "VALIDATION_ERROR",
			wantMessage: `row 1 (line 2): revenue "1e200000000" is out of range`,
		},
		{
			name:        "empty file",
			fileName:    "sales.csv",
			contentType: "text/csv",
			content:     "",
			wantStatus:  http.StatusBadRequest,
			wantCode:    "VALIDATION_ERROR",
		},
		{
			name:        "wrong extension",
			fileName:    "sales.xlsx",
			contentType: "text/csv",
			content:     sampleCSV,
			wantStatus:  http.StatusUnsupportedMediaType,
			wantCode:    "UNSUPPORTED_MEDIA_TYPE",
		},
		{
			name:        "declared type not allowed",
			fileName:    "sales.csv",
			contentType: "image/png",
			content:     sampleCSV,
			wantStatus:  http.StatusUnsupportedMediaType,
			wantCode:    "UNSUPPORTED_MEDIA_TYPE",
		},
		{
			name:        "content is not text",
			fileName:    "sales.csv",
			contentType: "text/csv",
			content:     "%PDF-1.7\n%binary",
			wantStatus:  http.StatusUnsupportedMediaType,
			wantCode:    "UNSUPPORTED_MEDIA_TYPE",
		},
		{
			name:        "too large",
			fileName:    "sales.csv",
			contentType: "text/csv",
			content:     sampleCSV + strings.Repeat("2024-03-01,Widget,North,1,1\n", 200),
			maxBytes:    1024,
			wantStatus:  http.StatusRequestEntityTooLarge,
			wantCode:    "PAYLOAD_TOO_LARGE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			maxBytes := tt.maxBytes
			if maxBytes == 0 {
				maxBytes = 1 << 20
			}
			handlers := NewUploadHandlers(newDashboard(), NewUploader(maxBytes), testLogger())

			w := httptest.NewRecorder()
			handlers.HandleUpload(w, newUploadRequest(t, "/api/upload", tt.fileName, tt.contentType, tt.content))

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", w.Code, tt.wantStatus, w.Body.String())
			}
			env := decodeEnvelope(t, w.Body.Bytes())
			if env.Error == nil || env.Error.Code != tt.wantCode {
				t.Fatalf("error = %s, want code %s", w.Body.String(), tt.wantCode)
			}
			if tt.wantMessage != "" && env.Error.Message != tt.wantMessage {
				t.Errorf("message = %q, want %q", env.Error.Message, tt.wantMessage)
			}
		})
	}
}

func TestUploadHandlers_SchemaDetails(t *testing.T) {
	handlers := NewUploadHandlers(newDashboard(), NewUploader(1<<20), testLogger())

	w := httptest.NewRecorder()
	handlers.HandleUpload(w, newUploadRequest(t, "/api/upload", "s.csv", "", "date,product\n2024-01-01,A\n"))

	var details struct {
		Missing []string `json:"missing"`
	}
	if err := json.Unmarshal(decodeEnvelope(t, w.Body.Bytes()).Error.Details, &details); err != nil {
		t.Fatal(err)
	}
	if strings.Join(details.Missing, ",") != "region,quantity,revenue" {
		t.Errorf("missing = %v", details.Missing)
	}
}

func TestUploadHandlers_MissingFile(t *testing.T) {
	handlers := NewUploadHandlers(newDashboard(), NewUploader(1<<20), testLogger())

	body, formType := multipartBody(t, "other", "sales.csv", "text/csv", sampleCSV)
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", formType)

	w := httptest.NewRecorder()
	handlers.HandleUpload(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if !strings.Contains(w.Body.String(), "BAD_REQUEST") {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestUploader_FileName(t *testing.T) {
	u := NewUploader(1 << 20)

	tests := []struct {
		in   string
		want string
	}{
		{"sales.csv", "sales.csv"},
		{"../../etc/sales.csv", "sales.csv"},
		{`C:\Users\me\q1 & q2.csv`, "q1 & q2.csv"},
		{"<b>bold</b>.csv", "bold.csv"},
		{"<script>alert(1)</script>", "upload.csv"},
		{"", "upload.csv"},
	}

	for _, tt := range tests {
		if got := u.FileName(tt.in); got != tt.want {
			t.Errorf("FileName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
