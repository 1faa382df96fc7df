package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"strings"
	"testing"

	"sales-analytics/internal/config"
	"sales-analytics/internal/services"
)

const sampleCSV = `date,product,region,quantity,revenue
2024-01-05,Widget,North,10,100
2024-01-20,Gadget,South,5,250
2024-02-03,Widget,North,3,30
`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newDashboard() *services.Dashboard {
	return services.NewDashboard(config.DefaultDateLayouts, testLogger())
}

func loadedDashboard(t *testing.T) *services.Dashboard {
	t.Helper()
	d := newDashboard()
	if _, err := d.Load(context.Background(), "sales.csv", strings.NewReader(sampleCSV)); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return d
}

// multipartBody builds a form with one file part.
func multipartBody(t *testing.T, field, fileName, contentType, content string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+fileName+`"`)
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}
	part, err := mw.CreatePart(header)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := io.WriteString(part, content); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &body, mw.FormDataContentType()
}

func newUploadRequest(t *testing.T, target, fileName, contentType, content string) *http.Request {
	t.Helper()
	body, formType := multipartBody(t, "file", fileName, contentType, content)
	req, err := http.NewRequest(http.MethodPost, target, body)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", formType)
	return req
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string          `json:"code"`
		Message string          `json:"message"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
}

func decodeEnvelope(t *testing.T, body []byte) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		t.Fatalf("invalid JSON response: %v\n%s", err, body)
	}
	return env
}
