package handlers

import (
	stderrors "errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/microcosm-cc/bluemonday"

	"sales-analytics/internal/errors"
	"sales-analytics/internal/observability"
	"sales-analytics/internal/services"
)

const (
	uploadField     = "file"
	multipartMemory = 8 << 20
	sniffLen        = 512
)

// Content types a browser may declare for a CSV file.
var allowedClientContentTypes = map[string]bool{
	"text/csv":                 true,
	"application/csv":          true,
	"application/vnd.ms-excel": true,
	"text/plain":               true,
	"application/octet-stream": true,
}

// Sniffed content types consistent with a CSV file.
var allowedDetectedContentTypes = map[string]bool{
	"text/plain":               true,
	"text/csv":                 true,
	"application/csv":          true,
	"application/octet-stream": true,
}

// Uploader validates a multipart CSV upload before it reaches the pipeline.
type Uploader struct {
	maxBytes int64
	policy   *bluemonday.Policy
}

func NewUploader(maxBytes int64) *Uploader {
	return &Uploader{
		maxBytes: maxBytes,
		policy:   bluemonday.StrictPolicy(),
	}
}

// Open returns the sanitized file name and the file of the "file" field.
// The caller closes the file.
func (u *Uploader) Open(w http.ResponseWriter, r *http.Request) (string, multipart.File, error) {
	r.Body = http.MaxBytesReader(w, r.Body, u.maxBytes)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return "", nil, u.formError(err)
	}

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		return "", nil, u.formError(err)
	}

	name := u.FileName(header.Filename)
	if err := u.check(name, header, file); err != nil {
		file.Close()
		return "", nil, err
	}
	return name, file, nil
}

func (u *Uploader) formError(err error) error {
	var maxErr *http.MaxBytesError
	switch {
	case stderrors.As(err, &maxErr):
		return errors.PayloadTooLarge(fmt.Sprintf("file is larger than %s", humanize.IBytes(uint64(u.maxBytes))))
	case stderrors.Is(err, http.ErrMissingFile):
		return errors.BadRequest(fmt.Sprintf("no file uploaded: expected form field %q", uploadField))
	default:
		return errors.BadRequestWrap(err, "invalid multipart upload")
	}
}

func (u *Uploader) check(name string, header *multipart.FileHeader, file multipart.File) error {
	if !strings.EqualFold(filepath.Ext(name), ".csv") {
		return errors.UnsupportedMedia("only .csv files are accepted")
	}

	if declared := header.Header.Get("Content-Type"); declared != "" {
		mediaType, _, err := mime.ParseMediaType(declared)
		if err != nil || !allowedClientContentTypes[strings.ToLower(mediaType)] {
			return errors.UnsupportedMedia(fmt.Sprintf("content type %q is not allowed for CSV upload", declared))
		}
	}

	buf := make([]byte, sniffLen)
	n, err := io.ReadFull(file, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return errors.BadRequestWrap(err, "could not read upload")
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return errors.InternalWrap(err, "could not rewind upload")
	}

	detected := http.DetectContentType(buf[:n])
	detected = strings.ToLower(strings.TrimSpace(strings.Split(detected, ";")[0]))
	if !allowedDetectedContentTypes[detected] {
		return errors.UnsupportedMedia(fmt.Sprintf("file content looks like %s, not CSV", detected))
	}
	return nil
}

// FileName reduces a client supplied name to a plain base name safe to
// display.
func (u *Uploader) FileName(name string) string {
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	name = strings.TrimSpace(html.UnescapeString(u.policy.Sanitize(name)))
	if name == "" || name == "." || name == ".." {
		return "upload.csv"
	}
	return name
}

// loadError maps a pipeline failure to the reply the client sees.
func loadError(err error) *errors.AppError {
	var (
		schemaErr  *services.SchemaError
		dateErr    *services.DateParseError
		numericErr *services.NumericParseError
		csvErr     *services.CSVError
	)

	switch {
	case stderrors.As(err, &schemaErr):
		return errors.ValidationWrap(err, err.Error()).WithDetails(map[string]any{
			"missing":  schemaErr.Missing,
			"required": schemaErr.Required,
		})
	case stderrors.As(err, &dateErr):
		return errors.ValidationWrap(err, err.Error()).WithDetails(map[string]any{
			"row":   dateErr.Row,
			"value": dateErr.Value,
		})
	case stderrors.As(err, &numericErr):
		return errors.ValidationWrap(err, err.Error()).WithDetails(map[string]any{
			"row":    numericErr.Row,
			"column": numericErr.Column,
			"value":  numericErr.Value,
		})
	case stderrors.As(err, &csvErr):
		return errors.ValidationWrap(err, err.Error()).WithDetails(map[string]any{
			"line": csvErr.Line,
		})
	case services.IsInputError(err):
		return errors.ValidationWrap(err, err.Error())
	case stderrors.Is(err, services.ErrSuperseded):
		return errors.Conflict("a newer upload replaced this one")
	default:
		return errors.InternalWrap(err, "failed to process upload")
	}
}

type UploadHandlers struct {
	dashboard *services.Dashboard
	uploader  *Uploader
	logger    *slog.Logger
}

func NewUploadHandlers(dashboard *services.Dashboard, uploader *Uploader, logger *slog.Logger) *UploadHandlers {
	return &UploadHandlers{
		dashboard: dashboard,
		uploader:  uploader,
		logger:    logger,
	}
}

// HandleUpload runs an upload and replies with the JSON summary.
func (h *UploadHandlers) HandleUpload(w http.ResponseWriter, r *http.Request) {
	requestID := observability.GetRequestID(r.Context())

	name, file, err := h.uploader.Open(w, r)
	if err != nil {
		errors.WriteError(w, r, h.logger, err, requestID)
		return
	}
	defer file.Close()

	state, err := h.dashboard.Load(r.Context(), name, file)
	if err != nil {
		errors.WriteError(w, r, h.logger, loadError(err), requestID)
		return
	}

	errors.WriteSuccess(w, newSummary(state))
}
