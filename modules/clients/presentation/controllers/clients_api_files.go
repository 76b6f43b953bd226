package controllers

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/iota-uz/clientdesk/modules/clients/services"
	"github.com/iota-uz/clientdesk/pkg/authz"
	"github.com/iota-uz/clientdesk/pkg/csvio"
	"github.com/iota-uz/clientdesk/pkg/drivelink"
	"github.com/iota-uz/clientdesk/pkg/httpapi"
)

const importFormField = "file"

var errNotText = errors.New("upload is not a text file")

// readUpload returns the CSV payload from either a raw body or the "file"
// part of a multipart form, bounded by max bytes.
func readUpload(w http.ResponseWriter, r *http.Request, max int64) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, max)

	var src io.Reader = r.Body
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(max); err != nil {
			return nil, err
		}
		file, _, err := r.FormFile(importFormField)
		if err != nil {
			return nil, err
		}
		defer func() { _ = file.Close() }()
		src = file
	}

	data, err := io.ReadAll(src)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return data, nil
	}
	if !isText(mimetype.Detect(data)) {
		return nil, errNotText
	}
	return data, nil
}

func isText(m *mimetype.MIME) bool {
	for ; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}

type importResponse struct {
	services.ImportReport
}

func (c *ClientsAPIController) Import(w http.ResponseWriter, r *http.Request) {
	if !ensureClientsAuthz(w, r, c.opts.Authz, clientsImportAuthzObject, authz.ActionWrite) {
		return
	}

	dryRun := false
	if raw := r.URL.Query().Get("dry_run"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeAPIError(w, http.StatusBadRequest, httpapi.CodeInvalidRequest, "dry_run must be true or false")
			return
		}
		dryRun = v
	}

	data, err := readUpload(w, r, c.opts.MaxImportBytes)
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			writeAPIError(w, http.StatusRequestEntityTooLarge, httpapi.CodePayloadTooLarge,
				fmt.Sprintf("import file exceeds %d bytes", c.opts.MaxImportBytes))
		case errors.Is(err, errNotText):
			writeAPIError(w, http.StatusUnsupportedMediaType, httpapi.CodeUnsupportedMedia, err.Error())
		default:
			writeAPIError(w, http.StatusBadRequest, httpapi.CodeInvalidRequest, err.Error())
		}
		return
	}

	report, err := c.imports.Import(r.Context(), bytes.NewReader(data), dryRun)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, importResponse{ImportReport: report})
}

func writeAttachment(w http.ResponseWriter, contentType, filename string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (c *ClientsAPIController) Template(w http.ResponseWriter, r *http.Request) {
	if !ensureClientsAuthz(w, r, c.opts.Authz, clientsImportAuthzObject, authz.ActionRead) {
		return
	}
	writeAttachment(w, csvio.MIMEType, services.TemplateFileName, c.imports.Template())
}

func (c *ClientsAPIController) ExportCSV(w http.ResponseWriter, r *http.Request) {
	if !ensureClientsAuthz(w, r, c.opts.Authz, clientsExportAuthzObject, authz.ActionRead) {
		return
	}
	data, err := c.exports.CSV(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeAttachment(w, csvio.MIMEType, services.ExportFileName(time.Now(), "csv"), data)
}

func (c *ClientsAPIController) ExportXLSX(w http.ResponseWriter, r *http.Request) {
	if !ensureClientsAuthz(w, r, c.opts.Authz, clientsExportAuthzObject, authz.ActionRead) {
		return
	}
	data, err := c.exports.XLSX(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeAttachment(w, services.XLSXMIMEType, services.ExportFileName(time.Now(), "xlsx"), data)
}

type driveLinkResponse struct {
	FolderID string `json:"folder_id"`
	URL      string `json:"url"`
}

func (c *ClientsAPIController) DriveLink(w http.ResponseWriter, r *http.Request) {
	value := strings.TrimSpace(r.URL.Query().Get("value"))
	id, ok := drivelink.ExtractFolderID(value)
	if !ok {
		writeAPIError(w, http.StatusUnprocessableEntity, httpapi.CodeValidationFailed, "value is not a Drive folder link or id")
		return
	}
	writeJSON(w, http.StatusOK, driveLinkResponse{FolderID: id, URL: drivelink.FolderURL(id)})
}

// Events upgrades to a websocket that receives the tenant's change feed.
func (c *ClientsAPIController) Events(w http.ResponseWriter, r *http.Request) {
	if !ensureClientsAuthz(w, r, c.opts.Authz, clientsAssignmentsAuthzObject, authz.ActionRead) {
		return
	}
	c.app.Websocket().ServeHTTP(w, r)
}
