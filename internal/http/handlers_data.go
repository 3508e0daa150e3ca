package http

import (
	"errors"
	"fmt"
	"html/template"
	"io"
	"mime"
	"net/http"

	"glowbudget/internal/ledger"
	"glowbudget/internal/log"
)

// ExportFilename is the suggested name of the downloaded backup.
const ExportFilename = "glowbudget-data.json"

// multipartOverhead leaves room for boundaries and the other form fields.
const multipartOverhead = 64 << 10

var errImportTooLarge = errors.New("import file too large")

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	data, err := s.store.Export(r.Context())
	if err != nil {
		s.fail(w, r, log.OpExport, err)
		return
	}
	NewHTMXResponse().
		Attachment(ExportFilename, "application/json; charset=utf-8", data).
		Write(w)
}

// handleImport replaces all records with an uploaded JSON file. The file is
// read completely and checked before anything is committed. A raw JSON body
// with ?confirm=1 is accepted too.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}

	data, confirmed, err := s.readImport(w, r)
	switch {
	case errors.Is(err, errImportTooLarge):
		ErrorResponse(http.StatusRequestEntityTooLarge,
			fmt.Sprintf("Import file is larger than %d KiB.", s.importMaxBytes>>10)).Write(w)
		return
	case errors.Is(err, http.ErrMissingFile):
		UnprocessableEntityError("Choose a JSON file to import.").Write(w)
		return
	case err != nil:
		BadRequestError("Could not read the uploaded file.").Write(w)
		return
	}

	result, err := s.store.Import(r.Context(), data, confirmed)
	if err != nil {
		var ie *ledger.ImportError
		switch {
		case notConfirmed(w, err):
		case errors.As(err, &ie):
			NewHTMXResponse().
				Status(http.StatusUnprocessableEntity).
				TriggerErrorNotification("Import rejected. Nothing was changed.").
				BodyHTML(`<div class="error" role="alert">Import rejected: ` +
					template.HTMLEscapeString(ie.Error()) + `. Nothing was changed.</div>`).
				Write(w)
		default:
			s.fail(w, r, log.OpImport, err)
		}
		return
	}

	msg := fmt.Sprintf("Imported %d records.", result.Records)
	if n := len(result.CategoriesAdded); n > 0 {
		msg += fmt.Sprintf(" Added %d new categories.", n)
	}
	settings := s.store.Settings()
	NewHTMXResponse().
		TriggerRecordsChanged().
		TriggerSettingsChanged(string(settings.Theme), string(settings.DisplayCurrency)).
		TriggerSuccessNotification(msg).
		BodyHTML(`<p class="status" role="status">` + template.HTMLEscapeString(msg) + `</p>`).
		Write(w)
}

// readImport returns the uploaded bytes and whether the request confirmed
// the replacement.
func (s *Server) readImport(w http.ResponseWriter, r *http.Request) ([]byte, bool, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if mediaType == "application/json" {
		r.Body = http.MaxBytesReader(w, r.Body, s.importMaxBytes)
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, false, importReadError(err)
		}
		return data, IsConfirmed(r.URL.Query().Get(ParamConfirm)), nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.importMaxBytes+multipartOverhead)
	if err := r.ParseMultipartForm(s.importMaxBytes); err != nil {
		return nil, false, importReadError(err)
	}
	confirmed := IsConfirmed(r.FormValue(ParamConfirm))

	f, header, err := r.FormFile("file")
	if err != nil {
		return nil, false, err
	}
	defer f.Close()
	if header.Size > s.importMaxBytes {
		return nil, false, errImportTooLarge
	}

	data, err := io.ReadAll(io.LimitReader(f, s.importMaxBytes+1))
	if err != nil {
		return nil, false, err
	}
	if int64(len(data)) > s.importMaxBytes {
		return nil, false, errImportTooLarge
	}
	return data, confirmed, nil
}

func importReadError(err error) error {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return errImportTooLarge
	}
	return err
}

// handleReset wipes every record and restores default settings.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(w, r); resp != nil {
		resp.Write(w)
		return
	}

	err := s.store.Reset(r.Context(), IsConfirmed(r.Form.Get(ParamConfirm)))
	if err != nil {
		if !notConfirmed(w, err) {
			s.fail(w, r, log.OpReset, err)
		}
		return
	}

	settings := s.store.Settings()
	NewHTMXResponse().
		TriggerRecordsChanged().
		TriggerSettingsChanged(string(settings.Theme), string(settings.DisplayCurrency)).
		TriggerSuccessNotification("All data was reset.").
		BodyHTML(`<p class="status" role="status">All data was reset.</p>`).
		Write(w)
}
