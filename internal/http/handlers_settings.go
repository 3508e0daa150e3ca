package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"glowbudget/internal/core"
	"glowbudget/internal/log"
	"glowbudget/internal/validate"
)

func (s *Server) handleSetTheme(w http.ResponseWriter, r *http.Request) {
	s.settingsCommand(w, r, "", func(r *http.Request) (string, error) {
		theme := core.ParseTheme(strings.TrimSpace(r.Form.Get("theme")))
		return "Theme set to " + string(theme) + ".", s.store.SetTheme(r.Context(), string(theme))
	})
}

func (s *Server) handleSetCurrency(w http.ResponseWriter, r *http.Request) {
	s.settingsCommand(w, r, settingsCurrency, func(r *http.Request) (string, error) {
		code := strings.TrimSpace(r.Form.Get("currency"))
		return "Amounts now shown in " + strings.ToUpper(code) + ".", s.store.SetDisplayCurrency(r.Context(), code)
	})
}

func (s *Server) handleSetRate(w http.ResponseWriter, r *http.Request) {
	code := strings.ToUpper(strings.TrimSpace(r.FormValue("code")))
	s.settingsCommand(w, r, rateKey(core.Currency(code)), func(r *http.Request) (string, error) {
		rate := strings.TrimSpace(r.Form.Get("rate"))
		msg := fmt.Sprintf("1 %s = %s %s.", code, rate, core.BaseCurrency)
		return msg, s.store.SetRate(r.Context(), code, rate)
	})
}

func (s *Server) handleSetCap(w http.ResponseWriter, r *http.Request) {
	s.settingsCommand(w, r, settingsCap, func(r *http.Request) (string, error) {
		err := s.store.SetMonthlyCap(r.Context(), r.Form.Get("cap"))
		if err != nil {
			return "", err
		}
		if limit := s.store.Settings().MonthlyCap; limit > 0 {
			return "Monthly cap set to " + core.FormatMoney(limit, core.BaseCurrency) + ".", nil
		}
		return "Monthly cap disabled.", nil
	})
}

// handleAddCategory adds a category. A name close to an existing one is
// accepted but the message points at the likely duplicate.
func (s *Server) handleAddCategory(w http.ResponseWriter, r *http.Request) {
	s.settingsCommand(w, r, settingsCategory, func(r *http.Request) (string, error) {
		name := sanitizeInput(r.Form.Get("name"))
		similar, hasSimilar := s.store.SuggestCategory(name)
		if err := s.store.AddCategory(r.Context(), name); err != nil {
			return "", err
		}
		msg := "Category " + name + " added."
		if hasSimilar {
			msg += " It looks similar to " + similar + "."
		}
		return msg, nil
	})
}

func (s *Server) handleRemoveCategory(w http.ResponseWriter, r *http.Request) {
	s.settingsCommand(w, r, settingsCategory, func(r *http.Request) (string, error) {
		name := strings.TrimSpace(r.Form.Get("name"))
		return "Category " + name + " removed.", s.store.RemoveCategory(r.Context(), name)
	})
}

// settingsCommand runs one settings change and answers with the refreshed
// settings panel. Errors are shown inline next to the input named by key.
func (s *Server) settingsCommand(w http.ResponseWriter, r *http.Request, key string, run func(*http.Request) (string, error)) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(w, r); resp != nil {
		resp.Write(w)
		return
	}

	msg, err := run(r)
	if err != nil {
		s.settingsError(w, r, key, err)
		return
	}

	records, settings := s.store.Snapshot()
	sv := buildSettings(records, settings)
	sv.Message = msg
	resp := NewHTMXResponse().
		TriggerSettingsChanged(string(settings.Theme), string(settings.DisplayCurrency)).
		TriggerSuccessNotification(msg)
	s.render(w, r, resp, "settings.html", sv)
}

func (s *Server) settingsError(w http.ResponseWriter, r *http.Request, key string, err error) {
	sv := buildSettings(s.store.Snapshot())
	status := http.StatusUnprocessableEntity

	var fe validate.FieldErrors
	switch {
	case errors.As(err, &fe):
		for _, msg := range fe {
			sv.withError(key, msg)
		}
	case errors.Is(err, core.ErrUnknownCurrency):
		sv.withError(key, "Unknown currency.")
	case errors.Is(err, core.ErrCategoryExists):
		status = http.StatusConflict
		sv.withError(key, "That category already exists.")
	case errors.Is(err, core.ErrCategoryInUse):
		status = http.StatusConflict
		sv.withError(key, "That category is used by at least one record. Change or delete those records first.")
	case errors.Is(err, core.ErrCategoryNotFound):
		status = http.StatusNotFound
		sv.withError(key, "That category does not exist.")
	default:
		s.fail(w, r, log.OpSettings, err)
		return
	}

	resp := NewHTMXResponse().
		Status(status).
		TriggerErrorNotification("Settings not saved.")
	s.render(w, r, resp, "settings.html", sv)
}
