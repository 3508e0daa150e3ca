package http

import (
	"encoding/json"
	"html/template"
	"net/http"
)

// Client-side events raised after a commit. Panels listening for them
// reload themselves.
const (
	EventRecordsChanged  = "records:changed"
	EventSettingsChanged = "settings:changed"
	EventFormReset       = "form:reset"
	EventNotification    = "show-notification"
)

// NotificationType selects the toast style in app.js.
type NotificationType string

const (
	NotificationSuccess NotificationType = "success"
	NotificationError   NotificationType = "error"
)

type notification struct {
	Type     NotificationType `json:"type"`
	Message  string           `json:"message"`
	Duration int              `json:"duration"`
}

// HTMXResponseBuilder assembles a response for htmx: status, body and the
// HX-Trigger events fired on the client once the response is swapped in.
type HTMXResponseBuilder struct {
	status int
	header http.Header
	events map[string]any
	body   []byte
}

// NewHTMXResponse starts a 200 response with no body.
func NewHTMXResponse() *HTMXResponseBuilder {
	return &HTMXResponseBuilder{
		status: http.StatusOK,
		header: make(http.Header),
		events: make(map[string]any),
	}
}

func (b *HTMXResponseBuilder) Status(code int) *HTMXResponseBuilder {
	b.status = code
	return b
}

func (b *HTMXResponseBuilder) trigger(event string, detail any) *HTMXResponseBuilder {
	b.events[event] = detail
	return b
}

// TriggerRecordsChanged refreshes the table, stats and settings panels.
func (b *HTMXResponseBuilder) TriggerRecordsChanged() *HTMXResponseBuilder {
	return b.trigger(EventRecordsChanged, struct{}{})
}

// TriggerSettingsChanged carries the settings that affect rendering so the
// page can switch theme without a reload.
func (b *HTMXResponseBuilder) TriggerSettingsChanged(theme, currency string) *HTMXResponseBuilder {
	return b.trigger(EventSettingsChanged, map[string]string{"theme": theme, "currency": currency})
}

// TriggerFormReset moves focus back to the first record field.
func (b *HTMXResponseBuilder) TriggerFormReset() *HTMXResponseBuilder {
	return b.trigger(EventFormReset, struct{}{})
}

func (b *HTMXResponseBuilder) TriggerSuccessNotification(message string) *HTMXResponseBuilder {
	return b.trigger(EventNotification, notification{NotificationSuccess, message, 3000})
}

// TriggerErrorNotification stays on screen longer than a success toast.
func (b *HTMXResponseBuilder) TriggerErrorNotification(message string) *HTMXResponseBuilder {
	return b.trigger(EventNotification, notification{NotificationError, message, 5000})
}

func (b *HTMXResponseBuilder) BodyHTML(html string) *HTMXResponseBuilder {
	b.header.Set("Content-Type", "text/html; charset=utf-8")
	b.body = []byte(html)
	return b
}

// JSON encodes v as the body. An encoding failure turns the response into
// a 500.
func (b *HTMXResponseBuilder) JSON(v any) *HTMXResponseBuilder {
	data, err := json.Marshal(v)
	if err != nil {
		return InternalServerError("Response could not be encoded")
	}
	b.header.Set("Content-Type", "application/json")
	b.body = data
	return b
}

// Attachment makes the body a download saved as filename.
func (b *HTMXResponseBuilder) Attachment(filename, contentType string, content []byte) *HTMXResponseBuilder {
	b.header.Set("Content-Type", contentType)
	b.header.Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	b.body = content
	return b
}

// Write sends the response. Events are encoded as one JSON object so several
// can fire from a single response.
func (b *HTMXResponseBuilder) Write(w http.ResponseWriter) {
	h := w.Header()
	for name, values := range b.header {
		h[name] = values
	}
	if len(b.events) > 0 {
		if data, err := json.Marshal(b.events); err == nil {
			h.Set("HX-Trigger", string(data))
		}
	}
	w.WriteHeader(b.status)
	if len(b.body) > 0 {
		_, _ = w.Write(b.body)
	}
}

// ErrorResponse is an inline alert with an escaped message.
func ErrorResponse(status int, message string) *HTMXResponseBuilder {
	return NewHTMXResponse().
		Status(status).
		BodyHTML(`<div class="error" role="alert">` + template.HTMLEscapeString(message) + `</div>`)
}

func BadRequestError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

func NotFoundError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

func UnprocessableEntityError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusUnprocessableEntity, message)
}

func InternalServerError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

// MethodNotAllowedError answers 405 with the Allow header and no body.
func MethodNotAllowedError(allowed string) *HTMXResponseBuilder {
	b := NewHTMXResponse().Status(http.StatusMethodNotAllowed)
	b.header.Set("Allow", allowed)
	return b
}
