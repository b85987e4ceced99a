package response

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Additional-Code/subext/internal/dto"
	"github.com/Additional-Code/subext/internal/entity"
	"github.com/Additional-Code/subext/pkg/errorbank"
)

// Envelope selects the JSON shape a Builder emits.
type Envelope int

const (
	// EnvelopeAPI wraps payloads as {"success": ..., "data"|"error": ...}.
	EnvelopeAPI Envelope = iota
	// EnvelopeExtension emits the platform's extension shape: {"actions": [...]} or {"errors": [...]}.
	EnvelopeExtension
)

// Builder helps construct consistent HTTP responses.
type Builder struct {
	ctx      echo.Context
	envelope Envelope
	status   int
	data     any
	actions  []entity.UpdateAction
	err      error
	meta     map[string]any
}

// New instantiates a Builder for the provided request context.
func New(ctx echo.Context) *Builder {
	return &Builder{ctx: ctx, status: http.StatusOK}
}

// Extension instantiates a Builder that speaks the extension response format.
func Extension(ctx echo.Context) *Builder {
	return &Builder{ctx: ctx, status: http.StatusOK, envelope: EnvelopeExtension}
}

// WithStatus overrides the response status code.
func (b *Builder) WithStatus(status int) *Builder {
	if status > 0 {
		b.status = status
	}
	return b
}

// WithData attaches a success payload.
func (b *Builder) WithData(data any) *Builder {
	b.data = data
	return b
}

// WithActions attaches update actions for an extension response.
func (b *Builder) WithActions(actions []entity.UpdateAction) *Builder {
	b.actions = actions
	return b
}

// WithError records an error to be rendered.
func (b *Builder) WithError(err error) *Builder {
	b.err = err
	return b
}

// WithMeta appends auxiliary metadata to the response.
func (b *Builder) WithMeta(key string, value any) *Builder {
	if key == "" {
		return b
	}
	if b.meta == nil {
		b.meta = make(map[string]any)
	}
	b.meta[key] = value
	return b
}

// Build finalises and emits the HTTP response.
func (b *Builder) Build() error {
	if b.err != nil {
		return b.buildError()
	}
	return b.buildSuccess()
}

func (b *Builder) buildSuccess() error {
	if b.status == 0 {
		b.status = http.StatusOK
	}
	if b.envelope == EnvelopeExtension {
		actions := b.actions
		if actions == nil {
			actions = []entity.UpdateAction{}
		}
		return b.ctx.JSON(b.status, dto.ExtensionResponse{Actions: actions})
	}

	payload := struct {
		Success bool           `json:"success"`
		Data    any            `json:"data,omitempty"`
		Meta    map[string]any `json:"meta,omitempty"`
	}{
		Success: true,
		Data:    b.data,
		Meta:    b.meta,
	}
	return b.ctx.JSON(b.status, payload)
}

func (b *Builder) buildError() error {
	appErr := errorbank.From(b.err)
	status := b.status
	if status < 400 {
		status = appErr.StatusCode()
	}

	if b.envelope == EnvelopeExtension {
		return b.ctx.JSON(status, dto.ExtensionErrorResponse{
			Errors: []dto.ExtensionError{{
				Code:    string(appErr.Kind()),
				Message: appErr.Message(),
				Details: appErr.Details(),
			}},
		})
	}

	payload := struct {
		Success bool `json:"success"`
		Error   struct {
			Kind    string         `json:"kind"`
			Message string         `json:"message"`
			Details map[string]any `json:"details,omitempty"`
		} `json:"error"`
		Meta map[string]any `json:"meta,omitempty"`
	}{
		Success: false,
		Meta:    b.meta,
	}
	payload.Error.Kind = string(appErr.Kind())
	payload.Error.Message = appErr.Message()
	payload.Error.Details = appErr.Details()

	return b.ctx.JSON(status, payload)
}
