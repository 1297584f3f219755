package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"uk.co.dudmesh.todo/internal/model"
)

type successEnvelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
}

type errorBody struct {
	Kind    model.ErrorKind `json:"kind"`
	Message string          `json:"message"`
}

type errorEnvelope struct {
	Success bool      `json:"success"`
	Error   errorBody `json:"error"`
}

func respond(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, successEnvelope{Success: true, Data: data})
}

var statusCodes = map[model.ErrorKind]int{
	model.KindValidation: http.StatusBadRequest,
	model.KindAuth:       http.StatusUnauthorized,
	model.KindToken:      http.StatusUnauthorized,
	model.KindNotFound:   http.StatusNotFound,
	model.KindConflict:   http.StatusConflict,
	model.KindStore:      http.StatusBadGateway,
	model.KindInternal:   http.StatusInternalServerError,
}

func StatusFor(kind model.ErrorKind) int {
	if status, ok := statusCodes[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func kindForStatus(status int) model.ErrorKind {
	switch status {
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge, http.StatusUnsupportedMediaType:
		return model.KindValidation
	case http.StatusUnauthorized, http.StatusForbidden:
		return model.KindAuth
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		return model.KindNotFound
	}
	return model.KindInternal
}

// ErrorHandler renders every error a handler returns as an error envelope.
// Domain errors are sent with status 200 unless withStatus is set; errors
// raised by echo itself keep their own status.
func ErrorHandler(withStatus bool) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var body errorBody
		status := http.StatusOK

		var he *echo.HTTPError
		if errors.As(err, &he) && model.KindOf(err) == model.KindInternal {
			status = he.Code
			body = errorBody{Kind: kindForStatus(he.Code), Message: fmt.Sprint(he.Message)}
		} else {
			body = errorBody{Kind: model.KindOf(err), Message: err.Error()}
			if withStatus {
				status = StatusFor(body.Kind)
			}
		}

		switch body.Kind {
		case model.KindInternal, model.KindStore:
			c.Logger().Errorf("%s %s: %+v", c.Request().Method, c.Path(), err)
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, errorEnvelope{Success: false, Error: body})
		}
		if err != nil {
			c.Logger().Error(err)
		}
	}
}

// bind decodes the request into params and validates it.
func bind(c echo.Context, params interface{}) error {
	if err := c.Bind(params); err != nil {
		return model.ValidationError("malformed request", err)
	}
	return c.Validate(params)
}

type deleteParams struct {
	ID string `param:"id" json:"id" validate:"required"`
}

type deleted struct {
	ID string `json:"Id"`
}
