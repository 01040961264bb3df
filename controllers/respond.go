// controllers/respond.go
package controllers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/HSouheill/maksab_backend/apperrors"
	"github.com/HSouheill/maksab_backend/models"
)

// respondError maps a service error onto the HTTP envelope. Anything that is
// not an application error is logged and reported as a plain 500.
func respondError(c echo.Context, err error) error {
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		status := appErr.Kind.HTTPStatus()
		return c.JSON(status, models.Response{
			Status:  status,
			Message: appErr.Message,
		})
	}

	c.Logger().Error(err)
	return c.JSON(http.StatusInternalServerError, models.Response{
		Status:  http.StatusInternalServerError,
		Message: "Something went wrong",
	})
}
