package handlers

import "github.com/labstack/echo/v4"

func Health() echo.HandlerFunc {
	return func(c echo.Context) error {
		return respond(c, map[string]string{"status": "ok"})
	}
}
