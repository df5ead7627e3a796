package echoapi

import (
	"bytes"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/canteen/core"
	"github.com/trezcool/canteen/core/attendance"
	"github.com/trezcool/canteen/services/report"
)

type attendanceApi struct {
	svc attendance.Service
	loc *time.Location
}

func registerAttendanceAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc attendance.Service, loc *time.Location) {
	api := attendanceApi{svc: svc, loc: loc}

	g.POST("/scans", api.scan, jwt, staffMiddleware())

	ag := g.Group("/attendance", jwt, staffMiddleware())
	ag.GET("", api.query)
	ag.GET("/export.csv", api.export)
	ag.DELETE("/:student_id/:date", api.destroy, adminMiddleware())
}

// Handlers

// scan always answers 200 for a well-formed request; the outcome is in ScanResult.Status.
func (api *attendanceApi) scan(ctx echo.Context) error {
	var data ScanRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ScanRequest")
	}

	res, err := api.svc.Scan(ctx.Request().Context(), data.Payload)
	if err != nil {
		return errors.Wrap(err, "scanning student")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *attendanceApi) query(ctx echo.Context) error {
	filter := new(attendance.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}

	entries, err := api.svc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying attendance")
	}
	if entries == nil {
		entries = []attendance.Entry{}
	}
	return ctx.JSON(http.StatusOK, entries)
}

func (api *attendanceApi) export(ctx echo.Context) error {
	filter := new(attendance.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}

	entries, err := api.svc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying attendance")
	}

	var buf bytes.Buffer
	if err := report.AttendanceCSV(&buf, entries, api.loc); err != nil {
		return errors.Wrap(err, "writing attendance csv")
	}
	setAttachment(ctx, "attendance.csv")
	return ctx.Blob(http.StatusOK, mimeCSV, buf.Bytes())
}

func (api *attendanceApi) destroy(ctx echo.Context) error {
	date, err := core.ParseDate(ctx.Param("date"))
	if err != nil || date.IsZero() {
		return core.NewValidationError(core.ErrInvalidDate, core.FieldError{Field: "date", Error: core.ErrInvalidDate.Error()})
	}

	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("student_id"), date); err != nil {
		return errors.Wrap(err, "deleting attendance")
	}
	return ctx.NoContent(http.StatusNoContent)
}
