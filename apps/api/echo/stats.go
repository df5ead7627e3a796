package echoapi

import (
	"bytes"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/canteen/core/attendance"
	"github.com/trezcool/canteen/services/report"
)

type statsApi struct {
	svc     attendance.Service
	reports *report.Generator
}

func registerStatsAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc attendance.Service, reports *report.Generator) {
	api := statsApi{svc: svc, reports: reports}

	sg := g.Group("/stats", jwt, staffMiddleware())
	sg.GET("/daily", api.daily)
	sg.GET("/daily.pdf", api.dailyPDF)
	sg.GET("/daily.csv", api.dailyCSV)
	sg.GET("/absentees", api.absentees)
	sg.GET("/absentees.pdf", api.absenteesPDF)
}

func (api *statsApi) dailyStats(ctx echo.Context) (attendance.DailyStats, error) {
	var query DateQuery
	if err := ctx.Bind(&query); err != nil {
		return attendance.DailyStats{}, errors.Wrap(err, "binding to DateQuery")
	}
	stats, err := api.svc.DailyStats(ctx.Request().Context(), query.Date)
	return stats, errors.Wrap(err, "computing daily stats")
}

func (api *statsApi) longAbsentees(ctx echo.Context) (attendance.Absentees, error) {
	var query AbsenteesQuery
	if err := ctx.Bind(&query); err != nil {
		return attendance.Absentees{}, errors.Wrap(err, "binding to AbsenteesQuery")
	}
	abs, err := api.svc.LongAbsentees(ctx.Request().Context(), query.AsOf, query.Days)
	return abs, errors.Wrap(err, "querying long absentees")
}

// Handlers

func (api *statsApi) daily(ctx echo.Context) error {
	stats, err := api.dailyStats(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, stats)
}

func (api *statsApi) dailyPDF(ctx echo.Context) error {
	stats, err := api.dailyStats(ctx)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := api.reports.DailyPDF(&buf, stats); err != nil {
		return errors.Wrap(err, "generating daily report")
	}
	setAttachment(ctx, "canteen-"+stats.Date.String()+".pdf")
	return ctx.Blob(http.StatusOK, mimePDF, buf.Bytes())
}

func (api *statsApi) dailyCSV(ctx echo.Context) error {
	stats, err := api.dailyStats(ctx)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := report.DailyStatsCSV(&buf, stats); err != nil {
		return errors.Wrap(err, "writing daily stats csv")
	}
	setAttachment(ctx, "canteen-"+stats.Date.String()+".csv")
	return ctx.Blob(http.StatusOK, mimeCSV, buf.Bytes())
}

func (api *statsApi) absentees(ctx echo.Context) error {
	abs, err := api.longAbsentees(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, abs)
}

func (api *statsApi) absenteesPDF(ctx echo.Context) error {
	abs, err := api.longAbsentees(ctx)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := api.reports.AbsenteesPDF(&buf, abs); err != nil {
		return errors.Wrap(err, "generating absentees report")
	}
	setAttachment(ctx, "absentees-"+abs.AsOf.String()+".pdf")
	return ctx.Blob(http.StatusOK, mimePDF, buf.Bytes())
}
