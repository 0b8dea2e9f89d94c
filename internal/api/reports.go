package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"dogovor/internal/browse"
	"dogovor/internal/catalog"
	"dogovor/internal/report"
)

type reportListItem struct {
	Key    string            `json:"key"`
	Title  string            `json:"title"`
	Fields []report.FieldDef `json:"fields"`
}

// GET /api/reports
func ReportListHandler(svc *browse.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		defs := svc.Reports().List()
		out := make([]reportListItem, 0, len(defs))
		for _, d := range defs {
			out = append(out, reportListItem{Key: d.Key, Title: d.Title, Fields: d.Fields})
		}
		c.JSON(http.StatusOK, out)
	}
}

type reportReq struct {
	Filters []catalog.FilterSpec `json:"filters" binding:"max=2"`
	Sort    string               `json:"sort"`
	Dir     string               `json:"dir"`
}

// POST /api/reports/:key
func ReportRunHandler(svc *browse.Service, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req reportReq
		if !bindJSON(c, &req) {
			return
		}
		res, err := svc.RunReport(c.Request.Context(), c.Param("key"), req.Filters, req.Sort, req.Dir)
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

// POST /api/reports/:key/_build — только фрагменты запроса, без выполнения
func ReportBuildHandler(svc *browse.Service, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req reportReq
		if !bindJSON(c, &req) {
			return
		}
		var f [2]catalog.FilterSpec
		copy(f[:], req.Filters)
		fr, err := svc.BuildReport(c.Param("key"), f[0], f[1], req.Sort, req.Dir)
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"where": fr.Where, "orderBy": fr.OrderBy, "args": fr.Args})
	}
}
