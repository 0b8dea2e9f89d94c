package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"dogovor/internal/browse"
	"dogovor/internal/rowset"
)

// GET /api/entities/:entity
func ListHandler(svc *browse.Service, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		entity := c.Param("entity")
		lp := parseListParams(c.Request.URL.Query())

		rs, err := svc.LoadRows(c.Request.Context(), entity)
		if err != nil {
			writeError(c, log, err)
			return
		}
		view, err := svc.FilterAndSort(rs, lp.Query)
		if err != nil {
			writeError(c, log, err)
			return
		}

		c.Header("X-Total-Count", strconv.Itoa(len(view)))
		view = page(view, lp.Offset, lp.Limit)

		if !lp.Display {
			c.JSON(http.StatusOK, view)
			return
		}
		out, err := svc.DisplayRows(c.Request.Context(), entity, view)
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, out)
	}
}

// GET /api/entities/:entity/:id
func GetOneHandler(svc *browse.Service, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		row, err := svc.GetRow(c.Request.Context(), c.Param("entity"), c.Param("id"))
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, row)
	}
}

// POST /api/entities/:entity
func CreateHandler(svc *browse.Service, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in browse.Input
		if !bindJSON(c, &in) {
			return
		}
		id, err := svc.Save(c.Request.Context(), c.Param("entity"), browse.ModeAdd, in, nil)
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"id": id})
	}
}

// PUT|PATCH /api/entities/:entity/:id — меняются только переданные поля
func UpdateHandler(svc *browse.Service, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in browse.Input
		if !bindJSON(c, &in) {
			return
		}
		id, err := svc.Save(c.Request.Context(), c.Param("entity"), browse.ModeEdit, in, c.Param("id"))
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": id})
	}
}

// DELETE /api/entities/:entity/:id
func DeleteHandler(svc *browse.Service, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.Delete(c.Request.Context(), c.Param("entity"), c.Param("id")); err != nil {
			writeError(c, log, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// GET /api/entities/:entity/_columns
func ColumnsHandler(svc *browse.Service, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		cols, err := svc.Describe(c.Request.Context(), c.Param("entity"))
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"columns": cols})
	}
}

// GET /api/entities/:entity/_lookup/:field
// Варианты меток для выпадающего списка ссылочного поля.
func LookupHandler(svc *browse.Service, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		labels, err := svc.PickList(c.Request.Context(), c.Param("entity"), c.Param("field"))
		if err != nil {
			writeError(c, log, err)
			return
		}
		q := c.Query("q")
		if q != "" {
			items := make([]rowset.Row, 0, len(labels))
			for _, l := range labels {
				items = append(items, rowset.Row{"label": l})
			}
			items = rowset.FreeText(items, q)
			labels = labels[:0]
			for _, it := range items {
				labels = append(labels, it["label"].(string))
			}
		}
		c.JSON(http.StatusOK, gin.H{"items": labels})
	}
}

// GET /api/entities/:entity/_resolve/:field/:code
func ResolveHandler(svc *browse.Service, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		label, err := svc.ResolveForDisplay(c.Request.Context(), c.Param("entity"), c.Param("field"), c.Param("code"))
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"label": label})
	}
}

type contractWithStagesReq struct {
	Contract browse.Input   `json:"contract"`
	Stages   []browse.Input `json:"stages"`
}

// POST /api/contracts/_with_stages — договор и этапы одной транзакцией
func ContractWithStagesHandler(svc *browse.Service, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req contractWithStagesReq
		if !bindJSON(c, &req) {
			return
		}
		id, err := svc.SaveContractWithStages(c.Request.Context(), req.Contract, req.Stages)
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"id": id, "stages": len(req.Stages)})
	}
}
