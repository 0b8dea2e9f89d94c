package api

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"dogovor/internal/browse"
)

type invalidateReq struct {
	Entity string `json:"entity" binding:"required"`
}

// GET /api/admin/cache — какие справочники сейчас в кэше
func AdminCacheHandler(svc *browse.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		keys := svc.Resolver().Cache().Keys()
		out := make([]string, 0, len(keys))
		for _, k := range keys {
			out = append(out, k.String())
		}
		sort.Strings(out)
		c.JSON(http.StatusOK, gin.H{"keys": out})
	}
}

// POST /api/admin/cache/_invalidate — сброс после правки справочника в обход сервиса
func AdminInvalidateHandler(svc *browse.Service, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req invalidateReq
		if !bindJSON(c, &req) {
			return
		}
		e, err := svc.Catalog().Entity(req.Entity)
		if err != nil {
			writeError(c, log, err)
			return
		}
		touched := svc.Resolver().Cache().Invalidate(e.Name)
		log.Info("reference cache reset", zap.String("entity", e.Name), zap.Strings("touched", touched))
		c.JSON(http.StatusOK, gin.H{"ok": true, "entities": touched})
	}
}
