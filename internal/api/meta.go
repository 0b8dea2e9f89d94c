package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"dogovor/internal/browse"
	"dogovor/internal/catalog"
)

type metaEntityListItem struct {
	Entity string `json:"entity"`
	Label  string `json:"label"`
}

// GET /api/meta
func MetaListHandler(svc *browse.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		ents := svc.Catalog().Entities()
		out := make([]metaEntityListItem, 0, len(ents))
		for _, e := range ents {
			out = append(out, metaEntityListItem{Entity: e.Name, Label: e.Label})
		}
		c.JSON(http.StatusOK, out)
	}
}

type metaField struct {
	Name      string       `json:"name"`
	Label     string       `json:"label"`
	Kind      catalog.Kind `json:"kind"`
	Ref       string       `json:"ref,omitempty"` // entity.label_field
	Required  bool         `json:"required,omitempty"`
	Readonly  bool         `json:"readonly,omitempty"`
	Generated bool         `json:"generated,omitempty"`
	Default   string       `json:"default,omitempty"`
	OnDelete  string       `json:"onDelete,omitempty"`
}

type metaEntity struct {
	Entity      string         `json:"entity"`
	Label       string         `json:"label"`
	PrimaryKey  string         `json:"primaryKey"`
	Fields      []metaField    `json:"fields"`
	Constraints map[string]any `json:"constraints,omitempty"` // {"unique":[["contract_code","stage_number"]]}
	Invalidates []string       `json:"invalidates,omitempty"`
}

// GET /api/meta/:entity
func MetaEntityHandler(svc *browse.Service, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		e, err := svc.Catalog().Entity(c.Param("entity"))
		if err != nil {
			writeError(c, log, err)
			return
		}

		fields := make([]metaField, 0, len(e.Fields))
		for _, f := range e.Fields {
			mf := metaField{
				Name:      f.Name,
				Label:     f.Label,
				Kind:      f.Kind,
				Required:  f.Required,
				Readonly:  f.Readonly,
				Generated: f.Generated,
				Default:   f.Default,
				OnDelete:  f.OnDelete,
			}
			if f.Ref != nil {
				mf.Ref = f.Ref.Entity + "." + f.Ref.LabelColumn
			}
			fields = append(fields, mf)
		}

		out := metaEntity{
			Entity:      e.Name,
			Label:       e.Label,
			PrimaryKey:  e.PrimaryKey().Name,
			Fields:      fields,
			Invalidates: e.Invalidates,
		}
		if len(e.Unique) > 0 {
			out.Constraints = map[string]any{"unique": e.Unique}
		}
		c.JSON(http.StatusOK, out)
	}
}
