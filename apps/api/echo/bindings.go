package echoapi

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/canteen/core"
)

const (
	orderingParam    = "ordering"
	contextObjectKey = "object"
)

type Ordering struct {
	Orderings []core.DBOrdering
}

// Bind reads `?ordering=-field,field`; a leading "-" sorts descending.
func (ord *Ordering) Bind(ctx echo.Context) {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return
	}

	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

type (
	LoginRequest struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token string `json:"token"`
	}

	DestroyMultipleRequest struct {
		IDs []string `query:"id"`
	}

	DateRange struct {
		From core.Date `query:"from"`
		To   core.Date `query:"to"`
	}

	DateQuery struct {
		Date core.Date `query:"date"`
	}

	AbsenteesQuery struct {
		AsOf core.Date `query:"as_of"`
		Days int       `query:"days"`
	}

	ScanRequest struct {
		Payload string `json:"payload"`
	}
)

func (lr *LoginRequest) Validate(validate interface{ Struct(interface{}) error }) error {
	lr.Username = core.CleanString(lr.Username, true /* lower */)
	return validate.Struct(lr)
}
