package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/angelmondragon/marketwatch-backend/api/responses"
	pkgerrors "github.com/angelmondragon/marketwatch-backend/pkg/errors"
	"github.com/angelmondragon/marketwatch-backend/pkg/logger"
)

func writePage(w http.ResponseWriter, items any, page, limit int, total int64) {
	responses.WritePage(w, items, page, limit, total)
}

func unavailable(r *http.Request, logg *logger.Logger, w http.ResponseWriter, name string) {
	responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, name+" service unavailable"))
}

// overrideFlag reads the admin override switch from ?override=true.
func overrideFlag(r *http.Request) (bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("override"))
	if raw == "" {
		return false, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "override must be a boolean")
	}
	return value, nil
}

type rejectRequest struct {
	Reason   string `json:"reason" validate:"required,max=500"`
	Feedback string `json:"feedback" validate:"required,max=2000"`
}
