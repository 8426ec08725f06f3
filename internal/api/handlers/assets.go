package handlers

import (
	"net/http"

	"github.com/Fantasim/hdwallet/internal/api/httputil"
	"github.com/Fantasim/hdwallet/internal/models"
	"github.com/Fantasim/hdwallet/internal/wallet"
)

type assetInfo struct {
	Asset        models.Asset  `json:"asset"`
	Family       models.Family `json:"family"`
	PathTemplate string        `json:"pathTemplate"`
	Encoder      string        `json:"encoder"`
}

// ListAssets handles GET /api/assets.
func ListAssets(registry *wallet.Registry) http.HandlerFunc {
	specs := registry.Assets()
	out := make([]assetInfo, 0, len(specs))
	for _, s := range specs {
		out = append(out, assetInfo{
			Asset:        s.Asset,
			Family:       s.Family,
			PathTemplate: s.PathTemplate.String(),
			Encoder:      s.Kind.String(),
		})
	}

	return func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, out)
	}
}
