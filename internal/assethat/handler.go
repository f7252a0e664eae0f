package assethat

import (
	"net/http"

	"github.com/goccy/go-json"
)

type resolveResponse struct {
	Type    AssetType `json:"type"`
	Sources []string  `json:"sources"`
	URLs    []string  `json:"urls"`
	HTML    string    `json:"html,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// ResolveHandler shows what a helper call resolves to, for debugging:
//
//	GET /_assethat/resolve?type=js&arg=vendor:jquery&arg=bundle:app&arg=ssl=true
//
// Each arg is parsed like a template helper argument.
func (s *Service) ResolveHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
			return
		}
		q := r.URL.Query()
		t, err := ParseAssetType(q.Get("type"))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		refs, opts, err := ParseArgs(q["arg"])
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}

		ctx := r.Context()
		sources, err := s.Sources(ctx, t, refs, opts)
		if err != nil {
			writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
			return
		}
		rendered, err := s.Include(ctx, t, refs, opts)
		if err != nil {
			writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
			return
		}

		resp := resolveResponse{Type: t, Sources: make([]string, 0, len(sources)), URLs: rendered.URLs, HTML: string(rendered.HTML)}
		for _, src := range sources {
			resp.Sources = append(resp.Sources, src.Path)
		}
		if resp.URLs == nil {
			resp.URLs = []string{}
		}
		writeJSON(w, http.StatusOK, resp)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
