package gateway

import (
	"log/slog"
	"net/http"

	"github.com/ISA-Forensic/GiSaWeb/pkg/access"
	"github.com/ISA-Forensic/GiSaWeb/pkg/catalog"
	"github.com/ISA-Forensic/GiSaWeb/pkg/gateway/middleware"
	"github.com/ISA-Forensic/GiSaWeb/pkg/knowledge"
	"github.com/ISA-Forensic/GiSaWeb/pkg/registry"
	"github.com/ISA-Forensic/GiSaWeb/pkg/relay"
	"github.com/ISA-Forensic/GiSaWeb/pkg/route"
	"github.com/ISA-Forensic/GiSaWeb/pkg/speechcache"
	"github.com/ISA-Forensic/GiSaWeb/pkg/upstream"
)

// Gateway bundles the gateway components behind the HTTP surface.
type Gateway struct {
	state      *State
	registry   *registry.Registry
	aggregator *catalog.Aggregator
	filter     *catalog.Filter
	router     *route.Router
	relay      *relay.Relay
	knowledge  *knowledge.Service
	speech     *speechcache.Cache
	client     *upstream.Client
	logger     *slog.Logger
}

// New creates a gateway. speech may be nil to disable the audio cache.
func New(
	state *State,
	reg *registry.Registry,
	agg *catalog.Aggregator,
	filter *catalog.Filter,
	router *route.Router,
	rel *relay.Relay,
	kn *knowledge.Service,
	speech *speechcache.Cache,
	client *upstream.Client,
) *Gateway {
	return &Gateway{
		state:      state,
		registry:   reg,
		aggregator: agg,
		filter:     filter,
		router:     router,
		relay:      rel,
		knowledge:  kn,
		speech:     speech,
		client:     client,
		logger:     slog.Default().With("component", "gateway"),
	}
}

// Register registers the gateway routes on mux. The catch-all pattern is
// last-resort by ServeMux precedence, so the named routes always win.
func (g *Gateway) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /openai/config", g.handleGetConfig)
	mux.HandleFunc("POST /openai/config/update", g.handleUpdateConfig)
	mux.HandleFunc("GET /openai/models", g.handleListModels)
	mux.HandleFunc("GET /openai/models/{idx}", g.handleListConnectionModels)
	mux.HandleFunc("POST /openai/chat/completions", g.handleChatCompletions)
	mux.HandleFunc("POST /openai/verify", g.handleVerify)
	mux.HandleFunc("GET /openai/knowledge-bases", g.handleListKnowledgeBases)
	mux.HandleFunc("POST /openai/knowledge-bases/{id}/permissions", g.handleUpdatePermissions)
	mux.HandleFunc("POST /openai/knowledge-bases/bulk-permissions", g.handleBulkPermissions)
	mux.HandleFunc("POST /openai/audio/speech", g.handleSpeech)
	mux.HandleFunc("/openai/{path...}", g.handleProxy)
}

// caller extracts the authenticated caller, falling back to an anonymous
// user role when the auth middleware is not installed.
func (g *Gateway) caller(r *http.Request) *access.Caller {
	if caller, ok := middleware.GetCaller(r.Context()); ok {
		return caller
	}
	return &access.Caller{Role: access.RoleUser}
}

// requireAdmin writes a 403 and returns false unless the caller is an admin.
func (g *Gateway) requireAdmin(w http.ResponseWriter, r *http.Request) (*access.Caller, bool) {
	caller := g.caller(r)
	if !caller.IsAdmin() {
		writeDetail(w, http.StatusForbidden, "Administrator access required")
		return nil, false
	}
	return caller, true
}
