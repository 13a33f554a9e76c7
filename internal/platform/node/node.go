package node

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.opencensus.io/trace"
)

// ctxKey represents the type of value for the context key.
type ctxKey int

// KeyValues is how request values or stored/retrieved.
const KeyValues ctxKey = 1

// Values represent state for each request.
type Values struct {
	TraceID    string
	Now        time.Time
	StatusCode int
	Error      bool
}

// A Handler is a type that handles a HTTP request within our own little mini
// framework.
type Handler func(ctx context.Context, w http.ResponseWriter, r *http.Request) error

// App is the entrypoint into our application and what configures our context
// object for each of our http handlers.
type App struct {
	ctx    context.Context
	router *mux.Router
	mw     []Middleware
}

// New creates an App value that handle a set of routes for the application. The context carries
// the logging configuration given to every request.
func New(ctx context.Context, mw ...Middleware) *App {
	return &App{
		ctx:    ctx,
		router: mux.NewRouter(),
		mw:     mw,
	}
}

// Handle is our mechanism for mounting Handlers for a given method and path.
func (a *App) Handle(method, path string, handler Handler, mw ...Middleware) {

	// Wrap up the application-wide first, this will call the first function
	// of each middleware which will return a function of type Handler.
	handler = wrapMiddleware(wrapMiddleware(handler, mw), a.mw)

	// The function to execute for each request.
	h := func(w http.ResponseWriter, r *http.Request) {

		// Start trace span.
		ctx, span := trace.StartSpan(a.requestContext(r), "internal.platform.node")
		defer span.End()

		traceID := uuid.New().String()

		// Set the context with the required values to
		// process the request.
		v := Values{
			TraceID: traceID,
			Now:     time.Now(),
		}
		ctx = context.WithValue(ctx, KeyValues, &v)
		ctx = ContextWithLogTrace(ctx, traceID)

		// Call the wrapped handler functions.
		if err := handler(ctx, w, r); err != nil {
			RespondError(ctx, w, err)
		}
	}

	a.router.HandleFunc(path, h).Methods(method)
}

// Mount adds a plain http.Handler, like the metrics handler, at path.
func (a *App) Mount(path string, handler http.Handler) {
	a.router.Handle(path, handler)
}

// ServeHTTP implements the http.Handler interface.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.router.ServeHTTP(w, r)
}

// Params returns the path parameters of the request.
func Params(r *http.Request) map[string]string {
	return mux.Vars(r)
}

// requestContext returns the request's context carrying the app's logging configuration.
func (a *App) requestContext(r *http.Request) context.Context {
	return &mergedContext{Context: r.Context(), values: a.ctx}
}

// mergedContext takes cancellation from the request and falls back to the app context for values.
type mergedContext struct {
	context.Context
	values context.Context
}

func (c *mergedContext) Value(key interface{}) interface{} {
	if v := c.Context.Value(key); v != nil {
		return v
	}
	return c.values.Value(key)
}
