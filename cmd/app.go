// ABOUTME: Wires storage, the API gateway, the session and its listeners for one command
// ABOUTME: Restores the saved session on open and persists ambient cookies on close

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/markalston/storefront-client/internal/cart"
	"github.com/markalston/storefront-client/internal/config"
	"github.com/markalston/storefront-client/internal/gateway"
	"github.com/markalston/storefront-client/internal/guard"
	"github.com/markalston/storefront-client/internal/orders"
	"github.com/markalston/storefront-client/internal/search"
	"github.com/markalston/storefront-client/internal/session"
	"github.com/markalston/storefront-client/internal/storage"
)

// redisKeyPrefix namespaces device state in a shared Redis
const redisKeyPrefix = "storefront:"

type app struct {
	cfg     *config.Config
	store   *storage.Store
	builder *gateway.Builder
	session *session.Manager
	cart    *cart.Synchronizer
	orders  *orders.Service
	recent  *search.Recent
	guard   *guard.Guard
	closeKV func() error
}

// openApp builds the object graph and restores any saved session
func openApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	var kv storage.KV
	closeKV := func() error { return nil }
	if cfg.UsesRedis() {
		r, err := storage.OpenRedisKV(cfg.StoreURL, redisKeyPrefix)
		if err != nil {
			return nil, err
		}
		kv, closeKV = r, r.Close
	} else {
		kv = storage.NewFileKV(cfg.ConfigDir)
	}
	store := storage.New(kv)

	builder, err := gateway.NewBuilder(gateway.Options{
		BaseURL:  cfg.APIURL,
		Timeout:  cfg.Timeout,
		AllProxy: cfg.AllProxy,
	})
	if err != nil {
		closeKV()
		return nil, err
	}
	if cookies := store.LoadCookies(); len(cookies) > 0 {
		builder.Jar().SetCookies(builder.BaseURL(), cookies)
	}

	a := &app{
		cfg:     cfg,
		store:   store,
		builder: builder,
		session: session.New(store, builder),
		cart:    cart.New(store),
		orders:  orders.New(cfg.OrdersCacheTTL),
		recent:  search.New(store),
		guard:   guard.New(guard.DefaultRoutes),
		closeKV: closeKV,
	}
	a.session.Subscribe(a.cart)
	a.session.Subscribe(a.orders)

	if a.session.Restore(ctx) {
		slog.Debug("Using saved session", "user", a.session.Identity().Username)
	}
	return a, nil
}

// Close saves cookies and releases the store
func (a *app) Close() {
	a.store.SaveCookies(a.builder.Jar().Cookies(a.builder.BaseURL()))
	a.orders.Close()
	if err := a.closeKV(); err != nil {
		slog.Warn("Failed to close state store", "error", err)
	}
}

// withApp opens the app, reports setup errors and closes it afterwards
func withApp(ctx context.Context, w io.Writer, fn func(a *app) int) int {
	a, err := openApp(ctx)
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return exitUsage
	}
	defer a.Close()
	return fn(a)
}

// fail prints an error the way every command does and returns its exit code
func fail(w io.Writer, err error) int {
	if IsJSONOutput() {
		out := map[string]interface{}{"error": describe(err)}
		if kind, ok := gateway.KindOf(err); ok {
			out["kind"] = kind.String()
		}
		writeJSON(w, out)
	} else {
		fmt.Fprintf(w, "Error: %s\n", describe(err))
	}
	return exitCodeFor(err)
}

func writeJSON(w io.Writer, v interface{}) {
	data, _ := json.MarshalIndent(v, "", "  ")
	fmt.Fprintln(w, string(data))
}
