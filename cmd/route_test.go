// ABOUTME: Tests for the route command
// ABOUTME: Verifies decisions for anonymous, shopper and admin sessions

package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/markalston/storefront-client/internal/guard"
)

func checkRoute(t *testing.T, path string) guard.Decision {
	t.Helper()
	prev := jsonOutput
	jsonOutput = true
	defer func() { jsonOutput = prev }()

	code, out := runCmd(func(ctx context.Context, w *bytes.Buffer) int { return runRoute(ctx, w, path) })
	if code != exitOK {
		t.Fatalf("route %s: exit %d: %s", path, code, out)
	}
	var res routeResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, out)
	}
	return res.Decision
}

func TestRoute_Anonymous(t *testing.T) {
	withFakeAPI(t)

	d := checkRoute(t, "/checkout")
	if d.Allow || d.Redirect != "/login?redirect=%2Fcheckout" {
		t.Errorf("expected redirect to login, got %+v", d)
	}

	d = checkRoute(t, "admin-page/orders")
	if d.Allow || d.Redirect != guard.AdminLoginPath {
		t.Errorf("expected redirect to admin login, got %+v", d)
	}

	d = checkRoute(t, "/category/baskets")
	if !d.Allow || d.Rule != "public" {
		t.Errorf("expected a public route, got %+v", d)
	}
}

func TestRoute_Shopper(t *testing.T) {
	withFakeAPI(t)
	login(t, "amina", "pass1234")

	if d := checkRoute(t, "/checkout"); !d.Allow {
		t.Errorf("expected checkout to be allowed, got %+v", d)
	}
	if d := checkRoute(t, "/login"); !d.Allow {
		t.Errorf("expected a shopper to reach the login page, got %+v", d)
	}
	if d := checkRoute(t, "/admin-page/dashboard"); d.Allow || d.Redirect != guard.AdminLoginPath {
		t.Errorf("expected redirect to admin login, got %+v", d)
	}
}

func TestRoute_Admin(t *testing.T) {
	withFakeAPI(t)
	login(t, "root", "rootpass1")

	if d := checkRoute(t, "/admin-page/products"); !d.Allow {
		t.Errorf("expected admin access, got %+v", d)
	}
	if d := checkRoute(t, "/login"); d.Allow || d.Redirect != guard.AdminDashboardPath {
		t.Errorf("expected an admin to be sent to the dashboard, got %+v", d)
	}
}

func TestRoute_ListsEveryRoute(t *testing.T) {
	withFakeAPI(t)

	code, out := runCmd(func(ctx context.Context, w *bytes.Buffer) int { return runRoute(ctx, w, "") })
	if code != exitOK {
		t.Fatalf("expected exit 0, got %d", code)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != len(guard.DefaultRoutes) {
		t.Errorf("expected %d routes, got %d", len(guard.DefaultRoutes), len(lines))
	}
	if !strings.Contains(out, "/orders") || !strings.Contains(out, "redirect") {
		t.Errorf("expected redirects for protected routes, got %q", out)
	}
}
