// ABOUTME: Tests for the account commands
// ABOUTME: Verifies login merge reporting, session persistence between runs and logout

package cmd

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/markalston/storefront-client/internal/cart"
	"github.com/markalston/storefront-client/internal/models"
	"github.com/markalston/storefront-client/internal/storefronttest"
)

func addToDevice(t *testing.T, productID int64, qty int) {
	t.Helper()
	code, out := runCmd(func(ctx context.Context, w *bytes.Buffer) int {
		return runCartAdd(ctx, w, cart.AddRequest{ProductID: productID, Quantity: qty, Price: decimal.RequireFromString("10.00")})
	})
	if code != exitOK {
		t.Fatalf("add %d: exit %d: %s", productID, code, out)
	}
}

func TestLogin_MergesDeviceCart(t *testing.T) {
	api, shopperID := withFakeAPI(t)

	addToDevice(t, 1, 2)
	addToDevice(t, 2, 1)

	withJSON(t)
	code, out := runCmd(func(ctx context.Context, w *bytes.Buffer) int {
		return runLogin(ctx, w, nil, "amina", "pass1234")
	})
	if code != exitOK {
		t.Fatalf("expected exit 0, got %d: %s", code, out)
	}

	parsed := decode(t, out)
	merge, ok := parsed["merge"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected a merge report, got %v", parsed)
	}
	if merge["attempted"] != float64(2) || merge["merged"] != float64(2) {
		t.Errorf("expected 2 of 2 merged, got %v", merge)
	}
	if failed := merge["failed"].([]interface{}); len(failed) != 0 {
		t.Errorf("expected no failures, got %v", failed)
	}

	remote := api.Cart(shopperID)
	if remote == nil || len(remote.Lines) != 2 {
		t.Fatalf("expected 2 lines in the account cart, got %+v", remote)
	}
}

func TestLogin_ReportsLinesThatFailed(t *testing.T) {
	api, shopperID := withFakeAPI(t)
	api.FailAddItem(2, http.StatusBadRequest)

	addToDevice(t, 1, 1)
	addToDevice(t, 2, 3)

	code, out := runCmd(func(ctx context.Context, w *bytes.Buffer) int {
		return runLogin(ctx, w, nil, "amina", "pass1234")
	})
	if code != exitOK {
		t.Fatalf("a partial merge still logs in, got exit %d: %s", code, out)
	}
	if !strings.Contains(out, "Merged 1 of 2") {
		t.Errorf("expected merge summary, got %q", out)
	}
	if !strings.Contains(out, "product 2 x3") {
		t.Errorf("expected the failed line to be named, got %q", out)
	}

	if got := api.Cart(shopperID); got == nil || len(got.Lines) != 1 {
		t.Errorf("expected only the good line on the server, got %+v", got)
	}

	// The device cart was cleared, so a later logout starts empty
	runCmd(func(ctx context.Context, w *bytes.Buffer) int { return runLogout(ctx, w) })
	withJSON(t)
	_, out = runCmd(func(ctx context.Context, w *bytes.Buffer) int { return runCartList(ctx, w) })
	parsed := decode(t, out)
	if parsed["mode"] != "local" || parsed["item_count"] != float64(0) {
		t.Errorf("expected an empty device cart after logout, got %v", parsed)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	withFakeAPI(t)

	code, out := runCmd(func(ctx context.Context, w *bytes.Buffer) int {
		return runLogin(ctx, w, nil, "amina", "wrong")
	})
	if code != exitUsage {
		t.Errorf("expected exit %d, got %d", exitUsage, code)
	}
	if !strings.Contains(out, "Error:") {
		t.Errorf("expected an error, got %q", out)
	}
}

func TestWhoami_SessionSurvivesBetweenRuns(t *testing.T) {
	withFakeAPI(t)
	login(t, "amina", "pass1234")

	withJSON(t)
	code, out := runCmd(func(ctx context.Context, w *bytes.Buffer) int {
		return runWhoami(ctx, w, true)
	})
	if code != exitOK {
		t.Fatalf("expected exit 0, got %d: %s", code, out)
	}
	parsed := decode(t, out)
	if parsed["authenticated"] != true {
		t.Fatalf("expected a restored session, got %v", parsed)
	}
	user := parsed["user"].(map[string]interface{})
	if user["username"] != "amina" {
		t.Errorf("expected amina, got %v", user["username"])
	}
}

func TestWhoami_RevokedTokenClearsSession(t *testing.T) {
	api, _ := withFakeAPI(t)
	login(t, "amina", "pass1234")
	api.RevokeTokens()

	code, _ := runCmd(func(ctx context.Context, w *bytes.Buffer) int {
		return runWhoami(ctx, w, true)
	})
	if code != exitUsage {
		t.Errorf("expected exit %d, got %d", exitUsage, code)
	}

	_, out := runCmd(func(ctx context.Context, w *bytes.Buffer) int {
		return runWhoami(ctx, w, false)
	})
	if !strings.Contains(out, "Not logged in") {
		t.Errorf("expected the saved session to be gone, got %q", out)
	}
}

func TestLogout(t *testing.T) {
	withFakeAPI(t)
	login(t, "amina", "pass1234")

	code, out := runCmd(func(ctx context.Context, w *bytes.Buffer) int { return runLogout(ctx, w) })
	if code != exitOK || !strings.Contains(out, "Logged out") {
		t.Fatalf("expected logout, got %d: %q", code, out)
	}

	_, out = runCmd(func(ctx context.Context, w *bytes.Buffer) int { return runLogout(ctx, w) })
	if !strings.Contains(out, "Not logged in") {
		t.Errorf("expected second logout to be a no-op, got %q", out)
	}
}

func TestRegisterAndVerify(t *testing.T) {
	withFakeAPI(t)

	code, out := runCmd(func(ctx context.Context, w *bytes.Buffer) int {
		return runRegister(ctx, w, nil, models.RegisterRequest{
			Username: "baraka",
			Email:    "baraka@example.com",
			Password: "longenough1",
		})
	})
	if code != exitOK {
		t.Fatalf("expected exit 0, got %d: %s", code, out)
	}
	if !strings.Contains(out, "baraka") {
		t.Errorf("expected the new account to be named, got %q", out)
	}

	code, out = runCmd(func(ctx context.Context, w *bytes.Buffer) int {
		return runLogin(ctx, w, nil, "baraka", "longenough1")
	})
	if code != exitUsage {
		t.Errorf("expected an unverified login to fail with exit %d, got %d", exitUsage, code)
	}
	if !strings.Contains(out, "verify your email") {
		t.Errorf("expected the server's reason, got %q", out)
	}

	code, _ = runCmd(func(ctx context.Context, w *bytes.Buffer) int {
		return runVerify(ctx, w, "baraka@example.com", "000000")
	})
	if code != exitUsage {
		t.Errorf("expected a wrong code to fail with exit %d, got %d", exitUsage, code)
	}

	code, out = runCmd(func(ctx context.Context, w *bytes.Buffer) int {
		return runVerify(ctx, w, "baraka@example.com", storefronttest.ValidOTP)
	})
	if code != exitOK || !strings.Contains(out, "verified") {
		t.Errorf("expected verification, got %d: %q", code, out)
	}

	login(t, "baraka", "longenough1")
}

func TestLogin_WrongPasswordHidesWhichFieldFailed(t *testing.T) {
	withFakeAPI(t)
	withJSON(t)

	_, out := runCmd(func(ctx context.Context, w *bytes.Buffer) int {
		return runLogin(ctx, w, nil, "amina", "wrong")
	})
	parsed := decode(t, out)
	if parsed["error"] != errBadCredentials.Error() {
		t.Errorf("expected %q, got %v", errBadCredentials, parsed["error"])
	}
}

func TestLogin_RevokedDuringMergeIsNotASuccess(t *testing.T) {
	api, _ := withFakeAPI(t)
	api.FailAddItem(1, http.StatusUnauthorized)

	addToDevice(t, 1, 1)
	addToDevice(t, 2, 1)

	code, out := runCmd(func(ctx context.Context, w *bytes.Buffer) int {
		return runLogin(ctx, w, nil, "amina", "pass1234")
	})
	if code != exitUsage {
		t.Errorf("expected exit %d, got %d: %s", exitUsage, code, out)
	}
	if strings.Contains(out, "Logged in") {
		t.Errorf("expected no success message, got %q", out)
	}

	_, out = runCmd(func(ctx context.Context, w *bytes.Buffer) int { return runWhoami(ctx, w, false) })
	if !strings.Contains(out, "Not logged in") {
		t.Errorf("expected no saved session, got %q", out)
	}

	withJSON(t)
	_, out = runCmd(func(ctx context.Context, w *bytes.Buffer) int { return runCartList(ctx, w) })
	parsed := decode(t, out)
	if parsed["mode"] != "local" || parsed["item_count"] != float64(2) {
		t.Errorf("expected both lines back on the device, got %v", parsed)
	}
}

func TestPasswordReset(t *testing.T) {
	withFakeAPI(t)

	code, out := runCmd(func(ctx context.Context, w *bytes.Buffer) int {
		return runPasswordReset(ctx, w, "amina@example.com")
	})
	if code != exitOK || !strings.Contains(out, "reset link") {
		t.Errorf("expected reset request, got %d: %q", code, out)
	}

	code, _ = runCmd(func(ctx context.Context, w *bytes.Buffer) int {
		return runPasswordReset(ctx, w, "not-an-email")
	})
	if code != exitUsage {
		t.Errorf("expected exit %d for a bad address, got %d", exitUsage, code)
	}
}
