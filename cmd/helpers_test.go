// ABOUTME: Test helpers for command tests
// ABOUTME: Points the global flags at a fake storefront and a temporary state directory

package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/markalston/storefront-client/internal/storefronttest"
)

// withFakeAPI starts a fake storefront with one shopper and a small catalog,
// and points apiURL and configDir at it until the test ends.
func withFakeAPI(t *testing.T) (*storefronttest.Server, int64) {
	t.Helper()

	t.Setenv("STOREFRONT_STORE_URL", "")
	t.Setenv("STOREFRONT_ENV_FILE", t.TempDir()+"/none.env")

	api := storefronttest.New(t)
	shopperID := api.AddUser("amina", "pass1234", false)
	api.AddUser("root", "rootpass1", true)
	api.AddProduct(1, "Kikoy towel", "12.50")
	api.AddProduct(2, "Sisal basket", "30.00")
	api.AddProduct(3, "Kitenge shirt", "45.00")

	prevURL, prevDir, prevJSON := apiURL, configDir, jsonOutput
	apiURL = api.BaseURL()
	configDir = t.TempDir()
	jsonOutput = false
	t.Cleanup(func() {
		apiURL, configDir, jsonOutput = prevURL, prevDir, prevJSON
	})
	return api, shopperID
}

func withJSON(t *testing.T) {
	t.Helper()
	jsonOutput = true
	t.Cleanup(func() { jsonOutput = false })
}

// runCmd runs a command body and returns its exit code and output
func runCmd(fn func(ctx context.Context, w *bytes.Buffer) int) (int, string) {
	var buf bytes.Buffer
	code := fn(context.Background(), &buf)
	return code, buf.String()
}

func login(t *testing.T, username, password string) {
	t.Helper()
	code, out := runCmd(func(ctx context.Context, w *bytes.Buffer) int {
		return runLogin(ctx, w, nil, username, password)
	})
	if code != exitOK {
		t.Fatalf("login %s: exit %d: %s", username, code, out)
	}
}

func decode(t *testing.T, out string) map[string]interface{} {
	t.Helper()
	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(out), &parsed); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, out)
	}
	return parsed
}
