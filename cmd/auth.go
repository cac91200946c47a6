// ABOUTME: Account commands: login, logout, register, verify, password reset and whoami
// ABOUTME: Login merges the device cart into the account cart and reports each line

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/markalston/storefront-client/internal/cart"
	"github.com/markalston/storefront-client/internal/gateway"
	"github.com/markalston/storefront-client/internal/models"
	"github.com/markalston/storefront-client/internal/tui"
	"github.com/markalston/storefront-client/internal/tui/styles"
)

var errBadCredentials = errors.New("invalid username or password")

// loginRefusedError is a 403 from the login endpoint, such as an
// account that has not confirmed its email yet
type loginRefusedError struct {
	err *gateway.Error
}

func (e *loginRefusedError) Error() string {
	return e.err.Message
}

func (e *loginRefusedError) Unwrap() error {
	return e.err
}

// loginFailure keeps the server's reason for a refused login and
// hides which of username or password was wrong
func loginFailure(err error) error {
	var apiErr *gateway.Error
	if !errors.As(err, &apiErr) || apiErr.Kind != gateway.KindAuthorization {
		return err
	}
	if apiErr.Status == http.StatusForbidden && apiErr.Message != "" {
		return &loginRefusedError{err: apiErr}
	}
	return errBadCredentials
}

var (
	loginPassword string
	whoamiRefresh bool
	registerInput models.RegisterRequest
)

var loginCmd = &cobra.Command{
	Use:   "login [username]",
	Short: "Log in and merge this device's cart into your account",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		username := ""
		if len(args) == 1 {
			username = args[0]
		}
		run(func(ctx context.Context, w io.Writer) int {
			return runLogin(ctx, w, os.Stdin, username, loginPassword)
		})
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Log out and forget the saved session",
	Run: func(cmd *cobra.Command, args []string) {
		run(runLogout)
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged-in account",
	Run: func(cmd *cobra.Command, args []string) {
		run(func(ctx context.Context, w io.Writer) int {
			return runWhoami(ctx, w, whoamiRefresh)
		})
	},
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account",
	Long: `Create an account. The server emails a one-time code; confirm it with
'storefront verify <email> <code>' before logging in.`,
	Run: func(cmd *cobra.Command, args []string) {
		run(func(ctx context.Context, w io.Writer) int {
			return runRegister(ctx, w, os.Stdin, registerInput)
		})
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify <email> <code>",
	Short: "Confirm a new account with the emailed code",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		run(func(ctx context.Context, w io.Writer) int {
			return runVerify(ctx, w, args[0], args[1])
		})
	},
}

var passwordResetCmd = &cobra.Command{
	Use:   "password-reset <email>",
	Short: "Email a password reset link",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		run(func(ctx context.Context, w io.Writer) int {
			return runPasswordReset(ctx, w, args[0])
		})
	},
}

func init() {
	loginCmd.Flags().StringVarP(&loginPassword, "password", "p", "", "Password (prompted when omitted)")
	whoamiCmd.Flags().BoolVar(&whoamiRefresh, "refresh", false, "Check the session with the server")

	registerCmd.Flags().StringVar(&registerInput.Username, "username", "", "Username (prompted when omitted)")
	registerCmd.Flags().StringVar(&registerInput.Email, "email", "", "Email address")
	registerCmd.Flags().StringVar(&registerInput.Password, "password", "", "Password, at least 8 characters")
	registerCmd.Flags().StringVar(&registerInput.FirstName, "first-name", "", "First name")
	registerCmd.Flags().StringVar(&registerInput.LastName, "last-name", "", "Last name")
	registerCmd.Flags().StringVar(&registerInput.PhoneNumber, "phone", "", "Phone number")

	rootCmd.AddCommand(loginCmd, logoutCmd, whoamiCmd, registerCmd, verifyCmd, passwordResetCmd)
}

// runLogin authenticates and reports the cart merge
func runLogin(ctx context.Context, w io.Writer, in io.Reader, username, password string) int {
	return withApp(ctx, w, func(a *app) int {
		if username == "" || password == "" {
			p := tui.NewLoginPrompt(username)
			if err := p.Run(in, w); err != nil {
				return fail(w, err)
			}
			username, password = strings.TrimSpace(p.Username), p.Password
		}

		identity, err := a.session.Login(ctx, username, password)
		if err != nil {
			return fail(w, loginFailure(err))
		}

		report := a.cart.LastMerge()
		if IsJSONOutput() {
			writeJSON(w, formatLoginJSON(identity, report))
		} else {
			fmt.Fprintln(w, formatLoginHuman(identity, report))
		}
		return exitOK
	})
}

func formatLoginHuman(identity models.Identity, report *cart.MergeReport) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Logged in as %s (%s)", styles.ValueStyle.Render(identity.Username), identity.Role)
	if report == nil || report.Attempted == 0 {
		return sb.String()
	}

	fmt.Fprintf(&sb, "\nMerged %d of %d cart lines into your account cart", len(report.Merged), report.Attempted)
	for _, f := range report.Failed {
		fmt.Fprintf(&sb, "\n  %s product %d x%d: %s",
			styles.StatusCritical.Render("not added"), f.Line.ProductID, f.Line.Quantity, f.Err)
	}
	if len(report.Failed) > 0 {
		sb.WriteString("\n" + styles.Help.Render("Lines that could not be added were removed from this device."))
	}
	return sb.String()
}

type mergeFailureJSON struct {
	ProductID int64  `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Error     string `json:"error"`
}

func formatLoginJSON(identity models.Identity, report *cart.MergeReport) map[string]interface{} {
	out := map[string]interface{}{"user": identity}
	if report != nil {
		failed := make([]mergeFailureJSON, 0, len(report.Failed))
		for _, f := range report.Failed {
			failed = append(failed, mergeFailureJSON{ProductID: f.Line.ProductID, Quantity: f.Line.Quantity, Error: f.Err.Error()})
		}
		out["merge"] = map[string]interface{}{
			"cart_id":   report.CartID,
			"attempted": report.Attempted,
			"merged":    len(report.Merged),
			"failed":    failed,
		}
	}
	return out
}

func runLogout(ctx context.Context, w io.Writer) int {
	return withApp(ctx, w, func(a *app) int {
		if !a.session.IsAuthenticated() {
			fmt.Fprintln(w, "Not logged in")
			return exitOK
		}
		a.session.Logout(ctx)
		if IsJSONOutput() {
			writeJSON(w, map[string]bool{"logged_out": true})
		} else {
			fmt.Fprintln(w, "Logged out")
		}
		return exitOK
	})
}

func runWhoami(ctx context.Context, w io.Writer, refresh bool) int {
	return withApp(ctx, w, func(a *app) int {
		identity := a.session.Identity()
		if identity != nil && refresh {
			fresh, err := a.session.RefreshIdentity(ctx)
			if err != nil {
				return fail(w, err)
			}
			identity = &fresh
		}

		if IsJSONOutput() {
			writeJSON(w, map[string]interface{}{
				"authenticated": identity != nil,
				"user":          identity,
			})
			return exitOK
		}
		if identity == nil {
			fmt.Fprintln(w, "Not logged in")
			return exitOK
		}
		fmt.Fprintf(w, "Username: %s\nEmail:    %s\nRole:     %s\nUser ID:  %d\n",
			identity.Username, identity.Email, identity.Role, identity.ID)
		return exitOK
	})
}

func runRegister(ctx context.Context, w io.Writer, in io.Reader, req models.RegisterRequest) int {
	return withApp(ctx, w, func(a *app) int {
		if req.Username == "" {
			p := tui.NewRegisterPrompt()
			if err := p.Run(in, w); err != nil {
				return fail(w, err)
			}
			req = p.Input
		}
		if req.ConfirmPassword == "" {
			req.ConfirmPassword = req.Password
		}

		res, err := a.session.Register(ctx, req)
		if err != nil {
			return fail(w, err)
		}

		if IsJSONOutput() {
			writeJSON(w, res)
			return exitOK
		}
		fmt.Fprintf(w, "Account %s created\n", res.Username)
		if res.RequiresOTP {
			fmt.Fprintf(w, "Check %s for a verification code, then run: storefront verify %s <code>\n", res.Email, res.Email)
		}
		return exitOK
	})
}

func runVerify(ctx context.Context, w io.Writer, email, code string) int {
	return withApp(ctx, w, func(a *app) int {
		if err := a.session.Client().VerifyOTP(ctx, email, code); err != nil {
			return fail(w, err)
		}
		if IsJSONOutput() {
			writeJSON(w, map[string]bool{"verified": true})
		} else {
			fmt.Fprintln(w, "Email verified. You can now log in.")
		}
		return exitOK
	})
}

func runPasswordReset(ctx context.Context, w io.Writer, email string) int {
	return withApp(ctx, w, func(a *app) int {
		if err := a.session.Client().RequestPasswordReset(ctx, email); err != nil {
			return fail(w, err)
		}
		if IsJSONOutput() {
			writeJSON(w, map[string]bool{"requested": true})
		} else {
			fmt.Fprintf(w, "If %s has an account, a reset link is on its way.\n", email)
		}
		return exitOK
	})
}
