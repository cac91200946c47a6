// ABOUTME: Typed storefront endpoints built on the shared call path
// ABOUTME: Auth, cart, order and product search requests and their wire shapes

package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/markalston/storefront-client/internal/models"
)

var (
	epLogin          = endpoint{method: http.MethodPost, path: "auth/login/", public: true, authFlow: true}
	epLogout         = endpoint{method: http.MethodPost, path: "auth/logout/", authFlow: true}
	epRegister       = endpoint{method: http.MethodPost, path: "auth/register/", public: true, authFlow: true}
	epPasswordReset  = endpoint{method: http.MethodPost, path: "auth/password-reset/", public: true, authFlow: true}
	epVerifyOTP      = endpoint{method: http.MethodPost, path: "auth/verify-otp/", public: true, authFlow: true}
	epCurrentUser    = endpoint{method: http.MethodGet, path: "auth/user/"}
	epFetchCart      = endpoint{method: http.MethodGet, path: "users/%d/cart/"}
	epCreateCart     = endpoint{method: http.MethodPost, path: "users/%d/create_cart/"}
	epAddItem        = endpoint{method: http.MethodPost, path: "carts/%d/add_item/"}
	epRemoveItem     = endpoint{method: http.MethodPost, path: "carts/%d/remove_item/"}
	epCheckout       = endpoint{method: http.MethodPost, path: "carts/%d/checkout/"}
	epOrders         = endpoint{method: http.MethodGet, path: "orders/"}
	epCancelOrder    = endpoint{method: http.MethodPost, path: "orders/%d/cancel/"}
	epSearchProducts = endpoint{method: http.MethodGet, path: "products/search/"}
)

// LoginResult is the server's answer to a successful login
type LoginResult struct {
	Message  string `json:"message"`
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Token    string `json:"token"`
	UserType string `json:"user_type,omitempty"`
}

// RegisterResult is returned after account creation
type RegisterResult struct {
	Message     string `json:"message,omitempty"`
	UserID      int64  `json:"user_id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	RequiresOTP bool   `json:"requires_otp"`
}

type userResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	IsStaff  bool   `json:"is_staff"`
	UserType string `json:"user_type"`
}

func (u userResponse) identity() models.Identity {
	role := models.RoleCustomer
	if u.IsStaff || u.UserType == "admin" {
		role = models.RoleAdmin
	}
	return models.Identity{ID: u.ID, Username: u.Username, Email: u.Email, Role: role}
}

// AddItemRequest adds a product to the remote cart
type AddItemRequest struct {
	ProductID  int64             `json:"productId"`
	VariantID  *int64            `json:"variantId,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Quantity   int               `json:"quantity"`
}

// CheckoutRequest places an order for the remote cart
type CheckoutRequest struct {
	ShippingMethod  int64  `json:"shipping_method,omitempty"`
	ShippingAddress string `json:"shipping_address,omitempty"`
	PaymentMethod   string `json:"payment_method,omitempty"`
}

// CheckoutResult is the server's answer to checkout
type CheckoutResult struct {
	Message string             `json:"message,omitempty"`
	Orders  []models.Order     `json:"orders,omitempty"`
	Cart    *models.RemoteCart `json:"cart,omitempty"`
}

// SearchResult is one page of product search results
type SearchResult struct {
	Count    int              `json:"count"`
	Next     string           `json:"next,omitempty"`
	Previous string           `json:"previous,omitempty"`
	Results  []models.Product `json:"results"`
}

// Login exchanges credentials for a token
func (c *Client) Login(ctx context.Context, username, password string) (LoginResult, error) {
	return call[LoginResult](ctx, c, request{
		ep:   epLogin,
		body: models.LoginRequest{Username: username, Password: password},
	}).Unwrap()
}

// Logout ends the server-side session
func (c *Client) Logout(ctx context.Context) error {
	return call[struct{}](ctx, c, request{ep: epLogout}).Err
}

// Register creates an account. The server follows up with an OTP email.
func (c *Client) Register(ctx context.Context, in models.RegisterRequest) (RegisterResult, error) {
	return call[RegisterResult](ctx, c, request{ep: epRegister, body: in}).Unwrap()
}

// RequestPasswordReset asks the server to email a reset link
func (c *Client) RequestPasswordReset(ctx context.Context, email string) error {
	return call[struct{}](ctx, c, request{
		ep:   epPasswordReset,
		body: map[string]string{"email": email},
	}).Err
}

// VerifyOTP confirms a registration code
func (c *Client) VerifyOTP(ctx context.Context, email, code string) error {
	return call[struct{}](ctx, c, request{
		ep:   epVerifyOTP,
		body: map[string]string{"email": email, "otp": code},
	}).Err
}

// CurrentUser fetches the identity behind the bound credential
func (c *Client) CurrentUser(ctx context.Context) (models.Identity, error) {
	res := call[userResponse](ctx, c, request{ep: epCurrentUser})
	if res.Err != nil {
		return models.Identity{}, res.Err
	}
	return res.Value.identity(), nil
}

// FetchCart returns the user's cart; a missing cart is a 404 error
func (c *Client) FetchCart(ctx context.Context, userID int64) (*models.RemoteCart, error) {
	return call[*models.RemoteCart](ctx, c, request{ep: epFetchCart, args: []interface{}{userID}}).Unwrap()
}

// CreateCart creates an empty cart for the user
func (c *Client) CreateCart(ctx context.Context, userID int64) (*models.RemoteCart, error) {
	return call[*models.RemoteCart](ctx, c, request{ep: epCreateCart, args: []interface{}{userID}}).Unwrap()
}

// AddItem adds a line and returns the whole cart as the server now sees it
func (c *Client) AddItem(ctx context.Context, cartID int64, in AddItemRequest) (*models.RemoteCart, error) {
	res := call[json.RawMessage](ctx, c, request{ep: epAddItem, args: []interface{}{cartID}, body: in})
	if res.Err != nil {
		return nil, res.Err
	}
	return c.cartFromResponse(ctx, res.Value)
}

// RemoveItem removes a line and returns the whole cart as the server now sees it
func (c *Client) RemoveItem(ctx context.Context, cartID, itemID int64) (*models.RemoteCart, error) {
	res := call[json.RawMessage](ctx, c, request{
		ep:   epRemoveItem,
		args: []interface{}{cartID},
		body: map[string]int64{"item_id": itemID},
	})
	if res.Err != nil {
		return nil, res.Err
	}
	return c.cartFromResponse(ctx, res.Value)
}

// Checkout places the order. When the server omits the cart it is fetched again;
// a cart the server already removed comes back as nil.
func (c *Client) Checkout(ctx context.Context, cartID int64, in CheckoutRequest) (CheckoutResult, error) {
	res := call[CheckoutResult](ctx, c, request{ep: epCheckout, args: []interface{}{cartID}, body: in})
	if res.Err != nil {
		return CheckoutResult{}, res.Err
	}
	out := res.Value
	if out.Cart == nil && c.snapshot.UserID != 0 {
		cart, err := c.FetchCart(ctx, c.snapshot.UserID)
		if err != nil && !IsNotFound(err) {
			return out, err
		}
		out.Cart = cart
	}
	return out, nil
}

// Orders lists the user's orders
func (c *Client) Orders(ctx context.Context, userID int64) ([]models.Order, error) {
	query := url.Values{}
	if userID != 0 {
		query.Set("user", strconv.FormatInt(userID, 10))
	}
	res := call[json.RawMessage](ctx, c, request{ep: epOrders, query: query})
	if res.Err != nil {
		return nil, res.Err
	}
	return decodeList[models.Order](res.Value)
}

// CancelOrder cancels an order that has not shipped
func (c *Client) CancelOrder(ctx context.Context, orderID int64) (models.Order, error) {
	return call[models.Order](ctx, c, request{ep: epCancelOrder, args: []interface{}{orderID}}).Unwrap()
}

// SearchProducts runs a catalog search, newest first
func (c *Client) SearchProducts(ctx context.Context, term string, page, perPage int) (SearchResult, error) {
	query := url.Values{}
	query.Set("search", term)
	query.Set("ordering", "-created_at")
	if page > 0 {
		query.Set("page", strconv.Itoa(page))
	}
	if perPage > 0 {
		query.Set("per_page", strconv.Itoa(perPage))
	}
	return call[SearchResult](ctx, c, request{ep: epSearchProducts, query: query}).Unwrap()
}

// cartFromResponse accepts either a full cart or a single cart item.
// A single item means the cart must be fetched to get authoritative totals.
func (c *Client) cartFromResponse(ctx context.Context, raw json.RawMessage) (*models.RemoteCart, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err == nil {
		if _, ok := fields["items"]; ok {
			var cart models.RemoteCart
			if err := json.Unmarshal(raw, &cart); err != nil {
				return nil, &Error{Kind: KindServer, Message: "invalid cart in response", Err: err}
			}
			return &cart, nil
		}
	}
	return c.FetchCart(ctx, c.snapshot.UserID)
}

// decodeList accepts a bare array or a paginated {"results": [...]} envelope
func decodeList[T any](raw json.RawMessage) ([]T, error) {
	var list []T
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var page struct {
		Results []T `json:"results"`
	}
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, &Error{Kind: KindServer, Message: "invalid list in response", Err: err}
	}
	return page.Results, nil
}
