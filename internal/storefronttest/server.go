// ABOUTME: In-process fake of the storefront REST API for tests
// ABOUTME: Holds users, tokens, carts and orders and records every call

package storefronttest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/markalston/storefront-client/internal/models"
)

const apiPrefix = "/api/"

// ValidOTP is the only verification code the fake accepts
const ValidOTP = "123456"

// Call is one recorded request
type Call struct {
	Method        string
	Path          string
	Query         string
	Authorization string
	CSRFToken     string
	UserID        string
	RequestID     string
}

type user struct {
	id         int64
	username   string
	email      string
	password   string
	admin      bool
	unverified bool
}

type product struct {
	id    int64
	name  string
	price decimal.Decimal
}

// Server is a fake storefront API backed by httptest
type Server struct {
	*httptest.Server

	mu         sync.Mutex
	csrfToken  string
	nextID     int64
	users      map[string]*user
	tokens     map[string]int64
	products   map[int64]product
	carts      map[int64]*models.RemoteCart
	cartByUser map[int64]int64
	orders     map[int64][]models.Order
	failAdd    map[int64]int
	calls      []Call
	gates      map[string]chan struct{}
	arrived    map[string]chan struct{}
}

// New starts a fake API and stops it when the test ends
func New(t testing.TB) *Server {
	t.Helper()

	s := &Server{
		csrfToken:  "csrf-test-token",
		nextID:     100,
		users:      map[string]*user{},
		tokens:     map[string]int64{},
		products:   map[int64]product{},
		carts:      map[int64]*models.RemoteCart{},
		cartByUser: map[int64]int64{},
		orders:     map[int64][]models.Order{},
		failAdd:    map[int64]int{},
		gates:      map[string]chan struct{}{},
		arrived:    map[string]chan struct{}{},
	}

	mux := http.NewServeMux()
	s.routes(mux)
	s.Server = httptest.NewServer(s.record(s.csrf(mux)))
	t.Cleanup(s.Close)
	return s
}

// BaseURL is the API root clients should be configured with
func (s *Server) BaseURL() string {
	return s.URL + apiPrefix
}

// CSRFToken is the value the server issues in the csrftoken cookie
func (s *Server) CSRFToken() string {
	return s.csrfToken
}

func (s *Server) id() int64 {
	s.nextID++
	return s.nextID
}

// AddUser registers an account and returns its id
func (s *Server) AddUser(username, password string, admin bool) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := &user{id: s.id(), username: username, email: username + "@example.com", password: password, admin: admin}
	s.users[username] = u
	return u.id
}

// AddProduct makes a product available to add_item
func (s *Server) AddProduct(id int64, name, price string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[id] = product{id: id, name: name, price: decimal.RequireFromString(price)}
}

// FailAddItem makes add_item for productID answer with status
func (s *Server) FailAddItem(productID int64, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failAdd[productID] = status
}

// RevokeTokens invalidates every issued token
func (s *Server) RevokeTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = map[string]int64{}
}

// TokenValid reports whether token is still accepted
func (s *Server) TokenValid(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tokens[token]
	return ok
}

// SeedCart creates a server cart for the user with the given product quantities
func (s *Server) SeedCart(userID int64, lines map[int64]int) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	cart := s.createCartLocked(userID)
	for productID, qty := range lines {
		s.addLineLocked(cart, productID, nil, nil, qty)
	}
	return cart.ID
}

// SeedOrders stores orders for the user
func (s *Server) SeedOrders(userID int64, orders ...models.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[userID] = append(s.orders[userID], orders...)
}

// Cart returns a copy of the user's server cart, or nil
func (s *Server) Cart(userID int64) *models.RemoteCart {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.cartByUser[userID]
	if !ok {
		return nil
	}
	return copyCart(s.carts[id])
}

// Calls returns every recorded request
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// CallsTo returns recorded requests whose path starts with prefix
func (s *Server) CallsTo(prefix string) []Call {
	var out []Call
	for _, c := range s.Calls() {
		if strings.HasPrefix(c.Path, prefix) {
			out = append(out, c)
		}
	}
	return out
}

// LastCall returns the most recent request
func (s *Server) LastCall() Call {
	calls := s.Calls()
	if len(calls) == 0 {
		return Call{}
	}
	return calls[len(calls)-1]
}

// ResetCalls forgets recorded requests
func (s *Server) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
}

// Hold makes requests to route ("login", "orders") block until the returned
// release func is called. The arrived channel is closed when the first
// request is parked.
func (s *Server) Hold(route string) (arrived <-chan struct{}, release func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	gate := make(chan struct{})
	seen := make(chan struct{})
	s.gates[route] = gate
	s.arrived[route] = seen

	var once sync.Once
	return seen, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.gates, route)
			delete(s.arrived, route)
			s.mu.Unlock()
			close(gate)
		})
	}
}

func (s *Server) wait(route string) {
	s.mu.Lock()
	gate, ok := s.gates[route]
	seen := s.arrived[route]
	if ok && seen != nil {
		select {
		case <-seen:
		default:
			close(seen)
		}
	}
	s.mu.Unlock()

	if ok {
		<-gate
	}
}

func (s *Server) createCartLocked(userID int64) *models.RemoteCart {
	if id, ok := s.cartByUser[userID]; ok {
		return s.carts[id]
	}
	cart := &models.RemoteCart{ID: s.id(), UserID: userID, Lines: []models.RemoteCartLine{}, Total: decimal.Zero}
	s.carts[cart.ID] = cart
	s.cartByUser[userID] = cart.ID
	return cart
}

func (s *Server) addLineLocked(cart *models.RemoteCart, productID int64, variantID *int64, attrs map[string]string, qty int) {
	p := s.products[productID]
	for i := range cart.Lines {
		line := &cart.Lines[i]
		if line.ProductID == productID && sameVariant(line.VariantID, variantID) && sameAttrs(line.Attributes, attrs) {
			line.Quantity += qty
			line.LineTotal = p.price.Mul(decimal.NewFromInt(int64(line.Quantity)))
			recalc(cart)
			return
		}
	}
	cart.Lines = append(cart.Lines, models.RemoteCartLine{
		ItemID:      s.id(),
		ProductID:   productID,
		ProductName: p.name,
		VariantID:   variantID,
		Attributes:  attrs,
		Quantity:    qty,
		LineTotal:   p.price.Mul(decimal.NewFromInt(int64(qty))),
	})
	recalc(cart)
}

func recalc(cart *models.RemoteCart) {
	total := decimal.Zero
	items := 0
	for _, line := range cart.Lines {
		total = total.Add(line.LineTotal)
		items += line.Quantity
	}
	cart.Total = total
	cart.TotalItems = items
}

func copyCart(c *models.RemoteCart) *models.RemoteCart {
	if c == nil {
		return nil
	}
	out := *c
	out.Lines = append([]models.RemoteCartLine(nil), c.Lines...)
	return &out
}

func sameVariant(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func sameAttrs(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

func (s *Server) token(userID int64) string {
	tok := fmt.Sprintf("tok-%d-%d", userID, s.id())
	s.tokens[tok] = userID
	return tok
}
