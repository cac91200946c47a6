// ABOUTME: Route handlers for the fake storefront API
// ABOUTME: Mirrors the auth, cart, order and search endpoints the client calls

package storefronttest

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/markalston/storefront-client/internal/models"
)

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/auth/login/", s.handleLogin)
	mux.HandleFunc("POST /api/auth/register/", s.handleRegister)
	mux.HandleFunc("POST /api/auth/logout/", s.requireToken(s.handleLogout))
	mux.HandleFunc("POST /api/auth/password-reset/", s.handlePasswordReset)
	mux.HandleFunc("POST /api/auth/verify-otp/", s.handleVerifyOTP)
	mux.HandleFunc("GET /api/auth/user/", s.requireToken(s.handleCurrentUser))
	mux.HandleFunc("GET /api/users/{id}/cart/", s.requireToken(s.handleFetchCart))
	mux.HandleFunc("POST /api/users/{id}/create_cart/", s.requireToken(s.handleCreateCart))
	mux.HandleFunc("POST /api/carts/{id}/add_item/", s.requireToken(s.handleAddItem))
	mux.HandleFunc("POST /api/carts/{id}/remove_item/", s.requireToken(s.handleRemoveItem))
	mux.HandleFunc("POST /api/carts/{id}/checkout/", s.requireToken(s.handleCheckout))
	mux.HandleFunc("GET /api/orders/", s.requireToken(s.handleOrders))
	mux.HandleFunc("POST /api/orders/{id}/cancel/", s.requireToken(s.handleCancelOrder))
	mux.HandleFunc("GET /api/products/search/", s.handleSearch)
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	s.wait("login")

	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[req.Username]
	if !ok || u.password != req.Password {
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if u.unverified {
		writeJSON(w, http.StatusForbidden, map[string]interface{}{
			"error":              "Please verify your email before logging in",
			"needs_verification": true,
		})
		return
	}

	userType := "customer"
	if u.admin {
		userType = "admin"
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":   "Login successful",
		"user_id":   u.id,
		"username":  u.username,
		"token":     s.token(u.id),
		"user_type": userType,
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[req.Username]; exists {
		writeJSON(w, http.StatusBadRequest, map[string][]string{"username": {"A user with that username already exists."}})
		return
	}

	u := &user{id: s.id(), username: req.Username, email: req.Email, password: req.Password, unverified: true}
	s.users[u.username] = u
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"user_id":      u.id,
		"username":     u.username,
		"email":        u.email,
		"requires_otp": true,
	})
}

func (s *Server) handlePasswordReset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !strings.Contains(req.Email, "@") {
		writeJSON(w, http.StatusBadRequest, map[string][]string{"email": {"Enter a valid email address."}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "If the address is registered, a reset link is on its way"})
}

func (s *Server) handleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
		OTP   string `json:"otp"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.OTP != ValidOTP {
		writeError(w, http.StatusBadRequest, "Invalid or expired OTP")
		return
	}

	s.mu.Lock()
	for _, u := range s.users {
		if u.email == req.Email {
			u.unverified = false
		}
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"message": "Email verified"})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	delete(s.tokens, strings.TrimPrefix(r.Header.Get("Authorization"), "Token "))
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

func (s *Server) handleCurrentUser(w http.ResponseWriter, r *http.Request) {
	userID := requestUserID(r)

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.id == userID {
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"id":       u.id,
				"username": u.username,
				"email":    u.email,
				"is_staff": u.admin,
			})
			return
		}
	}
	writeError(w, http.StatusNotFound, "User not found")
}

func (s *Server) handleFetchCart(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid user id")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, exists := s.cartByUser[userID]
	if !exists {
		writeError(w, http.StatusNotFound, "Cart not found")
		return
	}
	writeJSON(w, http.StatusOK, s.carts[id])
}

func (s *Server) handleCreateCart(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid user id")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusCreated, s.createCartLocked(userID))
}

func (s *Server) handleAddItem(w http.ResponseWriter, r *http.Request) {
	cartID, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid cart id")
		return
	}

	var req struct {
		ProductID  int64             `json:"productId"`
		VariantID  *int64            `json:"variantId"`
		Attributes map[string]string `json:"attributes"`
		Quantity   int               `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Quantity <= 0 {
		req.Quantity = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cart, exists := s.carts[cartID]
	if !exists {
		writeError(w, http.StatusNotFound, "Cart not found")
		return
	}
	if status, fail := s.failAdd[req.ProductID]; fail {
		writeError(w, status, "Product is out of stock")
		return
	}
	if _, known := s.products[req.ProductID]; !known {
		writeError(w, http.StatusNotFound, "Product not found")
		return
	}

	s.addLineLocked(cart, req.ProductID, req.VariantID, req.Attributes, req.Quantity)
	writeJSON(w, http.StatusCreated, cart)
}

func (s *Server) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	cartID, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid cart id")
		return
	}

	var req struct {
		ItemID int64 `json:"item_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cart, exists := s.carts[cartID]
	if !exists {
		writeError(w, http.StatusNotFound, "Cart not found")
		return
	}
	for i, line := range cart.Lines {
		if line.ItemID == req.ItemID {
			cart.Lines = append(cart.Lines[:i], cart.Lines[i+1:]...)
			recalc(cart)
			writeJSON(w, http.StatusOK, cart)
			return
		}
	}
	writeError(w, http.StatusNotFound, "Item not found in cart")
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	cartID, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid cart id")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cart, exists := s.carts[cartID]
	if !exists {
		writeError(w, http.StatusNotFound, "Cart not found")
		return
	}
	if len(cart.Lines) == 0 {
		writeError(w, http.StatusBadRequest, "Cart is empty")
		return
	}

	placed := make([]models.Order, 0, len(cart.Lines))
	for _, line := range cart.Lines {
		price := decimal.Zero
		if line.Quantity > 0 {
			price = line.LineTotal.Div(decimal.NewFromInt(int64(line.Quantity)))
		}
		placed = append(placed, models.Order{
			ID:             s.id(),
			ProductID:      line.ProductID,
			ProductName:    line.ProductName,
			Quantity:       line.Quantity,
			Price:          price,
			PaymentStatus:  "pending",
			DeliveryStatus: "processing",
			CreatedAt:      time.Now().UTC(),
		})
	}
	s.orders[cart.UserID] = append(s.orders[cart.UserID], placed...)
	delete(s.carts, cartID)
	delete(s.cartByUser, cart.UserID)

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Order placed",
		"orders":  placed,
	})
}

func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) {
	s.wait("orders")

	userID := requestUserID(r)
	if q := r.URL.Query().Get("user"); q != "" {
		if id, err := strconv.ParseInt(q, 10, 64); err == nil {
			userID = id
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	orders := s.orders[userID]
	if orders == nil {
		orders = []models.Order{}
	}
	writeJSON(w, http.StatusOK, orders)
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid order id")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for userID, orders := range s.orders {
		for i := range orders {
			if orders[i].ID != orderID {
				continue
			}
			if orders[i].IsCancelled || orders[i].DeliveryStatus == "delivered" {
				writeError(w, http.StatusBadRequest, "Order cannot be cancelled in its current state")
				return
			}
			orders[i].IsCancelled = true
			s.orders[userID] = orders
			writeJSON(w, http.StatusOK, orders[i])
			return
		}
	}
	writeError(w, http.StatusNotFound, "Order not found")
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	term := strings.ToLower(r.URL.Query().Get("search"))

	s.mu.Lock()
	defer s.mu.Unlock()

	results := []models.Product{}
	for _, p := range s.products {
		if term == "" || strings.Contains(strings.ToLower(p.name), term) {
			results = append(results, models.Product{ID: p.id, Name: p.name, Price: p.price})
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"count": len(results), "results": results})
}
