// ABOUTME: Cart synchronizer reconciling the device cart with the server cart
// ABOUTME: Runs the login merge and routes mutations to storage or the API by mode

package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/markalston/storefront-client/internal/gateway"
	"github.com/markalston/storefront-client/internal/models"
	"github.com/markalston/storefront-client/internal/session"
	"github.com/markalston/storefront-client/internal/storage"
)

var (
	// ErrMergeInProgress is returned by mutations while the login merge runs
	ErrMergeInProgress = errors.New("cart merge in progress")
	// ErrLoginRequired is returned by operations that need a server cart
	ErrLoginRequired = errors.New("log in to use the server cart")
	// ErrLineNotFound is returned when a line reference matches nothing
	ErrLineNotFound = errors.New("cart line not found")
	// ErrInvalidQuantity is returned for a negative quantity
	ErrInvalidQuantity = errors.New("quantity must be positive")
	// ErrCartEmpty is returned by checkout when there is nothing to order
	ErrCartEmpty = errors.New("cart is empty")
	// ErrLocalOnly is returned by quantity changes on the server cart
	ErrLocalOnly = errors.New("quantity changes on the server cart: remove the item and add it again")
)

// AddRequest describes an item to put in the cart
type AddRequest struct {
	ProductID  int64
	VariantID  *int64
	Attributes map[string]string
	Quantity   int
	Name       string
	Price      decimal.Decimal
}

// LineFailure is a local line the server refused during merge
type LineFailure struct {
	Line models.LocalCartLine
	Err  error
}

// MergeReport summarises one login merge.
// Failed lines are not retried and are gone from the device.
type MergeReport struct {
	CartID    int64
	Attempted int
	Merged    []models.LocalCartLine
	Failed    []LineFailure
	Finished  time.Time
}

// OK reports whether every line merged
func (r *MergeReport) OK() bool {
	return r != nil && len(r.Failed) == 0
}

// View is a read-only snapshot of the authoritative cart
type View struct {
	Mode   Mode
	Local  []models.LocalCartLine
	Remote *models.RemoteCart
}

// ItemCount is the total quantity across lines
func (v View) ItemCount() int {
	if v.Mode != Local {
		if v.Remote == nil {
			return 0
		}
		if v.Remote.TotalItems > 0 {
			return v.Remote.TotalItems
		}
		n := 0
		for _, line := range v.Remote.Lines {
			n += line.Quantity
		}
		return n
	}
	n := 0
	for _, line := range v.Local {
		n += line.Quantity
	}
	return n
}

// Total is the cart value; the server's figure wins in Remote mode
func (v View) Total() decimal.Decimal {
	if v.Mode != Local {
		if v.Remote == nil {
			return decimal.Zero
		}
		if !v.Remote.Total.IsZero() {
			return v.Remote.Total
		}
		total := decimal.Zero
		for _, line := range v.Remote.Lines {
			total = total.Add(line.LineTotal)
		}
		return total
	}
	total := decimal.Zero
	for _, line := range v.Local {
		total = total.Add(line.LineTotal())
	}
	return total
}

// Synchronizer owns both cart copies.
// The mutex is never held across API calls; responses are applied only if the
// session generation they started in is still current.
type Synchronizer struct {
	store *storage.Store

	mu        sync.Mutex
	mode      Mode
	gen       uint64
	client    *gateway.Client
	userID    int64
	lines     []models.LocalCartLine
	remote    *models.RemoteCart
	lastMerge *MergeReport
}

// New creates a synchronizer in Local mode seeded from storage
func New(store *storage.Store) *Synchronizer {
	return &Synchronizer{
		store: store,
		mode:  Local,
		lines: store.LoadCartLines(),
	}
}

// Mode returns the current mode
func (s *Synchronizer) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// LastMerge returns the report of the most recent merge, or nil
func (s *Synchronizer) LastMerge() *MergeReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastMerge
}

// Cart returns a snapshot of the authoritative cart
func (s *Synchronizer) Cart() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{Mode: s.mode}
	if s.mode == Local {
		v.Local = append([]models.LocalCartLine(nil), s.lines...)
		return v
	}
	if s.remote != nil {
		remote := *s.remote
		remote.Lines = append([]models.RemoteCartLine(nil), s.remote.Lines...)
		v.Remote = &remote
	}
	return v
}

// SessionChanged implements session.Listener
func (s *Synchronizer) SessionChanged(ctx context.Context, ev session.Event) {
	switch ev.Kind {
	case session.EventAuthenticated:
		if ev.Identity != nil {
			s.Merge(ctx, ev.Client, ev.Identity.ID)
		}

	case session.EventRestored:
		if ev.Identity == nil {
			return
		}
		s.mu.Lock()
		s.gen++
		s.client = ev.Client
		s.userID = ev.Identity.ID
		s.remote = nil
		s.setModeLocked(Remote)
		s.mu.Unlock()

	case session.EventRefreshed:
		s.mu.Lock()
		s.client = ev.Client
		if ev.Identity != nil {
			s.userID = ev.Identity.ID
		}
		s.mu.Unlock()

	case session.EventCleared:
		s.mu.Lock()
		s.gen++
		s.client = ev.Client
		s.userID = 0
		s.remote = nil
		s.lines = s.store.LoadCartLines()
		s.setModeLocked(Local)
		s.mu.Unlock()
		slog.Debug("Cart fell back to local storage", "lines", len(s.lines))
	}
}

// Merge moves the local cart into the server cart after login.
// Lines are added one at a time in insertion order; a failing line is
// recorded and skipped. Local storage is cleared once the merge completes.
// If the session ends mid-merge no further lines are sent, and every line
// that did not reach the server stays on the device.
func (s *Synchronizer) Merge(ctx context.Context, client *gateway.Client, userID int64) *MergeReport {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.client = client
	s.userID = userID
	s.remote = nil
	lines := append([]models.LocalCartLine(nil), s.lines...)
	report := &MergeReport{Attempted: len(lines)}

	if len(lines) == 0 {
		s.setModeLocked(Remote)
		report.Finished = time.Now()
		s.lastMerge = report
		s.mu.Unlock()
		slog.Debug("No local cart to merge")
		return report
	}
	s.setModeLocked(Merging)
	s.mu.Unlock()

	slog.Info("Merging local cart", "lines", len(lines), "user_id", userID)

	remote, err := ensureRemote(ctx, client, userID)
	if err != nil {
		slog.Warn("Could not obtain server cart for merge", "error", err)
		for _, line := range lines {
			report.Failed = append(report.Failed, LineFailure{Line: line, Err: err})
		}
	} else {
		report.CartID = remote.ID
		for i, line := range lines {
			if !s.current(gen) {
				slog.Warn("Session ended during merge; remaining lines stay on this device", "remaining", len(lines)-i)
				for _, rest := range lines[i:] {
					report.Failed = append(report.Failed, LineFailure{Line: rest, Err: session.ErrSessionChanged})
				}
				break
			}
			updated, err := client.AddItem(ctx, remote.ID, addItemRequest(line))
			if err != nil {
				slog.Warn("Cart line failed to merge",
					"product_id", line.ProductID,
					"quantity", line.Quantity,
					"error", err,
				)
				report.Failed = append(report.Failed, LineFailure{Line: line, Err: err})
				continue
			}
			report.Merged = append(report.Merged, line)
			if updated != nil {
				remote = updated
			}
		}
	}
	report.Finished = time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastMerge = report

	if s.gen != gen {
		kept := make([]models.LocalCartLine, 0, len(report.Failed))
		for _, f := range report.Failed {
			kept = append(kept, f.Line)
		}
		s.lines = kept
		s.persistLocked()
		slog.Debug("Session changed during merge; result not applied", "kept", len(kept))
		return report
	}
	s.store.ClearCartLines()
	s.lines = []models.LocalCartLine{}
	s.remote = remote
	s.setModeLocked(Remote)

	slog.Info("Cart merge finished", "merged", len(report.Merged), "failed", len(report.Failed))
	return report
}

// AddItem adds to the local cart or posts to the server cart.
// In Remote mode the server cart is created on first use.
func (s *Synchronizer) AddItem(ctx context.Context, req AddRequest) error {
	if req.Quantity < 0 {
		return ErrInvalidQuantity
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	s.mu.Lock()
	switch s.mode {
	case Merging:
		s.mu.Unlock()
		return ErrMergeInProgress

	case Local:
		defer s.mu.Unlock()
		line := models.LocalCartLine{
			ProductID:  req.ProductID,
			VariantID:  req.VariantID,
			Attributes: req.Attributes,
			Quantity:   req.Quantity,
			Name:       req.Name,
			Price:      req.Price,
			AddedAt:    time.Now().UTC(),
		}
		key := line.Key()
		for i := range s.lines {
			if s.lines[i].Key() == key {
				s.lines[i].Quantity += req.Quantity
				s.persistLocked()
				return nil
			}
		}
		s.lines = append(s.lines, line)
		s.persistLocked()
		return nil
	}

	gen, client, userID, remote := s.gen, s.client, s.userID, s.remote
	s.mu.Unlock()

	if remote == nil {
		var err error
		remote, err = ensureRemote(ctx, client, userID)
		if err != nil {
			return err
		}
		if !s.apply(gen, remote) {
			return session.ErrSessionChanged
		}
	}

	updated, err := client.AddItem(ctx, remote.ID, gateway.AddItemRequest{
		ProductID:  req.ProductID,
		VariantID:  req.VariantID,
		Attributes: req.Attributes,
		Quantity:   req.Quantity,
	})
	if err != nil {
		return err
	}
	if !s.apply(gen, updated) {
		return session.ErrSessionChanged
	}
	return nil
}

// RemoveItem drops a line. In Local mode id is the 1-based line position;
// in Remote mode it is the server's item id.
func (s *Synchronizer) RemoveItem(ctx context.Context, id int64) error {
	s.mu.Lock()
	switch s.mode {
	case Merging:
		s.mu.Unlock()
		return ErrMergeInProgress

	case Local:
		defer s.mu.Unlock()
		idx := int(id) - 1
		if idx < 0 || idx >= len(s.lines) {
			return ErrLineNotFound
		}
		s.lines = append(s.lines[:idx], s.lines[idx+1:]...)
		s.persistLocked()
		return nil
	}

	gen, client, userID, remote := s.gen, s.client, s.userID, s.remote
	s.mu.Unlock()

	if remote == nil {
		var err error
		remote, err = s.fetchRemote(ctx, gen, client, userID)
		if err != nil {
			return err
		}
		if remote == nil {
			return ErrLineNotFound
		}
	}
	updated, err := client.RemoveItem(ctx, remote.ID, id)
	if err != nil {
		return err
	}
	if !s.apply(gen, updated) {
		return session.ErrSessionChanged
	}
	return nil
}

// UpdateQuantity sets a local line's quantity; zero or less removes it.
// The server cart has no quantity endpoint, so Remote mode rejects it.
func (s *Synchronizer) UpdateQuantity(position int, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.mode {
	case Merging:
		return ErrMergeInProgress
	case Remote:
		return ErrLocalOnly
	}

	idx := position - 1
	if idx < 0 || idx >= len(s.lines) {
		return ErrLineNotFound
	}
	if quantity <= 0 {
		s.lines = append(s.lines[:idx], s.lines[idx+1:]...)
	} else {
		s.lines[idx].Quantity = quantity
	}
	s.persistLocked()
	return nil
}

// Clear empties the authoritative cart. A server cart is emptied item by item.
func (s *Synchronizer) Clear(ctx context.Context) error {
	s.mu.Lock()
	switch s.mode {
	case Merging:
		s.mu.Unlock()
		return ErrMergeInProgress

	case Local:
		defer s.mu.Unlock()
		s.lines = []models.LocalCartLine{}
		s.store.ClearCartLines()
		return nil
	}
	gen, client, userID, remote := s.gen, s.client, s.userID, s.remote
	s.mu.Unlock()

	if remote == nil {
		var err error
		remote, err = s.fetchRemote(ctx, gen, client, userID)
		if err != nil || remote == nil {
			return err
		}
	}
	for _, line := range remote.Lines {
		if err := s.RemoveItem(ctx, line.ItemID); err != nil {
			return err
		}
	}
	return nil
}

// Checkout places an order for the server cart and adopts the cart the
// server reports afterwards.
func (s *Synchronizer) Checkout(ctx context.Context, req gateway.CheckoutRequest) (gateway.CheckoutResult, error) {
	s.mu.Lock()
	switch s.mode {
	case Merging:
		s.mu.Unlock()
		return gateway.CheckoutResult{}, ErrMergeInProgress
	case Local:
		s.mu.Unlock()
		return gateway.CheckoutResult{}, ErrLoginRequired
	}
	gen, client, userID, remote := s.gen, s.client, s.userID, s.remote
	s.mu.Unlock()

	if remote == nil {
		var err error
		remote, err = s.fetchRemote(ctx, gen, client, userID)
		if err != nil {
			return gateway.CheckoutResult{}, err
		}
	}
	if remote == nil || len(remote.Lines) == 0 {
		return gateway.CheckoutResult{}, ErrCartEmpty
	}

	res, err := client.Checkout(ctx, remote.ID, req)
	if err != nil {
		return res, err
	}
	if !s.apply(gen, res.Cart) {
		return res, session.ErrSessionChanged
	}
	return res, nil
}

// Refresh re-reads the authoritative cart from its source
func (s *Synchronizer) Refresh(ctx context.Context) error {
	s.mu.Lock()
	switch s.mode {
	case Merging:
		s.mu.Unlock()
		return ErrMergeInProgress
	case Local:
		s.lines = s.store.LoadCartLines()
		s.mu.Unlock()
		return nil
	}
	gen, client, userID := s.gen, s.client, s.userID
	s.mu.Unlock()

	_, err := s.fetchRemote(ctx, gen, client, userID)
	return err
}

// fetchRemote reads the server cart into the mirror. A missing cart is nil, not an error.
func (s *Synchronizer) fetchRemote(ctx context.Context, gen uint64, client *gateway.Client, userID int64) (*models.RemoteCart, error) {
	remote, err := client.FetchCart(ctx, userID)
	if err != nil {
		if !gateway.IsNotFound(err) {
			return nil, err
		}
		remote = nil
	}
	if !s.apply(gen, remote) {
		return nil, session.ErrSessionChanged
	}
	return remote, nil
}

// apply replaces the server cart mirror unless the session moved on
func (s *Synchronizer) apply(gen uint64, remote *models.RemoteCart) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gen != gen || s.mode != Remote {
		slog.Debug("Discarding cart response from a previous session")
		return false
	}
	s.remote = remote
	return true
}

// current reports whether gen is still the live session generation
func (s *Synchronizer) current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen == gen
}

func (s *Synchronizer) persistLocked() {
	if !s.store.SaveCartLines(s.lines) {
		slog.Warn("Local cart kept in memory only", "lines", len(s.lines))
	}
}

func (s *Synchronizer) setModeLocked(next Mode) {
	if s.mode == next {
		return
	}
	if !s.mode.CanTransitionTo(next) {
		slog.Warn("Unexpected cart mode transition", "from", s.mode, "to", next)
	}
	slog.Debug("Cart mode", "from", s.mode, "to", next)
	s.mode = next
}

// ensureRemote fetches the user's cart, creating it when the server has none
func ensureRemote(ctx context.Context, client *gateway.Client, userID int64) (*models.RemoteCart, error) {
	remote, err := client.FetchCart(ctx, userID)
	if err == nil && remote != nil {
		return remote, nil
	}
	if err != nil && !gateway.IsNotFound(err) {
		return nil, err
	}

	remote, err = client.CreateCart(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to create cart: %w", err)
	}
	if remote == nil {
		return nil, &gateway.Error{Kind: gateway.KindServer, Message: "create cart returned no cart"}
	}
	return remote, nil
}

func addItemRequest(line models.LocalCartLine) gateway.AddItemRequest {
	return gateway.AddItemRequest{
		ProductID:  line.ProductID,
		VariantID:  line.VariantID,
		Attributes: line.Attributes,
		Quantity:   line.Quantity,
	}
}
