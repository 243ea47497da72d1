// Package composer builds a table's order split across several sub-bills
// ("clients") before it is submitted to the order service.
package composer

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"restaurant-system/internal/models"
)

// ValidationError is returned for problems the operator can fix locally.
type ValidationError = models.ValidationError

var (
	ErrNoActiveClient = ValidationError{Field: "client", Message: "select a client first"}
	ErrNoClients      = ValidationError{Field: "clients", Message: "add at least one client"}
	ErrNoItems        = ValidationError{Field: "items", Message: "add at least one item"}
	ErrNoTable        = ValidationError{Field: "table_number", Message: "select a table first"}
	ErrLastClient     = ValidationError{Field: "clients", Message: "a table order needs at least one client"}

	ErrUnknownClient = errors.New("unknown client")
)

// RemovalPolicy decides whether the last remaining client may be removed.
type RemovalPolicy int

const (
	// AllowEmpty lets the client list become empty.
	AllowEmpty RemovalPolicy = iota
	// KeepLastClient refuses to remove the only remaining client.
	KeepLastClient
)

// State is the coarse lifecycle of a composition session.
type State int

const (
	StateEmpty State = iota
	StateTableSelected
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateTableSelected:
		return "table_selected"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type Options struct {
	MinTable int
	MaxTable int
	Removal  RemovalPolicy
}

// DefaultOptions matches a 28-table venue that allows emptying the client list.
func DefaultOptions() Options {
	return Options{MinTable: 1, MaxTable: 28, Removal: AllowEmpty}
}

// Line is one menu item with its quantity inside a client's sub-bill.
type Line struct {
	MenuItemID string
	Name       string
	UnitPrice  decimal.Decimal
	Quantity   int
	ItemType   models.ItemType
}

func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Client is a sub-bill at the table.
type Client struct {
	ID    string
	Name  string
	Lines []Line
}

// Total sums the client's line subtotals.
func (c Client) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.Lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

// ItemCount sums the client's quantities.
func (c Client) ItemCount() int {
	n := 0
	for _, l := range c.Lines {
		n += l.Quantity
	}
	return n
}

func (c *Client) lineIndex(menuItemID string) int {
	for i := range c.Lines {
		if c.Lines[i].MenuItemID == menuItemID {
			return i
		}
	}
	return -1
}

func (c *Client) snapshot() Client {
	cp := Client{ID: c.ID, Name: c.Name}
	if len(c.Lines) > 0 {
		cp.Lines = append([]Line(nil), c.Lines...)
	}
	return cp
}

// Composer owns the clients and lines of one table's order in progress.
// It is meant to be driven by a single operator and is not safe for concurrent use.
type Composer struct {
	opts    Options
	table   int
	team    string
	clients []*Client
	active  string
}

func New(opts Options) *Composer {
	if opts.MinTable < 1 {
		opts.MinTable = 1
	}
	if opts.MaxTable < opts.MinTable {
		opts.MaxTable = opts.MinTable
	}
	return &Composer{opts: opts}
}

func (c *Composer) State() State {
	if c.table == 0 {
		return StateEmpty
	}
	return StateTableSelected
}

// SelectTable starts a fresh composition for table n.
func (c *Composer) SelectTable(n int) error {
	if n < c.opts.MinTable || n > c.opts.MaxTable {
		return ValidationError{
			Field:   "table_number",
			Message: fmt.Sprintf("table number must be between %d and %d", c.opts.MinTable, c.opts.MaxTable),
		}
	}
	c.table = n
	c.Reset()
	return nil
}

// Table returns the selected table, or 0 when none is selected.
func (c *Composer) Table() int {
	return c.table
}

// ClearTable drops the table together with the composition.
func (c *Composer) ClearTable() {
	c.table = 0
	c.Reset()
}

// SetTeam sets the optional customer/team label; empty restores the default.
func (c *Composer) SetTeam(label string) {
	c.team = label
}

func (c *Composer) Team() string {
	return c.team
}

// AddClient appends a client named "Client N" and makes it active.
func (c *Composer) AddClient() Client {
	cl := &Client{
		ID:   uuid.NewString(),
		Name: fmt.Sprintf("Client %d", len(c.clients)+1),
	}
	c.clients = append(c.clients, cl)
	c.active = cl.ID
	return cl.snapshot()
}

// RemoveClient drops a client and its lines. When the active client is removed
// the first remaining client becomes active.
func (c *Composer) RemoveClient(id string) error {
	idx := c.indexOf(id)
	if idx < 0 {
		return ErrUnknownClient
	}
	if c.opts.Removal == KeepLastClient && len(c.clients) == 1 {
		return ErrLastClient
	}

	c.clients = append(c.clients[:idx], c.clients[idx+1:]...)
	if c.active == id {
		c.active = ""
		if len(c.clients) > 0 {
			c.active = c.clients[0].ID
		}
	}
	return nil
}

// RenameClient replaces the display name verbatim.
func (c *Composer) RenameClient(id, name string) error {
	cl := c.find(id)
	if cl == nil {
		return ErrUnknownClient
	}
	cl.Name = name
	return nil
}

// SetActiveClient selects the client receiving AddLine calls. Unknown ids are ignored.
func (c *Composer) SetActiveClient(id string) bool {
	if c.find(id) == nil {
		return false
	}
	c.active = id
	return true
}

func (c *Composer) ActiveClient() (Client, bool) {
	cl := c.find(c.active)
	if cl == nil {
		return Client{}, false
	}
	return cl.snapshot(), true
}

// Client returns a copy of the client with the given id.
func (c *Composer) Client(id string) (Client, bool) {
	cl := c.find(id)
	if cl == nil {
		return Client{}, false
	}
	return cl.snapshot(), true
}

// Clients returns copies of all clients in display order.
func (c *Composer) Clients() []Client {
	out := make([]Client, 0, len(c.clients))
	for _, cl := range c.clients {
		out = append(out, cl.snapshot())
	}
	return out
}

// AddLine adds one unit of item to the active client, snapshotting name and price
// on first add.
func (c *Composer) AddLine(item models.MenuItem) error {
	cl := c.find(c.active)
	if cl == nil {
		return ErrNoActiveClient
	}

	if i := cl.lineIndex(item.ID); i >= 0 {
		cl.Lines[i].Quantity++
		return nil
	}

	cl.Lines = append(cl.Lines, Line{
		MenuItemID: item.ID,
		Name:       item.Name,
		UnitPrice:  item.Price,
		Quantity:   1,
		ItemType:   item.ItemType,
	})
	return nil
}

// SetLineQuantity overwrites a line's quantity; a quantity <= 0 removes the line.
func (c *Composer) SetLineQuantity(clientID, menuItemID string, quantity int) {
	cl := c.find(clientID)
	if cl == nil {
		return
	}
	i := cl.lineIndex(menuItemID)
	if i < 0 {
		return
	}
	if quantity <= 0 {
		cl.Lines = append(cl.Lines[:i], cl.Lines[i+1:]...)
		return
	}
	cl.Lines[i].Quantity = quantity
}

func (c *Composer) RemoveLine(clientID, menuItemID string) {
	c.SetLineQuantity(clientID, menuItemID, 0)
}

// ClientTotal is 0 for unknown or empty clients.
func (c *Composer) ClientTotal(id string) decimal.Decimal {
	cl := c.find(id)
	if cl == nil {
		return decimal.Zero
	}
	return cl.Total()
}

func (c *Composer) GrandTotal() decimal.Decimal {
	total := decimal.Zero
	for _, cl := range c.clients {
		total = total.Add(cl.Total())
	}
	return total
}

func (c *Composer) TotalItemCount() int {
	n := 0
	for _, cl := range c.clients {
		n += cl.ItemCount()
	}
	return n
}

// BuildSubmission flattens every client's lines into one pending order request.
// The composer itself is left untouched.
func (c *Composer) BuildSubmission() (models.CreateOrderRequest, error) {
	if c.table == 0 {
		return models.CreateOrderRequest{}, ErrNoTable
	}
	if len(c.clients) == 0 {
		return models.CreateOrderRequest{}, ErrNoClients
	}

	var items []models.OrderItem
	for _, cl := range c.clients {
		for _, l := range cl.Lines {
			items = append(items, models.OrderItem{
				MenuItemID: l.MenuItemID,
				Name:       l.Name,
				Quantity:   l.Quantity,
				Price:      l.UnitPrice,
				ItemType:   l.ItemType,
			})
		}
	}
	if len(items) == 0 {
		return models.CreateOrderRequest{}, ErrNoItems
	}

	label := c.team
	if label == "" {
		label = fmt.Sprintf("Table %d", c.table)
	}

	return models.CreateOrderRequest{
		CustomerName: label,
		TableNumber:  c.table,
		Items:        items,
		Total:        c.GrandTotal(),
		Status:       models.StatusPending,
		Notes:        c.Notes(),
	}, nil
}

// Reset discards all clients, the active client and the team label. The table stays selected.
func (c *Composer) Reset() {
	c.clients = nil
	c.active = ""
	c.team = ""
}

func (c *Composer) find(id string) *Client {
	if id == "" {
		return nil
	}
	for _, cl := range c.clients {
		if cl.ID == id {
			return cl
		}
	}
	return nil
}

func (c *Composer) indexOf(id string) int {
	for i, cl := range c.clients {
		if cl.ID == id {
			return i
		}
	}
	return -1
}
