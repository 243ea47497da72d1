package waitress

import (
	"bytes"
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"restaurant-system/internal/apiclient"
	"restaurant-system/internal/composer"
	"restaurant-system/internal/logger"
	"restaurant-system/internal/models"
	"restaurant-system/internal/telemetry"
)

type fakeAPI struct {
	menu      []models.MenuItem
	submitted []models.CreateOrderRequest
	createErr error
}

func (f *fakeAPI) Menu(context.Context) ([]models.MenuItem, error) {
	return f.menu, nil
}

func (f *fakeAPI) Categories(context.Context) ([]models.Category, error) {
	return []models.Category{
		{ID: "main_dishes", DisplayName: "Main Dishes", Emoji: "🍽️", Department: models.Kitchen},
		{ID: "beverages", DisplayName: "Beverages", Emoji: "🥤", Department: models.Bar},
	}, nil
}

func (f *fakeAPI) CreateOrder(_ context.Context, req models.CreateOrderRequest) (*models.Order, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.submitted = append(f.submitted, req)
	return &models.Order{ID: "0f8fad5b-d9cb-469f-a165-70867728950e", TableNumber: req.TableNumber, Total: req.Total, Status: models.StatusPending}, nil
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{menu: []models.MenuItem{
		{ID: "margherita", Name: "Margherita", Price: decimal.RequireFromString("10.00"), Category: "main_dishes", ItemType: models.Food, Available: true},
		{ID: "lemonade", Name: "Lemonade", Price: decimal.RequireFromString("5.00"), Category: "beverages", ItemType: models.Drink, Available: true},
		{ID: "truffle", Name: "Truffle Pasta", Price: decimal.RequireFromString("30.00"), Category: "main_dishes", ItemType: models.Food, Available: false},
	}}
}

func newTestWorkflow(t *testing.T, api *fakeAPI) *Workflow {
	t.Helper()
	w := NewWorkflow(api, composer.New(composer.DefaultOptions()), telemetry.NewNopMetrics(), logger.NewNop())
	if err := w.LoadCatalog(context.Background()); err != nil {
		t.Fatal(err)
	}
	return w
}

func TestWorkflow_Menu(t *testing.T) {
	w := newTestWorkflow(t, newFakeAPI())

	if got := len(w.Menu("")); got != 2 {
		t.Errorf("Menu(\"\") = %d items, want 2 available", got)
	}
	drinks := w.Menu("beverages")
	if len(drinks) != 1 || drinks[0].ID != "lemonade" {
		t.Errorf("Menu(beverages) = %v", drinks)
	}
	if err := w.AddItem("truffle"); err == nil {
		t.Error("AddItem(unavailable) succeeded")
	}
}

func TestWorkflow_SubmitResetsOnSuccess(t *testing.T) {
	api := newFakeAPI()
	w := newTestWorkflow(t, api)
	c := w.Composer()

	c.SelectTable(5)
	c.AddClient()
	w.AddItem("margherita")
	w.AddItem("margherita")
	c.AddClient()
	w.AddItem("lemonade")

	order, err := w.Submit(context.Background())
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if !order.Total.Equal(decimal.RequireFromString("25")) {
		t.Errorf("total = %s", order.Total)
	}
	if len(api.submitted) != 1 || len(api.submitted[0].Items) != 2 || api.submitted[0].CustomerName != "Table 5" {
		t.Errorf("submitted = %+v", api.submitted)
	}
	if len(c.Clients()) != 0 || c.Table() != 5 {
		t.Errorf("composer not reset: clients=%d table=%d", len(c.Clients()), c.Table())
	}
}

func TestWorkflow_SubmitFailurePreservesComposition(t *testing.T) {
	tests := []struct {
		name  string
		setup func(w *Workflow, api *fakeAPI)
	}{
		{"no items", func(w *Workflow, api *fakeAPI) {
			w.Composer().SelectTable(3)
			w.Composer().AddClient()
		}},
		{"remote rejection", func(w *Workflow, api *fakeAPI) {
			api.createErr = &apiclient.RemoteError{StatusCode: 400, Detail: "lemonade is not available"}
			w.Composer().SelectTable(3)
			w.Composer().AddClient()
			w.AddItem("lemonade")
		}},
		{"transport failure", func(w *Workflow, api *fakeAPI) {
			api.createErr = errors.New("connection refused")
			w.Composer().SelectTable(3)
			w.Composer().AddClient()
			w.AddItem("margherita")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newFakeAPI()
			w := newTestWorkflow(t, api)
			tt.setup(w, api)
			before := w.Composer().Clients()
			total := w.Composer().GrandTotal()

			if _, err := w.Submit(context.Background()); err == nil {
				t.Fatal("Submit() succeeded")
			}
			after := w.Composer().Clients()
			if len(after) != len(before) || !w.Composer().GrandTotal().Equal(total) {
				t.Errorf("composition changed after failed submit")
			}
		})
	}
}

func TestShell_Session(t *testing.T) {
	api := newFakeAPI()
	w := newTestWorkflow(t, api)
	var out bytes.Buffer
	sh := NewShell(w, &out, rand.New(rand.NewPCG(1, 1)))

	script := strings.Join([]string{
		"add margherita",
		"table 5",
		"client add",
		"add margherita",
		"add margherita",
		"client add",
		"client rename 2 Alex",
		"add lemonade",
		"qty lemonade 3",
		"show",
		"submit",
		"show",
		"quit",
		"table 7",
	}, "\n")

	if err := sh.Run(context.Background(), strings.NewReader(script)); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	got := out.String()
	for _, want := range []string{
		"error: select a client first",
		"Table 5 selected",
		"Client 2 added",
		"Alex",
		"Items: 5",
		"35.00",
		"Order 0f8fad5b sent for table 5, total 35.00.",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}

	if len(api.submitted) != 1 || !strings.Contains(api.submitted[0].Notes, "Alex (subtotal 15.00)") {
		t.Errorf("submitted = %+v", api.submitted)
	}
	if w.Composer().Table() != 5 {
		t.Errorf("commands after quit were executed")
	}
}

func TestShell_Errors(t *testing.T) {
	w := newTestWorkflow(t, newFakeAPI())
	sh := NewShell(w, &bytes.Buffer{}, rand.New(rand.NewPCG(1, 1)))
	ctx := context.Background()

	tests := []struct {
		line    string
		wantErr bool
	}{
		{"table 40", true},
		{"table x", true},
		{"client add", true},
		{"table 2", false},
		{"client add", false},
		{"client use 3", true},
		{"qty margherita two", true},
		{"frobnicate", true},
		{"", false},
		{"help", false},
	}

	for _, tt := range tests {
		err := sh.Exec(ctx, tt.line)
		if (err != nil) != tt.wantErr {
			t.Errorf("Exec(%q) error = %v, wantErr %v", tt.line, err, tt.wantErr)
		}
	}
}
