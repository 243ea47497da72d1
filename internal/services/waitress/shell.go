package waitress

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"strconv"
	"strings"
	"text/tabwriter"

	"restaurant-system/internal/apiclient"
	"restaurant-system/internal/composer"
	"restaurant-system/internal/models"
	"restaurant-system/internal/session"
)

const shellHelp = `Commands:
  menu [category]          list available items
  categories               list categories
  table <n>                select a table (drops the current composition)
  team <label>             set the team label (empty clears it)
  client add               add a client and make it active
  client use <n>           make client n active
  client rename <n> <name> rename client n
  client rm <n>            remove client n
  add <item-id>            add one item to the active client
  qty <item-id> <q>        set quantity for the active client (0 removes)
  rm <item-id>             remove the item from the active client
  show                     show the composition
  submit                   send the order
  reset                    drop all clients
  help                     show this help
  quit                     leave`

var errQuit = errors.New("quit")

// Shell is the line-oriented waitress front-end over Workflow
type Shell struct {
	workflow *Workflow
	out      io.Writer
	rnd      *rand.Rand
}

func NewShell(workflow *Workflow, out io.Writer, rnd *rand.Rand) *Shell {
	return &Shell{workflow: workflow, out: out, rnd: rnd}
}

// Run reads commands from in until quit, EOF or ctx is done
func (s *Shell) Run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	s.prompt()
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		err := s.Exec(ctx, scanner.Text())
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			fmt.Fprintf(s.out, "error: %s\n", describe(err))
		}
		s.prompt()
	}
	return scanner.Err()
}

func (s *Shell) prompt() {
	c := s.workflow.Composer()
	if c.State() == composer.StateEmpty {
		fmt.Fprint(s.out, "[no table]> ")
		return
	}
	if active, ok := c.ActiveClient(); ok {
		fmt.Fprintf(s.out, "[table %d | %s]> ", c.Table(), active.Name)
		return
	}
	fmt.Fprintf(s.out, "[table %d]> ", c.Table())
}

// Exec runs a single command line
func (s *Shell) Exec(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	c := s.workflow.Composer()
	args := fields[1:]

	switch fields[0] {
	case "help", "?":
		fmt.Fprintln(s.out, shellHelp)
	case "quit", "exit":
		return errQuit
	case "menu":
		category := ""
		if len(args) > 0 {
			category = args[0]
		}
		s.printMenu(category)
	case "categories":
		for _, cat := range s.workflow.Categories() {
			fmt.Fprintf(s.out, "%s %s (%s) -> %s\n", cat.Emoji, cat.DisplayName, cat.ID, cat.Department)
		}
	case "table":
		n, err := intArg(args, 0, "table")
		if err != nil {
			return err
		}
		if err := c.SelectTable(n); err != nil {
			return err
		}
		fmt.Fprintf(s.out, "Table %d selected\n", n)
	case "team":
		c.SetTeam(strings.Join(args, " "))
	case "client":
		return s.client(args)
	case "add":
		if len(args) != 1 {
			return usage("add <item-id>")
		}
		return s.workflow.AddItem(args[0])
	case "qty":
		if len(args) != 2 {
			return usage("qty <item-id> <q>")
		}
		q, err := strconv.Atoi(args[1])
		if err != nil {
			return models.ValidationError{Field: "quantity", Message: "quantity must be a whole number"}
		}
		active, ok := c.ActiveClient()
		if !ok {
			return composer.ErrNoActiveClient
		}
		c.SetLineQuantity(active.ID, args[0], q)
	case "rm":
		if len(args) != 1 {
			return usage("rm <item-id>")
		}
		active, ok := c.ActiveClient()
		if !ok {
			return composer.ErrNoActiveClient
		}
		c.RemoveLine(active.ID, args[0])
	case "show":
		s.printComposition()
	case "submit":
		order, err := s.workflow.Submit(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(s.out, "Order %s sent for table %d, total %s. %s\n",
			shortID(order.ID), order.TableNumber, order.Total.StringFixed(2), session.Praise(s.rnd))
	case "reset":
		c.Reset()
	default:
		return models.ValidationError{Message: "unknown command " + fields[0] + ", try help"}
	}
	return nil
}

func (s *Shell) client(args []string) error {
	c := s.workflow.Composer()
	if len(args) == 0 {
		return usage("client add|use|rename|rm")
	}

	if args[0] == "add" {
		if c.State() == composer.StateEmpty {
			return composer.ErrNoTable
		}
		cl := c.AddClient()
		fmt.Fprintf(s.out, "%s added\n", cl.Name)
		return nil
	}

	n, err := intArg(args, 1, "client")
	if err != nil {
		return err
	}
	clients := c.Clients()
	if n < 1 || n > len(clients) {
		return models.ValidationError{Field: "client", Message: fmt.Sprintf("no client %d", n)}
	}
	target := clients[n-1]

	switch args[0] {
	case "use":
		c.SetActiveClient(target.ID)
	case "rename":
		return c.RenameClient(target.ID, strings.Join(args[2:], " "))
	case "rm":
		return c.RemoveClient(target.ID)
	default:
		return usage("client add|use|rename|rm")
	}
	return nil
}

func (s *Shell) printMenu(category string) {
	tw := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tPRICE\tTYPE")
	for _, item := range s.workflow.Menu(category) {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", item.ID, item.Name, item.Price.StringFixed(2), item.ItemType)
	}
	tw.Flush()
}

func (s *Shell) printComposition() {
	c := s.workflow.Composer()
	if c.State() == composer.StateEmpty {
		fmt.Fprintln(s.out, "No table selected")
		return
	}

	active, _ := c.ActiveClient()
	tw := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Table %d", c.Table())
	if team := c.Team(); team != "" {
		fmt.Fprintf(tw, " (%s)", team)
	}
	fmt.Fprintln(tw)
	for i, cl := range c.Clients() {
		marker := " "
		if cl.ID == active.ID {
			marker = "*"
		}
		fmt.Fprintf(tw, "%s %d. %s\t\t\t%s\n", marker, i+1, cl.Name, cl.Total().StringFixed(2))
		for _, l := range cl.Lines {
			fmt.Fprintf(tw, "    %s\t%d x %s\t%s\t%s\n", l.MenuItemID, l.Quantity, l.Name, l.UnitPrice.StringFixed(2), l.Subtotal().StringFixed(2))
		}
	}
	fmt.Fprintf(tw, "Items: %d\t\tTotal:\t%s\n", c.TotalItemCount(), c.GrandTotal().StringFixed(2))
	tw.Flush()
}

func describe(err error) string {
	var rerr *apiclient.RemoteError
	if errors.As(err, &rerr) && rerr.Detail != "" {
		return rerr.Detail
	}
	var verr models.ValidationError
	if errors.As(err, &verr) {
		return verr.Message
	}
	return err.Error()
}

func usage(msg string) error {
	return models.ValidationError{Message: "usage: " + msg}
}

func intArg(args []string, i int, name string) (int, error) {
	if len(args) <= i {
		return 0, models.ValidationError{Field: name, Message: name + " number is required"}
	}
	n, err := strconv.Atoi(args[i])
	if err != nil {
		return 0, models.ValidationError{Field: name, Message: name + " must be a number"}
	}
	return n, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
