package board

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"restaurant-system/internal/apiclient"
	"restaurant-system/internal/models"
)

const consoleHelp = `Commands:
  show                    print the board
  refresh                 refresh now
  confirm|start|ready|serve <row|id>
                          move an order to confirmed, preparing, ready or served
  status <row|id> <s>     move an order to any later status
  help                    show this help
  quit                    leave`

var verbs = map[string]models.OrderStatus{
	"confirm": models.StatusConfirmed,
	"start":   models.StatusPreparing,
	"ready":   models.StatusReady,
	"serve":   models.StatusServed,
}

var errQuit = errors.New("quit")

// Console is the line-oriented front-end of a board
type Console struct {
	board *Board
	out   io.Writer
}

func NewConsole(board *Board, out io.Writer) *Console {
	return &Console{board: board, out: out}
}

// Run reads commands from in until quit, EOF or ctx is done
func (c *Console) Run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		err := c.Exec(ctx, scanner.Text())
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			var rerr *apiclient.RemoteError
			if errors.As(err, &rerr) && rerr.Detail != "" {
				fmt.Fprintf(c.out, "error: %s\n", rerr.Detail)
			} else {
				fmt.Fprintf(c.out, "error: %v\n", err)
			}
		}
	}
	return scanner.Err()
}

// Exec runs a single command line
func (c *Console) Exec(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	switch fields[0] {
	case "help", "?":
		fmt.Fprintln(c.out, consoleHelp)
		return nil
	case "quit", "exit":
		return errQuit
	case "show":
		return c.board.Render(c.out)
	case "refresh":
		if err := c.board.Refresh(ctx); err != nil {
			return err
		}
		return c.board.Render(c.out)
	case "status":
		if len(fields) != 3 {
			return fmt.Errorf("usage: status <row|id> <status>")
		}
		status, err := models.ParseOrderStatus(fields[2])
		if err != nil {
			return err
		}
		return c.advance(ctx, fields[1], status)
	}

	status, ok := verbs[fields[0]]
	if !ok {
		return fmt.Errorf("unknown command %s, try help", fields[0])
	}
	if len(fields) != 2 {
		return fmt.Errorf("usage: %s <row|id>", fields[0])
	}
	return c.advance(ctx, fields[1], status)
}

func (c *Console) advance(ctx context.Context, ref string, status models.OrderStatus) error {
	id, ok := c.board.Resolve(ref)
	if !ok {
		return fmt.Errorf("no order %s on the board", ref)
	}
	order, err := c.board.Advance(ctx, id, status)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Order %s for table %d is now %s\n", shortID(order.ID), order.TableNumber, order.Status)
	return nil
}
