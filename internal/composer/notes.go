package composer

import (
	"fmt"
	"strings"
)

// Notes renders the per-client breakdown sent along with the order. The backend
// has no notion of sub-bills, so staff read the split from this text.
//
//	Client 1 (subtotal 20.00)
//	  2 x Margherita @ 10.00 = 20.00
//	Client 2 (subtotal 5.00)
//	  1 x Cola @ 5.00 = 5.00
//	Total 25.00
//
// Clients without lines are left out.
func (c *Composer) Notes() string {
	var b strings.Builder
	for _, cl := range c.clients {
		if len(cl.Lines) == 0 {
			continue
		}
		fmt.Fprintf(&b, "%s (subtotal %s)\n", cl.Name, cl.Total().StringFixed(2))
		for _, l := range cl.Lines {
			fmt.Fprintf(&b, "  %d x %s @ %s = %s\n",
				l.Quantity, l.Name, l.UnitPrice.StringFixed(2), l.Subtotal().StringFixed(2))
		}
	}
	if b.Len() == 0 {
		return ""
	}
	fmt.Fprintf(&b, "Total %s", c.GrandTotal().StringFixed(2))
	return b.String()
}
