package domain

import "github.com/shopspring/decimal"

// ViewKind tags which cart shape a View was derived from.
type ViewKind string

const (
	ViewGuest         ViewKind = "guest"
	ViewAuthenticated ViewKind = "authenticated"
)

// View is the read-only cart state handed to callers. It is a tagged union
// of the two cart representations so consuming code handles both paths
// explicitly instead of sniffing response shapes.
type View struct {
	Kind  ViewKind
	Lines []Line
	Total decimal.Decimal
}

// IsGuest reports whether the view was derived from a guest cart.
func (v View) IsGuest() bool {
	return v.Kind == ViewGuest
}

// GuestView derives a View from a guest cart.
func GuestView(g *GuestCart) View {
	if g == nil {
		g = &GuestCart{}
	}
	return View{
		Kind:  ViewGuest,
		Lines: append([]Line(nil), g.Lines...),
		Total: g.Total(),
	}
}

// AuthenticatedView derives a View from a persisted cart. The server-side
// total is carried as-is; it is the authority for the authenticated path.
func AuthenticatedView(c *Cart) View {
	if c == nil {
		c = &Cart{TotalPrice: decimal.Zero}
	}
	return View{
		Kind:  ViewAuthenticated,
		Lines: append([]Line(nil), c.Lines...),
		Total: c.TotalPrice,
	}
}
