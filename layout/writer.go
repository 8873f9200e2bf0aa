package layout

import (
	"github.com/jroimartin/gocui"
)

// Updater schedules a function on the GUI main loop. *gocui.Gui is one.
type Updater interface {
	Update(f func(*gocui.Gui) error)
}

// ViewWriter appends everything written to it to a view. Writes happen on
// the GUI main loop, so it is safe to use from any goroutine.
type ViewWriter struct {
	g    Updater
	name string
}

func NewViewWriter(g Updater, name string) *ViewWriter {
	return &ViewWriter{g: g, name: name}
}

func (w *ViewWriter) Write(p []byte) (int, error) {
	// p may be reused by the caller once Write returns.
	buf := make([]byte, len(p))
	copy(buf, p)
	w.g.Update(func(g *gocui.Gui) error {
		v, err := g.View(w.name)
		if err != nil {
			// Not laid out yet, drop the line.
			return nil
		}
		_, err = v.Write(buf)
		return err
	})
	return len(p), nil
}
