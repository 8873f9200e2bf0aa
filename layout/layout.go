package layout

import (
	"fmt"
	"io/ioutil"
	"strings"
	"sync"

	"github.com/jroimartin/gocui"
)

const (
	PastCmdView = "pastcommand"
	InputView   = "input"
	LoggerView  = "logger"
	ManualView  = "manual"
)

// SubmitFunc handles one line typed by the user. A returned error is shown
// below the command.
type SubmitFunc func(line string) error

type cmd struct {
	str   string
	ready bool
	m     sync.RWMutex
}

// PastCmd is the ViewManager that logs past command.
type PastCmd struct {
	name string
	last *cmd
}

// Input box for command.
type Input struct {
	name   string
	last   *cmd
	submit SubmitFunc
}

type Logger struct {
	name string
}

type Manual struct {
	name string
	text string
}

func (pc *PastCmd) Layout(g *gocui.Gui) error {
	maxX, maxY := g.Size()
	// Bottom left corner.
	v, err := g.SetView(pc.name, 1, maxY*2/3, maxX/3, maxY-6)
	if err != nil && err != gocui.ErrUnknownView {
		return err
	}
	v.Autoscroll = true
	v.Wrap = true

	pc.last.m.Lock()
	defer pc.last.m.Unlock()
	if pc.last.ready {
		fmt.Fprintln(v, "> "+pc.last.str)
	}
	pc.last.ready = false
	return nil
}

func (i *Input) Layout(g *gocui.Gui) error {
	maxX, maxY := g.Size()
	// Bottom.
	v, err := g.SetView(i.name, 1, maxY-5, maxX-1, maxY-1)
	if err != nil && err != gocui.ErrUnknownView {
		return err
	}
	v.Wrap = true
	v.Autoscroll = true
	v.Editor = i
	v.Editable = true
	return nil
}

func (l *Logger) Layout(g *gocui.Gui) error {
	maxX, maxY := g.Size()
	// Right side.
	v, err := g.SetView(l.name, maxX/3+1, 1, maxX-1, maxY-6)
	if err != nil && err != gocui.ErrUnknownView {
		return err
	}
	v.Autoscroll = true
	v.Wrap = true
	return nil
}

func (m *Manual) Layout(g *gocui.Gui) error {
	maxX, maxY := g.Size()
	// Top left corner.
	v, err := g.SetView(m.name, 1, 1, maxX/3, maxY*2/3-1)
	if err != nil && err != gocui.ErrUnknownView {
		return err
	}
	v.Wrap = true
	v.Clear()
	fmt.Fprintln(v, m.text)
	return nil
}

// Record records a submitted line and its error, if any, for the past
// command view.
func (c *cmd) Record(s string, err error) {
	c.m.Lock()
	defer c.m.Unlock()
	c.str = s
	if err != nil {
		c.str = s + "\n" + err.Error()
	}
	c.ready = true
}

func (i *Input) Edit(v *gocui.View, key gocui.Key, ch rune, mod gocui.Modifier) {
	switch {
	case key == gocui.KeyEnter:
		// Read buffer.
		s := v.Buffer()
		// Remove \n from string.
		s = strings.Replace(s, "\n", "", -1)
		i.last.Record(s, i.submit(s))

		// Reset cursor.
		v.Clear()
		v.SetOrigin(0, 0)
		v.SetCursor(0, 0)

	case ch != 0 && mod == 0:
		v.EditWrite(ch)
	case key == gocui.KeySpace:
		v.EditWrite(' ')
	case key == gocui.KeyBackspace || key == gocui.KeyBackspace2:
		v.EditDelete(true)
	}
}

func SetFocus(name string) func(g *gocui.Gui) error {
	return func(g *gocui.Gui) error {
		_, err := g.SetCurrentView(name)
		return err
	}
}

// ReadManual loads the usage text shown in the manual view.
func ReadManual(path string) (string, error) {
	dat, err := ioutil.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(dat), nil
}

// Create a GUI. Every line entered in the input box goes to submit.
func CreateGui(submit SubmitFunc, manual string) (*gocui.Gui, error) {
	g, err := gocui.NewGui(gocui.OutputNormal)
	if err != nil {
		return nil, err
	}

	g.Cursor = true

	last := &cmd{}
	pc := &PastCmd{name: PastCmdView, last: last}
	input := &Input{name: InputView, last: last, submit: submit}
	l := &Logger{name: LoggerView}
	m := &Manual{name: ManualView, text: manual}
	focus := gocui.ManagerFunc(SetFocus(InputView))
	g.SetManager(pc, input, l, m, focus)

	if err := g.SetKeybinding("", gocui.KeyCtrlC, gocui.ModNone, quit); err != nil {
		g.Close()
		return nil, err
	}
	return g, nil
}

func quit(g *gocui.Gui, v *gocui.View) error {
	return gocui.ErrQuit
}
