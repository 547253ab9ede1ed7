package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/i474232898/weather-lookup/internal/weather"
)

// Actions is the presenter surface the session drives.
type Actions interface {
	SearchByText(text string)
	SearchByCoordinates()
	RepeatLastSearch()
	DeleteRecentSearch(s weather.Search)
}

// Executor runs functions on the UI loop.
type Executor interface {
	Post(fn func()) bool
}

// CommandKind identifies a parsed input line.
type CommandKind int

const (
	CmdSearch CommandKind = iota
	CmdHere
	CmdLast
	CmdDelete
	CmdHelp
	CmdQuit
)

// Command is one parsed input line.
type Command struct {
	Kind  CommandKind
	Text  string
	Index int
}

var errUnknownCommand = errors.New("unknown command")

// ParseCommand reads a line of input. Anything not starting with ':' is a
// search; blank lines parse as a search for "", which the presenter ignores.
func ParseCommand(line string) (Command, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, ":") {
		return Command{Kind: CmdSearch, Text: line}, nil
	}

	fields := strings.Fields(line)
	switch fields[0] {
	case ":here", ":h":
		return Command{Kind: CmdHere}, nil
	case ":last", ":l":
		return Command{Kind: CmdLast}, nil
	case ":help", ":?":
		return Command{Kind: CmdHelp}, nil
	case ":quit", ":q":
		return Command{Kind: CmdQuit}, nil
	case ":rm", ":delete":
		if len(fields) != 2 {
			return Command{}, fmt.Errorf("%s takes one recent search number", fields[0])
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil || n < 1 {
			return Command{}, fmt.Errorf("invalid recent search number %q", fields[1])
		}
		return Command{Kind: CmdDelete, Index: n}, nil
	default:
		return Command{}, fmt.Errorf("%w %q", errUnknownCommand, fields[0])
	}
}

// HelpText lists the commands a session understands.
const HelpText = `Type a city name or a 5-digit zip code to look up the weather.
  :here      weather at your configured location
  :last      repeat the most recent search
  :rm N      remove recent search number N
  :quit      exit`

// Session reads commands from in and forwards them to the presenter on the
// UI loop.
type Session struct {
	in      io.Reader
	out     io.Writer
	ui      Executor
	actions Actions
	view    *View
}

func NewSession(in io.Reader, out io.Writer, ui Executor, actions Actions, view *View) *Session {
	return &Session{in: in, out: out, ui: ui, actions: actions, view: view}
}

// Run processes input until EOF, :quit or ctx is done.
func (s *Session) Run(ctx context.Context) error {
	lines := make(chan string)
	errc := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(s.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		errc <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errc:
			return err
		case line := <-lines:
			if quit := s.handle(line); quit {
				return nil
			}
		}
	}
}

func (s *Session) handle(line string) (quit bool) {
	cmd, err := ParseCommand(line)
	if err != nil {
		s.post(func() { s.view.ShowError(err.Error()) })
		return false
	}

	switch cmd.Kind {
	case CmdQuit:
		return true
	case CmdHelp:
		s.post(func() { fmt.Fprintln(s.out, HelpText) })
	case CmdHere:
		s.post(s.actions.SearchByCoordinates)
	case CmdLast:
		s.post(s.actions.RepeatLastSearch)
	case CmdSearch:
		if cmd.Text != "" {
			s.post(func() { s.actions.SearchByText(cmd.Text) })
		}
	case CmdDelete:
		s.post(func() {
			search, ok := s.view.RecentSearch(cmd.Index)
			if !ok {
				s.view.ShowError(fmt.Sprintf("no recent search number %d", cmd.Index))
				return
			}
			s.actions.DeleteRecentSearch(search)
		})
	}
	return false
}

func (s *Session) post(fn func()) {
	s.ui.Post(fn)
}
