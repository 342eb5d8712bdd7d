package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/reglet-dev/dlhost/domain/errors"
	"github.com/reglet-dev/dlhost/host"
	hostlog "github.com/reglet-dev/dlhost/log"
	"github.com/spf13/cobra"
)

// Session commands.
const (
	OpLoad     = "load"
	OpReload   = "reload"
	OpUnload   = "unload"
	OpExchange = "exchange"
	OpCopyOut  = "copyout"
	OpHello    = "hello"
	OpStatus   = "status"
	OpLevel    = "level"
	OpQuit     = "quit"
)

// Command is one parsed session line.
type Command struct {
	Op       string
	Path     string
	Input    string
	Level    string
	Capacity int
	Override bool
}

// ParseCommand parses one session line. Blank lines and lines starting
// with '#' yield ok == false.
//
//	load <path>
//	reload
//	unload
//	exchange <capacity> [override|probe] [input...]
//	copyout [input...]
//	hello
//	status
//	level <debug|info|warn|error>
//	quit
func ParseCommand(line string) (cmd Command, ok bool, err error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return Command{}, false, nil
	}
	fields := strings.Fields(line)
	cmd.Op = strings.ToLower(fields[0])
	args := fields[1:]

	switch cmd.Op {
	case OpLoad:
		if len(args) != 1 {
			return Command{}, false, fmt.Errorf("usage: load <path>")
		}
		cmd.Path = args[0]
	case OpExchange:
		if len(args) == 0 {
			return Command{}, false, fmt.Errorf("usage: exchange <capacity> [override|probe] [input...]")
		}
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return Command{}, false, fmt.Errorf("invalid capacity %q", args[0])
		}
		cmd.Capacity = n
		cmd.Override = true
		if len(args) > 1 {
			switch strings.ToLower(args[1]) {
			case "override":
			case "probe":
				cmd.Override = false
			default:
				return Command{}, false, fmt.Errorf("invalid mode %q: want override or probe", args[1])
			}
		}
		if len(args) > 2 {
			// Keep the input's inner spacing.
			_, rest, _ := strings.Cut(line, args[1])
			cmd.Input = strings.TrimSpace(rest)
		}
	case OpCopyOut:
		if len(args) > 0 {
			cmd.Input = strings.TrimSpace(line[len(fields[0]):])
		}
	case OpLevel:
		if len(args) != 1 {
			return Command{}, false, fmt.Errorf("usage: level <debug|info|warn|error>")
		}
		cmd.Level = args[0]
	case OpReload, OpUnload, OpHello, OpStatus, OpQuit:
		if len(args) != 0 {
			return Command{}, false, fmt.Errorf("%s takes no arguments", cmd.Op)
		}
	case "exit":
		cmd.Op = OpQuit
	default:
		return Command{}, false, fmt.Errorf("unknown command %q", fields[0])
	}
	return cmd, true, nil
}

// Session drives one host from a line-oriented script.
type Session struct {
	host   *host.Host
	view   *view
	level  *slog.LevelVar
	path   string
	failed int
}

// Run executes commands from in until quit or end of input. Command
// failures are printed and counted; only I/O and context errors stop it.
func (s *Session) Run(ctx context.Context, in io.Reader) error {
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		cmd, ok, err := ParseCommand(sc.Text())
		if err != nil {
			s.fail(err)
			continue
		}
		if !ok {
			continue
		}
		if cmd.Op == OpQuit {
			return nil
		}
		s.execute(ctx, cmd)
	}
	return sc.Err()
}

// Failed returns the number of commands that failed.
func (s *Session) Failed() int { return s.failed }

func (s *Session) fail(err error) {
	s.failed++
	s.view.failure(err)
}

func (s *Session) execute(ctx context.Context, cmd Command) {
	switch cmd.Op {
	case OpLoad, OpReload:
		path := cmd.Path
		if cmd.Op == OpReload {
			if s.path == "" {
				s.fail(&errors.NotLoadedError{Operation: OpReload})
				return
			}
			path = s.path
		}
		if err := s.host.Load(ctx, path); err != nil {
			s.fail(err)
			return
		}
		s.path = path
		st := s.host.Status()
		s.view.success("loaded %s (%s, generation %d)", st.Path, st.Backend, st.Generation)

	case OpUnload:
		_ = s.host.Unload(ctx)
		s.view.success("unloaded (generation %d)", s.host.Generation())

	case OpExchange:
		res, err := s.host.ExchangeInput(ctx, cmd.Capacity, cmd.Override, []byte(cmd.Input))
		if err != nil {
			s.fail(err)
			return
		}
		s.view.exchange(res)

	case OpCopyOut:
		reply, err := s.host.CopyOut(ctx, []byte(cmd.Input))
		if err != nil {
			s.fail(err)
			return
		}
		s.view.success("copy out: plugin returned %d bytes", len(reply))
		s.view.contentsOf(reply)

	case OpHello:
		greeting, err := s.host.Hello(ctx)
		if err != nil {
			s.fail(err)
			return
		}
		s.view.success("hello: %s", greeting)

	case OpStatus:
		s.view.status(s.host.Status(), residentSetSize())

	case OpLevel:
		lvl, err := hostlog.ParseLevel(cmd.Level)
		if err != nil {
			s.fail(err)
			return
		}
		if s.level != nil {
			s.level.Set(lvl)
		}
		s.view.success("log level %s", lvl)
	}
}

func newSessionCommand(a *app) *cobra.Command {
	var contents, metricsAddr string
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Drive the host from a script read on stdin",
		Long: `Read commands from stdin, one per line, and run them against one host:

  load <path>                                 load a plugin (unloading the current one)
  reload                                      unload and load the last path again
  unload                                      release the plugin
  exchange <capacity> [override|probe] [in]   exchange one buffer, optionally seeded
  copyout [in]                                call the copy-out entry point
  hello                                       call the diagnostic entry point
  status                                      show the plugin slot
  level <level>                               change the log level
  quit                                        stop

Lines starting with '#' are ignored. The command fails when any line failed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			if metricsAddr != "" {
				a.cfg.Metrics.Addr = metricsAddr
			}
			rt, err := a.newRuntime(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = rt.host.Close(context.WithoutCancel(ctx)) }()

			stop, err := a.serve(ctx, rt)
			if err != nil {
				return err
			}
			defer stop()

			s := &Session{host: rt.host, view: newView(a.out, contents), level: a.level}
			if err := s.Run(ctx, cmd.InOrStdin()); err != nil {
				return err
			}
			if n := s.Failed(); n > 0 {
				return fmt.Errorf("%d session command(s) failed", n)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&contents, "contents", ContentsAuto, "How to print buffer contents (auto, hex, raw)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve /metrics, /live and /ready on this address")
	return cmd
}
