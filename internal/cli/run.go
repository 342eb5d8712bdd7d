package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/reglet-dev/dlhost/domain/errors"
	"github.com/spf13/cobra"
)

type runFlags struct {
	capacity int
	probe    bool
	input    string
	wait     time.Duration
	metrics  string
	contents string
}

func newRunCommand(a *app) *cobra.Command {
	flags := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run [plugin]",
		Short: "Load a plugin, exchange one buffer with it and unload it",
		Long: `Load a plugin image, call its diagnostic entry point when it has one,
exchange one buffer with it and unload it again.

The plugin path defaults to the "plugin" key of the configuration. In
override mode (the default) the plugin writes into the buffer and the
written bytes are printed. With --probe the plugin only reports how many
bytes it would need.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, args, flags)
		},
	}

	f := cmd.Flags()
	f.IntVar(&flags.capacity, "capacity", 0, "Buffer capacity in bytes (default from config)")
	f.BoolVar(&flags.probe, "probe", false, "Ask for the needed size instead of the contents")
	f.StringVar(&flags.input, "input", "", "Bytes to seed the buffer with")
	f.DurationVar(&flags.wait, "wait", 0, "Retry for this long while the plugin image does not exist")
	f.StringVar(&flags.metrics, "metrics-addr", "", "Serve /metrics, /live and /ready on this address")
	f.StringVar(&flags.contents, "contents", ContentsAuto, "How to print buffer contents (auto, hex, raw)")
	return cmd
}

func (a *app) run(cmd *cobra.Command, args []string, flags *runFlags) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	path := a.cfg.Plugin
	if len(args) == 1 {
		path = args[0]
	}
	if path == "" {
		return fmt.Errorf("no plugin given: pass a path or set \"plugin\" in the configuration")
	}

	ex := a.cfg.Exchange
	if cmd.Flags().Changed("capacity") {
		ex.Capacity = flags.capacity
	}
	if cmd.Flags().Changed("probe") {
		ex.Override = !flags.probe
	}
	if cmd.Flags().Changed("input") {
		ex.Input = flags.input
	}
	if flags.metrics != "" {
		a.cfg.Metrics.Addr = flags.metrics
	}
	wait, err := a.cfg.WaitTimeout()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("wait") {
		wait = flags.wait
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

	v := newView(a.out, flags.contents)
	if err := loadWithWait(ctx, rt.host, path, wait); err != nil {
		return err
	}
	st := rt.host.Status()
	v.success("loaded %s (%s, generation %d)", st.Path, st.Backend, st.Generation)

	greeting, err := rt.host.Hello(ctx)
	switch errors.KindOf(err) {
	case errors.KindNone:
		v.success("hello: %s", greeting)
	case errors.KindSymbolNotFound:
		a.logger.DebugContext(ctx, "Host: plugin has no diagnostic entry point", "path", path)
	default:
		return err
	}

	res, err := rt.host.ExchangeInput(ctx, ex.Capacity, ex.Override, []byte(ex.Input))
	if err != nil {
		if errors.KindOf(err) != errors.KindExchangeDeclined {
			return err
		}
		v.failure(err)
	} else {
		v.exchange(res)
	}

	if err := rt.host.Unload(ctx); err != nil {
		return err
	}
	v.success("unloaded (generation %d)", rt.host.Generation())
	return nil
}
