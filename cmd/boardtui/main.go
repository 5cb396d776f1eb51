// boardtui is a terminal kitchen board. It runs the board engine in
// process and renders the work and ready columns.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/appetiteclub/kitchenboard/internal/clock"
	"github.com/appetiteclub/kitchenboard/internal/engine"
	"github.com/appetiteclub/kitchenboard/internal/transport"
	"github.com/appetiteclub/kitchenboard/internal/tui"
	"github.com/aquamarinepk/aqm"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"
	"golang.org/x/text/language"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	s := engine.DefaultSettings()
	var transportKind, locale, logLevel string

	flagSet := pflag.NewFlagSet("boardtui", pflag.ContinueOnError)
	flagSet.StringVar(&s.KitchenURL, "kitchen-url", os.Getenv("BOARD_SERVICES_KITCHEN_URL"), "kitchen REST base url, e.g. http://localhost:8080/api")
	flagSet.StringVar(&transportKind, "transport", string(s.Transport), "push transport: websocket, nats or grpc")
	flagSet.StringVar(&s.SocketPath, "socket-path", s.SocketPath, "websocket path on the kitchen origin")
	flagSet.StringVar(&s.NATSURL, "nats-url", "", "nats server url for the nats transport")
	flagSet.StringVar(&s.GRPCAddr, "grpc-addr", "", "kitchen grpc address for the grpc transport")
	flagSet.IntVar(&s.FetchLimit, "limit", s.FetchLimit, "maximum tickets per board pull")
	flagSet.StringVar(&s.StoreID, "store", "", "store id to scope the board to")
	flagSet.DurationVar(&s.BackoffInitial, "backoff-initial", s.BackoffInitial, "first reconnect delay")
	flagSet.DurationVar(&s.BackoffMax, "backoff-max", s.BackoffMax, "reconnect delay cap")
	flagSet.DurationVar(&s.HighlightWindow, "highlight", s.HighlightWindow, "how long new and rolled back tickets stay highlighted")
	flagSet.DurationVar(&s.AvailabilityInterval, "availability-interval", s.AvailabilityInterval, "menu availability poll interval")
	flagSet.StringVar(&locale, "locale", s.Locale.String(), "locale used to order table numbers")
	flagSet.StringVar(&logLevel, "log-level", "", "log to stderr at this level (empty disables logging)")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if args := flagSet.Args(); len(args) > 0 {
		return fmt.Errorf("unexpected argument: %s", args[0])
	}

	s.Transport = transport.Kind(strings.ToLower(transportKind))
	tag, err := language.Parse(locale)
	if err != nil {
		return fmt.Errorf("invalid locale %q: %w", locale, err)
	}
	s.Locale = tag

	// The alt screen owns stdout, so logs are off unless asked for.
	var logger aqm.Logger = aqm.NewNoopLogger()
	if logLevel != "" {
		logger = aqm.NewLogger(logLevel)
	}

	eng, err := engine.New(s, clock.Real(), logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := eng.Start(ctx); err != nil {
		return err
	}
	defer eng.Stop(context.Background())

	model := tui.NewModel(eng.Board, eng.Availability)
	defer model.Close()

	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithReportFocus())
	_, err = program.Run()
	return err
}
