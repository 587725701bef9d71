package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/desertbit/grumble"

	"github.com/arloliu/go-modemterm/listener"
	"github.com/arloliu/go-modemterm/modem"
	"github.com/arloliu/go-modemterm/terminal"
	"github.com/arloliu/go-modemterm/xmodem"
)

// AddCommands registers the modem and transfer commands.
func AddCommands(app *grumble.App) {
	app.AddCommand(&grumble.Command{
		Name:    "dial",
		Aliases: []string{"call"},
		Help:    "dial a number with ATDT",
		Args: func(a *grumble.Args) {
			a.String("number", "phone number to dial")
		},
		Run: func(c *grumble.Context) error {
			number := c.Args.String("number")
			if err := term.Dial(number); err != nil {
				log.Error("Failed to dial", "number", number, "error", err)
				return nil
			}
			log.Info("Dialing", "number", number)
			return nil
		},
	})
	app.AddCommand(&grumble.Command{
		Name: "answer",
		Help: "answer an incoming call with ATA",
		Run: func(c *grumble.Context) error {
			if err := term.Answer(); err != nil {
				log.Error("Failed to answer", "error", err)
			}
			return nil
		},
	})
	app.AddCommand(&grumble.Command{
		Name:    "at",
		Aliases: []string{"admin"},
		Help:    "send a raw AT command",
		Args: func(a *grumble.Args) {
			a.StringList("command", "command text, e.g. ATI3")
		},
		Run: func(c *grumble.Context) error {
			cmd := strings.Join(c.Args.StringList("command"), " ")
			if err := term.Command(cmd); err != nil {
				log.Error("Failed to send command", "command", cmd, "error", err)
			}
			return nil
		},
	})
	app.AddCommand(&grumble.Command{
		Name: "speaker",
		Help: "turn the modem speaker on or off",
		Args: func(a *grumble.Args) {
			a.String("state", "on or off")
		},
		Run: func(c *grumble.Context) error {
			var on bool
			switch state := c.Args.String("state"); state {
			case "on":
				on = true
			case "off":
			default:
				log.Warn("Speaker state must be on or off", "state", state)
				return nil
			}
			if err := term.Speaker(on); err != nil {
				log.Error("Failed to switch speaker", "error", err)
			}
			return nil
		},
	})
	app.AddCommand(&grumble.Command{
		Name:    "hangup",
		Aliases: []string{"ath"},
		Help:    "escape to command mode and hang up",
		Run: func(c *grumble.Context) error {
			if err := term.Hangup(context.Background()); err != nil {
				log.Error("Failed to hang up", "error", err)
				return nil
			}
			log.Info("Hung up")
			return nil
		},
	})
	app.AddCommand(&grumble.Command{
		Name:    "send",
		Aliases: []string{"upload"},
		Help:    "send a file with XMODEM, Ctrl-C cancels",
		Args: func(a *grumble.Args) {
			a.String("file", "file to send")
		},
		Run: func(c *grumble.Context) error {
			path := c.Args.String("file")
			log.Info("Waiting for receiver", "file", path)

			res, err := runTransfer(func(ctx context.Context) (xmodem.Result, error) {
				return term.SendFile(ctx, path)
			})
			reportTransfer(c, res, err)
			return nil
		},
	})
	app.AddCommand(&grumble.Command{
		Name:    "receive",
		Aliases: []string{"download"},
		Help:    "receive a file with XMODEM, Ctrl-C cancels",
		Flags: func(f *grumble.Flags) {
			f.Int64("s", "size", terminal.UnknownSize, "expected file size in bytes, trims the padding exactly")
		},
		Args: func(a *grumble.Args) {
			a.String("file", "destination file")
		},
		Run: func(c *grumble.Context) error {
			path := c.Args.String("file")
			size := c.Flags.Int64("size")
			log.Info("Receiving", "file", path)

			res, err := runTransfer(func(ctx context.Context) (xmodem.Result, error) {
				return term.ReceiveFile(ctx, path, size)
			})
			reportTransfer(c, res, err)
			return nil
		},
	})
	app.AddCommand(&grumble.Command{
		Name:    "history",
		Aliases: []string{"ls"},
		Help:    "list the transfers of this session",
		Run: func(c *grumble.Context) error {
			records := term.History()
			if len(records) == 0 {
				log.Info("No transfers yet")
				return nil
			}
			c.App.Println(RenderHistoryTable(records))
			return nil
		},
	})
	app.AddCommand(&grumble.Command{
		Name: "stats",
		Help: "show transfer and listener counters",
		Run: func(c *grumble.Context) error {
			c.App.Println(RenderStatsTable(term.Metrics(), term.ListenerMetrics()))
			return nil
		},
	})
}

// runTransfer runs fn and cancels the transfer on Ctrl-C.
func runTransfer(fn func(ctx context.Context) (xmodem.Result, error)) (xmodem.Result, error) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	defer signal.Stop(sigs)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-sigs:
			if term.CancelTransfer() {
				log.Warn("Cancelling transfer")
			}
		case <-done:
		}
	}()

	return fn(context.Background())
}

func reportTransfer(c *grumble.Context, res xmodem.Result, err error) {
	switch {
	case err == nil:
		log.Info("Transfer complete", "bytes", res.Bytes, "blocks", res.Blocks, "retries", res.Retries, "duration", res.Duration)
		if !res.EOTAcked {
			log.Warn("Peer never acknowledged the end of transmission")
		}
	case errors.Is(err, terminal.ErrBusy):
		log.Warn("Another transfer is running")
	case errors.Is(err, xmodem.ErrUserCancelled):
		log.Warn("Transfer cancelled")
	default:
		if reason, ok := xmodem.ReasonOf(err); ok {
			log.Error("Transfer failed", "reason", reason.String(), "error", err)
		} else {
			log.Error("Transfer failed", "error", err)
		}
	}
}

// printNotifications prints listener output until the listener stops.
func printNotifications(app *grumble.App, t *terminal.Terminal) {
	for n := range t.Events() {
		switch {
		case n.Kind == listener.KindFault:
			log.Error("Link failed, restart modemterm", "error", n.Err)
		case n.IsResult && n.Result.Code == modem.ResultConnect:
			if n.Result.Speed > 0 {
				app.Println(fmt.Sprintf("Connected at %d", n.Result.Speed))
			} else {
				app.Println("Connected")
			}
		default:
			app.Println(n.Line)
		}
	}
}
