// Command mazeclient drives a session on a running mazestep server and
// prints the streamed events as they arrive.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/lawnchairsociety/mazestep/internal/streamclient"
)

type options struct {
	url         string
	size        int
	seed        string
	ignoreWalls *bool
	intervalMS  int
	perTick     int
	skipSearch  bool
	raw         bool
	timeout     time.Duration
}

func main() {
	var opts options
	flag.StringVar(&opts.url, "url", "ws://localhost:8080/ws", "Stream endpoint")
	flag.IntVar(&opts.size, "size", 0, "Grid size (0 uses the server default)")
	flag.StringVar(&opts.seed, "seed", "", "Seed (empty uses the server default)")
	ignoreWalls := flag.Bool("ignore-walls", false, "Search the open grid (unset uses the server default)")
	flag.IntVar(&opts.intervalMS, "interval", 20, "Milliseconds between playback ticks")
	flag.IntVar(&opts.perTick, "per-tick", 1, "Events per playback tick")
	flag.BoolVar(&opts.skipSearch, "no-search", false, "Stop after generation")
	flag.BoolVar(&opts.raw, "raw", false, "Print event JSON instead of text")
	flag.DurationVar(&opts.timeout, "timeout", time.Minute, "Give up if a phase takes longer")
	flag.Parse()
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "ignore-walls" {
			opts.ignoreWalls = ignoreWalls
		}
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Stdout, opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, out io.Writer, opts options) error {
	c, err := streamclient.Dial(ctx, opts.url, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.Send(streamclient.Command{
		Cmd:         "new",
		Size:        opts.size,
		Seed:        opts.seed,
		IgnoreWalls: opts.ignoreWalls,
	}); err != nil {
		return err
	}
	hello, err := c.Until("session", opts.timeout)
	if err != nil {
		return err
	}
	info := hello[len(hello)-1].Session
	fmt.Fprintf(out, "session %s  size %d  seed %d\n", info.ID, info.Size, info.Seed)

	done, err := playPhase(ctx, c, out, opts)
	if err != nil {
		return err
	}
	if opts.skipSearch {
		fmt.Fprint(out, done.Maze)
		return nil
	}

	if err := c.Send(streamclient.Command{Cmd: "search"}); err != nil {
		return err
	}
	if _, err := c.Until("state", opts.timeout); err != nil {
		return err
	}
	done, err = playPhase(ctx, c, out, opts)
	if err != nil {
		return err
	}

	if sum := done.Summary; sum != nil {
		if sum.Found {
			fmt.Fprintf(out, "path %d cells, %d visited\n", sum.PathLength, sum.Visited)
		} else {
			fmt.Fprintf(out, "no path, %d visited\n", sum.Visited)
		}
	}
	fmt.Fprint(out, done.Maze)
	return nil
}

// playPhase starts playback and prints events until the complete message.
func playPhase(ctx context.Context, c *streamclient.Client, out io.Writer, opts options) (streamclient.Message, error) {
	if err := c.Send(streamclient.Command{
		Cmd:        "play",
		IntervalMS: opts.intervalMS,
		PerTick:    opts.perTick,
	}); err != nil {
		return streamclient.Message{}, err
	}

	deadline := time.Now().Add(opts.timeout)
	for {
		if err := ctx.Err(); err != nil {
			return streamclient.Message{}, err
		}
		msg, err := c.Next(min(time.Until(deadline), 250*time.Millisecond))
		if err == streamclient.ErrTimeout && time.Now().Before(deadline) {
			continue
		}
		if err != nil {
			return streamclient.Message{}, err
		}

		switch msg.Type {
		case "event":
			if opts.raw {
				fmt.Fprintf(out, "%s\n", msg.Event)
				continue
			}
			e, err := msg.Decode()
			if err != nil {
				return streamclient.Message{}, err
			}
			fmt.Fprintln(out, e)
		case "complete":
			return msg, nil
		case "error":
			return streamclient.Message{}, fmt.Errorf("server: %s", msg.Error)
		}
	}
}
