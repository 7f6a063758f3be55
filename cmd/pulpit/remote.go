package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/codefionn/pulpit/internal/protocol"
	"github.com/codefionn/pulpit/internal/remoteclient"
)

type remoteOptions struct {
	addr    string
	timeout time.Duration
}

func newRemoteCommand() *cobra.Command {
	opts := &remoteOptions{}

	cmd := &cobra.Command{
		Use:   "remote",
		Short: "Drive a running pulpit server",
	}
	cmd.PersistentFlags().StringVar(&opts.addr, "addr", "127.0.0.1:8080", "server address (host:port or ws:// URL)")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 5*time.Second, "request timeout")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "songs",
			Short: "List songs",
			Args:  cobra.NoArgs,
			RunE: opts.with(func(ctx context.Context, c *remoteclient.Client, out io.Writer, _ []string) error {
				songs, err := c.GetSongs(ctx)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tTITLE\tAUTHOR")
				for _, s := range songs {
					fmt.Fprintf(w, "%d\t%s\t%s\n", s.ID, s.Title, s.Author)
				}
				return w.Flush()
			}),
		},
		&cobra.Command{
			Use:   "scripture <book> <chapter> [version]",
			Short: "Print a chapter",
			Args:  cobra.RangeArgs(2, 3),
			RunE: opts.with(func(ctx context.Context, c *remoteclient.Client, out io.Writer, args []string) error {
				chapter, err := strconv.Atoi(args[1])
				if err != nil {
					return fmt.Errorf("invalid chapter %q", args[1])
				}
				version := ""
				if len(args) == 3 {
					version = args[2]
				}
				data, err := c.GetScripture(ctx, args[0], chapter, version)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s %d (%s)\n", data.Book, data.Chapter, data.Version)
				for _, v := range data.Verses {
					fmt.Fprintf(out, "%3d  %s\n", v.Verse, v.Text)
				}
				return nil
			}),
		},
		&cobra.Command{
			Use:   "live-song <id> [slide]",
			Short: "Put a song on the audience display",
			Args:  cobra.RangeArgs(1, 2),
			RunE: opts.with(func(_ context.Context, c *remoteclient.Client, _ io.Writer, args []string) error {
				id, err := strconv.ParseInt(args[0], 10, 64)
				if err != nil {
					return fmt.Errorf("invalid song id %q", args[0])
				}
				item := protocol.RemoteDisplayItem{Type: protocol.ItemSong, SongID: id}
				if len(args) == 2 {
					if item.SlideIndex, err = strconv.Atoi(args[1]); err != nil {
						return fmt.Errorf("invalid slide %q", args[1])
					}
				}
				return c.GoLive(item)
			}),
		},
		opts.action("blank", "Blank the audience display", func(c *remoteclient.Client) error { return c.GoBlank() }),
		opts.action("next", "Next slide", func(c *remoteclient.Client) error { return c.Navigate(protocol.NavigateNext) }),
		opts.action("prev", "Previous slide", func(c *remoteclient.Client) error { return c.Navigate(protocol.NavigatePrev) }),
		&cobra.Command{
			Use:   "watch",
			Short: "Print every message the server sends",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
				defer stop()

				c, err := remoteclient.Dial(ctx, opts.addr)
				if err != nil {
					return err
				}
				defer c.Close()

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "connected as %s\n", c.ClientID())
				for {
					select {
					case msg, ok := <-c.Messages():
						if !ok {
							return fmt.Errorf("connection closed")
						}
						data, _ := json.Marshal(msg.Data)
						fmt.Fprintf(out, "%s  %s %s\n", time.Now().Format("15:04:05"), msg.Type, data)
					case <-ctx.Done():
						return nil
					}
				}
			},
		},
	)
	return cmd
}

type remoteFunc func(ctx context.Context, c *remoteclient.Client, out io.Writer, args []string) error

// with dials, runs fn with a request timeout, and closes the connection.
func (o *remoteOptions) with(fn remoteFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), o.timeout)
		defer cancel()

		c, err := remoteclient.Dial(ctx, o.addr)
		if err != nil {
			return err
		}
		defer c.Close()
		return fn(ctx, c, cmd.OutOrStdout(), args)
	}
}

func (o *remoteOptions) action(use, short string, fn func(*remoteclient.Client) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: o.with(func(_ context.Context, c *remoteclient.Client, _ io.Writer, _ []string) error {
			return fn(c)
		}),
	}
}
