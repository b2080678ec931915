// Command intstack operates the integer stack device.
//
//	intstack set-size 16
//	intstack push 42
//	intstack pop
//	intstack unwind
//
// Messages, including errors, are written to standard output.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"

	"github.com/ardnew/intstack/client"
	"github.com/ardnew/intstack/pkg"
	"github.com/ardnew/intstack/server"
)

func main() {
	os.Exit(execute(context.Background(), os.Args[1:], os.Stdout))
}

// exitError carries the message and status a command exits with.
type exitError struct {
	msg  string
	code int
}

func (e *exitError) Error() string { return e.msg }

var (
	errNotInserted = &exitError{msg: "USB key is not inserted", code: 1}
	errStackFull   = &exitError{msg: "stack is full", code: int(unix.ERANGE)}
	errBadSize     = &exitError{msg: "size should be > 0", code: 1}
)

// execute runs the CLI with args and returns the exit status.
func execute(ctx context.Context, args []string, out io.Writer) int {
	cmd := rootCmd()
	cmd.SetArgs(operands(args))
	cmd.SetOut(out)
	cmd.SetErr(out)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}

	var ee *exitError
	if errors.As(err, &ee) {
		fmt.Fprintf(out, "ERROR: %s\n", ee.msg)
		return ee.code
	}
	fmt.Fprintf(out, "ERROR: %v\n", err)
	return 1
}

// operands ends flag parsing before the first negative number so that
// "push -5" pushes -5.
func operands(args []string) []string {
	for i, a := range args {
		if a == "--" {
			return args
		}
		if len(a) > 1 && a[0] == '-' {
			if _, err := strconv.ParseInt(a, 10, 64); err == nil {
				return append(append(args[:i:i], "--"), args[i:]...)
			}
		}
	}
	return args
}

type session struct {
	socket string
	wait   time.Duration
}

// dial opens the device, translating an absent node.
func (s *session) dial(cmd *cobra.Command) (*client.Client, error) {
	c, err := client.Dial(cmd.Context(), s.socket, client.WithWait(s.wait))
	if errors.Is(err, pkg.ErrNoDevice) {
		pkg.LogDebug(pkg.ComponentClient, "dial failed", "error", err)
		return nil, errNotInserted
	}
	if err != nil {
		return nil, &exitError{msg: fmt.Sprintf("Could not open device (%v)", err), code: 1}
	}
	return c, nil
}

// do dials the device and runs fn against it.
func (s *session) do(fn func(ctx context.Context, c *client.Client) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		c, err := s.dial(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		err = fn(cmd.Context(), c)
		if errors.Is(err, pkg.ErrNoDevice) {
			return errNotInserted
		}
		return err
	}
}

func rootCmd() *cobra.Command {
	s := &session{}

	cmd := &cobra.Command{
		Use:           "intstack",
		Short:         "Operate the integer stack device",
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			return &exitError{msg: fmt.Sprintf("Unknown command '%s'", args[0]), code: 1}
		},
	}
	cmd.PersistentFlags().StringVarP(&s.socket, "socket", "s", server.DefaultPath, "Device node path")
	cmd.PersistentFlags().DurationVar(&s.wait, "wait", 0, "Wait up to this long for the device to appear")

	cmd.AddCommand(
		setSizeCmd(s),
		pushCmd(s),
		popCmd(s),
		unwindCmd(s),
		countCmd(s),
	)
	return cmd
}

func setSizeCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "set-size N",
		Short: "Resize the stack to N elements",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.ParseInt(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid size %q", args[0])
			}
			return s.do(func(ctx context.Context, c *client.Client) error {
				if n <= 0 {
					return errBadSize
				}
				err := c.SetSize(ctx, int32(n))
				if errors.Is(err, pkg.ErrInvalidSize) {
					return errBadSize
				}
				return err
			})(cmd, args)
		},
	}
}

func pushCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "push V",
		Short: "Push V onto the stack",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := strconv.ParseInt(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid value %q", args[0])
			}
			return s.do(func(ctx context.Context, c *client.Client) error {
				err := c.Push(ctx, int32(v))
				if errors.Is(err, pkg.ErrOutOfRange) {
					return errStackFull
				}
				return err
			})(cmd, args)
		},
	}
}

func popCmd(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pop",
		Short: "Pop and print the top element, or NULL if empty",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = s.do(func(ctx context.Context, c *client.Client) error {
		v, ok, err := c.Pop(ctx)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(cmd.OutOrStdout(), "NULL")
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), v)
		return nil
	})
	return cmd
}

func unwindCmd(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unwind",
		Short: "Pop and print every element, top first",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = s.do(func(ctx context.Context, c *client.Client) error {
		values, err := c.Unwind(ctx)
		for _, v := range values {
			fmt.Fprintln(cmd.OutOrStdout(), v)
		}
		return err
	})
	return cmd
}

func countCmd(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "count",
		Short: "Print the number of elements",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = s.do(func(ctx context.Context, c *client.Client) error {
		n, err := c.Count(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), n)
		return nil
	})
	return cmd
}
