package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Jayphen/dida-digest/internal/auth"
	"github.com/Jayphen/dida-digest/internal/tui"
)

var (
	loginPrompt  bool
	loginTimeout time.Duration
)

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the Dida365 authorization",
	}

	login := &cobra.Command{
		Use:   "login",
		Short: "Authorize access to your Dida365 account",
		Long: `Open the printed URL in a browser and grant access.

By default a local server on the redirect URI's host and port receives the
authorization code. With --prompt, paste the code (or the whole URL the
browser landed on) into the terminal instead.`,
		RunE: runAuthLogin,
	}
	login.Flags().BoolVar(&loginPrompt, "prompt", false, "Paste the code interactively instead of running a callback server")
	login.Flags().DurationVar(&loginTimeout, "timeout", 5*time.Minute, "How long to wait for the browser callback")

	cmd.AddCommand(
		login,
		&cobra.Command{
			Use:   "url",
			Short: "Print the authorization URL",
			RunE:  runAuthURL,
		},
		&cobra.Command{
			Use:   "code <code-or-url>",
			Short: "Exchange an authorization code for a token",
			Args:  cobra.ExactArgs(1),
			RunE:  runAuthCode,
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show whether a token is stored and when it expires",
			RunE:  runAuthStatus,
		},
		&cobra.Command{
			Use:   "logout",
			Short: "Remove the stored token",
			RunE:  runAuthLogout,
		},
	)

	return cmd
}

func runAuthLogin(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, "auth", false)
	if err != nil {
		return err
	}
	defer a.Close()

	flow, err := a.flow()
	if err != nil {
		return err
	}
	state := auth.NewState()
	url := flow.AuthCodeURL(state)

	if loginPrompt {
		err := tui.RunAuthPrompt(ctx, url, func(ctx context.Context, code string) error {
			_, err := flow.Exchange(ctx, code)
			return err
		})
		if errors.Is(err, tui.ErrCancelled) {
			fmt.Println("Authorization cancelled.")
			return nil
		}
		if err != nil {
			return err
		}
		a.log.Info("authorization saved")
		return nil
	}

	addr, err := a.cfg.ResolveCallbackAddr()
	if err != nil {
		return err
	}

	fmt.Println("Open this URL in your browser and grant access:")
	fmt.Println()
	fmt.Printf("  %s\n", url)
	fmt.Println()
	fmt.Printf("Waiting for the callback on %s%s ...\n", addr, a.cfg.CallbackPath())

	waitCtx, cancel := context.WithTimeout(ctx, loginTimeout)
	defer cancel()

	code, err := auth.NewCallbackServer(state, a.cfg.CallbackPath()).ListenAndWait(waitCtx, addr)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("no callback within %s; try 'dida-digest auth login --prompt'", loginTimeout)
		}
		return err
	}

	tok, err := flow.Exchange(ctx, code)
	if err != nil {
		return err
	}

	fmt.Println("✓ Authorized.")
	if !tok.Expiry.IsZero() {
		fmt.Printf("  Token expires %s\n", tok.Expiry.In(a.loc).Format(time.DateTime))
	}
	return nil
}

func runAuthURL(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), "auth", false)
	if err != nil {
		return err
	}
	defer a.Close()

	flow, err := a.flow()
	if err != nil {
		return err
	}
	fmt.Println(flow.AuthCodeURL(auth.NewState()))
	return nil
}

func runAuthCode(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, "auth", false)
	if err != nil {
		return err
	}
	defer a.Close()

	flow, err := a.flow()
	if err != nil {
		return err
	}
	tok, err := flow.Exchange(ctx, tui.ExtractCode(args[0]))
	if err != nil {
		return err
	}

	fmt.Println("✓ Authorized.")
	if !tok.Expiry.IsZero() {
		fmt.Printf("  Token expires %s\n", tok.Expiry.In(a.loc).Format(time.DateTime))
	}
	return nil
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, "auth", false)
	if err != nil {
		return err
	}
	defer a.Close()

	st, err := auth.Inspect(ctx, a.store, time.Now())
	if err != nil {
		return err
	}

	fmt.Printf("Token store: %s\n", a.cfg.TokenStore.Type)
	switch {
	case !st.Present:
		fmt.Println("Status:      not authorized")
	case st.Expired:
		fmt.Printf("Status:      expired at %s\n", st.Expiry.In(a.loc).Format(time.DateTime))
	case st.Expiry.IsZero():
		fmt.Println("Status:      authorized (no expiry reported)")
	default:
		fmt.Printf("Status:      authorized until %s (%s left)\n",
			st.Expiry.In(a.loc).Format(time.DateTime),
			time.Until(st.Expiry).Round(time.Minute))
	}
	return nil
}

func runAuthLogout(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, "auth", false)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.store.Clear(ctx); err != nil {
		return fmt.Errorf("failed to remove token: %w", err)
	}
	fmt.Println("Token removed.")
	return nil
}
