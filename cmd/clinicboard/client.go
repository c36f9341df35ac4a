package main

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/clinicboard/clinicboard/internal/config"
	"github.com/clinicboard/clinicboard/internal/domain/patient"
	"github.com/clinicboard/clinicboard/internal/platform/auth"
	"github.com/clinicboard/clinicboard/internal/platform/httpclient"
	"github.com/clinicboard/clinicboard/internal/platform/keystore"
)

// clientEnv is everything a client command needs: the API client, the
// stored session token and the terminal.
type clientEnv struct {
	api    *httpclient.Client
	tokens *auth.TokenStore
	auth   *auth.Client
	repo   *patient.RemoteRepository
	stdin  io.Reader
	in     *bufio.Reader
	out    io.Writer
	logger zerolog.Logger
}

func newClientEnv(cmd *cobra.Command) (*clientEnv, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if u, _ := cmd.Flags().GetString("api-url"); u != "" {
		cfg.APIURL = u
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr()}).
		Level(zerolog.WarnLevel).With().Timestamp().Logger()

	kv, err := keystore.NewFile(cfg.ClientStateDir)
	if err != nil {
		return nil, err
	}
	tokens := auth.NewTokenStore(kv)
	api, err := httpclient.New(cfg.APIURL, tokens, httpclient.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	return &clientEnv{
		api:    api,
		tokens: tokens,
		auth:   auth.NewClient(api, tokens),
		repo:   patient.NewRemoteRepository(api),
		stdin:  cmd.InOrStdin(),
		in:     bufio.NewReader(cmd.InOrStdin()),
		out:    cmd.OutOrStdout(),
		logger: logger,
	}, nil
}

func (e *clientEnv) notices() noticePrinter {
	return noticePrinter{out: e.out}
}

func (e *clientEnv) confirmer(assumeYes bool) *promptConfirmer {
	return &promptConfirmer{in: e.in, out: e.out, assumeYes: assumeYes}
}

func (e *clientEnv) dispatcher(assumeYes bool) *patient.Dispatcher {
	return patient.NewDispatcher(e.repo, e.confirmer(assumeYes), &routeTracker{logger: e.logger}, e.notices(), e.logger)
}

// clientRun adapts a client action to cobra's RunE.
func clientRun(fn func(ctx context.Context, env *clientEnv, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		env, err := newClientEnv(cmd)
		if err != nil {
			return err
		}
		return fn(cmd.Context(), env, cmd, args)
	}
}

func loginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and remember the session token",
		Args:  cobra.NoArgs,
		RunE: clientRun(func(ctx context.Context, env *clientEnv, cmd *cobra.Command, _ []string) error {
			email, _ := cmd.Flags().GetString("email")
			password, _ := cmd.Flags().GetString("password")
			code, _ := cmd.Flags().GetString("code")

			var err error
			if email == "" {
				if email, err = readLine(env.in, env.out, "Email: "); err != nil {
					return err
				}
			}
			if password == "" {
				if password, err = readSecret(env.stdin, env.in, env.out, "Password: "); err != nil {
					return err
				}
			}

			sess, err := env.auth.Login(ctx, email, password, code)
			if auth.NeedsTOTP(err) {
				if code, err = readLine(env.in, env.out, "One-time code: "); err != nil {
					return err
				}
				sess, err = env.auth.Login(ctx, email, password, code)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(env.out, "Signed in as %s (%s) until %s\n", sess.User.Email, sess.User.Role, sess.ExpiresAt.Local().Format("2006-01-02 15:04"))
			return nil
		}),
	}
	cmd.Flags().String("email", "", "Account email")
	cmd.Flags().String("password", "", "Account password (prompted when empty)")
	cmd.Flags().String("code", "", "One-time code when two-step sign-in is on")
	return cmd
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke and forget the session token",
		Args:  cobra.NoArgs,
		RunE: clientRun(func(ctx context.Context, env *clientEnv, _ *cobra.Command, _ []string) error {
			if err := env.auth.Logout(ctx); err != nil {
				return err
			}
			fmt.Fprintln(env.out, "Signed out")
			return nil
		}),
	}
}

func profileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show or change the signed-in account",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the signed-in account",
		Args:  cobra.NoArgs,
		RunE: clientRun(func(ctx context.Context, env *clientEnv, _ *cobra.Command, _ []string) error {
			p, err := env.auth.GetProfile(ctx)
			if err != nil {
				return err
			}
			printProfile(env.out, p)
			return nil
		}),
	})

	update := &cobra.Command{
		Use:   "update",
		Short: "Change name, email or password",
		Args:  cobra.NoArgs,
		RunE: clientRun(func(ctx context.Context, env *clientEnv, cmd *cobra.Command, _ []string) error {
			var upd auth.ProfileUpdate
			upd.Name, _ = cmd.Flags().GetString("name")
			upd.Email, _ = cmd.Flags().GetString("email")
			upd.Password, _ = cmd.Flags().GetString("password")
			upd.CurrentPassword, _ = cmd.Flags().GetString("current-password")

			p, err := env.auth.UpdateProfile(ctx, upd)
			if err != nil {
				return err
			}
			printProfile(env.out, p)
			if upd.Password != "" {
				fmt.Fprintln(env.out, "Password changed; sign in again with the new password.")
			}
			return nil
		}),
	}
	update.Flags().String("name", "", "New display name")
	update.Flags().String("email", "", "New email")
	update.Flags().String("password", "", "New password")
	update.Flags().String("current-password", "", "Current password, required to change it")
	cmd.AddCommand(update)

	totpCmd := &cobra.Command{
		Use:   "totp",
		Short: "Turn on two-step sign-in",
		Args:  cobra.NoArgs,
		RunE: clientRun(func(ctx context.Context, env *clientEnv, _ *cobra.Command, _ []string) error {
			enr, err := env.auth.EnrollTOTP(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(env.out, "Secret: %s\nURL:    %s\n", enr.Secret, enr.URL)
			code, err := readLine(env.in, env.out, "Code from your authenticator: ")
			if err != nil {
				return err
			}
			p, err := env.auth.ConfirmTOTP(ctx, code)
			if err != nil {
				return err
			}
			printProfile(env.out, p)
			return nil
		}),
	}
	cmd.AddCommand(totpCmd)

	return cmd
}

func printProfile(w io.Writer, p *auth.Profile) {
	totp := "off"
	if p.TOTPEnabled {
		totp = "on"
	}
	fmt.Fprintf(w, "Name:     %s\nEmail:    %s\nRole:     %s\nTwo-step: %s\n", p.Name, p.Email, p.Role, totp)
}
