package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/balaji-balu/nerve-cli/internal/credentials"
	"github.com/balaji-balu/nerve-cli/internal/msapi"
	"github.com/balaji-balu/nerve-cli/internal/store"
)

func newSetLoginCmd(a *app) *cobra.Command {
	var (
		file  string
		flags credentials.Credentials
		yes   bool
	)
	c := &cobra.Command{
		Use:   "set-login",
		Short: "Log in to the management system and store the session",
		Long: `Credentials are taken from the command line, then the NERVE_URL,
NERVE_USERNAME and NERVE_PASSWORD environment variables, then the credentials
file. Anything still missing is asked for.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if file == "" {
				file = a.cfg.Credentials.File
			}
			r := &credentials.Resolver{
				File:     store.AppendEnding(file, store.ExtINI),
				Prompter: a.prompter,
				Logger:   a.zap(),
			}
			env := credentials.Credentials{URL: a.cfg.URL, Username: a.cfg.Username, Password: a.cfg.Password}
			res, err := r.Resolve(flags, env)
			reportSources(a, res)
			if err != nil {
				return err
			}

			sess, err := msapi.Login(cmd.Context(), res.URL, res.Username, res.Password, a.clientOptions()...)
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}
			if err := a.sessionStore().Save(sess); err != nil {
				return err
			}
			a.printer.Success("Login successful.")

			if _, err := r.Remember(res, yes); err != nil {
				return err
			}

			client := msapi.NewClient(sess, a.clientOptions()...)
			msVersion, err := client.MSVersion(cmd.Context())
			if err != nil {
				a.printer.Warning("Could not determine the version of the management system. %v", err)
				return nil
			}
			if msVersion != a.cfg.MS.TestedVersion {
				a.printer.Println()
				a.printer.Warning("This tool was tested with version %s of the Nerve management system. It may not work with other versions.",
					a.cfg.MS.TestedVersion)
				a.printer.Printf("Your management system is running version %s.\n", msVersion)
			}
			a.printer.Println()
			a.printer.Printf("Set login to %s with version %s as %s.\n", res.URL, msVersion, res.Username)
			return nil
		},
	}
	c.Flags().StringVarP(&file, "file", "f", "", "credentials file (default from credentials.file)")
	c.Flags().StringVarP(&flags.URL, "url", "u", "", "URL of the management system")
	c.Flags().StringVar(&flags.Username, "username", "", "username, an e-mail address")
	c.Flags().StringVar(&flags.Password, "password", "", "password")
	c.Flags().BoolVarP(&yes, "yes", "y", false, "save typed in credentials without asking")
	return c
}

func reportSources(a *app, res credentials.Resolved) {
	if from := res.URLFrom; from != credentials.SourceNone && from != credentials.SourcePrompt {
		a.printer.Printf("URL found in %s: %s\n", from, res.URL)
	}
	if from := res.UsernameFrom; from != credentials.SourceNone && from != credentials.SourcePrompt {
		a.printer.Printf("Username found in %s: %s\n", from, res.Username)
	}
	if from := res.PasswordFrom; from != credentials.SourceNone && from != credentials.SourcePrompt {
		a.printer.Printf("Password found in %s.\n", from)
	}
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Log out and delete the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := a.client()
			if err != nil {
				return err
			}
			if err := client.Logout(cmd.Context()); err != nil {
				return err
			}
			if err := a.sessionStore().Clear(); err != nil {
				a.log.Warn("failed to clear session", zap.Error(err))
			}
			a.printer.Println("Logged out.")
			return nil
		},
	}
}
