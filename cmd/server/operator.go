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

	"github.com/sakif/linkbio/internal/client"
	"github.com/sakif/linkbio/internal/draft"
	"github.com/sakif/linkbio/internal/model"
)

// operatorFlags are shared by every command that talks to a running server.
type operatorFlags struct {
	api      string
	token    string
	email    string
	password string
	timeout  time.Duration
}

var opFlags operatorFlags

func addOperatorCommands(root *cobra.Command) {
	pf := root.PersistentFlags()
	pf.StringVar(&opFlags.api, "api", "http://localhost:8080", "linkbio server base URL")
	pf.StringVar(&opFlags.token, "token", os.Getenv("LINKBIO_TOKEN"), "session token (or sign in with --email/--password)")
	pf.StringVar(&opFlags.email, "email", "", "account email")
	pf.StringVar(&opFlags.password, "password", os.Getenv("LINKBIO_PASSWORD"), "account password")
	pf.DurationVar(&opFlags.timeout, "timeout", 15*time.Second, "request timeout")

	root.AddCommand(importCmd(), linksCmd())
}

// openDraft signs in, loads the owner's profile and checks it is the one
// the operator named. The returned client carries the session.
func openDraft(ctx context.Context, handle string) (*draft.Session, *client.Client, error) {
	c := client.New(opFlags.api, opFlags.token, opFlags.timeout)
	if opFlags.token == "" {
		if opFlags.email == "" || opFlags.password == "" {
			return nil, nil, errors.New("--token or --email and --password required")
		}
		if _, err := c.Login(ctx, opFlags.email, opFlags.password, ""); err != nil {
			return nil, nil, fmt.Errorf("signing in: %w", err)
		}
	}

	base, err := c.FetchOwnProfile(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("loading profile: %w", err)
	}
	want, err := model.NormalizeHandle(handle)
	if err != nil {
		return nil, nil, err
	}
	if base.Handle != want {
		return nil, nil, fmt.Errorf("signed in as @%s, not @%s", base.Handle, want)
	}
	return draft.New(base, c), c, nil
}

func importCmd() *cobra.Command {
	var opts draft.MergeOptions
	cmd := &cobra.Command{
		Use:   "import HANDLE URL",
		Short: "Import links and profile details from a source page and save them",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, c, err := openDraft(ctx, args[0])
			if err != nil {
				return err
			}

			res, err := c.Import(ctx, args[1])
			if err != nil {
				return fmt.Errorf("importing: %w", err)
			}
			added, err := sess.MergeImport(res, opts)
			if errors.Is(err, draft.ErrMockImport) {
				return errors.New("the source page could not be fetched and only placeholder content is available; rerun with --allow-mock to use it")
			}
			if err != nil {
				return err
			}
			if _, err := sess.Save(ctx); err != nil {
				return err
			}
			report(cmd.OutOrStdout(), "imported %d link(s) into @%s (%s)\n", added, sess.Handle(), res.Kind)
			return nil
		},
	}
	cmd.Flags().BoolVar(&opts.Overwrite, "overwrite", false, "replace an existing title, bio and avatar")
	cmd.Flags().BoolVar(&opts.AllowMock, "allow-mock", false, "accept placeholder content when the source cannot be fetched")
	return cmd
}

func linksCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "links", Short: "Edit a profile's links"}

	var icon string
	add := &cobra.Command{
		Use:   "add HANDLE TITLE URL",
		Short: "Append a link",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return editAndSave(cmd, args[0], func(s *draft.Session) (string, error) {
				if _, err := s.AddLink(args[1], args[2], icon); err != nil {
					return "", err
				}
				return fmt.Sprintf("added %q", args[1]), nil
			})
		},
	}
	add.Flags().StringVar(&icon, "icon", "", "icon name")

	rm := &cobra.Command{
		Use:   "rm HANDLE LINK_ID",
		Short: "Remove a link",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return editAndSave(cmd, args[0], func(s *draft.Session) (string, error) {
				if err := s.RemoveItem(model.ItemLink, args[1]); err != nil {
					return "", err
				}
				return "removed " + args[1], nil
			})
		},
	}

	move := &cobra.Command{
		Use:   "move HANDLE LINK_ID INDEX",
		Short: "Move a link to a zero-based position",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			to, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("invalid index %q", args[2])
			}
			return editAndSave(cmd, args[0], func(s *draft.Session) (string, error) {
				if err := s.Reorder(model.ItemLink, args[1], to); err != nil {
					return "", err
				}
				return fmt.Sprintf("moved %s to %d", args[1], to), nil
			})
		},
	}

	list := &cobra.Command{
		Use:   "ls HANDLE",
		Short: "List links with their ids and click counts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, _, err := openDraft(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printLinks(cmd.OutOrStdout(), sess.Baseline())
			return nil
		},
	}

	cmd.AddCommand(add, rm, move, list)
	return cmd
}

// editAndSave runs one edit against a fresh draft and saves it.
func editAndSave(cmd *cobra.Command, handle string, edit func(*draft.Session) (string, error)) error {
	sess, _, err := openDraft(cmd.Context(), handle)
	if err != nil {
		return err
	}
	msg, err := edit(sess)
	if err != nil {
		return err
	}
	saved, err := sess.Save(cmd.Context())
	if err != nil {
		return err
	}
	report(cmd.OutOrStdout(), "%s on @%s\n", msg, saved.Handle)
	printLinks(cmd.OutOrStdout(), saved)
	return nil
}

func printLinks(w io.Writer, p *model.Profile) {
	for i, l := range p.Links {
		report(w, "%2d  %-20s  %-40s  %d clicks\n", i, l.ID, l.URL, l.ClickCount)
	}
}

func report(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
