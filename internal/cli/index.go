package cli

import (
	"errors"
	"fmt"
	"os"
	"os/user"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"sudohist/internal/history"
	"sudohist/internal/store"
)

func newIndexCmd(a *app) *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Manage the SQLite history index",
		Long: `Import history files into the SQLite index and search it.

The database defaults to index.path from the config file.`,
	}
	cmd.PersistentFlags().StringVar(&dbPath, "db", "", "Index database path")

	importCmd := &cobra.Command{
		Use:   "import <history-file>",
		Short: "Index the lines of a history file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.indexImport(dbPath, args[0])
		},
	}

	var limit int
	searchCmd := &cobra.Command{
		Use:   "search <text>",
		Short: "Find indexed lines containing text",
		Long: `Find indexed lines containing text, newest first.

Examples:
  sudohist index search systemctl
  sudohist index search --limit 5 "rm -rf"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.indexSearch(dbPath, args[0], limit)
		},
	}
	searchCmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of results (0 for all)")

	cmd.AddCommand(importCmd, searchCmd)
	return cmd
}

// openIndex opens the index named by the flag or the config file.
func (a *app) openIndex(dbPath string) (*store.Store, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, err
	}
	if dbPath == "" {
		dbPath = cfg.Index.Path
	}
	if dbPath == "" {
		return nil, errors.New("no index database: pass --db or set index.path")
	}

	timeout := time.Duration(cfg.Index.BusyTimeoutMs) * time.Millisecond
	return store.Open(a.resolveForCurrentUser(dbPath), timeout)
}

func (a *app) indexImport(dbPath, histPath string) error {
	_, prefix, err := a.historyTarget(nil)
	if err != nil {
		return err
	}

	info, err := os.Stat(histPath)
	if err != nil {
		return fmt.Errorf("stat history file: %w", err)
	}
	entries, err := history.ReadFile(histPath, prefix)
	if err != nil {
		return err
	}

	idx, err := a.openIndex(dbPath)
	if err != nil {
		return err
	}
	defer idx.Close()

	// History files carry no timestamps; every imported line gets the file's
	// modification time.
	ts := info.ModTime().UnixNano()
	sess := &store.Session{
		ID:        uuid.NewString(),
		Histfile:  histPath,
		StartedNs: ts,
	}
	if u, err := user.Current(); err == nil {
		sess.User = u.Username
	}
	if err := idx.InsertSession(sess); err != nil {
		return err
	}

	rows := make([]store.Entry, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, store.Entry{
			SessionID:   sess.ID,
			TimestampNs: ts,
			Prefix:      e.Prefix,
			Content:     e.Content,
		})
	}
	if err := idx.InsertEntries(rows); err != nil {
		return err
	}

	a.logger.Info("imported history file", "path", histPath, "entries", len(rows), "session", sess.ID)
	fmt.Fprintf(a.stdout, "imported %d entries from %s (session %s)\n", len(rows), histPath, sess.ID)
	return nil
}

func (a *app) indexSearch(dbPath, text string, limit int) error {
	idx, err := a.openIndex(dbPath)
	if err != nil {
		return err
	}
	defer idx.Close()

	entries, err := idx.Search(text, limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(a.stdout, "No matching entries.")
		return nil
	}

	w := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tSESSION\tCOMMAND")
	for _, e := range entries {
		session := e.SessionID
		if len(session) > 8 {
			session = session[:8]
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n",
			time.Unix(0, e.TimestampNs).Format("2006-01-02 15:04:05"),
			session,
			e.Content,
		)
	}
	return w.Flush()
}
