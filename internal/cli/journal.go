package cli

import (
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/relsync/internal/journal"
	"github.com/roach88/relsync/internal/relation"
)

// JournalOptions holds flags for the journal command.
type JournalOptions struct {
	*RootOptions
	Database string
	Session  string
	Verify   bool
}

// SessionListing is the journal command output without --session.
type SessionListing struct {
	Sessions []SessionSummary `json:"sessions"`
}

// SessionSummary describes one journaled session.
type SessionSummary struct {
	Token     string `json:"token"`
	Relation  string `json:"relation"`
	Mutations int    `json:"mutations"`
	LastSeq   int64  `json:"last_seq"`
}

// SessionReport is the journal command output for one session.
type SessionReport struct {
	Session    string              `json:"session"`
	Relation   string              `json:"relation"`
	Mutations  []MutationRecord    `json:"mutations"`
	Members    map[string][]string `json:"members"`
	Violations []string            `json:"violations,omitempty"`
}

// MutationRecord is the JSON form of a journaled mutation.
type MutationRecord struct {
	Seq       int64  `json:"seq"`
	Op        string `json:"op"`
	Container string `json:"container,omitempty"`
	Item      string `json:"item,omitempty"`
	Phase     string `json:"phase"`
	Code      string `json:"code,omitempty"`
	Detail    string `json:"detail,omitempty"`
}

// NewJournalCommand creates the journal command.
func NewJournalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &JournalOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect journaled sessions",
		Long: `List journaled sessions, or show one session's mutations and the
membership replayed from its committed mutations.

With --verify the command fails when the journal contradicts itself:
out-of-order sequence numbers, non-terminal records, an add that steals an
item owned elsewhere, or a remove of an item the container does not own.

Exit codes:
  0 - Success
  1 - Journal violations found (--verify)
  2 - Command error (database or session not found)

Examples:
  relsync journal --db ./relsync.db
  relsync journal --db ./relsync.db --session 01927d6c-... --verify`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJournal(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.Session, "session", "", "session token to show")
	cmd.Flags().BoolVar(&opts.Verify, "verify", false, "fail if the replayed journal has violations")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runJournal(opts *JournalOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	// Open would create an empty database; inspecting one never should
	if _, err := os.Stat(opts.Database); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("database not found: %s", opts.Database))
	}
	if opts.Verify && opts.Session == "" {
		return NewExitError(ExitCommandError, "--verify requires --session")
	}

	j, err := journal.Open(opts.Database, journal.WithLogger(opts.logger()))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer j.Close()

	ctx := cmd.Context()
	sessions, err := j.Sessions(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list sessions", err)
	}

	if opts.Session == "" {
		return outputSessionListing(formatter, sessions)
	}

	var relationName string
	found := false
	for _, s := range sessions {
		if s.Token == opts.Session {
			relationName, found = s.Relation, true
			break
		}
	}
	if !found {
		return NewExitError(ExitCommandError, fmt.Sprintf("session not found: %s", opts.Session))
	}

	muts, err := j.ReadSession(ctx, opts.Session)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read session", err)
	}
	membership := journal.Replay(muts)
	formatter.VerboseLog("Replayed %d mutation(s), %d violation(s)", len(muts), len(membership.Violations))

	report := SessionReport{
		Session:   opts.Session,
		Relation:  relationName,
		Mutations: toRecords(muts),
		Members:   make(map[string][]string),
	}
	for _, c := range membership.Containers() {
		report.Members[c] = membership.Members[c]
	}
	for _, v := range membership.Violations {
		report.Violations = append(report.Violations, v.String())
	}

	return outputSessionReport(formatter, report, opts.Verify)
}

func toRecords(muts []relation.Mutation) []MutationRecord {
	out := make([]MutationRecord, len(muts))
	for i, m := range muts {
		out[i] = MutationRecord{
			Seq:       m.Seq,
			Op:        string(m.Op),
			Container: m.Container,
			Item:      m.Item,
			Phase:     string(m.Phase),
			Code:      string(m.Code),
			Detail:    m.Detail,
		}
	}
	return out
}

func outputSessionListing(formatter *OutputFormatter, sessions []journal.Session) error {
	listing := SessionListing{Sessions: make([]SessionSummary, len(sessions))}
	for i, s := range sessions {
		listing.Sessions[i] = SessionSummary(s)
	}

	if formatter.Format == "json" {
		return formatter.Success(listing)
	}

	w := formatter.Writer
	if len(sessions) == 0 {
		fmt.Fprintln(w, "No sessions journaled.")
		return nil
	}
	for _, s := range listing.Sessions {
		fmt.Fprintf(w, "%s  %s  %d mutation(s), last seq %d\n", s.Token, s.Relation, s.Mutations, s.LastSeq)
	}
	return nil
}

func outputSessionReport(formatter *OutputFormatter, r SessionReport, verify bool) error {
	var exitErr error
	if verify && len(r.Violations) > 0 {
		exitErr = NewExitError(ExitFailure, fmt.Sprintf("journal has %d violation(s)", len(r.Violations)))
	}

	if formatter.Format == "json" {
		if exitErr == nil {
			return formatter.Success(r)
		}
		if err := formatter.Failure(ErrCodeInconsistent, exitErr.Error(), r); err != nil {
			return err
		}
		return exitErr
	}

	w := formatter.Writer
	fmt.Fprintf(w, "Session: %s (relation %s)\n", r.Session, r.Relation)
	fmt.Fprintln(w)
	for _, m := range r.Mutations {
		fmt.Fprintf(w, "  [%d] %s %s", m.Seq, m.Op, describeTarget(m))
		fmt.Fprintf(w, " -> %s", m.Phase)
		if m.Code != "" {
			fmt.Fprintf(w, " (%s)", m.Code)
		}
		if m.Detail != "" {
			fmt.Fprintf(w, " %s", m.Detail)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Membership:")
	if len(r.Members) == 0 {
		fmt.Fprintln(w, "  (empty)")
	}
	for _, c := range slices.Sorted(maps.Keys(r.Members)) {
		fmt.Fprintf(w, "  %s: %s\n", c, strings.Join(r.Members[c], ", "))
	}

	if len(r.Violations) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Violations:")
		for _, v := range r.Violations {
			fmt.Fprintf(w, "  %s\n", v)
		}
	}

	if verify {
		if exitErr != nil {
			fmt.Fprintln(w, "✗ Journal inconsistent")
			return exitErr
		}
		fmt.Fprintln(w, "✓ Journal consistent")
	}
	return nil
}

func describeTarget(m MutationRecord) string {
	switch {
	case m.Container != "" && m.Item != "":
		return m.Container + "/" + m.Item
	case m.Container != "":
		return m.Container
	default:
		return m.Item
	}
}
