package main

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nerrad567/remo-relay/internal/audit"
	"github.com/nerrad567/remo-relay/internal/infrastructure/config"
	"github.com/nerrad567/remo-relay/internal/infrastructure/logging"
	irsignal "github.com/nerrad567/remo-relay/internal/signal"
)

func newImportCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Create or replace signals from a YAML file",
		Long: `Reads a YAML mapping of signal name to signal and stores each one,
replacing any signal that already has the name. Omitted fields take their
defaults:

  tv-power:
    freq: 38
    data: [3400, 1700, 450, 450]
  aircon-off:
    data: [9000, 4500, 560, 560]`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			return runImport(cmd.Context(), cfg, args[0], cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
}

// runImport stores every signal in path. Invalid entries are reported and
// skipped; the command fails if any entry failed.
func runImport(ctx context.Context, cfg *config.Config, path string, out, errOut io.Writer) error {
	records, err := readSignalFile(path)
	if err != nil {
		return err
	}

	log := logging.NewWithWriter(cfg.Logging, version, errOut)
	db, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer db.Close()

	svc := irsignal.NewService(irsignal.NewSQLiteRepository(db.DB), nil)
	svc.SetLogger(log)
	trail := audit.NewSQLiteRepository(db.DB)

	var failed int
	for _, rec := range records {
		created, err := svc.Put(ctx, rec.Name, rec.Signal)
		if err != nil {
			failed++
			fmt.Fprintf(out, "failed  %s: %v\n", rec.Name, err)
			continue
		}

		action, verb := audit.ActionUpdate, "updated"
		if created {
			action, verb = audit.ActionCreate, "created"
		}
		fmt.Fprintf(out, "%s %s\n", verb, rec.Name)

		entry := &audit.AuditLog{
			Action:  action,
			Name:    rec.Name,
			Source:  audit.SourceImport,
			Details: map[string]any{"file": path},
		}
		if err := trail.Create(ctx, entry); err != nil {
			log.Warn("audit write failed", "name", rec.Name, "error", err)
		}
	}

	if failed > 0 {
		return fmt.Errorf("import: %d of %d signals failed", failed, len(records))
	}
	return nil
}

// readSignalFile decodes a name-to-signal mapping. Each entry is decoded
// over the default signal so omitted fields keep their defaults. Records
// come back sorted by name.
func readSignalFile(path string) ([]irsignal.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading signal file: %w", err)
	}

	var raw map[string]yaml.Node
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing signal file: %w", err)
	}

	records := make([]irsignal.Record, 0, len(raw))
	for name, node := range raw {
		sig := irsignal.DefaultSignal()
		if err := node.Decode(&sig); err != nil {
			return nil, fmt.Errorf("parsing signal %q: %w", name, err)
		}
		records = append(records, irsignal.Record{Name: name, Signal: sig})
	}

	slices.SortFunc(records, func(a, b irsignal.Record) int {
		return cmp.Compare(a.Name, b.Name)
	})
	return records, nil
}
