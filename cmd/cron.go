package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zapista/zapista/internal/config"
	"github.com/zapista/zapista/internal/cron"
)

// cronCmd inspects and edits the persisted job store without touching the
// running server. Useful for checking what survived a crash or pruning a
// job that misbehaves.
func cronCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cron",
		Short: "Inspect or edit the persisted job store",
	}
	cmd.AddCommand(cronListCmd())
	cmd.AddCommand(cronRemoveCmd())
	return cmd
}

func cronListCmd() *cobra.Command {
	var showDisabled bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List scheduled jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, err := loadJobStore()
			if err != nil {
				return err
			}

			shown := 0
			for i := range store.Jobs {
				job := &store.Jobs[i]
				if !job.Enabled && !showDisabled {
					continue
				}
				status := ""
				if !job.Enabled {
					status = " (disabled)"
				}
				fmt.Printf("%-6s %s  %s%s\n", job.ID, job.Payload.To, cron.DescribeJob(*job), status)
				shown++
			}
			if shown == 0 {
				fmt.Println("no jobs scheduled")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showDisabled, "all", false, "include disabled jobs")
	return cmd
}

func cronRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a job and its pre-event leads",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.ToUpper(strings.TrimSpace(args[0]))

			store, path, err := loadJobStore()
			if err != nil {
				return err
			}

			// Children (leads, snoozes) go with the parent.
			kept := store.Jobs[:0]
			removed := 0
			for _, job := range store.Jobs {
				if job.ID == id || job.Payload.ParentJobID == id {
					removed++
					continue
				}
				kept = append(kept, job)
			}
			if removed == 0 {
				return fmt.Errorf("no job with id %s", id)
			}
			store.Jobs = kept

			if err := saveJobStore(path, store); err != nil {
				return err
			}
			fmt.Printf("removed %d job(s)\n", removed)
			return nil
		},
	}
}

func loadJobStore() (*cron.Store, string, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, "", err
	}
	path := filepath.Join(cfg.DataDir, "cron", "jobs.json")

	store := &cron.Store{Version: 1}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return store, path, nil
	}
	if err != nil {
		return nil, "", err
	}
	if err := json.Unmarshal(data, store); err != nil {
		return nil, "", fmt.Errorf("job store unreadable: %w", err)
	}
	return store, path, nil
}

func saveJobStore(path string, store *cron.Store) error {
	data, err := json.MarshalIndent(store, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
