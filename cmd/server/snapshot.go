package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"project-tracker/internal/observability"
	"project-tracker/internal/snapshot"
)

func newSnapshotCmd(opts *rootOptions) *cobra.Command {
	var compact bool

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Build one dashboard snapshot and print it as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := wireApp(opts)
			if err != nil {
				return err
			}

			agents, projects := a.snapshots.Dashboard(cmd.Context())
			for kind, err := range map[string]error{
				snapshot.KindAgents:   agents.Err,
				snapshot.KindProjects: projects.Err,
			} {
				if err != nil {
					observability.Logger().Warn("serving fallback snapshot", "kind", kind, "error", err)
				}
			}

			body := snapshot.Dashboard{Agents: agents.Snapshot, Projects: projects.Snapshot}
			var data []byte
			if compact {
				data, err = json.Marshal(body)
			} else {
				data, err = json.MarshalIndent(body, "", "  ")
			}
			if err != nil {
				return fmt.Errorf("encode snapshot: %w", err)
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		},
	}

	cmd.Flags().BoolVar(&compact, "compact", false, "print single-line JSON")
	return cmd
}
