package main

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"scribe/internal/align"
	"scribe/internal/pipeline"
)

func newSpeakersCommand(ctx *commandContext) *cobra.Command {
	speakersCmd := &cobra.Command{
		Use:   "speakers",
		Short: "Manage the known-speaker database",
	}
	speakersCmd.AddCommand(newSpeakersListCommand(ctx))
	speakersCmd.AddCommand(newSpeakersAddCommand(ctx))
	speakersCmd.AddCommand(newSpeakersRemoveCommand(ctx))
	return speakersCmd
}

func newSpeakersListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored speakers",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openSpeakers()
			if err != nil {
				return err
			}
			defer store.Close()

			speakers, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(speakers) == 0 {
				fmt.Fprintln(out, "No speakers stored")
				return nil
			}
			rows := make([][]string, 0, len(speakers))
			for _, s := range speakers {
				rows = append(rows, []string{
					s.Name,
					strconv.Itoa(len(s.Embedding)),
					s.UpdatedAt.Local().Format(time.DateTime),
				})
			}
			fmt.Fprintln(out, renderTable([]string{"Name", "Dimensions", "Updated"}, rows, 1))
			return nil
		},
	}
}

func newSpeakersAddCommand(ctx *commandContext) *cobra.Command {
	var from, jobID, label string

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Store or refine a speaker from a diarized job",
		Long: `Store the voice signature of one diarized speaker under a name.

The signature comes from the embeddings a diarized job saved, selected with
--job (or --from for a file path) and --label, for example --label S01.
Adding an existing name blends the new signature into the stored one.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.TrimSpace(args[0])
			if name == "" {
				return errors.New("speaker name is required")
			}
			path := strings.TrimSpace(from)
			if path == "" {
				if strings.TrimSpace(jobID) == "" {
					return errors.New("either --job or --from is required")
				}
				cfg, err := ctx.ensureConfig()
				if err != nil {
					return err
				}
				path = pipeline.EmbeddingsPath(cfg.Paths.WorkDir, strings.TrimSpace(jobID))
			}
			embeddings, err := pipeline.LoadEmbeddings(path)
			if err != nil {
				return err
			}
			key := align.ShortLabel(strings.ToUpper(strings.TrimSpace(label)))
			vec, ok := embeddings[key]
			if !ok {
				return fmt.Errorf("label %q not found in %s (have %s)", label, path, strings.Join(sortedKeys(embeddings), ", "))
			}

			store, err := ctx.openSpeakers()
			if err != nil {
				return err
			}
			defer store.Close()
			saved, err := store.Save(cmd.Context(), name, vec)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stored speaker %s from %s\n", saved.Name, key)
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "Embeddings file written by a diarized job")
	cmd.Flags().StringVar(&jobID, "job", "", "ID of a diarized job whose embeddings to use")
	cmd.Flags().StringVar(&label, "label", "", "Speaker label in the transcript, e.g. S01")
	_ = cmd.MarkFlagRequired("label")
	return cmd
}

func newSpeakersRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <name>",
		Short: "Delete a stored speaker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openSpeakers()
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.Remove(cmd.Context(), strings.TrimSpace(args[0])); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed speaker %s\n", args[0])
			return nil
		},
	}
}

func sortedKeys(m map[string][]float64) []string {
	return slices.Sorted(maps.Keys(m))
}
