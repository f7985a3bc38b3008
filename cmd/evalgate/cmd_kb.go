package main

import (
	"fmt"
	"strings"

	"github.com/namel3ss/evalgate/internal/kb"
	"github.com/namel3ss/evalgate/internal/reporting"
	"github.com/spf13/cobra"
)

func newKBCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "kb <kb.json> <query...>",
		Short: "Look up an answer in a support knowledge base",
		Long: `Look up the best answer for a query in a JSON knowledge base.

The knowledge base is an array of {"question", "answer"} objects. The entry
whose question shares the most query words wins; ties go to the earliest
entry. No overlap prints an empty answer.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := kb.Load(args[0])
			if err != nil {
				return err
			}
			match := kb.Lookup(entries, strings.Join(args[1:], " "))

			if asJSON {
				data, err := reporting.MarshalJSON(map[string]string{"answer": match.Answer})
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), match.Answer)
			return err
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print {\"answer\": ...} as JSON")

	return cmd
}
