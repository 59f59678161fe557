package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/locus/internal/pipeline"
)

var stagesCmd = &cobra.Command{
	Use:   "stages",
	Short: "List the analysis stages with their settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("stages"); err != nil {
			return err
		}
		stages, err := buildStages(cfg, pipeline.Deps{})
		if err != nil {
			return err
		}
		printStages(cmd.OutOrStdout(), stages)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(stagesCmd)
}

func printStages(out io.Writer, stages []pipeline.Stage) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "#\tSTAGE\tOUTPUT\tTIER\tTIMEOUT\tATTEMPTS\tTOOLS\tINPUTS")
	_, _ = fmt.Fprintln(w, "-\t-----\t------\t----\t-------\t--------\t-----\t------")

	for i, st := range stages {
		tools := make([]string, 0, len(st.Tools))
		for _, t := range st.Tools {
			tools = append(tools, t.Name())
		}
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			i+1, st.Name, st.OutputKey, st.Tier, st.Timeout, st.Retry.MaxAttempts,
			dash(strings.Join(tools, ",")), dash(strings.Join(st.Template.Required(), ",")))
	}
	_ = w.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
