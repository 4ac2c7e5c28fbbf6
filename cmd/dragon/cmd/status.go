package cmd

import (
	"bytes"
	"context"
	"text/template"

	"github.com/dragonhoard/dragon/pkg/core"

	"github.com/spf13/cobra"
)

const statusTemplate = `{{.Name}} : {{.PendingGets}} get, {{.PendingCopies}} copy, {{.PendingCleanups}} cleanup` +
	`{{range .DivergentPaths}}
  ! diverged: {{.}}{{end}}{{range .Unsatisfiable}}
  ! unsatisfiable: {{.}}{{end}}{{range .WithheldCleanups}}
  ! insufficient redundancy: {{.}}{{end}}`

func applyStatusTemplate(caveStatus core.CaveStatus) error {
	t := template.Must(template.New("status").Parse(statusTemplate))
	var buf bytes.Buffer
	if err := t.Execute(&buf, caveStatus); err != nil {
		return err
	}
	infoLogger.Println(buf.String())
	return nil
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pending actions and attention items per cave",
	Long: `Render, per cave, counts of pending get, copy and cleanup actions, and
the rows that need attention: divergences, unsatisfiable wants, cleanups
withheld for insufficient redundancy.`,
	Example: `% dragon status
laptop : 2 get, 0 copy, 0 cleanup
nas : 0 get, 5 copy, 1 cleanup
  ! diverged: /doc.txt`,
	Run: func(cmd *cobra.Command, args []string) {
		hoard, done, err := newHoard()
		if err != nil {
			wrapFatalln("assemble engine", err)
			return
		}
		defer done()

		report, err := hoard.Status(context.Background())
		if err != nil {
			wrapFatalln("compute status", err)
			return
		}
		for _, caveStatus := range report.Caves {
			if err := applyStatusTemplate(caveStatus); err != nil {
				wrapFatalln("executing template", err)
				return
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
