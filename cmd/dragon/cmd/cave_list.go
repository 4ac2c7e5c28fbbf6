package cmd

import (
	"bytes"
	"text/template"

	"github.com/spf13/cobra"
)

const caveListTemplate = `{{.Name}} , {{.ID}} , {{.Type}} , {{.MountPath}} , {{len .Rules}} rules`

func applyCaveTemplate(cave CaveConfig) error {
	t := template.Must(template.New("cave").Parse(caveListTemplate))
	var buf bytes.Buffer
	if err := t.Execute(&buf, cave); err != nil {
		return err
	}
	infoLogger.Println(buf.String())
	return nil
}

var caveList = &cobra.Command{
	Use:   "list",
	Short: "List caves",
	Long:  `List the caves registered in the configuration`,
	Example: `% dragon cave list
nas , 2QyzpSbwv4nM1hGEDLxyZ2bCDA8 , backup , /mnt/nas/hoard , 2 rules`,
	Run: func(cmd *cobra.Command, args []string) {
		for _, cave := range config.Caves {
			if err := applyCaveTemplate(cave); err != nil {
				wrapFatalln("executing template", err)
				return
			}
		}
	},
}

func init() {
	caveCmd.AddCommand(caveList)
}
