package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/room4-2/OpenInterpret/device"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List capture and playback devices",
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, err := device.Open(device.Options{}, slog.Default())
		if err != nil {
			return err
		}
		defer backend.Close()

		inputs, outputs, err := backend.Devices()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, styles.heading.Render("Capture"))
		for _, d := range inputs {
			fmt.Fprintln(out, deviceLine(d))
		}
		fmt.Fprintln(out, styles.heading.Render("Playback"))
		for _, d := range outputs {
			fmt.Fprintln(out, deviceLine(d))
		}
		return nil
	},
}

var languagesCmd = &cobra.Command{
	Use:   "languages",
	Short: "List selectable target languages",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()
		out := cmd.OutOrStdout()
		for _, l := range cfg.Languages {
			marker := "  "
			if l.Code == cfg.Language {
				marker = styles.model.Render("* ")
			}
			fmt.Fprintf(out, "%s%-8s %s\n", marker, l.Code, l.Name)
		}
		return nil
	},
}

func deviceLine(d device.Info) string {
	if d.IsDefault {
		return "  " + d.Name + " " + styles.dim.Render("(default)")
	}
	return "  " + d.Name
}
