package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/traineemgr/server/gallery"
)

type sessionView struct {
	Folder string      `json:"folder" yaml:"folder"`
	Live   string      `json:"live,omitempty" yaml:"live,omitempty"`
	Images []imageView `json:"images" yaml:"images"`
}

type imageView struct {
	Name       string    `json:"name" yaml:"name"`
	CapturedAt time.Time `json:"captured_at" yaml:"captured_at"`
	Comment    string    `json:"comment,omitempty" yaml:"comment,omitempty"`
	Discussed  bool      `json:"discussed" yaml:"discussed"`
}

func sessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect recorded training folders",
	}
	cmd.AddCommand(sessionShowCmd())
	return cmd
}

func sessionShowCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "show <folder>",
		Short: "Print the images and comments of a training folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			images, meta, err := gallery.Scan(args[0])
			if err != nil {
				return err
			}
			view := sessionView{Folder: args[0], Live: meta.Live, Images: []imageView{}}
			for _, img := range images {
				view.Images = append(view.Images, imageView{
					Name:       img.Name,
					CapturedAt: img.CapturedAt,
					Comment:    img.Comment,
					Discussed:  img.Discussed,
				})
			}
			return writeSession(cmd.OutOrStdout(), view, format)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json or yaml")
	return cmd
}

func writeSession(w io.Writer, view sessionView, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(view); err != nil {
			return err
		}
		return enc.Close()
	case "text":
		fmt.Fprintf(w, "%s (%d images)\n", view.Folder, len(view.Images))
		for _, img := range view.Images {
			mark := " "
			if img.Discussed {
				mark = "x"
			}
			if img.Name == view.Live {
				mark = ">"
			}
			fmt.Fprintf(w, "[%s] %s  %s\n", mark, img.Name, img.Comment)
		}
		return nil
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}
