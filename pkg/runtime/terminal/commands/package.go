package commands

import (
	"github.com/de-tools/kmp-audit/pkg/services/batch"
	"github.com/spf13/cobra"
)

type PackageCmd struct {
	session *Session
}

func NewPackageCmd(session *Session) *cobra.Command {
	pc := &PackageCmd{session: session}
	cmd := &cobra.Command{
		Use:   "package <file|dir>",
		Short: "Audit packages from fact files and fact bundles",
		Long: `Audit every package fact document (.json, .yaml, .yml) and fact bundle
(.tar.gz, .tgz) found at the given path. Directories are walked recursively.`,
		Args: cobra.ExactArgs(1),
		RunE: pc.run,
	}
	return cmd
}

func (pc *PackageCmd) run(cmd *cobra.Command, args []string) error {
	return pc.session.Execute(cmd.Context(), batch.Request{
		Mode: batch.ModePackage,
		Path: args[0],
	})
}
