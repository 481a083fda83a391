package commands

import (
	"fmt"

	"github.com/de-tools/kmp-audit/pkg/services/batch"
	"github.com/spf13/cobra"
)

type RemoteCmd struct {
	session *Session
	path    string
}

func NewRemoteCmd(session *Session) *cobra.Command {
	rc := &RemoteCmd{session: session}
	cmd := &cobra.Command{
		Use:   "remote [host...]",
		Short: "Audit a package stored on remote hosts",
		Long: `Run the fact collector against the package at --path on every host over
SSH. Hosts come from the --hosts inventory; without host arguments every
host of the inventory is audited.`,
		RunE: rc.run,
	}

	cmd.Flags().StringVar(&rc.path, "path", "", "Path of the package on the remote hosts")
	_ = cmd.MarkFlagRequired("path")

	return cmd
}

func (rc *RemoteCmd) run(cmd *cobra.Command, args []string) error {
	if rc.session.HostsFile == "" {
		return fmt.Errorf("remote audits need a host inventory, set --hosts")
	}
	hosts, err := rc.session.Hosts(cmd.Context(), args)
	if err != nil {
		return err
	}
	return rc.session.Execute(cmd.Context(), batch.Request{
		Mode:  batch.ModeRemote,
		Path:  rc.path,
		Hosts: hosts,
	})
}
