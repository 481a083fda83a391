package commands

import (
	"github.com/de-tools/kmp-audit/pkg/services/batch"
	"github.com/spf13/cobra"
)

type LiveCmd struct {
	session *Session
}

func NewLiveCmd(session *Session) *cobra.Command {
	lc := &LiveCmd{session: session}
	cmd := &cobra.Command{
		Use:   "live [host...]",
		Short: "Audit the kernel modules running on this machine or on remote hosts",
		RunE:  lc.run,
	}
	return cmd
}

func (lc *LiveCmd) run(cmd *cobra.Command, args []string) error {
	hosts, err := lc.session.Hosts(cmd.Context(), args)
	if err != nil {
		return err
	}
	return lc.session.Execute(cmd.Context(), batch.Request{
		Mode:  batch.ModeLive,
		Hosts: hosts,
	})
}
