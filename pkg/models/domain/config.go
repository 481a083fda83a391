package domain

import "fmt"

// HostProfile describes how to reach a remote host that packages or running
// modules are gathered from.
type HostProfile struct {
	Name       string
	Address    string
	Port       int
	User       string
	KeyFile    string
	Password   string
	KnownHosts string
	Insecure   bool
}

func (h HostProfile) String() string {
	return fmt.Sprintf("%s@%s:%d", h.User, h.Address, h.Port)
}
