package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/de-tools/kmp-audit/pkg/models/domain"
	"gopkg.in/ini.v1"
)

const defaultSSHPort = 22

// HostRegistry resolves remote host profiles from an INI inventory, one
// section per host:
//
//	[build-01]
//	address = 10.0.0.12
//	user = root
//	key_file = ~/.ssh/id_ed25519
type HostRegistry interface {
	GetHosts(ctx context.Context) ([]string, error)
	GetHost(ctx context.Context, name string) (domain.HostProfile, error)
}

type iniRegistry struct {
	cfg *ini.File
}

func NewHostRegistry(path string) (HostRegistry, error) {
	cfg, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load host inventory: %w", err)
	}
	return &iniRegistry{cfg: cfg}, nil
}

// NewHostRegistryFromBytes is used for inline inventories.
func NewHostRegistryFromBytes(data []byte) (HostRegistry, error) {
	cfg, err := ini.Load(data)
	if err != nil {
		return nil, fmt.Errorf("load host inventory: %w", err)
	}
	return &iniRegistry{cfg: cfg}, nil
}

func (r *iniRegistry) GetHosts(_ context.Context) ([]string, error) {
	var hosts []string
	for _, section := range r.cfg.Sections() {
		if len(section.Keys()) > 0 && section.Name() != ini.DefaultSection {
			hosts = append(hosts, section.Name())
		}
	}
	return hosts, nil
}

func (r *iniRegistry) GetHost(_ context.Context, name string) (domain.HostProfile, error) {
	section, err := r.cfg.GetSection(name)
	if err != nil {
		return domain.HostProfile{}, fmt.Errorf("host %s not found", name)
	}

	profile := domain.HostProfile{
		Name:       name,
		Address:    section.Key("address").MustString(name),
		Port:       section.Key("port").MustInt(defaultSSHPort),
		User:       section.Key("user").MustString("root"),
		KeyFile:    expandHome(section.Key("key_file").String()),
		Password:   section.Key("password").String(),
		KnownHosts: expandHome(section.Key("known_hosts").String()),
		Insecure:   section.Key("insecure").MustBool(false),
	}
	if profile.KeyFile == "" && profile.Password == "" {
		return domain.HostProfile{}, fmt.Errorf("host %s: key_file or password is required", name)
	}
	return profile, nil
}

func expandHome(path string) string {
	if len(path) < 2 || path[:2] != "~/" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
