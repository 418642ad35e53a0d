package state

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"slices"
)

var namePattern, _ = regexp.Compile("^[0-9a-z._-]+$")

func PathValidator(s string) error {
	_, err := os.Stat(path.Dir(s))
	if err != nil {
		return err
	}
	_, err = filepath.Abs(s)
	return err
}

func NameValidator(s string) error {
	if !namePattern.MatchString(s) {
		return fmt.Errorf("%s is not a valid name, must match pattern %s", s, namePattern.String())
	}
	if len(s) > 100 {
		return fmt.Errorf("len(\"%s\") = %d > 100 is too long", s, len(s))
	}
	return nil
}

func NetworkNameValidator(s string) error {
	if len(s) == 0 {
		return errors.New("network name must not be empty")
	}
	if len(s) > NetworkNameMaxLen {
		return fmt.Errorf("network name %q is longer than %d bytes", s, NetworkNameMaxLen)
	}
	return nil
}

func NodeConfigValidator(node *NodeCfg) error {
	err := NameValidator(node.Id)
	if err != nil {
		return err
	}
	if node.Eui64.IsZero() {
		return fmt.Errorf("node %s: eui64 must be set", node.Id)
	}
	err = NetworkNameValidator(node.NetworkName)
	if err != nil {
		return fmt.Errorf("node %s: %w", node.Id, err)
	}
	if node.CandidateTable < 1 {
		return fmt.Errorf("node %s: candidate table size must be positive", node.Id)
	}
	if node.Role == RoleBorderRouter {
		if node.Schedule.Plan.NumChannels() == 0 {
			return fmt.Errorf("node %s: border router schedule has no channels", node.Id)
		}
		if !slices.Contains(node.ChannelFunctions, node.Schedule.UnicastFunction) {
			return fmt.Errorf("node %s: unicast function %s is not supported locally", node.Id, node.Schedule.UnicastFunction)
		}
	}
	if node.Security.MaxPurge < 0 || node.Security.MaxSupplicants < 0 {
		return fmt.Errorf("node %s: supplicant limits must not be negative", node.Id)
	}
	if node.Security.GtkNewInstallRequired > 100 {
		return fmt.Errorf("node %s: gtk_new_install_required is a percentage", node.Id)
	}
	if node.KeyStorePath != "" {
		if err := PathValidator(node.KeyStorePath); err != nil {
			return fmt.Errorf("node %s: key store: %w", node.Id, err)
		}
		if node.KeyStoreKey.IsZero() {
			return fmt.Errorf("node %s: key store requires key_store_key", node.Id)
		}
	}
	return nil
}

func MeshConfigValidator(cfg *MeshCfg) error {
	ids := make([]string, 0, len(cfg.Nodes))
	euis := make([]Eui64, 0, len(cfg.Nodes))
	brs := 0
	for i := range cfg.Nodes {
		n := &cfg.Nodes[i]
		if err := NodeConfigValidator(n); err != nil {
			return err
		}
		if slices.Contains(ids, n.Id) {
			return fmt.Errorf("duplicate node id: %s", n.Id)
		}
		if slices.Contains(euis, n.Eui64) {
			return fmt.Errorf("duplicate eui64: %s", n.Eui64)
		}
		if n.Role == RoleBorderRouter {
			brs++
		}
		ids = append(ids, n.Id)
		euis = append(euis, n.Eui64)
	}
	if brs == 0 {
		return errors.New("mesh has no border router")
	}
	for _, l := range cfg.Links {
		if !slices.Contains(ids, l.A) {
			return fmt.Errorf("link references undefined node %s", l.A)
		}
		if !slices.Contains(ids, l.B) {
			return fmt.Errorf("link references undefined node %s", l.B)
		}
		if l.A == l.B {
			return fmt.Errorf("link from %s to itself", l.A)
		}
		if l.Loss < 0 || l.Loss > 1 {
			return fmt.Errorf("link %s-%s: loss must be within [0, 1]", l.A, l.B)
		}
	}
	return nil
}
