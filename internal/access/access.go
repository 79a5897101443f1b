// Package access decides which addresses may run administrative operations.
package access

import (
	"context"
	"fmt"
	"strings"

	id "chimera/pkg/domain"
)

// StaticAdmins grants administrator rights to a fixed address set loaded at
// startup. The set never changes afterwards.
type StaticAdmins struct {
	admins map[id.Address]struct{}
}

func NewStaticAdmins(admins ...id.Address) *StaticAdmins {
	s := &StaticAdmins{admins: make(map[id.Address]struct{}, len(admins))}
	for _, a := range admins {
		s.admins[a] = struct{}{}
	}
	return s
}

// ParseAdmins builds the set from raw addresses, rejecting malformed ones.
func ParseAdmins(raw []string) (*StaticAdmins, error) {
	admins := make([]id.Address, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		addr, err := id.ParseAddress(r)
		if err != nil {
			return nil, fmt.Errorf("admin address %q: %w", r, err)
		}
		admins = append(admins, addr)
	}
	return NewStaticAdmins(admins...), nil
}

func (s *StaticAdmins) IsAdmin(_ context.Context, addr id.Address) (bool, error) {
	_, ok := s.admins[addr]
	return ok, nil
}
