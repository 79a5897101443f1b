package ownership

import (
	"testing"

	"github.com/stretchr/testify/assert"

	id "chimera/pkg/domain"
)

func TestNewRedis_KeyLayout(t *testing.T) {
	holder := id.Address("0x00000000000000000000000000000000000000a1")
	tests := []struct {
		name   string
		opts   []RedisOption
		owners string
	}{
		{name: "default", owners: "{chimera}:owners"},
		{name: "configured default", opts: []RedisOption{WithKeyPrefix("chimera")}, owners: "{chimera}:owners"},
		{name: "trailing separator", opts: []RedisOption{WithKeyPrefix("staging:")}, owners: "{staging}:owners"},
		{name: "empty falls back", opts: []RedisOption{WithKeyPrefix("")}, owners: "{chimera}:owners"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewRedis(nil, tt.opts...)
			assert.Equal(t, tt.owners, s.ownersKey)
			tag := tt.owners[:len(tt.owners)-len(":owners")]
			assert.Equal(t, tag+":holdings:"+holder.String(), s.holdingsKey(holder))
		})
	}
}
