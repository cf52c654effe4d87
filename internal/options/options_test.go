package options

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	m := Parse([]string{"user=alice", "AsComment", "Prefix=a=b", "", "Prefix=last", "Empty="})

	assert.Equal(t, "alice", m["user"])
	assert.True(t, m.Has("AsComment"))
	assert.Equal(t, "", m["AsComment"])
	assert.Equal(t, "last", m.Get("Prefix", ""))
	assert.True(t, m.Has("Empty"))
	assert.False(t, m.Has("missing"))
	assert.Equal(t, "def", m.Get("missing", "def"))
	assert.Equal(t, []string{"AsComment", "Empty", "Prefix", "user"}, m.Keys())
}

func TestParseValueWithEquals(t *testing.T) {
	m := Parse([]string{"Prefix=a=b"})
	assert.Equal(t, "a=b", m["Prefix"])
}

func TestFromMapDefaults(t *testing.T) {
	o := FromMap(Parse(nil))

	assert.Equal(t, DefaultHistfile, o.Histfile)
	assert.False(t, o.AsComment)
	assert.False(t, o.Verbose)
	assert.Equal(t, "", o.LinePrefix())
	assert.Equal(t, "text", o.LogFormat)
	assert.False(t, o.IsSet(KeyHistfile))
}

func TestLinePrefix(t *testing.T) {
	tests := []struct {
		name string
		vec  []string
		want string
	}{
		{"none", nil, ""},
		{"comment only", []string{"AsComment"}, "# "},
		{"prefix only", []string{"Prefix=audit:"}, "audit:"},
		{"comment and prefix", []string{"AsComment", "Prefix=audit:"}, "# audit:"},
		{"comment with value", []string{"AsComment=no"}, "# "},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, FromMap(Parse(tc.vec)).LinePrefix())
		})
	}
}

func TestFromMapAllKeys(t *testing.T) {
	o := FromMap(Parse([]string{
		"Histfile=~/.audit", "Verbose", "Config=/etc/sudohist.toml",
		"Database=/var/lib/sudohist.db", "LogFormat=json",
	}))

	assert.Equal(t, "~/.audit", o.Histfile)
	assert.True(t, o.Verbose)
	assert.Equal(t, "/etc/sudohist.toml", o.Config)
	assert.Equal(t, "/var/lib/sudohist.db", o.Database)
	assert.Equal(t, "json", o.LogFormat)
	for _, k := range []string{KeyHistfile, KeyVerbose, KeyConfig, KeyDatabase, KeyLogFormat} {
		assert.True(t, o.IsSet(k), k)
	}
	assert.False(t, o.IsSet(KeyPrefix))
}
