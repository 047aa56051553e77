package fileurl

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestURLParts(t *testing.T) {
	tests := []struct {
		url    URL
		scheme string
		path   string
		name   string
		parent URL
	}{
		{FromPath("/p/a/a.iml"), "file", "/p/a/a.iml", "a.iml", "file:///p/a"},
		{JarFromPath("/p/lib/x.jar"), "jar", "/p/lib/x.jar", "x.jar", "file:///p/lib"},
		{Parse("/p/b"), "file", "/p/b", "b", "file:///p"},
		{URL("file:///"), "file", "/", "", Empty},
	}
	for _, tt := range tests {
		t.Run(string(tt.url), func(t *testing.T) {
			assert.Equal(t, tt.scheme, tt.url.Scheme())
			assert.Equal(t, tt.path, tt.url.Path())
			assert.Equal(t, tt.name, tt.url.FileName())
			assert.Equal(t, tt.parent, tt.url.Parent())
		})
	}
}

func TestURLIsUnder(t *testing.T) {
	dir := FromPath("/p/.idea/libraries")
	assert.True(t, FromPath("/p/.idea/libraries/junit.xml").IsUnder(dir))
	assert.True(t, dir.IsUnder(dir))
	assert.False(t, FromPath("/p/.idea/libraries2/x.xml").IsUnder(dir))
	assert.False(t, FromPath("/p/.idea").IsUnder(dir))
}

func TestURLAppendAndSibling(t *testing.T) {
	assert.Equal(t, URL("file:///p/.idea/artifacts/a.xml"), FromPath("/p/.idea/artifacts").Append("a.xml"))
	assert.Equal(t, URL("jar:///p/x.jar!/META-INF"), JarFromPath("/p/x.jar").Append("META-INF"))
	assert.Equal(t, URL("file:///p/m/new.iml"), FromPath("/p/m/old.iml").Sibling("new.iml"))
	assert.Equal(t, "old", FromPath("/p/m/old.iml").NameWithoutExtension())
}
