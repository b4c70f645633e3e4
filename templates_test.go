package main

import (
	"bytes"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatNum(t *testing.T) {
	for n, expect := range map[int]string{
		0:        "0",
		7:        "7",
		999:      "999",
		1000:     "1,000",
		1234567:  "1,234,567",
		-45000:   "-45,000",
		-100:     "-100",
		10000000: "10,000,000",
	} {
		assert.Equal(t, expect, formatNum(n), "n=%d", n)
	}
}

func TestTemplates_RenderCaches(t *testing.T) {
	fsys := fstest.MapFS{"page.html": {Data: []byte(`{{formatNum .}} points`)}}
	tmpl := NewTemplates(fsys)

	var buf bytes.Buffer
	require.NoError(t, tmpl.Render(&buf, "page.html", 12345))
	assert.Equal(t, "12,345 points", buf.String())

	// parsed once; later edits to the source are not picked up
	fsys["page.html"] = &fstest.MapFile{Data: []byte(`changed`)}
	buf.Reset()
	require.NoError(t, tmpl.Render(&buf, "page.html", 1))
	assert.Equal(t, "1 points", buf.String())

	assert.Error(t, tmpl.Render(&buf, "missing.html", nil))
}
