package main

import (
	"embed"
	"html/template"
	"io"
	"io/fs"
	"strconv"
	"sync"
)

//go:embed web/*.html
var webFS embed.FS

// Templates holds parsed templates
type Templates struct {
	fsys  fs.FS
	cache map[string]*template.Template
	mu    sync.RWMutex
	funcs template.FuncMap
}

// IndexData is rendered into the viewer page
type IndexData struct {
	Timezone       string
	ColorMode      string
	UseRaw         bool
	Date           string
	IntervalMillis int64
	Loaded         bool
	Records        int
}

// NewTemplates creates a template manager reading from fsys, or from the
// embedded pages when fsys is nil
func NewTemplates(fsys fs.FS) *Templates {
	if fsys == nil {
		fsys, _ = fs.Sub(webFS, "web")
	}
	return &Templates{
		fsys:  fsys,
		cache: make(map[string]*template.Template),
		funcs: template.FuncMap{
			"formatNum": formatNum,
		},
	}
}

// Render renders a template to the writer
func (t *Templates) Render(w io.Writer, name string, data any) error {
	tmpl, err := t.get(name)
	if err != nil {
		return err
	}
	return tmpl.Execute(w, data)
}

// get retrieves or parses a template
func (t *Templates) get(name string) (*template.Template, error) {
	t.mu.RLock()
	tmpl, ok := t.cache[name]
	t.mu.RUnlock()
	if ok {
		return tmpl, nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	// Double-check after acquiring write lock
	if tmpl, ok := t.cache[name]; ok {
		return tmpl, nil
	}

	content, err := fs.ReadFile(t.fsys, name)
	if err != nil {
		return nil, err
	}
	tmpl, err = template.New(name).Funcs(t.funcs).Parse(string(content))
	if err != nil {
		return nil, err
	}

	t.cache[name] = tmpl
	return tmpl, nil
}

// formatNum renders n with thousands separators
func formatNum(n int) string {
	s := strconv.Itoa(n)
	neg := n < 0
	if neg {
		s = s[1:]
	}
	if len(s) <= 3 {
		if neg {
			return "-" + s
		}
		return s
	}

	var result []byte
	if neg {
		result = append(result, '-')
	}
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			result = append(result, ',')
		}
		result = append(result, byte(c))
	}
	return string(result)
}
