package templates

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/sprig"
	"github.com/fridayweigh/weights/src/logging"
	"github.com/fridayweigh/weights/src/oops"
	"github.com/fridayweigh/weights/src/utils"
	"github.com/teacat/noire"
)

//go:embed src
var embeddedTemplateFs embed.FS
var embeddedTemplates map[string]*template.Template
var initOnce sync.Once

func getTemplatesFromFS(templateFS fs.ReadDirFS) (map[string]*template.Template, map[string]error) {
	templates := make(map[string]*template.Template)
	errs := make(map[string]error)

	files := utils.Must1(templateFS.ReadDir("src"))
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".html") {
			continue
		}

		t := template.New(f.Name())
		t = t.Funcs(sprig.FuncMap())
		t = t.Funcs(WeightsTemplateFuncs)
		t, err := t.ParseFS(templateFS,
			"src/layouts/*",
			"src/"+f.Name(),
		)
		if err != nil {
			errs[f.Name()] = err
			continue
		}

		templates[f.Name()] = t
	}

	return templates, errs
}

func Init() {
	initOnce.Do(parseEmbedded)
}

func parseEmbedded() {
	var errs map[string]error
	type errEntry struct {
		name string
		err  error
	}

	embeddedTemplates, errs = getTemplatesFromFS(embeddedTemplateFs)
	if len(errs) > 0 {
		var errsList []errEntry
		for filename, err := range errs {
			errsList = append(errsList, errEntry{filename, err})
		}
		sort.Slice(errsList, func(i, j int) bool {
			return strings.Compare(errsList[i].name, errsList[j].name) < 0
		})
		for _, err := range errsList {
			logging.Error().Str("filename", err.name).Err(err.err).Msg("Failed to parse template")
		}
		panic("Failed to parse templates; see above")
	}
}

func GetTemplate(name string) *template.Template {
	Init()

	template, hasTemplate := embeddedTemplates[name]
	if !hasTemplate {
		panic(oops.New(nil, "Template not found: %s", name))
	}
	return template
}

func Render(w io.Writer, name string, data any) error {
	err := GetTemplate(name).Execute(w, data)
	if err != nil {
		return oops.New(err, "failed to render template %s", name)
	}
	return nil
}

var WeightsTemplateFuncs = template.FuncMap{
	"add": func(a int, b ...int) int {
		for _, num := range b {
			a += num
		}
		return a
	},
	"rfc3339": func(t time.Time) string {
		return t.UTC().Format(time.RFC3339)
	},
	"hex2color": func(hex string) (noire.Color, error) {
		if len(strings.TrimPrefix(hex, "#")) < 6 {
			return noire.Color{}, fmt.Errorf("hex color was invalid: %v", hex)
		}
		return noire.NewHex(strings.TrimPrefix(hex, "#")), nil
	},
	"brighten": func(amount float64, color noire.Color) noire.Color {
		return color.Tint(amount)
	},
	"darken": func(amount float64, color noire.Color) noire.Color {
		return color.Shade(amount)
	},
	"color2css": func(color noire.Color) template.CSS {
		return template.CSS("#" + strings.TrimPrefix(color.Hex(), "#"))
	},
	"colorlight": func(hex string) template.CSS {
		return template.CSS(ColorLight(hex))
	},
}
