package newsletter

import (
	"fmt"
	"strings"
	"sync"

	"github.com/osteele/liquid"
)

// DefaultTemplateVersion is used when a variant names no layout, or an
// unknown one.
const DefaultTemplateVersion = "v1"

type layout struct {
	html string
	text string
}

var layouts = map[string]layout{
	"v1": {
		html: `<!DOCTYPE html><html><body style="font-family:Arial,sans-serif;">
<h1>{{ heading }}</h1>
{% if reasons.size > 0 %}<p>Picked for you: {{ reasons | join: ", " | escape }}</p>{% endif %}
<ol>
{% for repo in repositories %}<li><a href="{{ repo.url }}">{{ repo.full_name | escape }}</a>{% if repo.language != "" %} ({{ repo.language }}){% endif %}{% if include_social_proof %} &#9733; {{ repo.stars | stars }}{% endif %}
<p>{{ repo.description | escape }}</p></li>
{% endfor %}</ol>
<p><a href="{{ cta_url }}">{{ cta_text | escape }}</a></p>
{% if unsubscribe_url != "" %}<p><a href="{{ unsubscribe_url }}">Unsubscribe</a></p>{% endif %}
{% if open_pixel_url != "" %}<img src="{{ open_pixel_url }}" width="1" height="1" alt="">{% endif %}
</body></html>`,
		text: `{{ heading }}
{% for repo in repositories %}
{{ forloop.index }}. {{ repo.full_name }}{% if include_social_proof %} ({{ repo.stars | stars }} stars){% endif %}
   {{ repo.description }}
   {{ repo.url }}
{% endfor %}
{{ cta_text }}: {{ cta_url }}
{% if unsubscribe_url != "" %}Unsubscribe: {{ unsubscribe_url }}{% endif %}`,
	},
	"compact": {
		html: `<!DOCTYPE html><html><body style="font-family:Arial,sans-serif;">
<h2>{{ heading }}</h2>
<ul>{% for repo in repositories %}<li><a href="{{ repo.url }}">{{ repo.full_name | escape }}</a>{% if include_social_proof %} &#9733; {{ repo.stars | stars }}{% endif %}</li>{% endfor %}</ul>
<p><a href="{{ cta_url }}">{{ cta_text | escape }}</a></p>
{% if unsubscribe_url != "" %}<p><a href="{{ unsubscribe_url }}">Unsubscribe</a></p>{% endif %}
{% if open_pixel_url != "" %}<img src="{{ open_pixel_url }}" width="1" height="1" alt="">{% endif %}
</body></html>`,
		text: `{{ heading }}
{% for repo in repositories %}- {{ repo.full_name }} {{ repo.url }}
{% endfor %}
{% if unsubscribe_url != "" %}Unsubscribe: {{ unsubscribe_url }}{% endif %}`,
	},
}

// HasLayout reports whether version names a known layout.
func HasLayout(version string) bool {
	_, ok := layouts[version]
	return ok
}

// Renderer renders subjects and bodies with liquid. Parsed templates are
// cached by key.
type Renderer struct {
	engine *liquid.Engine
	cache  sync.Map // map[string]*liquid.Template
}

func NewRenderer() *Renderer {
	engine := liquid.NewEngine()

	// {{ repo.stars | stars }} -> 12.3k
	engine.RegisterFilter("stars", formatStars)

	return &Renderer{engine: engine}
}

func formatStars(n int) string {
	switch {
	case n >= 1000000:
		return strings.TrimSuffix(fmt.Sprintf("%.1f", float64(n)/1000000), ".0") + "M"
	case n >= 1000:
		return strings.TrimSuffix(fmt.Sprintf("%.1f", float64(n)/1000), ".0") + "k"
	default:
		return fmt.Sprintf("%d", n)
	}
}

// Render renders src with vars. An empty key skips the cache.
func (r *Renderer) Render(key, src string, vars map[string]any) (string, error) {
	var tpl *liquid.Template
	if key != "" {
		if cached, ok := r.cache.Load(key); ok {
			tpl = cached.(*liquid.Template)
		}
	}
	if tpl == nil {
		parsed, err := r.engine.ParseString(src)
		if err != nil {
			return "", fmt.Errorf("parsing template %q: %w", key, err)
		}
		tpl = parsed
		if key != "" {
			r.cache.Store(key, tpl)
		}
	}

	out, err := tpl.RenderString(vars)
	if err != nil {
		return "", fmt.Errorf("rendering template %q: %w", key, err)
	}
	return out, nil
}

// Subject renders a subject line template. Subjects are not cached since
// each variant may carry its own text.
func (r *Renderer) Subject(src string, vars map[string]any) (string, error) {
	out, err := r.Render("", src, vars)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// Body renders the HTML and text parts of a layout version.
func (r *Renderer) Body(version string, vars map[string]any) (html, text string, err error) {
	l, ok := layouts[version]
	if !ok {
		version = DefaultTemplateVersion
		l = layouts[version]
	}
	if html, err = r.Render(version+".html", l.html, vars); err != nil {
		return "", "", err
	}
	if text, err = r.Render(version+".text", l.text, vars); err != nil {
		return "", "", err
	}
	return html, text, nil
}
