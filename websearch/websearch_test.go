package websearch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const resultsPage = `<!DOCTYPE html>
<html><body>
<div class="results">
  <div class="result">
    <a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fen.wikipedia.org%2Fwiki%2FNeuron&amp;rut=abc">Neuron - Wikipedia</a>
    <div class="result__snippet">A neuron is an electrically excitable cell.</div>
  </div>
  <div class="result">
    <a class="result__a" href="https://neuro.mit.edu/basics">Neuroscience Basics</a>
    <div class="result__snippet">Introduction to membrane potentials.</div>
  </div>
  <div class="result">
    <a class="result__a" href="https://example.com/empty">No Snippet Here</a>
  </div>
  <div class="result">
    <a class="result__a" href="https://example.com/third">Third Result</a>
    <div class="result__snippet">Third snippet.</div>
  </div>
</div>
</body></html>`

func TestSearchParsesResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("q"); got != "resting potential" {
			t.Errorf("unexpected query param: %q", got)
		}
		w.Write([]byte(resultsPage))
	}))
	defer srv.Close()

	client := New(&Config{Endpoint: srv.URL, MaxResults: 5})
	passages, err := client.Search(context.Background(), "resting potential")
	if err != nil {
		t.Fatalf("Search error: %v", err)
	}

	// The snippet-less result is skipped.
	if len(passages) != 3 {
		t.Fatalf("expected 3 passages, got %d: %+v", len(passages), passages)
	}
	first := passages[0]
	if first.Citation != "Neuron - Wikipedia" {
		t.Errorf("unexpected citation: %q", first.Citation)
	}
	if first.Text != "A neuron is an electrically excitable cell." {
		t.Errorf("unexpected snippet: %q", first.Text)
	}
	if first.URL != "https://en.wikipedia.org/wiki/Neuron" {
		t.Errorf("redirect URL not unwrapped: %q", first.URL)
	}
	if passages[1].URL != "https://neuro.mit.edu/basics" {
		t.Errorf("direct URL mangled: %q", passages[1].URL)
	}
}

func TestSearchCapsResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(resultsPage))
	}))
	defer srv.Close()

	client := New(&Config{Endpoint: srv.URL, MaxResults: 1})
	passages, err := client.Search(context.Background(), "q")
	if err != nil {
		t.Fatalf("Search error: %v", err)
	}
	if len(passages) != 1 {
		t.Fatalf("expected results capped at 1, got %d", len(passages))
	}
}

func TestSearchNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := New(&Config{Endpoint: srv.URL})
	if _, err := client.Search(context.Background(), "q"); err == nil {
		t.Fatal("expected error for non-OK status")
	}
}

func TestResolveResultURL(t *testing.T) {
	cases := map[string]string{
		"//duckduckgo.com/l/?uddg=https%3A%2F%2Fexample.org%2Fpage": "https://example.org/page",
		"https://example.com/direct":                                "https://example.com/direct",
		"":                                                          "",
		"/relative/path":                                            "/relative/path",
	}
	for href, want := range cases {
		if got := resolveResultURL(href); got != want {
			t.Errorf("resolveResultURL(%q) = %q, want %q", href, got, want)
		}
	}
}

func TestExtractText(t *testing.T) {
	page := `<html><body>
<h1>Resting Potential</h1>
<p>The resting potential is about -70mV.</p>
<h2>Mechanism</h2>
<ul><li>Sodium-potassium pump</li><li>Leak channels</li></ul>
<script>ignore();</script>
</body></html>`

	text, err := ExtractText(page)
	if err != nil {
		t.Fatalf("ExtractText error: %v", err)
	}
	for _, want := range []string{
		"# Resting Potential",
		"The resting potential is about -70mV.",
		"## Mechanism",
		"- Sodium-potassium pump",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("extracted text missing %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, "ignore()") {
		t.Errorf("script content leaked into extraction:\n%s", text)
	}
}
