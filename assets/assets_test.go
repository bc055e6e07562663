package assets

import (
	"bytes"
	"testing"
)

func TestRender(t *testing.T) {
	page, err := Render("Hospitals in Nairobi", "Data: Nairobi County")
	if err != nil {
		t.Fatal(err)
	}

	for _, want := range []string{"Hospitals in Nairobi", "Data: Nairobi County", "/api/map", "ol.js"} {
		if !bytes.Contains(page.HTML, []byte(want)) {
			t.Errorf("page lacks %q", want)
		}
	}
	if bytes.Contains(page.HTML, []byte("{{")) {
		t.Error("unexpanded template action in page")
	}
	if !bytes.HasPrefix(page.Favicon, []byte("<svg")) {
		t.Errorf("favicon: %.20s", page.Favicon)
	}
}

func TestHasAnchor(t *testing.T) {
	page, err := Render("t", "")
	if err != nil {
		t.Fatal(err)
	}

	for _, id := range []string{"map", "popup", "search", "legend"} {
		if !page.HasAnchor(id) {
			t.Errorf("anchor %q missing", id)
		}
	}
	if page.HasAnchor("nope") {
		t.Error("unexpected anchor")
	}
}

func TestAnchorsOf(t *testing.T) {
	doc := []byte(`<div id="map"></div>
<li data-id="popup"></li><span class="x"	id="legend"></span><p grid="n"></p>`)

	got := anchorsOf(doc)

	tests := []struct {
		id   string
		want bool
	}{
		{"map", true},
		{"legend", true},
		{"popup", false},
		{"n", false},
	}
	for _, tc := range tests {
		if got[tc.id] != tc.want {
			t.Errorf("anchor %q: got %v, want %v", tc.id, got[tc.id], tc.want)
		}
	}
}
