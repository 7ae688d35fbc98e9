package format

import (
	"bytes"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

type sample struct {
	DownloadLink string   `json:"download_link"`
	Tags         []string `json:"tags"`
	Size         int64    `json:"size"`
}

func TestYAMLFormatterUsesJSONNames(t *testing.T) {
	var buf bytes.Buffer
	if err := (YAMLFormatter{}).Write(&buf, sample{DownloadLink: "/v1/files/download/t", Tags: []string{"a"}, Size: 3}); err != nil {
		t.Fatalf("write yaml: %v", err)
	}
	var decoded map[string]any
	if err := yaml.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("decode yaml: %v\n%s", err, buf.String())
	}
	if decoded["download_link"] != "/v1/files/download/t" || decoded["size"] != 3 {
		t.Fatalf("unexpected yaml output:\n%s", buf.String())
	}
}

func TestForName(t *testing.T) {
	if _, err := ForName("JSON"); err != nil {
		t.Fatalf("json: %v", err)
	}
	if f, err := ForName("yml"); err != nil {
		t.Fatalf("yml: %v", err)
	} else if _, ok := f.(YAMLFormatter); !ok {
		t.Fatalf("expected YAMLFormatter, got %T", f)
	}
	if _, err := ForName("xml"); err == nil || !strings.Contains(err.Error(), "xml") {
		t.Fatalf("expected unknown format error, got %v", err)
	}
}
