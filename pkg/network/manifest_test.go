package network

import (
	"strings"
	"testing"
)

func TestRender(t *testing.T) {
	out, err := Render(RenderParams{
		Slug:           "acme",
		Domain:         "acme.bootnode.dev",
		Brand:          "Acme Chain",
		WebImage:       "ghcr.io/hanzoai/bootnode-web:latest",
		WebReplicas:    2,
		APIServiceName: "bootnode-api",
		APIServicePort: 9650,
		IAMClientID:    "acme-cloud",
		APIURL:         "https://api.acme.bootnode.dev",
		WSURL:          "wss://api.acme.bootnode.dev/ws",
		CloudDomains:   []string{"bootnode.dev", "acme.bootnode.dev"},
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	wantContains := []string{
		"name: acme-cloud-web",
		"kind: Deployment",
		"kind: Service",
		"kind: Ingress",
		"host: cloud.acme.bootnode.dev",
		"host: api.acme.bootnode.dev",
		"name: bootnode-api",
		"replicas: 2",
		"https://cloud.bootnode.dev",
		"https://cloud.acme.bootnode.dev",
	}
	for _, want := range wantContains {
		if !strings.Contains(out, want) {
			t.Errorf("rendered manifest missing %q\n---\n%s", want, out)
		}
	}

	if got := strings.Count(out, "---"); got != 3 {
		t.Errorf("expected 3 document separators (4 resources), got %d", got)
	}
}

func TestResourcesFor(t *testing.T) {
	got := ResourcesFor("acme")
	if len(got) != 4 {
		t.Fatalf("expected 4 resources, got %d", len(got))
	}
	wantKinds := map[string]int{"deployment": 1, "service": 1, "ingress": 2}
	gotKinds := map[string]int{}
	for _, r := range got {
		gotKinds[r.Kind]++
		if !strings.HasPrefix(r.Name, "acme-cloud-") {
			t.Errorf("resource name %q missing acme-cloud- prefix", r.Name)
		}
	}
	for k, want := range wantKinds {
		if gotKinds[k] != want {
			t.Errorf("kind %q count = %d, want %d", k, gotKinds[k], want)
		}
	}
}
